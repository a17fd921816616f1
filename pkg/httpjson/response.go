// Package httpjson writes JSON responses in the shape every endpoint uses.
package httpjson

import (
	"encoding/json"
	"fmt"
	"net/http"
)

type ErrorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// Write encodes v as the response body with the given status.
func Write(w http.ResponseWriter, status int, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	body = append(body, '\n')

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(body)))
	w.WriteHeader(status)

	_, err = w.Write(body)
	return err
}

func Error(w http.ResponseWriter, status int, kind string, msg string) error {
	return Write(w, status, ErrorBody{Error: msg, Kind: kind})
}

// Decode reads a JSON body into v, rejecting unknown fields.
func Decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
