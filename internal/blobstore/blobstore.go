// Package blobstore defines the content store every backend implements.
//
// Handles are opaque strings of the form "<area>/<id>". A handle is never
// reused, so a Put never overwrites existing content.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type Area string

const (
	AreaContent  Area = "content"
	AreaVersions Area = "versions"
)

var (
	// ErrNotFound is returned by Get when the handle has no content.
	ErrNotFound = errors.New("blob not found")
	// ErrInvalidHandle is returned for handles not produced by NewHandle.
	ErrInvalidHandle = errors.New("invalid blob handle")
)

type Store interface {
	Put(ctx context.Context, area Area, data []byte) (string, error)
	Get(ctx context.Context, handle string) ([]byte, error)
	// Delete is idempotent: deleting a missing handle is not an error.
	Delete(ctx context.Context, handle string) error
	Close() error
}

func NewHandle(area Area) string {
	return string(area) + "/" + uuid.NewString()
}

// ParseHandle validates a handle and splits it into area and id.
func ParseHandle(handle string) (Area, string, error) {
	area, id, ok := strings.Cut(handle, "/")
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidHandle, handle)
	}

	switch Area(area) {
	case AreaContent, AreaVersions:
	default:
		return "", "", fmt.Errorf("%w: unknown area %q", ErrInvalidHandle, area)
	}

	if _, err := uuid.Parse(id); err != nil {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidHandle, handle)
	}

	return Area(area), id, nil
}

// Copy duplicates the content behind handle into a fresh handle in area.
func Copy(ctx context.Context, s Store, handle string, area Area) (string, error) {
	data, err := s.Get(ctx, handle)
	if err != nil {
		return "", err
	}
	return s.Put(ctx, area, data)
}
