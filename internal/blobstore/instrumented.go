package blobstore

import (
	"context"
	"errors"
)

// Observer receives one call per blob operation.
type Observer interface {
	ObserveBlobOp(op string, err error)
}

type instrumented struct {
	Store
	observer Observer
}

// Instrument wraps s so that every Put, Get and Delete is reported to o.
// A missing blob on Get is reported as a successful lookup.
func Instrument(s Store, o Observer) Store {
	if o == nil {
		return s
	}
	return &instrumented{Store: s, observer: o}
}

func (i *instrumented) Put(ctx context.Context, area Area, data []byte) (string, error) {
	handle, err := i.Store.Put(ctx, area, data)
	i.observer.ObserveBlobOp("put", err)
	return handle, err
}

func (i *instrumented) Get(ctx context.Context, handle string) ([]byte, error) {
	data, err := i.Store.Get(ctx, handle)
	if errors.Is(err, ErrNotFound) {
		i.observer.ObserveBlobOp("get", nil)
	} else {
		i.observer.ObserveBlobOp("get", err)
	}
	return data, err
}

func (i *instrumented) Delete(ctx context.Context, handle string) error {
	err := i.Store.Delete(ctx, handle)
	i.observer.ObserveBlobOp("delete", err)
	return err
}
