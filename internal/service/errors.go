package service

import (
	"errors"
	"fmt"

	"github.com/S1riyS/drive-core/server/internal/blobstore"
	"github.com/S1riyS/drive-core/server/internal/pkg/errkind"
)

type ServiceError struct {
	Kind    errkind.Kind
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) GetKind() errkind.Kind {
	return e.Kind
}

func newError(kind errkind.Kind, format string, args ...any) *ServiceError {
	return &ServiceError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the kind of a service error. Anything else is Internal.
func KindOf(err error) errkind.Kind {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Kind
	}
	return errkind.Internal
}

func IsKind(err error, kind errkind.Kind) bool {
	return err != nil && KindOf(err) == kind
}

// blobError maps a blob store failure onto the service error kinds.
func blobError(err error, message string) error {
	if errors.Is(err, blobstore.ErrNotFound) {
		return &ServiceError{Kind: errkind.ContentMissing, Message: message, Err: err}
	}
	return &ServiceError{Kind: errkind.StorageUnavailable, Message: message, Err: err}
}
