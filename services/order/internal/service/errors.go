package service

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("not found")          // 404
	ErrRemoteCall  = errors.New("remote call failed") // 502
	ErrValidation  = errors.New("validation")         // 400
	ErrPersistence = errors.New("persistence")        // 500
	ErrConflict    = errors.New("conflict")           // 409
)

const (
	KindNotFound    = "NotFound"
	KindRemoteCall  = "RemoteCallFailure"
	KindValidation  = "ValidationFailure"
	KindPersistence = "PersistenceFailure"
	KindConflict    = "Conflict"
	KindInternal    = "Internal"
)

// Kind names the category of err, or KindInternal for anything unclassified.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrRemoteCall):
		return KindRemoteCall
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrPersistence):
		return KindPersistence
	case errors.Is(err, ErrConflict):
		return KindConflict
	default:
		return KindInternal
	}
}

func remoteErr(err error, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %w", ErrRemoteCall, fmt.Sprintf(format, args...), err)
}

func persistenceErr(err error, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, fmt.Sprintf(format, args...), err)
}
