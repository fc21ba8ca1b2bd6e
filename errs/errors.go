// Package errs defines the error taxonomy shared by the registry, the
// serializers, the mapper and the stores. Callers should use errors.Is to
// match these values and errors.As to extract a *FieldError.
package errs

import (
	"errors"
	"fmt"
)

var (
	// Configuration errors, raised at registration or generation time.
	ErrConfig        = errors.New("configuration error")
	ErrUnregistered  = errors.New("unregistered type")
	ErrNoMessageType = errors.New("no message type configured")

	// Object -> message errors.
	ErrNullValue = errors.New("null value for a field without presence")

	// Message -> object errors.
	ErrRejected   = errors.New("rejected value")
	ErrValidation = errors.New("validation failed")

	// Store errors.
	ErrNotFound = errors.New("not found")
)

// Direction tells which way a conversion was running when it failed.
type Direction int

const (
	ToMessage Direction = iota
	ToObject
)

func (d Direction) String() string {
	if d == ToObject {
		return "message->object"
	}
	return "object->message"
}

// FieldError attaches the failing field's identity to an underlying error.
type FieldError struct {
	Entity     string
	Field      string
	FieldType  string
	Serializer string
	Direction  Direction
	Err        error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s field %s.%s (serializer %s): %v",
		e.Direction, e.FieldType, e.Entity, e.Field, e.Serializer, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// Config builds a configuration error that also matches ErrConfig.
func Config(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}
