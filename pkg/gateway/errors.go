package gateway

import (
	"errors"
	"fmt"
)

// ErrGeneration matches every *GenerationError via errors.Is.
var ErrGeneration = errors.New("generation failed")

// ErrorKind classifies why a generation failed.
type ErrorKind string

const (
	// KindUnreachable covers transport and provider errors and an open circuit.
	KindUnreachable ErrorKind = "unreachable"
	// KindNonconforming means the payload parsed but a required field is missing or empty.
	KindNonconforming ErrorKind = "nonconforming"
	// KindMalformed means the returned text is not JSON.
	KindMalformed ErrorKind = "malformed"
)

// GenerationError is returned by Gateway.Generate for every failure.
type GenerationError struct {
	Kind ErrorKind
	Err  error
}

func (e *GenerationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("generation failed (%s)", e.Kind)
	}
	return fmt.Sprintf("generation failed (%s): %v", e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

func (e *GenerationError) Is(target error) bool { return target == ErrGeneration }

func newError(kind ErrorKind, err error) *GenerationError {
	return &GenerationError{Kind: kind, Err: err}
}

// KindOf returns the kind of a generation failure, or "" when err is not one.
func KindOf(err error) ErrorKind {
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr.Kind
	}
	return ""
}
