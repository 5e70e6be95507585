package query

import (
	"errors"
	"fmt"

	"idlc/internal/diag"
	"idlc/internal/source"
)

var (
	// ErrUnknownKind is returned for keys whose kind is neither registered
	// nor was ever set as an input.
	ErrUnknownKind = errors.New("unknown query kind")
	// ErrMissingInput is returned by Get for an input key that was never set.
	ErrMissingInput = errors.New("missing input")
	// ErrCycle is returned when a query reads itself, directly or not.
	ErrCycle = errors.New("query cycle")
)

// InternalError poisons a query whose function failed or panicked. Only the
// failing key carries it; dependents see it wrapped.
type InternalError struct {
	Key   Key
	Err   error
	Panic any
	Stack []byte
}

func (e *InternalError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("query %s panicked: %v", e.Key, e.Panic)
	}
	return fmt.Sprintf("query %s failed: %v", e.Key, e.Err)
}

func (e *InternalError) Unwrap() error { return e.Err }

// Diagnostic renders the failure as ICE9001.
func (e *InternalError) Diagnostic() diag.Diagnostic {
	d := diag.NewError(diag.ICEQueryPoisoned, source.Span{}, e.Error())
	if len(e.Stack) > 0 {
		d = d.WithNote(source.Span{}, "stack:\n"+string(e.Stack))
	}
	return d
}

// AsInternal extracts the originating InternalError from err.
func AsInternal(err error) (*InternalError, bool) {
	var ie *InternalError
	ok := errors.As(err, &ie)
	return ie, ok
}
