package orders

import (
	"errors"
	"fmt"
)

// Validation failures are expected business outcomes and travel to the caller
// as one of the three typed errors below. Anything else is treated as an
// internal storage failure and must not leak detail past the HTTP boundary.

type NotFoundError struct {
	Kind string // "customer" | "product" | "order"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string { return e.Reason }

type InvalidArgumentError struct {
	Reason string
}

func (e *InvalidArgumentError) Error() string { return e.Reason }

func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

func IsConflict(err error) bool {
	var e *ConflictError
	return errors.As(err, &e)
}

func IsInvalidArgument(err error) bool {
	var e *InvalidArgumentError
	return errors.As(err, &e)
}
