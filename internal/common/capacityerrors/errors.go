// Package capacityerrors contains the typed errors returned when queue capacity input is rejected.
// Callers should inspect them with errors.As, as they are usually wrapped with github.com/pkg/errors.
//
// Inconsistencies in the capacity configuration itself are never returned as errors; they are reported as
// warnings by the updater.
package capacityerrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrNotFound is returned whenever some resource, e.g. a queue looked up by path, does not exist.
// Type and Message are optional and are omitted from the error message if not provided.
type ErrNotFound struct {
	Type    string // Resource type, e.g., "queue"
	Value   string // Resource name, e.g., "root.a.a1"
	Message string // An optional message to include in the error message
}

func (err *ErrNotFound) Error() (s string) {
	if err.Type != "" {
		s = fmt.Sprintf("resource %q of type %q does not exist", err.Value, err.Type)
	} else {
		s = fmt.Sprintf("resource %q does not exist", err.Value)
	}
	if err.Message != "" {
		return s + fmt.Sprintf("; %s", err.Message)
	}
	return s
}

// ErrAlreadyExists is returned whenever some resource, e.g. a child queue, already exists.
type ErrAlreadyExists struct {
	Type    string
	Value   string
	Message string
}

func (err *ErrAlreadyExists) Error() (s string) {
	if err.Type != "" {
		s = fmt.Sprintf("resource %q of type %q already exists", err.Value, err.Type)
	} else {
		s = fmt.Sprintf("resource %q already exists", err.Value)
	}
	if err.Message != "" {
		return s + fmt.Sprintf("; %s", err.Message)
	}
	return s
}

// ErrInvalidArgument is returned when an input precondition is violated, e.g. a negative cluster resource.
// Message is optional and is omitted from the error message if not provided.
type ErrInvalidArgument struct {
	Name    string      // Name of the field referred to, e.g., "clusterResource"
	Value   interface{} // The invalid value that was provided
	Message string      // An optional message explaining why the value is invalid
}

func (err *ErrInvalidArgument) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("value %v is invalid for field %q", err.Value, err.Name)
	}
	return fmt.Sprintf("value %v is invalid for field %q; %s", err.Value, err.Name, err.Message)
}

// IsNotFound returns true if err or any error in its chain is an *ErrNotFound.
func IsNotFound(err error) bool {
	var e *ErrNotFound
	return errors.As(err, &e)
}

// IsInvalidArgument returns true if err or any error in its chain is an *ErrInvalidArgument.
func IsInvalidArgument(err error) bool {
	var e *ErrInvalidArgument
	return errors.As(err, &e)
}
