package tools

import (
	"fmt"
	"strings"
)

// DuplicateOperationError reports a second registration under a name that is
// already taken.
type DuplicateOperationError struct {
	Name string
}

func (e *DuplicateOperationError) Error() string {
	return fmt.Sprintf("operation %q is already registered", e.Name)
}

// UnknownOperationError reports an invocation of a name the registry does not
// hold. It carries the registered names so callers can list them.
type UnknownOperationError struct {
	Name       string
	Registered []string
}

func (e *UnknownOperationError) Error() string {
	return fmt.Sprintf("unknown operation %q, registered operations: %s",
		e.Name, strings.Join(e.Registered, ", "))
}

// ValidationError reports a malformed invocation request, rejected before any
// handler runs.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s %s", e.Field, e.Message)
}
