package schema

import (
	"fmt"
	"strings"
)

// CompileError is a single static problem found while compiling a schema.
type CompileError struct {
	// Path is the dot separated property path, e.g. "servers.elem.port".
	Path    string
	Message string
	Err     error
}

func (e *CompileError) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	if e.Path == "" {
		return msg
	}
	return fmt.Sprintf("%s: %s", e.Path, msg)
}

func (e *CompileError) Unwrap() error { return e.Err }

// CompileErrors collects every problem of one schema.
type CompileErrors struct {
	Class  string
	Errors []*CompileError
}

func (e *CompileErrors) Error() string {
	switch len(e.Errors) {
	case 0:
		return "no schema errors"
	case 1:
		return fmt.Sprintf("schema %s: %s", e.Class, e.Errors[0])
	}
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("schema %s: %d errors:\n  - %s", e.Class, len(e.Errors), strings.Join(msgs, "\n  - "))
}

// Add records a problem at path.
func (e *CompileErrors) Add(path, format string, args ...any) {
	e.Errors = append(e.Errors, &CompileError{Path: path, Message: fmt.Sprintf(format, args...)})
}

// AddErr records a wrapped error at path.
func (e *CompileErrors) AddErr(path, message string, err error) {
	e.Errors = append(e.Errors, &CompileError{Path: path, Message: message, Err: err})
}

// HasErrors reports whether any problem was recorded.
func (e *CompileErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (e *CompileErrors) Unwrap() []error {
	out := make([]error, len(e.Errors))
	for i, err := range e.Errors {
		out[i] = err
	}
	return out
}

// AsError returns nil when there are no problems.
func (e *CompileErrors) AsError() error {
	if !e.HasErrors() {
		return nil
	}
	return e
}
