package script

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownLanguage is returned when no host is registered for a language.
	ErrUnknownLanguage = errors.New("unknown script language")

	// ErrTimeout is returned when an invocation exceeds the bridge timeout.
	ErrTimeout = errors.New("script timed out")

	// ErrEmptySource is returned when compiling a script without source.
	ErrEmptySource = errors.New("empty script source")
)

// CompileError reports a script that failed to compile.
type CompileError struct {
	Name     string
	Language string
	Err      error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compiling script %s (%s): %v", e.Name, e.Language, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// RuntimeError reports a script that failed while running.
type RuntimeError struct {
	Name     string
	Language string
	Err      error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("running script %s (%s): %v", e.Name, e.Language, e.Err)
}

func (e *RuntimeError) Unwrap() error { return e.Err }

// ValidationError is a failed validator. Message is the result of the
// validator's message script.
type ValidationError struct {
	Name    string
	Value   any
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation %s failed for %v: %s", e.Name, e.Value, e.Message)
}
