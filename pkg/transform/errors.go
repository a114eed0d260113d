package transform

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a TransformError.
type Kind int

const (
	// DuplicateKey means two records or entries produced the same key.
	DuplicateKey Kind = iota
	// UnparseableKey means a document key could not be turned back into
	// key field values.
	UnparseableKey
	// MissingSerializer means a structural key has no registered serializer.
	MissingSerializer
	// InvalidKey means a record has no usable key.
	InvalidKey
	// InvalidRecord means a record or map value has the wrong shape.
	InvalidRecord
	// KeyConflict means a map value repeats a field parsed from its key.
	KeyConflict
)

func (k Kind) String() string {
	switch k {
	case DuplicateKey:
		return "duplicate key"
	case UnparseableKey:
		return "unparseable key"
	case MissingSerializer:
		return "missing serializer"
	case InvalidKey:
		return "invalid key"
	case InvalidRecord:
		return "invalid record"
	case KeyConflict:
		return "key conflict"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// TransformError is a failure of one property during a mapping pass.
type TransformError struct {
	Kind     Kind
	Property string
	// Key is the offending map key, when known.
	Key string
	Err error
}

func (e *TransformError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "property %s: %s", e.Property, e.Kind)
	if e.Key != "" {
		fmt.Fprintf(&b, " %q", e.Key)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *TransformError) Unwrap() error { return e.Err }

// IsKind reports whether err holds a *TransformError of kind k.
func IsKind(err error, k Kind) bool {
	var terr *TransformError
	for _, e := range flatten(err) {
		if errors.As(e, &terr) && terr.Kind == k {
			return true
		}
	}
	return false
}

// Errors collects the failures of a whole load or save. Sibling
// properties keep going after one of them fails.
type Errors struct {
	Errors []error
}

// Add records err. Nil is ignored and nested *Errors are flattened.
func (e *Errors) Add(err error) {
	if err == nil {
		return
	}
	var nested *Errors
	if errors.As(err, &nested) && nested != e {
		e.Errors = append(e.Errors, nested.Errors...)
		return
	}
	e.Errors = append(e.Errors, err)
}

// HasErrors reports whether any failure was recorded.
func (e *Errors) HasErrors() bool {
	return len(e.Errors) > 0
}

func (e *Errors) Error() string {
	switch len(e.Errors) {
	case 0:
		return "no errors"
	case 1:
		return e.Errors[0].Error()
	}
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%d errors:\n  - %s", len(e.Errors), strings.Join(msgs, "\n  - "))
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e *Errors) Unwrap() []error {
	return e.Errors
}

// AsError returns nil when nothing was recorded.
func (e *Errors) AsError() error {
	if !e.HasErrors() {
		return nil
	}
	return e
}

func flatten(err error) []error {
	var agg *Errors
	if errors.As(err, &agg) {
		return agg.Errors
	}
	return []error{err}
}
