package style

import "fmt"

// Error reports a value that does not fit its style. Rendering callers fall
// back to the default style and report the error as a warning.
type Error struct {
	Pattern string
	Value   any
	Reason  string
}

func (e *Error) Error() string {
	if e.Pattern == "" {
		return fmt.Sprintf("style: value %v: %s", e.Value, e.Reason)
	}
	return fmt.Sprintf("style: value %v does not fit pattern %q: %s", e.Value, e.Pattern, e.Reason)
}
