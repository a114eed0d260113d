// Package script compiles and runs the small scripts a schema attaches to
// its properties: validators, key generators and key parsers.
//
// The language runtime lives behind the Host interface, one implementation
// per language (see the lua subpackage). A Bridge picks the host for a
// script, caches compiled programs and bounds every invocation with a
// timeout.
package script

import (
	"context"
	"fmt"
	"strings"
)

// Binding names every script can rely on.
const (
	// Subject is the value under test, the record to build a key from or
	// the key to parse.
	Subject = "x"
	// Instance is a snapshot of the owning configuration.
	Instance = "cfg"
)

// LanguageOption is a single key=value option passed to a host.
type LanguageOption struct {
	Key   string
	Value string
}

func (o LanguageOption) String() string {
	if o.Value == "" {
		return o.Key
	}
	return o.Key + "=" + o.Value
}

// Language selects a host and its options.
type Language struct {
	ID      string
	Options []LanguageOption
}

// IsZero reports whether no language is set.
func (l Language) IsZero() bool { return l.ID == "" }

func (l Language) String() string {
	if len(l.Options) == 0 {
		return l.ID
	}
	opts := make([]string, len(l.Options))
	for i, o := range l.Options {
		opts[i] = o.String()
	}
	return l.ID + "[" + strings.Join(opts, ",") + "]"
}

// ParseLanguageOptions parses "key=value" strings. A bare "key" is kept
// with an empty value. Leading dashes are dropped.
func ParseLanguageOptions(raw []string) ([]LanguageOption, error) {
	var out []LanguageOption
	for _, r := range raw {
		r = strings.TrimLeft(strings.TrimSpace(r), "-")
		if r == "" {
			continue
		}
		key, value, _ := strings.Cut(r, "=")
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("invalid language option %q", r)
		}
		out = append(out, LanguageOption{Key: key, Value: strings.TrimSpace(value)})
	}
	return out, nil
}

// Spec is the declaration of one script.
type Spec struct {
	// Name identifies the script in errors, e.g. "entries.keyGenerator".
	Name string
	// Language is the script's own language. Empty means a default.
	Language Language
	// Override forces the bridge's annotation default instead of the
	// process default when Language is empty.
	Override bool
	Source   string
}

// IsZero reports whether the spec has no source.
func (s *Spec) IsZero() bool {
	return s == nil || strings.TrimSpace(s.Source) == ""
}

// Validator is a predicate script paired with the script producing its
// error message.
type Validator struct {
	Predicate Spec
	Message   Spec
}

// Program is a compiled script.
type Program interface {
	// Run evaluates the program with the given global bindings and returns
	// its result converted to plain Go values.
	Run(ctx context.Context, bindings map[string]any) (any, error)
}

// Host compiles scripts of one language.
type Host interface {
	Language() string
	Compile(name, source string, opts []LanguageOption) (Program, error)
}

// Compiled is a script ready to be invoked.
type Compiled struct {
	Name     string
	Language Language
	Source   string

	program Program
}

// Truthy reports whether a script result counts as success: everything
// except nil and false.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	}
	return true
}
