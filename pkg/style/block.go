package style

import (
	"strings"
	"unicode/utf8"

	"github.com/bfv/configs/pkg/document"
)

// NumberStyle attaches a number pattern to a property.
type NumberStyle struct {
	Pattern string
	Depth   int

	compiled *Pattern
}

// Compile parses the pattern and keeps the result for rendering.
func (s *NumberStyle) Compile() error {
	p, err := CompilePattern(s.Pattern)
	if err != nil {
		return err
	}
	s.compiled = p
	return nil
}

// Compiled returns the compiled pattern. An uncompiled style is compiled on
// the fly and an invalid one falls back to the default pattern.
func (s *NumberStyle) Compiled() *Pattern {
	if s == nil {
		return nil
	}
	if s.compiled != nil {
		return s.compiled
	}
	p, err := CompilePattern(s.Pattern)
	if err != nil {
		return nil
	}
	return p
}

// StringBlockStyle writes long or multi-line strings as blocks.
type StringBlockStyle struct {
	Layout   document.Layout
	Chomping document.Chomping

	// The block is used only when the string has at least MinimumLength
	// characters and at least MinimumLines newlines.
	MinimumLength int
	MinimumLines  int

	// Spacing is the requested block indentation; below zero means the
	// document default. It is advisory: the YAML codec only indents a whole
	// document, so blocks are written with Codec.Indent.
	Spacing int
	Depth   int
}

// DefaultStringBlock returns the string block style used when a property
// declares one without further settings.
func DefaultStringBlock() StringBlockStyle {
	return StringBlockStyle{
		Layout:        document.Literal,
		Chomping:      document.ChompStrip,
		MinimumLength: 1,
		MinimumLines:  1,
		Spacing:       -1,
		Depth:         1,
	}
}

// Applies reports whether s is rendered as a block.
func (b *StringBlockStyle) Applies(s string) bool {
	if b == nil {
		return false
	}
	return utf8.RuneCountInString(s) >= b.MinimumLength && strings.Count(s, "\n") >= b.MinimumLines
}

// Render returns a string block when the style applies and a plain string
// scalar otherwise.
func (b *StringBlockStyle) Render(s string) document.Node {
	if !b.Applies(s) {
		return document.NewString(s)
	}
	return &document.StringBlock{
		Text:     Chomp(s, b.Chomping),
		Layout:   b.Layout,
		Chomping: b.Chomping,
		Indent:   b.Spacing,
	}
}

// Chomp applies a trailing newline policy to s.
func Chomp(s string, c document.Chomping) string {
	switch c {
	case document.ChompStrip:
		return strings.TrimRight(s, "\n")
	case document.ChompClip:
		if strings.HasSuffix(s, "\n") {
			return strings.TrimRight(s, "\n") + "\n"
		}
	}
	return s
}
