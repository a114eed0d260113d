// Package document defines the tree exchanged with the document codec.
//
// A configuration is rendered into a Document whose root is a Mapping. Every
// value below it is one of the five node shapes: Scalar, Sequence, Mapping,
// StringBlock or Binary. The engine only builds and destructures these
// trees; the textual syntax is the codec's business (see codec.go).
package document

import "fmt"

// Kind identifies the shape of a Node.
type Kind int

const (
	KindScalar Kind = iota
	KindSequence
	KindMapping
	KindStringBlock
	KindBinary
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	case KindStringBlock:
		return "string block"
	case KindBinary:
		return "binary"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Node is one node of the document tree.
type Node interface {
	Kind() Kind
}

// Tag is the resolved type of a scalar.
type Tag int

const (
	TagString Tag = iota
	TagInt
	TagFloat
	TagBool
	TagNull
)

func (t Tag) String() string {
	switch t {
	case TagString:
		return "str"
	case TagInt:
		return "int"
	case TagFloat:
		return "float"
	case TagBool:
		return "bool"
	case TagNull:
		return "null"
	}
	return fmt.Sprintf("tag(%d)", int(t))
}

// Layout selects how a string block is laid out.
type Layout int

const (
	Literal Layout = iota
	Folded
)

// Chomping controls the trailing newlines of a string block.
type Chomping int

const (
	// ChompStrip trims every trailing newline.
	ChompStrip Chomping = iota
	// ChompClip collapses trailing newlines to a single one.
	ChompClip
	// ChompKeep keeps all trailing newlines.
	ChompKeep
)

// Encoding selects the representation of binary data.
type Encoding int

const (
	// ByteSequence writes the payload as a flow sequence of byte values.
	ByteSequence Encoding = iota
	// Base64Block writes the payload as a base64 encoded block.
	Base64Block
)

func (e Encoding) String() string {
	if e == Base64Block {
		return "base64"
	}
	return "bytes"
}

// Scalar is a plain or quoted scalar. Text is already formatted.
type Scalar struct {
	Tag  Tag
	Text string
}

func (*Scalar) Kind() Kind { return KindScalar }

// Sequence is an ordered list of nodes.
type Sequence struct {
	Items []Node
	Flow  bool
}

func (*Sequence) Kind() Kind { return KindSequence }

// Entry is a single key/value pair of a Mapping. Comment lines are opaque
// and handed to the codec as-is.
type Entry struct {
	Key     string
	Value   Node
	Comment []string
}

// Mapping is an ordered map from string keys to nodes.
type Mapping struct {
	Entries []Entry
}

func (*Mapping) Kind() Kind { return KindMapping }

// Get returns the value stored under key.
func (m *Mapping) Get(key string) (Node, bool) {
	if m == nil {
		return nil, false
	}
	for _, e := range m.Entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// Has reports whether key is present.
func (m *Mapping) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Append adds an entry at the end of the mapping.
func (m *Mapping) Append(key string, value Node, comment ...string) {
	m.Entries = append(m.Entries, Entry{Key: key, Value: value, Comment: comment})
}

// Keys returns the keys in document order.
func (m *Mapping) Keys() []string {
	keys := make([]string, 0, len(m.Entries))
	for _, e := range m.Entries {
		keys = append(keys, e.Key)
	}
	return keys
}

// StringBlock is a multi-line string written in block style.
// Indent below zero means the document default. Indent is advisory; Codec
// writes every block with its document wide indentation.
type StringBlock struct {
	Text     string
	Layout   Layout
	Chomping Chomping
	Indent   int
}

func (*StringBlock) Kind() Kind { return KindStringBlock }

// Binary is a byte payload with its requested encoding.
type Binary struct {
	Data     []byte
	Encoding Encoding
}

func (*Binary) Kind() Kind { return KindBinary }

// Document is the unit exchanged with the codec.
type Document struct {
	Header []string
	Footer []string
	Root   *Mapping
}

// NewString returns a string scalar.
func NewString(s string) *Scalar { return &Scalar{Tag: TagString, Text: s} }

// Null returns a null scalar.
func Null() *Scalar { return &Scalar{Tag: TagNull, Text: "null"} }

// IsNull reports whether n is absent or an explicit null scalar.
func IsNull(n Node) bool {
	if n == nil {
		return true
	}
	s, ok := n.(*Scalar)
	return ok && s.Tag == TagNull
}

// Text returns the textual content of a scalar or string block.
func Text(n Node) (string, bool) {
	switch v := n.(type) {
	case *Scalar:
		return v.Text, true
	case *StringBlock:
		return v.Text, true
	}
	return "", false
}
