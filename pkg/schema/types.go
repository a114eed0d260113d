// Package schema describes configuration classes: their properties, the
// styles attached to them, list-as-map transforms and scripts.
//
// Schemas are assembled with the builder in builder.go or read from a
// definition file (see file.go), then checked by Compile. A compiled schema
// is treated as immutable and may be shared freely.
package schema

import (
	"fmt"

	"github.com/bfv/configs/pkg/script"
	"github.com/bfv/configs/pkg/style"
)

// ValueType is the structural type of a property.
type ValueType int

const (
	TypeScalar ValueType = iota
	TypeObject
	TypeSequence
	TypeMapping
)

func (t ValueType) String() string {
	switch t {
	case TypeScalar:
		return "scalar"
	case TypeObject:
		return "object"
	case TypeSequence:
		return "sequence"
	case TypeMapping:
		return "mapping"
	}
	return fmt.Sprintf("type(%d)", int(t))
}

// ScalarKind is the type of a scalar property.
type ScalarKind = style.Kind

// ValidatorSpec pairs a predicate script with its error message script.
type ValidatorSpec = script.Validator

// NormalizeFunc transforms a value before it is stored.
type NormalizeFunc func(v any) (any, error)

// MapTransformSpec turns a sequence of records into a mapping keyed by some
// of their fields.
type MapTransformSpec struct {
	// KeyFields are extracted from every record to build its key.
	KeyFields []string
	// KeyGenerator builds the key from the record when several key fields
	// are used.
	KeyGenerator *script.Spec
	// KeyParser turns a key back into a mapping of key field values.
	KeyParser *script.Spec
	// KeySerializer names a registered serializer for the composite key.
	KeySerializer string
	// Simplify names the field written as the bare map value when it is the
	// only field left after removing the keys.
	Simplify string
}

// SingleKey reports whether exactly one key field is used.
func (m *MapTransformSpec) SingleKey() bool {
	return len(m.KeyFields) == 1
}

// IsKeyField reports whether name is one of the key fields.
func (m *MapTransformSpec) IsKeyField(name string) bool {
	for _, k := range m.KeyFields {
		if k == name {
			return true
		}
	}
	return false
}

// PropertySchema describes one property or record field.
type PropertySchema struct {
	Name string
	Type ValueType
	// Kind is the scalar type of Scalar properties.
	Kind ScalarKind
	// TypeName names the structural type, used to look up serializers.
	TypeName string

	// Fields of an Object.
	Fields []*PropertySchema
	// Elem is the element of a Sequence or the value of a Mapping.
	Elem *PropertySchema

	MapTransform *MapTransformSpec
	Styles       style.Set
	Validators   []ValidatorSpec

	// KeyGenerator and KeyParser rewrite the keys of a Mapping property.
	KeyGenerator *script.Spec
	KeyParser    *script.Spec

	Comment []string

	Default     any
	DefaultFrom string

	Normalize       NormalizeFunc
	NormalizeScript *script.Spec

	// RoundTrip requires every number style of the property to parse back
	// to the value it rendered.
	RoundTrip bool

	fieldIndex map[string]*PropertySchema
}

// Field returns the field called name of an Object.
func (p *PropertySchema) Field(name string) (*PropertySchema, bool) {
	if p.fieldIndex != nil {
		f, ok := p.fieldIndex[name]
		return f, ok
	}
	for _, f := range p.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// IsAsMap reports whether the property is a sequence written as a mapping.
func (p *PropertySchema) IsAsMap() bool {
	return p.Type == TypeSequence && p.MapTransform != nil
}

// Describe returns a short type description such as "sequence<object>".
func (p *PropertySchema) Describe() string {
	switch p.Type {
	case TypeScalar:
		return p.Kind.String()
	case TypeSequence, TypeMapping:
		if p.Elem != nil {
			return fmt.Sprintf("%s<%s>", p.Type, p.Elem.Describe())
		}
	case TypeObject:
		if p.TypeName != "" {
			return p.TypeName
		}
	}
	return p.Type.String()
}

// ConfigClassSchema is the compiled schema of one configuration class.
type ConfigClassSchema struct {
	Name     string
	FileName string
	Header   []string
	Footer   []string

	Properties []*PropertySchema

	index map[string]*PropertySchema
}

// Property returns the property called name.
func (c *ConfigClassSchema) Property(name string) (*PropertySchema, bool) {
	if c.index != nil {
		p, ok := c.index[name]
		return p, ok
	}
	for _, p := range c.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// Names returns the property names in declaration order.
func (c *ConfigClassSchema) Names() []string {
	names := make([]string, len(c.Properties))
	for i, p := range c.Properties {
		names[i] = p.Name
	}
	return names
}
