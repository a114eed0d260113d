package schema

import (
	"github.com/bfv/configs/pkg/script"
	"github.com/bfv/configs/pkg/style"
)

// Builder provides a fluent API for constructing property schemas.
type Builder struct {
	prop *PropertySchema

	keyGenerator *script.Spec
	keyParser    *script.Spec
	language     script.Language
	override     bool
}

func newBuilder(name string, t ValueType, kind ScalarKind) *Builder {
	return &Builder{prop: &PropertySchema{Name: name, Type: t, Kind: kind}}
}

// Int creates an integer property.
func Int(name string) *Builder { return newBuilder(name, TypeScalar, style.KindInt) }

// Float creates a floating point property.
func Float(name string) *Builder { return newBuilder(name, TypeScalar, style.KindFloat) }

// String creates a string property.
func String(name string) *Builder { return newBuilder(name, TypeScalar, style.KindString) }

// Bool creates a boolean property.
func Bool(name string) *Builder { return newBuilder(name, TypeScalar, style.KindBool) }

// Binary creates a byte payload property.
func Binary(name string) *Builder { return newBuilder(name, TypeScalar, style.KindBinary) }

// Object creates a record property with the given fields.
func Object(name string, fields ...*Builder) *Builder {
	b := newBuilder(name, TypeObject, 0)
	for _, f := range fields {
		b.prop.Fields = append(b.prop.Fields, f.Build())
	}
	return b
}

// Sequence creates a list property. The element name is ignored.
func Sequence(name string, elem *Builder) *Builder {
	b := newBuilder(name, TypeSequence, 0)
	b.prop.Elem = elem.Build()
	return b
}

// Mapping creates a string keyed map property.
func Mapping(name string, elem *Builder) *Builder {
	b := newBuilder(name, TypeMapping, 0)
	b.prop.Elem = elem.Build()
	return b
}

// TypeName sets the structural type name used for serializer lookup.
func (b *Builder) TypeName(name string) *Builder {
	b.prop.TypeName = name
	return b
}

// Default sets the static default value.
func (b *Builder) Default(v any) *Builder {
	b.prop.Default = v
	return b
}

// DefaultFrom makes the default of another property this property's default.
func (b *Builder) DefaultFrom(name string) *Builder {
	b.prop.DefaultFrom = name
	return b
}

// Comment sets the comment lines written above the property.
func (b *Builder) Comment(lines ...string) *Builder {
	b.prop.Comment = lines
	return b
}

// Number attaches a number pattern.
func (b *Builder) Number(pattern string, depth int) *Builder {
	b.prop.Styles.Number = &style.NumberStyle{Pattern: pattern, Depth: depth}
	return b
}

// StringBlock attaches a string block style.
func (b *Builder) StringBlock(s style.StringBlockStyle) *Builder {
	b.prop.Styles.StringBlock = &s
	return b
}

// BinaryStyle attaches a binary style.
func (b *Builder) BinaryStyle(s style.BinaryStyle) *Builder {
	b.prop.Styles.Binary = &s
	return b
}

// Validator appends a validator. message may be empty.
func (b *Builder) Validator(predicate, message string) *Builder {
	v := ValidatorSpec{Predicate: script.Spec{Source: predicate}}
	if message != "" {
		v.Message = script.Spec{Source: message}
	}
	b.prop.Validators = append(b.prop.Validators, v)
	return b
}

// RoundTrip requires round trip compatible number styles.
func (b *Builder) RoundTrip() *Builder {
	b.prop.RoundTrip = true
	return b
}

// Normalize sets the transform applied before a value is stored.
func (b *Builder) Normalize(fn NormalizeFunc) *Builder {
	b.prop.Normalize = fn
	return b
}

// NormalizeScript sets a script transforming the value before it is stored.
func (b *Builder) NormalizeScript(src string) *Builder {
	b.prop.NormalizeScript = &script.Spec{Source: src}
	return b
}

// AsMap writes the sequence as a mapping keyed by keys.
func (b *Builder) AsMap(keys ...string) *Builder {
	if b.prop.MapTransform == nil {
		b.prop.MapTransform = &MapTransformSpec{}
	}
	b.prop.MapTransform.KeyFields = keys
	return b
}

// Simplify sets the field hoisted as the bare map value.
func (b *Builder) Simplify(field string) *Builder {
	if b.prop.MapTransform == nil {
		b.prop.MapTransform = &MapTransformSpec{}
	}
	b.prop.MapTransform.Simplify = field
	return b
}

// KeySerializer names the registered serializer for a composite key.
func (b *Builder) KeySerializer(name string) *Builder {
	if b.prop.MapTransform == nil {
		b.prop.MapTransform = &MapTransformSpec{}
	}
	b.prop.MapTransform.KeySerializer = name
	return b
}

// KeyGenerator sets the key generator script. On an AsMap sequence it builds
// the key from the record, on a mapping it rewrites the stored key.
func (b *Builder) KeyGenerator(src string) *Builder {
	b.keyGenerator = &script.Spec{Source: src}
	return b
}

// KeyParser sets the script reversing KeyGenerator.
func (b *Builder) KeyParser(src string) *Builder {
	b.keyParser = &script.Spec{Source: src}
	return b
}

// ScriptLanguage sets the language of every script of the property.
// override forces the annotation default when lang is empty.
func (b *Builder) ScriptLanguage(lang script.Language, override bool) *Builder {
	b.language = lang
	b.override = override
	return b
}

// Build returns the property schema. It is checked later by Compile.
func (b *Builder) Build() *PropertySchema {
	p := b.prop
	if p.MapTransform != nil {
		if b.keyGenerator != nil {
			p.MapTransform.KeyGenerator = b.keyGenerator
		}
		if b.keyParser != nil {
			p.MapTransform.KeyParser = b.keyParser
		}
	} else {
		if b.keyGenerator != nil {
			p.KeyGenerator = b.keyGenerator
		}
		if b.keyParser != nil {
			p.KeyParser = b.keyParser
		}
	}
	for _, s := range scriptsOf(p) {
		if s.Language.IsZero() {
			s.Language = b.language
		}
		s.Override = s.Override || b.override
	}
	return p
}

// scriptsOf returns pointers to every script declared directly on p.
func scriptsOf(p *PropertySchema) []*script.Spec {
	var out []*script.Spec
	for i := range p.Validators {
		out = append(out, &p.Validators[i].Predicate)
		if !p.Validators[i].Message.IsZero() {
			out = append(out, &p.Validators[i].Message)
		}
	}
	for _, s := range []*script.Spec{p.KeyGenerator, p.KeyParser, p.NormalizeScript} {
		if s != nil {
			out = append(out, s)
		}
	}
	if m := p.MapTransform; m != nil {
		for _, s := range []*script.Spec{m.KeyGenerator, m.KeyParser} {
			if s != nil {
				out = append(out, s)
			}
		}
	}
	return out
}

// ClassBuilder assembles a ConfigClassSchema.
type ClassBuilder struct {
	class *ConfigClassSchema
}

// NewClass starts a class schema.
func NewClass(name string) *ClassBuilder {
	return &ClassBuilder{class: &ConfigClassSchema{Name: name}}
}

// FileName sets the file name hint.
func (c *ClassBuilder) FileName(name string) *ClassBuilder {
	c.class.FileName = name
	return c
}

// Header sets the comment lines written at the top of the document.
func (c *ClassBuilder) Header(lines ...string) *ClassBuilder {
	c.class.Header = lines
	return c
}

// Footer sets the comment lines written at the end of the document.
func (c *ClassBuilder) Footer(lines ...string) *ClassBuilder {
	c.class.Footer = lines
	return c
}

// Property appends properties.
func (c *ClassBuilder) Property(props ...*Builder) *ClassBuilder {
	for _, p := range props {
		c.class.Properties = append(c.class.Properties, p.Build())
	}
	return c
}

// Build returns the unchecked class schema.
func (c *ClassBuilder) Build() *ConfigClassSchema {
	return c.class
}

// Compile builds and compiles the class schema.
func (c *ClassBuilder) Compile(opts ...CompileOption) (*ConfigClassSchema, error) {
	return Compile(c.class, opts...)
}
