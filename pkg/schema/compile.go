package schema

import (
	"fmt"

	"github.com/bfv/configs/pkg/script"
)

// CompileOption configures Compile.
type CompileOption func(*compiler)

// WithBridge compiles every script of the schema through b, so broken
// scripts fail at compile time.
func WithBridge(b *script.Bridge) CompileOption {
	return func(c *compiler) {
		c.bridge = b
	}
}

// WithSerializers checks composite key serializers against reg.
func WithSerializers(reg *Serializers) CompileOption {
	return func(c *compiler) {
		c.serializers = reg
	}
}

type compiler struct {
	bridge      *script.Bridge
	serializers *Serializers
	errs        *CompileErrors
}

// Compile checks the static invariants of class, compiles its number
// patterns and names its scripts. Every problem is reported in a single
// *CompileErrors.
func Compile(class *ConfigClassSchema, opts ...CompileOption) (*ConfigClassSchema, error) {
	c := &compiler{errs: &CompileErrors{Class: class.Name}}
	for _, opt := range opts {
		opt(c)
	}

	class.index = make(map[string]*PropertySchema, len(class.Properties))
	for _, p := range class.Properties {
		if p == nil {
			c.errs.Add("", "nil property")
			continue
		}
		if p.Name == "" {
			c.errs.Add("", "property without a name")
			continue
		}
		if _, dup := class.index[p.Name]; dup {
			c.errs.Add(p.Name, "duplicate property name")
			continue
		}
		class.index[p.Name] = p
		c.property(p.Name, p)
	}

	for _, p := range class.Properties {
		if p != nil && p.DefaultFrom != "" {
			c.defaultChain(class, p)
		}
	}

	if err := c.errs.AsError(); err != nil {
		return nil, err
	}
	return class, nil
}

func (c *compiler) property(path string, p *PropertySchema) {
	c.styles(path, p)
	c.scripts(path, p)

	switch p.Type {
	case TypeScalar:
		if p.Elem != nil || len(p.Fields) > 0 {
			c.errs.Add(path, "scalar property cannot have fields or elements")
		}

	case TypeObject:
		p.fieldIndex = make(map[string]*PropertySchema, len(p.Fields))
		for _, f := range p.Fields {
			if f == nil || f.Name == "" {
				c.errs.Add(path, "field without a name")
				continue
			}
			if _, dup := p.fieldIndex[f.Name]; dup {
				c.errs.Add(path+"."+f.Name, "duplicate field name")
				continue
			}
			p.fieldIndex[f.Name] = f
			c.property(path+"."+f.Name, f)
		}

	case TypeSequence, TypeMapping:
		if p.Elem == nil {
			c.errs.Add(path, "%s property needs an element schema", p.Type)
			break
		}
		c.property(path+".elem", p.Elem)

	default:
		c.errs.Add(path, "unknown property type %s", p.Type)
	}

	if p.MapTransform != nil {
		c.mapTransform(path, p)
	}
	if (p.KeyGenerator != nil || p.KeyParser != nil) && p.Type != TypeMapping {
		c.errs.Add(path, "key scripts on a %s property need an AsMap transform", p.Type)
	}

	if p.Default != nil {
		v, err := Coerce(p, p.Default)
		if err != nil {
			c.errs.AddErr(path, "invalid default", err)
		} else {
			p.Default = v
		}
	}
}

func (c *compiler) styles(path string, p *PropertySchema) {
	if n := p.Styles.Number; n != nil {
		if n.Depth < 0 {
			c.errs.Add(path, "number style depth %d is negative", n.Depth)
		}
		if err := n.Compile(); err != nil {
			c.errs.AddErr(path, "number style", err)
		} else if p.RoundTrip && !n.Compiled().Compatible() {
			c.errs.Add(path, "number pattern %q does not round trip", n.Pattern)
		}
	}
	if b := p.Styles.StringBlock; b != nil {
		if b.Depth < 0 {
			c.errs.Add(path, "string block depth %d is negative", b.Depth)
		}
		if b.MinimumLength < 0 || b.MinimumLines < 0 {
			c.errs.Add(path, "string block minimums cannot be negative")
		}
	}
	if b := p.Styles.Binary; b != nil {
		if b.Depth < 0 {
			c.errs.Add(path, "binary style depth %d is negative", b.Depth)
		}
		if b.SwitchIfLongerThan < -1 || b.SwitchIfShorterThan < -1 {
			c.errs.Add(path, "binary style thresholds must be -1 or more")
		}
	}
}

func (c *compiler) mapTransform(path string, p *PropertySchema) {
	m := p.MapTransform
	if p.Type != TypeSequence || p.Elem == nil || p.Elem.Type != TypeObject {
		c.errs.Add(path, "AsMap needs a sequence of objects, got %s", p.Describe())
		return
	}
	if len(m.KeyFields) == 0 {
		c.errs.Add(path, "AsMap needs at least one key field")
		return
	}

	seen := make(map[string]bool, len(m.KeyFields))
	for _, k := range m.KeyFields {
		if seen[k] {
			c.errs.Add(path, "key field %q listed twice", k)
		}
		seen[k] = true
		if _, ok := p.Elem.Field(k); !ok {
			c.errs.Add(path, "key field %q is not a field of the record", k)
		}
	}

	if len(m.KeyFields) > 1 {
		switch {
		case m.KeySerializer != "":
			if c.serializers != nil {
				if _, ok := c.serializers.Lookup(m.KeySerializer); !ok {
					c.errs.Add(path, "key serializer %q is not registered", m.KeySerializer)
				}
			}
		case m.KeyGenerator.IsZero():
			c.errs.Add(path, "%d key fields need a key generator script or a key serializer", len(m.KeyFields))
		}
	}

	if m.Simplify != "" {
		f, ok := p.Elem.Field(m.Simplify)
		switch {
		case !ok:
			c.errs.Add(path, "simplify field %q is not a field of the record", m.Simplify)
		case m.IsKeyField(m.Simplify):
			c.errs.Add(path, "simplify field %q is a key field", m.Simplify)
		case f.Type == TypeObject || f.Type == TypeMapping || f.IsAsMap():
			c.errs.Add(path, "simplify field %q must not be a mapping", m.Simplify)
		}
	}
}

// scripts names every script after its property and compiles it when a
// bridge is available.
func (c *compiler) scripts(path string, p *PropertySchema) {
	name := func(s *script.Spec, role string) {
		if s != nil && s.Name == "" {
			s.Name = path + "." + role
		}
	}
	for i := range p.Validators {
		name(&p.Validators[i].Predicate, fmt.Sprintf("validator[%d]", i))
		name(&p.Validators[i].Message, fmt.Sprintf("validator[%d].message", i))
	}
	name(p.KeyGenerator, "keyGenerator")
	name(p.KeyParser, "keyParser")
	name(p.NormalizeScript, "normalize")
	if m := p.MapTransform; m != nil {
		name(m.KeyGenerator, "keyGenerator")
		name(m.KeyParser, "keyParser")
	}

	for i := range p.Validators {
		if p.Validators[i].Predicate.IsZero() {
			c.errs.Add(path, "validator %d has no predicate", i)
		}
	}

	if c.bridge == nil {
		return
	}
	for _, s := range scriptsOf(p) {
		if s.IsZero() {
			continue
		}
		if _, err := c.bridge.Compile(*s); err != nil {
			c.errs.AddErr(path, "", err)
		}
	}
}

func (c *compiler) defaultChain(class *ConfigClassSchema, p *PropertySchema) {
	seen := map[string]bool{p.Name: true}
	cur := p
	for cur.DefaultFrom != "" {
		next, ok := class.Property(cur.DefaultFrom)
		if !ok {
			c.errs.Add(p.Name, "default source %q does not exist", cur.DefaultFrom)
			return
		}
		if seen[next.Name] {
			c.errs.Add(p.Name, "default sources form a cycle through %q", next.Name)
			return
		}
		seen[next.Name] = true
		cur = next
	}
}
