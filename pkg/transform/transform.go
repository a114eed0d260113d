// Package transform converts AsMap sequences of records into keyed
// mappings and back.
//
// Forward, every record yields a key built from its key fields (rendered
// through the field's style, a key generator script or a registered
// serializer) and a residual record without those fields. A residual
// holding only the simplify field is written as a bare value. Reverse does
// the opposite with the key parser script or the serializer.
package transform

import (
	"context"
	"errors"
	"fmt"

	"github.com/bfv/configs/pkg/document"
	"github.com/bfv/configs/pkg/schema"
	"github.com/bfv/configs/pkg/script"
	"github.com/bfv/configs/pkg/style"
)

// ValueCodec renders and parses the values around a transformed property.
// sc is the style context of the parent position: implementations enter
// the styles of p themselves.
type ValueCodec interface {
	RenderValue(ctx context.Context, p *schema.PropertySchema, v any, sc style.Context) (document.Node, error)
	ParseValue(ctx context.Context, p *schema.PropertySchema, n document.Node, sc style.Context) (any, error)
}

// Env carries the collaborators of one mapping pass.
type Env struct {
	Codec       ValueCodec
	Bridge      *script.Bridge
	Serializers *schema.Serializers
	// Config is bound to scripts as cfg.
	Config map[string]any
}

var errNoBridge = errors.New("no script bridge configured")

func (e Env) eval(ctx context.Context, s *script.Spec, x any) (any, error) {
	if e.Bridge == nil {
		return nil, errNoBridge
	}
	return e.Bridge.Eval(ctx, *s, map[string]any{script.Subject: x, script.Instance: e.Config})
}

// contexts returns the style context of the records and of their fields.
// sc must already carry the styles of prop.
func contexts(prop *schema.PropertySchema, sc style.Context) (elem, field style.Context) {
	elem = sc.Descend()
	return elem, elem.Enter(prop.Elem.Styles)
}

func checkAsMap(prop *schema.PropertySchema) error {
	if !prop.IsAsMap() || prop.Elem == nil || prop.Elem.Type != schema.TypeObject {
		return fmt.Errorf("property %s is not a sequence of records written as a map", prop.Name)
	}
	return nil
}

// ── Forward ───────────────────────────────────────────────────────────────────

// ToDocument writes records as a mapping keyed by prop's key fields. sc is
// the context of prop with its styles entered. The first failure aborts the
// property and is returned as a *TransformError.
func ToDocument(ctx context.Context, records []any, prop *schema.PropertySchema, sc style.Context, env Env) (*document.Mapping, error) {
	if err := checkAsMap(prop); err != nil {
		return nil, err
	}
	m := prop.MapTransform
	elemCtx, fieldCtx := contexts(prop, sc)

	out := &document.Mapping{}
	seen := make(map[string]int, len(records))
	for i, raw := range records {
		rec, ok := raw.(map[string]any)
		if !ok {
			return nil, &TransformError{Kind: InvalidRecord, Property: prop.Name, Err: fmt.Errorf("record %d is %T, not a mapping", i, raw)}
		}

		key, err := deriveKey(ctx, rec, prop, fieldCtx, env)
		if err != nil {
			return nil, err
		}
		if j, dup := seen[key]; dup {
			return nil, &TransformError{Kind: DuplicateKey, Property: prop.Name, Key: key, Err: fmt.Errorf("records %d and %d share it", j, i)}
		}
		seen[key] = i

		residual := make(map[string]any, len(rec))
		for name, v := range rec {
			if v != nil && !m.IsKeyField(name) {
				residual[name] = v
			}
		}

		var value document.Node
		if f, ok := simplified(prop, residual); ok {
			value, err = env.Codec.RenderValue(ctx, f, residual[f.Name], fieldCtx)
		} else {
			value, err = env.Codec.RenderValue(ctx, prop.Elem, residual, elemCtx)
		}
		if err != nil {
			return nil, &TransformError{Kind: InvalidRecord, Property: prop.Name, Key: key, Err: err}
		}
		out.Append(key, value)
	}
	return out, nil
}

// simplified returns the simplify field when it is the only field left.
func simplified(prop *schema.PropertySchema, residual map[string]any) (*schema.PropertySchema, bool) {
	name := prop.MapTransform.Simplify
	if name == "" || len(residual) != 1 {
		return nil, false
	}
	if _, ok := residual[name]; !ok {
		return nil, false
	}
	return prop.Elem.Field(name)
}

func deriveKey(ctx context.Context, rec map[string]any, prop *schema.PropertySchema, fieldCtx style.Context, env Env) (string, error) {
	m := prop.MapTransform

	keys := make(map[string]any, len(m.KeyFields))
	for _, name := range m.KeyFields {
		v, ok := rec[name]
		if !ok || v == nil {
			return "", &TransformError{Kind: InvalidKey, Property: prop.Name, Err: fmt.Errorf("record has no value for key field %q", name)}
		}
		keys[name] = v
	}

	switch {
	case !m.KeyGenerator.IsZero():
		res, err := env.eval(ctx, m.KeyGenerator, rec)
		if err != nil {
			return "", &TransformError{Kind: InvalidKey, Property: prop.Name, Err: err}
		}
		return scalarKey(prop, res, m.KeySerializer, env)

	case m.SingleKey():
		name := m.KeyFields[0]
		f, _ := prop.Elem.Field(name)
		if f.Type == schema.TypeScalar && f.Kind != style.KindBinary {
			node, err := env.Codec.RenderValue(ctx, f, keys[name], fieldCtx)
			if err != nil {
				return "", &TransformError{Kind: InvalidKey, Property: prop.Name, Err: err}
			}
			if text, ok := document.Text(node); ok {
				return text, nil
			}
		}
		return serializeKey(prop, serializerName(m, f), keys[name], env)
	}
	return serializeKey(prop, m.KeySerializer, keys, env)
}

// scalarKey turns a generator result into a key, falling back to the
// serializer for structural results.
func scalarKey(prop *schema.PropertySchema, res any, serializer string, env Env) (string, error) {
	switch x := res.(type) {
	case nil:
		return "", &TransformError{Kind: InvalidKey, Property: prop.Name, Err: errors.New("key generator returned nothing")}
	case string:
		if x == "" {
			return "", &TransformError{Kind: InvalidKey, Property: prop.Name, Err: errors.New("key generator returned an empty key")}
		}
		return x, nil
	case map[string]any, []any:
		return serializeKey(prop, serializer, x, env)
	}
	s, err := schema.CoerceScalar(style.KindString, res)
	if err != nil {
		return "", &TransformError{Kind: InvalidKey, Property: prop.Name, Err: err}
	}
	return s.(string), nil
}

func serializerName(m *schema.MapTransformSpec, f *schema.PropertySchema) string {
	if m.KeySerializer != "" {
		return m.KeySerializer
	}
	return f.TypeName
}

func serializeKey(prop *schema.PropertySchema, name string, v any, env Env) (string, error) {
	ser, ok := env.Serializers.Lookup(name)
	if !ok {
		return "", &TransformError{Kind: MissingSerializer, Property: prop.Name, Err: fmt.Errorf("no serializer registered for %q", name)}
	}
	s, err := ser.Serialize(v)
	if err != nil {
		return "", &TransformError{Kind: InvalidKey, Property: prop.Name, Err: err}
	}
	if s == "" {
		return "", &TransformError{Kind: InvalidKey, Property: prop.Name, Err: fmt.Errorf("serializer %q returned an empty key", name)}
	}
	return s, nil
}

// ── Reverse ───────────────────────────────────────────────────────────────────

// FromDocument rebuilds the records of prop from node. Key field values
// are coerced back to their declared types. Records come out in document
// order.
func FromDocument(ctx context.Context, node *document.Mapping, prop *schema.PropertySchema, sc style.Context, env Env) ([]any, error) {
	if err := checkAsMap(prop); err != nil {
		return nil, err
	}
	elemCtx, fieldCtx := contexts(prop, sc)

	records := make([]any, 0, len(node.Entries))
	seen := make(map[string]bool, len(node.Entries))
	for _, e := range node.Entries {
		if seen[e.Key] {
			return nil, &TransformError{Kind: DuplicateKey, Property: prop.Name, Key: e.Key}
		}
		seen[e.Key] = true

		keys, err := parseKey(ctx, e.Key, prop, fieldCtx, env)
		if err != nil {
			return nil, err
		}
		rec, err := parseResidual(ctx, e.Value, prop, elemCtx, fieldCtx, env)
		if err != nil {
			return nil, &TransformError{Kind: InvalidRecord, Property: prop.Name, Key: e.Key, Err: err}
		}
		for name, v := range keys {
			if _, clash := rec[name]; clash {
				return nil, &TransformError{Kind: KeyConflict, Property: prop.Name, Key: e.Key, Err: fmt.Errorf("field %q is both in the key and the value", name)}
			}
			rec[name] = v
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseKey(ctx context.Context, key string, prop *schema.PropertySchema, fieldCtx style.Context, env Env) (map[string]any, error) {
	m := prop.MapTransform
	unparseable := func(err error) error {
		return &TransformError{Kind: UnparseableKey, Property: prop.Name, Key: key, Err: err}
	}

	switch {
	case !m.KeyParser.IsZero():
		res, err := env.eval(ctx, m.KeyParser, key)
		if err != nil {
			return nil, unparseable(err)
		}
		fields, err := keyFields(prop, res)
		if err != nil {
			return nil, unparseable(err)
		}
		return fields, nil

	case m.SingleKey():
		name := m.KeyFields[0]
		f, _ := prop.Elem.Field(name)
		if f.Type == schema.TypeScalar && f.Kind != style.KindBinary {
			v, err := env.Codec.ParseValue(ctx, f, document.NewString(key), fieldCtx)
			if err != nil {
				return nil, unparseable(err)
			}
			return map[string]any{name: v}, nil
		}
		v, err := deserializeKey(prop, serializerName(m, f), key, env)
		if err != nil {
			return nil, err
		}
		cv, err := schema.Coerce(f, v)
		if err != nil {
			return nil, unparseable(err)
		}
		return map[string]any{name: cv}, nil
	}

	v, err := deserializeKey(prop, m.KeySerializer, key, env)
	if err != nil {
		return nil, err
	}
	fields, err := keyFields(prop, v)
	if err != nil {
		return nil, unparseable(err)
	}
	return fields, nil
}

func deserializeKey(prop *schema.PropertySchema, name, key string, env Env) (any, error) {
	ser, ok := env.Serializers.Lookup(name)
	if !ok {
		return nil, &TransformError{Kind: MissingSerializer, Property: prop.Name, Key: key, Err: fmt.Errorf("no serializer registered for %q", name)}
	}
	v, err := ser.Deserialize(key)
	if err != nil {
		return nil, &TransformError{Kind: UnparseableKey, Property: prop.Name, Key: key, Err: err}
	}
	return v, nil
}

// keyFields checks a parsed key against the key fields and coerces every
// value to its field type.
func keyFields(prop *schema.PropertySchema, res any) (map[string]any, error) {
	m := prop.MapTransform
	parsed, ok := res.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("parsed key is %T, want a mapping of key fields", res)
	}
	out := make(map[string]any, len(parsed))
	for name, v := range parsed {
		if !m.IsKeyField(name) {
			return nil, fmt.Errorf("%q is not a key field", name)
		}
		f, _ := prop.Elem.Field(name)
		cv, err := schema.Coerce(f, v)
		if err != nil {
			return nil, fmt.Errorf("key field %s: %w", name, err)
		}
		out[name] = cv
	}
	for _, name := range m.KeyFields {
		if out[name] == nil {
			return nil, fmt.Errorf("missing key field %q", name)
		}
	}
	return out, nil
}

func parseResidual(ctx context.Context, n document.Node, prop *schema.PropertySchema, elemCtx, fieldCtx style.Context, env Env) (map[string]any, error) {
	if document.IsNull(n) {
		return map[string]any{}, nil
	}
	if _, isMap := n.(*document.Mapping); !isMap {
		name := prop.MapTransform.Simplify
		if name == "" {
			return nil, fmt.Errorf("expected a mapping, got %s", n.Kind())
		}
		f, _ := prop.Elem.Field(name)
		v, err := env.Codec.ParseValue(ctx, f, n, fieldCtx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return map[string]any{name: v}, nil
	}

	v, err := env.Codec.ParseValue(ctx, prop.Elem, n, elemCtx)
	if err != nil {
		return nil, err
	}
	rec, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("record parsed as %T", v)
	}
	if rec == nil {
		rec = map[string]any{}
	}
	return rec, nil
}
