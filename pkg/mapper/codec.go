package mapper

import (
	"context"
	"errors"
	"fmt"

	"github.com/bfv/configs/pkg/document"
	"github.com/bfv/configs/pkg/schema"
	"github.com/bfv/configs/pkg/style"
	"github.com/bfv/configs/pkg/transform"
)

// pass is the state of one Save or Load: the engine plus the script
// environment bound to the instance snapshot.
type pass struct {
	engine *Engine
	env    transform.Env
}

// RenderValue enters the styles of p and renders v. Records keep the
// style context of their property; sequence elements and mapping values
// descend one level.
func (ps *pass) RenderValue(ctx context.Context, p *schema.PropertySchema, v any, sc style.Context) (document.Node, error) {
	sc = sc.Enter(p.Styles)
	cv, err := schema.Coerce(p, v)
	if err != nil {
		return nil, err
	}
	if cv == nil {
		return document.Null(), nil
	}

	switch p.Type {
	case schema.TypeScalar:
		node, err := style.Render(cv, sc.Effective())
		var serr *style.Error
		if errors.As(err, &serr) {
			ps.engine.warn(p, serr, "Falling back to default rendering")
			return node, nil
		}
		return node, err

	case schema.TypeObject:
		rec := cv.(map[string]any)
		out := &document.Mapping{}
		for _, f := range p.Fields {
			fv, ok := rec[f.Name]
			if !ok {
				continue
			}
			node, err := ps.RenderValue(ctx, f, fv, sc)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", f.Name, err)
			}
			out.Append(f.Name, node, f.Comment...)
		}
		return out, nil

	case schema.TypeSequence:
		items := cv.([]any)
		if p.IsAsMap() {
			return transform.ToDocument(ctx, items, p, sc, ps.env)
		}
		out := &document.Sequence{Items: make([]document.Node, 0, len(items))}
		child := sc.Descend()
		for i, item := range items {
			node, err := ps.RenderValue(ctx, p.Elem, item, child)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out.Items = append(out.Items, node)
		}
		return out, nil

	case schema.TypeMapping:
		entries := cv.(map[string]any)
		keys := schema.SortedKeys(entries)
		docKeys, err := transform.DocumentKeys(ctx, p, keys, ps.env)
		if err != nil {
			return nil, err
		}
		out := &document.Mapping{}
		child := sc.Descend()
		for i, k := range keys {
			node, err := ps.RenderValue(ctx, p.Elem, entries[k], child)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out.Append(docKeys[i], node)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported property type %s", p.Type)
}

// ParseValue enters the styles of p and reads n into the canonical form of
// p. Null nodes read as nil.
func (ps *pass) ParseValue(ctx context.Context, p *schema.PropertySchema, n document.Node, sc style.Context) (any, error) {
	sc = sc.Enter(p.Styles)
	if document.IsNull(n) {
		return nil, nil
	}

	switch p.Type {
	case schema.TypeScalar:
		v, err := style.Parse(n, sc.Effective(), p.Kind)
		var serr *style.Error
		if v != nil && errors.As(err, &serr) {
			ps.engine.warn(p, serr, "Reading value as a plain number")
			return v, nil
		}
		return v, err

	case schema.TypeObject:
		m, ok := n.(*document.Mapping)
		if !ok {
			return nil, fmt.Errorf("expected a mapping, got %s", n.Kind())
		}
		out := make(map[string]any, len(m.Entries))
		for _, e := range m.Entries {
			f, ok := p.Field(e.Key)
			if !ok {
				ps.engine.logger.Warn().Str("property", p.Name).Str("field", e.Key).Msg("Skipping unknown field")
				continue
			}
			v, err := ps.ParseValue(ctx, f, e.Value, sc)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", e.Key, err)
			}
			if v != nil {
				out[f.Name] = v
			}
		}
		return out, nil

	case schema.TypeSequence:
		if m, ok := n.(*document.Mapping); ok && p.IsAsMap() {
			return transform.FromDocument(ctx, m, p, sc, ps.env)
		}
		seq, ok := n.(*document.Sequence)
		if !ok {
			return nil, fmt.Errorf("expected a sequence, got %s", n.Kind())
		}
		out := make([]any, 0, len(seq.Items))
		child := sc.Descend()
		for i, item := range seq.Items {
			v, err := ps.ParseValue(ctx, p.Elem, item, child)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out = append(out, v)
		}
		return out, nil

	case schema.TypeMapping:
		m, ok := n.(*document.Mapping)
		if !ok {
			return nil, fmt.Errorf("expected a mapping, got %s", n.Kind())
		}
		keys, err := transform.StoredKeys(ctx, p, m.Keys(), ps.env)
		if err != nil {
			return nil, err
		}
		out := make(map[string]any, len(keys))
		child := sc.Descend()
		for i, e := range m.Entries {
			if _, dup := out[keys[i]]; dup {
				return nil, &transform.TransformError{Kind: transform.DuplicateKey, Property: p.Name, Key: keys[i]}
			}
			v, err := ps.ParseValue(ctx, p.Elem, e.Value, child)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", e.Key, err)
			}
			out[keys[i]] = v
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported property type %s", p.Type)
}
