// Package mapper walks a class schema and an instance into a document and
// back.
//
// Save renders every property that has a value, live or default, applying
// styles, AsMap transforms and map key scripts. Load parses a document
// into values and commits them to the instance only when the whole
// document is valid.
package mapper

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bfv/configs/pkg/document"
	"github.com/bfv/configs/pkg/schema"
	"github.com/bfv/configs/pkg/script"
	"github.com/bfv/configs/pkg/style"
	"github.com/bfv/configs/pkg/transform"
	"github.com/bfv/configs/pkg/value"
)

// Warning is a recoverable problem met during a pass, such as a value that
// did not fit its number pattern and was written in the default style, or
// a document number that did not match its pattern and was read as plain.
type Warning struct {
	Property string
	Err      error
}

// WarningHandler receives warnings in addition to the log.
type WarningHandler func(Warning)

// Engine maps instances to documents. It holds no per pass state and is
// safe for concurrent use.
type Engine struct {
	bridge      *script.Bridge
	serializers *schema.Serializers
	codec       document.Codec
	logger      zerolog.Logger
	onWarning   WarningHandler
}

// Option configures an Engine.
type Option func(*Engine)

// WithBridge runs key scripts through b.
func WithBridge(b *script.Bridge) Option {
	return func(e *Engine) {
		e.bridge = b
	}
}

// WithSerializers sets the registry used for structural map keys.
func WithSerializers(s *schema.Serializers) Option {
	return func(e *Engine) {
		e.serializers = s
	}
}

// WithIndent sets the document indentation used by Marshal.
func WithIndent(n int) Option {
	return func(e *Engine) {
		e.codec.Indent = n
	}
}

// WithLogger sets the logger. The global zerolog logger is used otherwise.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithWarningHandler reports warnings to h.
func WithWarningHandler(h WarningHandler) Option {
	return func(e *Engine) {
		e.onWarning = h
	}
}

// New creates an engine.
func New(opts ...Option) *Engine {
	e := &Engine{logger: log.Logger}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) pass(cfg map[string]any) *pass {
	ps := &pass{engine: e}
	ps.env = transform.Env{
		Codec:       ps,
		Bridge:      e.bridge,
		Serializers: e.serializers,
		Config:      cfg,
	}
	return ps
}

func (e *Engine) warn(p *schema.PropertySchema, err error, msg string) {
	e.logger.Warn().Str("property", p.Name).Err(err).Msg(msg)
	if e.onWarning != nil {
		e.onWarning(Warning{Property: p.Name, Err: err})
	}
}

// RenderValue renders v as the value of p inside the style context sc.
func (e *Engine) RenderValue(ctx context.Context, p *schema.PropertySchema, v any, sc style.Context) (document.Node, error) {
	return e.pass(nil).RenderValue(ctx, p, v, sc)
}

// ParseValue reads n as the value of p inside the style context sc.
func (e *Engine) ParseValue(ctx context.Context, p *schema.PropertySchema, n document.Node, sc style.Context) (any, error) {
	return e.pass(nil).ParseValue(ctx, p, n, sc)
}

// ── Save / Load ───────────────────────────────────────────────────────────────

// Save renders inst into a document. Property failures are collected; when
// any property fails no document is returned.
func (e *Engine) Save(ctx context.Context, inst *value.Instance) (*document.Document, error) {
	class := inst.Class()
	snapshot := inst.Snapshot()
	ps := e.pass(snapshot)

	doc := &document.Document{Header: class.Header, Footer: class.Footer, Root: &document.Mapping{}}
	var errs transform.Errors
	for _, p := range class.Properties {
		v, ok := snapshot[p.Name]
		if !ok || v == nil {
			continue
		}
		node, err := ps.RenderValue(ctx, p, v, style.Context{})
		if err != nil {
			errs.Add(propertyError(p.Name, err))
			continue
		}
		doc.Root.Append(p.Name, node, p.Comment...)
	}
	if err := errs.AsError(); err != nil {
		return nil, err
	}
	e.logger.Debug().Str("class", class.Name).Int("properties", len(doc.Root.Entries)).Msg("Rendered document")
	return doc, nil
}

// Load parses doc and replaces the live values of inst with it. Nothing is
// committed when any property fails to parse or validate. Unknown
// properties are logged and skipped.
func (e *Engine) Load(ctx context.Context, doc *document.Document, inst *value.Instance) error {
	class := inst.Class()
	ps := e.pass(inst.Snapshot())

	var errs transform.Errors
	values := make(map[string]any)
	if doc != nil && doc.Root != nil {
		for _, entry := range doc.Root.Entries {
			p, ok := class.Property(entry.Key)
			if !ok {
				e.logger.Warn().Str("class", class.Name).Str("property", entry.Key).Msg("Skipping unknown property")
				continue
			}
			if _, dup := values[p.Name]; dup {
				errs.Add(&transform.TransformError{Kind: transform.DuplicateKey, Property: p.Name, Key: p.Name})
				continue
			}
			v, err := ps.ParseValue(ctx, p, entry.Value, style.Context{})
			if err != nil {
				errs.Add(propertyError(p.Name, err))
				continue
			}
			values[p.Name] = v
		}
	}
	if err := errs.AsError(); err != nil {
		return fmt.Errorf("loading %s: %w", class.Name, err)
	}

	if err := inst.Replace(ctx, values); err != nil {
		return fmt.Errorf("loading %s: %w", class.Name, err)
	}
	e.logger.Debug().Str("class", class.Name).Int("properties", len(values)).Msg("Loaded document")
	return nil
}

// Marshal renders inst and encodes it as YAML.
func (e *Engine) Marshal(ctx context.Context, inst *value.Instance) ([]byte, error) {
	doc, err := e.Save(ctx, inst)
	if err != nil {
		return nil, err
	}
	return e.codec.Encode(doc)
}

// Unmarshal decodes YAML and loads it into inst.
func (e *Engine) Unmarshal(ctx context.Context, data []byte, inst *value.Instance) error {
	doc, err := e.codec.Decode(data)
	if err != nil {
		return err
	}
	return e.Load(ctx, doc, inst)
}

// propertyError keeps transform errors as they are and names the property
// on everything else.
func propertyError(name string, err error) error {
	var terr *transform.TransformError
	if errors.As(err, &terr) {
		return err
	}
	return fmt.Errorf("property %s: %w", name, err)
}
