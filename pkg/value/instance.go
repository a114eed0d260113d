package value

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bfv/configs/pkg/schema"
	"github.com/bfv/configs/pkg/script"
	"github.com/bfv/configs/pkg/transform"
)

// ErrUnknownProperty is returned for names the class does not declare.
var ErrUnknownProperty = errors.New("unknown property")

// Instance is one configuration object: a class schema with its live
// values. Writes always go to the live store; reads fall back to the
// defaults.
type Instance struct {
	class    *schema.ConfigClassSchema
	live     *MapStore
	defaults *DefaultsView
	bridge   *script.Bridge
	logger   zerolog.Logger
}

// Option configures an Instance.
type Option func(*Instance)

// WithBridge runs normalize and validator scripts through b.
func WithBridge(b *script.Bridge) Option {
	return func(i *Instance) {
		i.bridge = b
	}
}

// WithLogger sets the logger. The global zerolog logger is used otherwise.
func WithLogger(l zerolog.Logger) Option {
	return func(i *Instance) {
		i.logger = l
	}
}

// New returns an empty instance of class.
func New(class *schema.ConfigClassSchema, opts ...Option) *Instance {
	i := &Instance{
		class:    class,
		live:     NewMapStore(nil),
		defaults: NewDefaults(class),
		logger:   log.Logger,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Class returns the schema of the instance.
func (i *Instance) Class() *schema.ConfigClassSchema { return i.class }

// Bridge returns the script bridge, which may be nil.
func (i *Instance) Bridge() *script.Bridge { return i.bridge }

// Defaults returns the defaults view.
func (i *Instance) Defaults() View { return i.defaults }

// Config returns the live view.
func (i *Instance) Config() View { return i.live }

func (i *Instance) property(name string) (*schema.PropertySchema, error) {
	p, ok := i.class.Property(name)
	if !ok {
		return nil, fmt.Errorf("%w %q in %s", ErrUnknownProperty, name, i.class.Name)
	}
	return p, nil
}

// Get returns the value of name, live first, then its default.
func (i *Instance) Get(name string) (any, error) {
	p, err := i.property(name)
	if err != nil {
		return nil, err
	}
	v, _ := Resolve(p, i.live, i.defaults)
	return v, nil
}

// IsSet reports whether name has a live value.
func (i *Instance) IsSet(name string) bool {
	v, ok := i.live.Lookup(name)
	return ok && v != nil
}

// Snapshot returns the resolved value of every property. It is the cfg
// binding of scripts.
func (i *Instance) Snapshot() map[string]any {
	out := make(map[string]any, len(i.class.Properties))
	for _, p := range i.class.Properties {
		if v, ok := Resolve(p, i.live, i.defaults); ok {
			out[p.Name] = Clone(v)
		}
	}
	return out
}

// Live returns a copy of the live values only.
func (i *Instance) Live() map[string]any {
	return i.live.Snapshot()
}

// Reset removes the live value of name so its default applies again.
func (i *Instance) Reset(name string) error {
	if _, err := i.property(name); err != nil {
		return err
	}
	i.live.Store(name, nil)
	return nil
}

// Set normalizes v, coerces it to the property type, validates the result
// and stores it. Nothing is stored when any step fails. A nil v resets the
// property.
func (i *Instance) Set(ctx context.Context, name string, v any) error {
	p, err := i.property(name)
	if err != nil {
		return err
	}
	if v == nil {
		i.live.Store(name, nil)
		return nil
	}
	cv, err := i.normalize(ctx, p, v)
	if err != nil {
		return fmt.Errorf("setting %s: %w", name, err)
	}
	cfg := i.Snapshot()
	cfg[name] = cv
	if err := i.validate(ctx, p, p.Name, cv, cfg); err != nil {
		return fmt.Errorf("setting %s: %w", name, err)
	}
	i.live.Store(name, cv)
	i.logger.Debug().Str("class", i.class.Name).Str("property", name).Msg("Stored value")
	return nil
}

// SetAll sets several properties at once. Validators see the new values of
// every property. Either all values are stored or none.
func (i *Instance) SetAll(ctx context.Context, values map[string]any) error {
	var errs transform.Errors
	pending := make(map[string]any, len(values))
	for _, name := range schema.SortedKeys(values) {
		p, err := i.property(name)
		if err != nil {
			errs.Add(err)
			continue
		}
		if values[name] == nil {
			pending[name] = nil
			continue
		}
		cv, err := i.normalize(ctx, p, values[name])
		if err != nil {
			errs.Add(fmt.Errorf("setting %s: %w", name, err))
			continue
		}
		pending[name] = cv
	}
	if err := errs.AsError(); err != nil {
		return err
	}

	cfg := i.Snapshot()
	for k, v := range pending {
		if v == nil {
			if d, ok := i.defaults.Lookup(k); ok {
				cfg[k] = d
			} else {
				delete(cfg, k)
			}
			continue
		}
		cfg[k] = v
	}
	for _, name := range schema.SortedKeys(pending) {
		if pending[name] == nil {
			continue
		}
		p, _ := i.class.Property(name)
		if err := i.validate(ctx, p, name, pending[name], cfg); err != nil {
			errs.Add(fmt.Errorf("setting %s: %w", name, err))
		}
	}
	if err := errs.AsError(); err != nil {
		return err
	}

	i.live.StoreAll(pending)
	i.logger.Debug().Str("class", i.class.Name).Int("count", len(pending)).Msg("Stored values")
	return nil
}

// Replace validates values as a complete live state and swaps it in.
// Properties missing from values fall back to their defaults.
func (i *Instance) Replace(ctx context.Context, values map[string]any) error {
	var errs transform.Errors
	next := make(map[string]any, len(values))
	for _, name := range schema.SortedKeys(values) {
		p, err := i.property(name)
		if err != nil {
			errs.Add(err)
			continue
		}
		if values[name] == nil {
			continue
		}
		cv, err := schema.Coerce(p, values[name])
		if err != nil {
			errs.Add(fmt.Errorf("property %s: %w", name, err))
			continue
		}
		next[name] = cv
	}
	if err := errs.AsError(); err != nil {
		return err
	}

	staged := NewMapStore(next)
	cfg := make(map[string]any, len(i.class.Properties))
	for _, p := range i.class.Properties {
		if v, ok := Resolve(p, staged, i.defaults); ok {
			cfg[p.Name] = v
		}
	}
	for _, name := range schema.SortedKeys(next) {
		p, _ := i.class.Property(name)
		if err := i.validate(ctx, p, name, next[name], cfg); err != nil {
			errs.Add(fmt.Errorf("property %s: %w", name, err))
		}
	}
	if err := errs.AsError(); err != nil {
		return err
	}
	i.live.Replace(next)
	return nil
}

// normalize runs the setter side transforms: the Go normalizer, coercion,
// the normalize script and coercion of its result.
func (i *Instance) normalize(ctx context.Context, p *schema.PropertySchema, v any) (any, error) {
	var err error
	if p.Normalize != nil {
		if v, err = p.Normalize(v); err != nil {
			return nil, fmt.Errorf("normalizing: %w", err)
		}
	}
	if v, err = schema.Coerce(p, v); err != nil {
		return nil, err
	}
	if p.NormalizeScript.IsZero() || v == nil {
		return v, nil
	}
	if i.bridge == nil {
		return nil, errNoBridge(p.NormalizeScript.Name)
	}
	res, err := i.bridge.Eval(ctx, *p.NormalizeScript, map[string]any{
		script.Subject:  v,
		script.Instance: i.Snapshot(),
	})
	if err != nil {
		return nil, err
	}
	return schema.Coerce(p, res)
}

// validate runs the validators of p on v, then those of its nested fields
// and elements.
func (i *Instance) validate(ctx context.Context, p *schema.PropertySchema, path string, v any, cfg map[string]any) error {
	if v == nil {
		return nil
	}
	if len(p.Validators) > 0 {
		if i.bridge == nil {
			return errNoBridge(path)
		}
		err := i.bridge.Validate(ctx, p.Validators, map[string]any{
			script.Subject:  v,
			script.Instance: cfg,
		})
		if err != nil {
			return err
		}
	}

	switch p.Type {
	case schema.TypeObject:
		rec, _ := v.(map[string]any)
		for _, f := range p.Fields {
			if err := i.validate(ctx, f, path+"."+f.Name, rec[f.Name], cfg); err != nil {
				return err
			}
		}
	case schema.TypeSequence:
		items, _ := v.([]any)
		for n, item := range items {
			if err := i.validate(ctx, p.Elem, path+"["+strconv.Itoa(n)+"]", item, cfg); err != nil {
				return err
			}
		}
	case schema.TypeMapping:
		entries, _ := v.(map[string]any)
		for _, k := range schema.SortedKeys(entries) {
			if err := i.validate(ctx, p.Elem, path+"."+k, entries[k], cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

func errNoBridge(what string) error {
	return fmt.Errorf("%s needs scripts but no script bridge is configured", what)
}
