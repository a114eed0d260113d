package script

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultTimeout bounds a single script invocation.
const DefaultTimeout = 5 * time.Second

// Bridge resolves script languages, compiles scripts through their host and
// invokes them. It is safe for concurrent use.
type Bridge struct {
	mu    sync.RWMutex
	hosts map[string]Host

	processDefault    Language
	annotationDefault Language
	timeout           time.Duration

	cache  *Cache
	logger zerolog.Logger
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithTimeout sets the per invocation timeout. Zero or less keeps
// DefaultTimeout; invocations are always bounded.
func WithTimeout(d time.Duration) Option {
	return func(b *Bridge) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithProcessDefault sets the language used by scripts that declare none.
func WithProcessDefault(lang Language) Option {
	return func(b *Bridge) {
		b.processDefault = lang
	}
}

// WithAnnotationDefault sets the language forced on scripts that declare
// none but ask to override the process default.
func WithAnnotationDefault(lang Language) Option {
	return func(b *Bridge) {
		b.annotationDefault = lang
	}
}

// WithHost registers a host.
func WithHost(h Host) Option {
	return func(b *Bridge) {
		b.hosts[h.Language()] = h
	}
}

// WithCache shares a compiled program cache between bridges.
func WithCache(c *Cache) Option {
	return func(b *Bridge) {
		b.cache = c
	}
}

// WithLogger sets the logger. The global zerolog logger is used otherwise.
func WithLogger(l zerolog.Logger) Option {
	return func(b *Bridge) {
		b.logger = l
	}
}

// NewBridge creates a bridge.
func NewBridge(opts ...Option) *Bridge {
	b := &Bridge{
		hosts:   make(map[string]Host),
		timeout: DefaultTimeout,
		logger:  log.Logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.cache == nil {
		b.cache = NewCache()
	}
	return b
}

// Register adds or replaces the host for its language.
func (b *Bridge) Register(h Host) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hosts[h.Language()] = h
}

// Cache returns the compiled program cache.
func (b *Bridge) Cache() *Cache {
	return b.cache
}

// Timeout returns the per invocation timeout.
func (b *Bridge) Timeout() time.Duration {
	return b.timeout
}

// ResolveLanguage picks the language of s: its own language first, then the
// annotation default when s overrides, then the process default.
func (b *Bridge) ResolveLanguage(s Spec) Language {
	switch {
	case !s.Language.IsZero():
		return s.Language
	case s.Override && !b.annotationDefault.IsZero():
		return b.annotationDefault
	}
	return b.processDefault
}

func (b *Bridge) host(id string) (Host, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	h, ok := b.hosts[id]
	return h, ok
}

// Compile compiles s, reusing a cached program when one exists.
func (b *Bridge) Compile(s Spec) (*Compiled, error) {
	lang := b.ResolveLanguage(s)
	if s.IsZero() {
		return nil, &CompileError{Name: s.Name, Language: lang.String(), Err: ErrEmptySource}
	}
	h, ok := b.host(lang.ID)
	if !ok {
		return nil, &CompileError{Name: s.Name, Language: lang.String(), Err: fmt.Errorf("%w %q", ErrUnknownLanguage, lang.ID)}
	}

	prog, err := b.cache.Load(CacheKey(lang, s.Source), func() (Program, error) {
		b.logger.Debug().Str("script", s.Name).Str("language", lang.String()).Msg("Compiling script")
		return h.Compile(s.Name, s.Source, lang.Options)
	})
	if err != nil {
		return nil, &CompileError{Name: s.Name, Language: lang.String(), Err: err}
	}
	return &Compiled{Name: s.Name, Language: lang, Source: s.Source, program: prog}, nil
}

// Invoke runs c with bindings. The call is abandoned with ErrTimeout when
// it exceeds the bridge timeout.
func (b *Bridge) Invoke(ctx context.Context, c *Compiled, bindings map[string]any) (any, error) {
	if c == nil || c.program == nil {
		return nil, &RuntimeError{Name: "<nil>", Err: errors.New("script is not compiled")}
	}
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	type result struct {
		value any
		err   error
	}
	done := make(chan result, 1)
	go func() {
		var r result
		defer func() {
			if p := recover(); p != nil {
				r = result{err: fmt.Errorf("script panic: %v", p)}
			}
			done <- r
		}()
		r.value, r.err = c.program.Run(ctx, bindings)
	}()

	select {
	case r := <-done:
		if r.err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				r.err = fmt.Errorf("%w after %s: %v", ErrTimeout, b.timeout, r.err)
			}
			return nil, &RuntimeError{Name: c.Name, Language: c.Language.String(), Err: r.err}
		}
		return r.value, nil
	case <-ctx.Done():
		err := ctx.Err()
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s", ErrTimeout, b.timeout)
		}
		b.logger.Warn().Str("script", c.Name).Err(err).Msg("Abandoning script")
		return nil, &RuntimeError{Name: c.Name, Language: c.Language.String(), Err: err}
	}
}

// Eval compiles and invokes s.
func (b *Bridge) Eval(ctx context.Context, s Spec, bindings map[string]any) (any, error) {
	c, err := b.Compile(s)
	if err != nil {
		return nil, err
	}
	return b.Invoke(ctx, c, bindings)
}

// Validate runs validators in order. The first failing predicate stops the
// run and its message script produces the returned *ValidationError.
// Script failures are returned as they are.
func (b *Bridge) Validate(ctx context.Context, validators []Validator, bindings map[string]any) error {
	for _, v := range validators {
		ok, err := b.Eval(ctx, v.Predicate, bindings)
		if err != nil {
			return err
		}
		if Truthy(ok) {
			continue
		}

		verr := &ValidationError{Name: v.Predicate.Name, Value: bindings[Subject], Message: "predicate returned false"}
		if !v.Message.IsZero() {
			msg, err := b.Eval(ctx, v.Message, bindings)
			if err != nil {
				return err
			}
			if msg != nil {
				verr.Message = fmt.Sprint(msg)
			}
		}
		return verr
	}
	return nil
}
