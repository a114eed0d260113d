package script

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runFunc func(ctx context.Context, bindings map[string]any) (any, error)

func (f runFunc) Run(ctx context.Context, bindings map[string]any) (any, error) {
	return f(ctx, bindings)
}

// fakeHost compiles sources by looking them up in a table.
type fakeHost struct {
	id       string
	programs map[string]runFunc
	delay    time.Duration
	compiles atomic.Int64
}

func newFakeHost(id string) *fakeHost {
	return &fakeHost{id: id, programs: make(map[string]runFunc)}
}

func (h *fakeHost) Language() string { return h.id }

func (h *fakeHost) Compile(name, source string, _ []LanguageOption) (Program, error) {
	h.compiles.Add(1)
	time.Sleep(h.delay)
	p, ok := h.programs[source]
	if !ok {
		return nil, fmt.Errorf("syntax error in %s", name)
	}
	return p, nil
}

func constant(v any) runFunc {
	return func(context.Context, map[string]any) (any, error) { return v, nil }
}

func TestBridge_ResolveLanguage(t *testing.T) {
	process := Language{ID: "lua"}
	annotation := Language{ID: "lua", Options: []LanguageOption{{Key: "sandbox", Value: "false"}}}
	own := Language{ID: "expr"}

	b := NewBridge(WithProcessDefault(process), WithAnnotationDefault(annotation))

	tests := []struct {
		name string
		spec Spec
		want Language
	}{
		{"process default", Spec{}, process},
		{"annotation default on override", Spec{Override: true}, annotation},
		{"own language wins", Spec{Language: own}, own},
		{"own language wins over override", Spec{Language: own, Override: true}, own},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, b.ResolveLanguage(tt.spec))
		})
	}

	// without an annotation default, override falls back to the process default
	assert.Equal(t, process, NewBridge(WithProcessDefault(process)).ResolveLanguage(Spec{Override: true}))
}

func TestBridge_CompileErrors(t *testing.T) {
	host := newFakeHost("fake")
	b := NewBridge(WithHost(host), WithProcessDefault(Language{ID: "fake"}))

	_, err := b.Compile(Spec{Name: "p.validator", Language: Language{ID: "cobol"}, Source: "x"})
	require.ErrorIs(t, err, ErrUnknownLanguage)
	var cerr *CompileError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "p.validator", cerr.Name)

	_, err = b.Compile(Spec{Name: "p.empty", Source: "  "})
	assert.ErrorIs(t, err, ErrEmptySource)

	_, err = b.Compile(Spec{Name: "p.bad", Source: "nope"})
	require.True(t, errors.As(err, &cerr))
	assert.Contains(t, err.Error(), "p.bad")

	// failures are not cached
	_, err = b.Compile(Spec{Name: "p.bad", Source: "nope"})
	require.Error(t, err)
	assert.Equal(t, int64(2), host.compiles.Load())
	assert.Equal(t, 0, b.Cache().Len())
}

func TestBridge_CacheConvergesUnderConcurrency(t *testing.T) {
	host := newFakeHost("fake")
	host.delay = 20 * time.Millisecond
	host.programs["x > 0"] = constant(true)
	b := NewBridge(WithHost(host), WithProcessDefault(Language{ID: "fake"}))

	const workers = 32
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := b.Compile(Spec{Name: "p", Source: "x > 0"})
			if err == nil && c == nil {
				err = errors.New("nil compiled script")
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), host.compiles.Load())
	assert.Equal(t, int64(1), b.Cache().Compiles())
	assert.Equal(t, 1, b.Cache().Len())
}

func TestBridge_CacheKeyIncludesOptions(t *testing.T) {
	host := newFakeHost("fake")
	host.programs["1"] = constant(int64(1))
	b := NewBridge(WithHost(host))

	_, err := b.Compile(Spec{Language: Language{ID: "fake"}, Source: "1"})
	require.NoError(t, err)
	_, err = b.Compile(Spec{Language: Language{ID: "fake", Options: []LanguageOption{{Key: "a", Value: "b"}}}, Source: "1"})
	require.NoError(t, err)
	_, err = b.Compile(Spec{Language: Language{ID: "fake"}, Source: "1"})
	require.NoError(t, err)

	assert.Equal(t, 2, b.Cache().Len())
}

func TestBridge_InvokeTimeout(t *testing.T) {
	host := newFakeHost("fake")
	host.programs["loop"] = func(context.Context, map[string]any) (any, error) {
		time.Sleep(500 * time.Millisecond)
		return nil, nil
	}
	b := NewBridge(WithHost(host), WithProcessDefault(Language{ID: "fake"}), WithTimeout(20*time.Millisecond))

	start := time.Now()
	_, err := b.Eval(context.Background(), Spec{Name: "p.loop", Source: "loop"}, nil)
	require.ErrorIs(t, err, ErrTimeout)
	var rerr *RuntimeError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, "p.loop", rerr.Name)
	assert.Less(t, time.Since(start), 400*time.Millisecond)
}

func TestBridge_TimeoutIsAlwaysBounded(t *testing.T) {
	assert.Equal(t, DefaultTimeout, NewBridge().Timeout())
	assert.Equal(t, DefaultTimeout, NewBridge(WithTimeout(0)).Timeout())
	assert.Equal(t, DefaultTimeout, NewBridge(WithTimeout(-time.Second)).Timeout())
	assert.Equal(t, time.Second, NewBridge(WithTimeout(time.Second)).Timeout())
}

func TestBridge_InvokeFailures(t *testing.T) {
	host := newFakeHost("fake")
	host.programs["boom"] = func(context.Context, map[string]any) (any, error) { panic("boom") }
	host.programs["fail"] = func(context.Context, map[string]any) (any, error) { return nil, errors.New("bad input") }
	host.programs["echo"] = func(_ context.Context, b map[string]any) (any, error) { return b[Subject], nil }
	b := NewBridge(WithHost(host), WithProcessDefault(Language{ID: "fake"}))
	ctx := context.Background()

	_, err := b.Eval(ctx, Spec{Name: "p", Source: "boom"}, nil)
	var rerr *RuntimeError
	require.True(t, errors.As(err, &rerr))
	assert.Contains(t, err.Error(), "boom")

	_, err = b.Eval(ctx, Spec{Name: "p", Source: "fail"}, nil)
	require.True(t, errors.As(err, &rerr))
	assert.Contains(t, err.Error(), "bad input")

	v, err := b.Eval(ctx, Spec{Name: "p", Source: "echo"}, map[string]any{Subject: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", v)

	_, err = b.Invoke(ctx, nil, nil)
	assert.Error(t, err)
}

func TestBridge_ValidateStopsAtFirstFailure(t *testing.T) {
	host := newFakeHost("fake")
	var thirdRan atomic.Bool
	host.programs["positive"] = func(_ context.Context, b map[string]any) (any, error) {
		return b[Subject].(int64) > 0, nil
	}
	host.programs["small"] = func(_ context.Context, b map[string]any) (any, error) {
		return b[Subject].(int64) < 10, nil
	}
	host.programs["small message"] = func(_ context.Context, b map[string]any) (any, error) {
		return fmt.Sprintf("%d is too large", b[Subject]), nil
	}
	host.programs["third"] = func(context.Context, map[string]any) (any, error) {
		thirdRan.Store(true)
		return true, nil
	}
	b := NewBridge(WithHost(host), WithProcessDefault(Language{ID: "fake"}))

	validators := []Validator{
		{Predicate: Spec{Name: "v.positive", Source: "positive"}},
		{Predicate: Spec{Name: "v.small", Source: "small"}, Message: Spec{Name: "v.small.message", Source: "small message"}},
		{Predicate: Spec{Name: "v.third", Source: "third"}},
	}

	err := b.Validate(context.Background(), validators, map[string]any{Subject: int64(42)})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "v.small", verr.Name)
	assert.Equal(t, "42 is too large", verr.Message)
	assert.False(t, thirdRan.Load())

	require.NoError(t, b.Validate(context.Background(), validators, map[string]any{Subject: int64(5)}))
	assert.True(t, thirdRan.Load())

	err = b.Validate(context.Background(), validators, map[string]any{Subject: int64(-1)})
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "predicate returned false", verr.Message)
}

func TestParseLanguageOptions(t *testing.T) {
	opts, err := ParseLanguageOptions([]string{"--sandbox=false", "call-stack-size = 64", "strict", ""})
	require.NoError(t, err)
	assert.Equal(t, []LanguageOption{
		{Key: "sandbox", Value: "false"},
		{Key: "call-stack-size", Value: "64"},
		{Key: "strict"},
	}, opts)

	_, err = ParseLanguageOptions([]string{"=x"})
	assert.Error(t, err)

	assert.Equal(t, "lua[sandbox=false,strict]", Language{ID: "lua", Options: []LanguageOption{{Key: "sandbox", Value: "false"}, {Key: "strict"}}}.String())
}

func TestTruthy(t *testing.T) {
	assert.False(t, Truthy(nil))
	assert.False(t, Truthy(false))
	assert.True(t, Truthy(true))
	assert.True(t, Truthy(int64(0)))
	assert.True(t, Truthy(""))
}
