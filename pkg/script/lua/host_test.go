package lua

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"

	"github.com/bfv/configs/pkg/script"
)

func newBridge(opts ...script.Option) *script.Bridge {
	opts = append([]script.Option{
		script.WithHost(New()),
		script.WithProcessDefault(script.Language{ID: LanguageID}),
	}, opts...)
	return script.NewBridge(opts...)
}

func TestHost_Expressions(t *testing.T) {
	b := newBridge()
	ctx := context.Background()

	tests := []struct {
		name     string
		source   string
		bindings map[string]any
		want     any
	}{
		{"arithmetic", "x * 2", map[string]any{"x": int64(21)}, int64(42)},
		{"float", "x / 2", map[string]any{"x": int64(3)}, 1.5},
		{"comparison", "x > 0", map[string]any{"x": int64(-1)}, false},
		{"concat", "x.category .. ':' .. x.internalID", map[string]any{"x": map[string]any{"category": "X", "internalID": int64(54)}}, "X:54"},
		{"statements", "if x > 10 then return 'big' end return 'small'", map[string]any{"x": int64(3)}, "small"},
		{"cross property", "x < cfg.limit", map[string]any{"x": int64(3), "cfg": map[string]any{"limit": int64(5)}}, true},
		{"list", "{x, x + 1}", map[string]any{"x": int64(1)}, []any{int64(1), int64(2)}},
		{"nothing", "nil", nil, nil},
		{"string library", "string.upper(x)", map[string]any{"x": "abc"}, "ABC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := b.Eval(ctx, script.Spec{Name: tt.name, Source: tt.source}, tt.bindings)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHost_KeyParserReturnsTable(t *testing.T) {
	b := newBridge()
	src := `{category = string.match(x, "^(.-):"), internalID = tonumber(string.match(x, ":(.*)$"))}`

	got, err := b.Eval(context.Background(), script.Spec{Name: "keyParser", Source: src}, map[string]any{"x": "X:54"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"category": "X", "internalID": int64(54)}, got)
}

func TestHost_Sandbox(t *testing.T) {
	b := newBridge()
	ctx := context.Background()

	for _, src := range []string{"os.exit(1)", "io.open('x')", "dofile('x')", "require('os')"} {
		_, err := b.Eval(ctx, script.Spec{Name: "escape", Source: src}, nil)
		var rerr *script.RuntimeError
		assert.True(t, errors.As(err, &rerr), "%s: %v", src, err)
	}

	unsafe := script.Spec{
		Name:     "unsafe",
		Language: script.Language{ID: LanguageID, Options: []script.LanguageOption{{Key: OptionSandbox, Value: "false"}}},
		Source:   "type(os.time())",
	}
	got, err := b.Eval(ctx, unsafe, nil)
	require.NoError(t, err)
	assert.Equal(t, "number", got)
}

func TestHost_CompileErrors(t *testing.T) {
	b := newBridge()

	_, err := b.Compile(script.Spec{Name: "broken", Source: "x +"})
	var cerr *script.CompileError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "broken", cerr.Name)

	_, err = b.Compile(script.Spec{
		Name:     "options",
		Language: script.Language{ID: LanguageID, Options: []script.LanguageOption{{Key: "jit", Value: "true"}}},
		Source:   "1",
	})
	require.True(t, errors.As(err, &cerr))
	assert.Contains(t, err.Error(), "jit")

	_, err = b.Compile(script.Spec{
		Name:     "stack",
		Language: script.Language{ID: LanguageID, Options: []script.LanguageOption{{Key: OptionCallStackSize, Value: "0"}}},
		Source:   "1",
	})
	assert.Error(t, err)
}

func TestHost_RuntimeTimeout(t *testing.T) {
	b := newBridge(script.WithTimeout(50 * time.Millisecond))

	_, err := b.Eval(context.Background(), script.Spec{Name: "spin", Source: "while true do end"}, nil)
	require.ErrorIs(t, err, script.ErrTimeout)
}

func TestHost_Validators(t *testing.T) {
	b := newBridge()
	validators := []script.Validator{
		{
			Predicate: script.Spec{Name: "port.range", Source: "x > 0 and x < 65536"},
			Message:   script.Spec{Name: "port.range.message", Source: "'port ' .. x .. ' out of range'"},
		},
		{
			Predicate: script.Spec{Name: "port.reserved", Source: "x ~= cfg.adminPort"},
			Message:   script.Spec{Source: "'port ' .. x .. ' is reserved'"},
		},
	}
	cfg := map[string]any{"adminPort": int64(9000)}

	require.NoError(t, b.Validate(context.Background(), validators, map[string]any{"x": int64(8080), "cfg": cfg}))

	err := b.Validate(context.Background(), validators, map[string]any{"x": int64(70000), "cfg": cfg})
	var verr *script.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "port 70000 out of range", verr.Message)

	err = b.Validate(context.Background(), validators, map[string]any{"x": int64(9000), "cfg": cfg})
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "port 9000 is reserved", verr.Message)
}

func TestConvert_RoundTrip(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	in := map[string]any{
		"name":  "a",
		"count": int64(3),
		"ratio": 0.5,
		"on":    true,
		"tags":  []any{"x", "y"},
		"raw":   []byte("hi"),
		"ints":  []int{1, 2},
	}
	got := toGo(toLua(L, in))
	assert.Equal(t, map[string]any{
		"name":  "a",
		"count": int64(3),
		"ratio": 0.5,
		"on":    true,
		"tags":  []any{"x", "y"},
		"raw":   "hi",
		"ints":  []any{int64(1), int64(2)},
	}, got)
}
