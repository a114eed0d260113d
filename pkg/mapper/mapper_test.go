package mapper

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bfv/configs/pkg/document"
	"github.com/bfv/configs/pkg/schema"
	"github.com/bfv/configs/pkg/script"
	"github.com/bfv/configs/pkg/script/lua"
	"github.com/bfv/configs/pkg/style"
	"github.com/bfv/configs/pkg/transform"
	"github.com/bfv/configs/pkg/value"
)

func bridge() *script.Bridge {
	return script.NewBridge(
		script.WithHost(lua.New()),
		script.WithProcessDefault(script.Language{ID: lua.LanguageID}),
	)
}

func serverClass(t *testing.T, b *script.Bridge) *schema.ConfigClassSchema {
	t.Helper()
	class, err := schema.NewClass("server").
		FileName("server.yml").
		Header("Server settings").
		Footer("end of file").
		Property(
			schema.Int("port").Default(26).Number("0x0000", 1).Comment("Listening port"),
			schema.String("motd").StringBlock(style.DefaultStringBlock()),
			schema.Binary("key").BinaryStyle(style.DefaultBinary()),
			schema.Sequence("entries", schema.Object("",
				schema.String("category"),
				schema.Int("internalID"),
				schema.Int("x").Validator("x >= 0", "'x must not be negative'"),
			)).AsMap("category", "internalID").
				KeyGenerator("x.category .. ':' .. x.internalID").
				KeyParser(`{category = string.match(x, "^(.-):"), internalID = tonumber(string.match(x, ":(.*)$"))}`),
			schema.Mapping("labels", schema.String("")).
				KeyGenerator("'data_' .. x").
				KeyParser("string.sub(x, 6)"),
		).
		Compile(schema.WithBridge(b))
	require.NoError(t, err)
	return class
}

func TestSave(t *testing.T) {
	b := bridge()
	inst := value.New(serverClass(t, b), value.WithBridge(b))
	ctx := context.Background()

	require.NoError(t, inst.SetAll(ctx, map[string]any{
		"motd": "line1\nline2\n",
		"key":  []byte("0123456789abcdef"),
		"entries": []any{
			map[string]any{"category": "X", "internalID": 54, "x": 3},
		},
		"labels": map[string]any{"b": "2", "a": "1"},
	}))

	doc, err := New(WithBridge(b)).Save(ctx, inst)
	require.NoError(t, err)

	want := &document.Document{
		Header: []string{"Server settings"},
		Footer: []string{"end of file"},
		Root: &document.Mapping{Entries: []document.Entry{
			{Key: "port", Value: &document.Scalar{Tag: document.TagInt, Text: "0x001A"}, Comment: []string{"Listening port"}},
			{Key: "motd", Value: &document.StringBlock{Text: "line1\nline2", Layout: document.Literal, Chomping: document.ChompStrip, Indent: -1}},
			{Key: "key", Value: &document.Binary{Data: []byte("0123456789abcdef"), Encoding: document.Base64Block}},
			{Key: "entries", Value: &document.Mapping{Entries: []document.Entry{
				{Key: "X:54", Value: &document.Mapping{Entries: []document.Entry{
					{Key: "x", Value: &document.Scalar{Tag: document.TagInt, Text: "3"}},
				}}},
			}}},
			{Key: "labels", Value: &document.Mapping{Entries: []document.Entry{
				{Key: "data_a", Value: document.NewString("1")},
				{Key: "data_b", Value: document.NewString("2")},
			}}},
		}},
	}
	if diff := cmp.Diff(want, doc); diff != "" {
		t.Errorf("Save mismatch (-want +got):\n%s", diff)
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	b := bridge()
	class := serverClass(t, b)
	ctx := context.Background()
	engine := New(WithBridge(b), WithIndent(4))

	src := value.New(class, value.WithBridge(b))
	require.NoError(t, src.SetAll(ctx, map[string]any{
		"port": 8080,
		"motd": "hello\nworld",
		"key":  []byte{1, 2, 3},
		"entries": []any{
			map[string]any{"category": "X", "internalID": 54, "x": 3},
			map[string]any{"category": "Y", "internalID": 7},
		},
		"labels": map[string]any{"a": "1"},
	}))

	data, err := engine.Marshal(ctx, src)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.HasPrefix(text, "# Server settings"), text)
	assert.Contains(t, text, "# Listening port")
	assert.Contains(t, text, "port: 0x1F90")
	assert.Contains(t, text, "X:54")
	assert.Contains(t, text, "data_a:")

	dst := value.New(class, value.WithBridge(b))
	require.NoError(t, engine.Unmarshal(ctx, data, dst))
	if diff := cmp.Diff(src.Live(), dst.Live()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestSave_DefaultsAndFallback(t *testing.T) {
	class, err := schema.NewClass("limits").Property(
		schema.Int("small").Number("0x00", 1),
		schema.Int("fallback").Default(7),
	).Compile()
	require.NoError(t, err)

	var warnings []Warning
	engine := New(WithWarningHandler(func(w Warning) { warnings = append(warnings, w) }))
	inst := value.New(class)
	require.NoError(t, inst.Set(context.Background(), "small", 300))

	doc, err := engine.Save(context.Background(), inst)
	require.NoError(t, err)

	small, _ := doc.Root.Get("small")
	assert.Equal(t, &document.Scalar{Tag: document.TagInt, Text: "300"}, small)
	fallback, _ := doc.Root.Get("fallback")
	assert.Equal(t, &document.Scalar{Tag: document.TagInt, Text: "7"}, fallback)

	require.Len(t, warnings, 1)
	assert.Equal(t, "small", warnings[0].Property)
	var serr *style.Error
	assert.True(t, errors.As(warnings[0].Err, &serr))
}

func TestDepthPropagation(t *testing.T) {
	class, err := schema.NewClass("depth").Property(
		schema.Mapping("groups", schema.Sequence("", schema.Object("",
			schema.Int("id"),
			schema.Sequence("codes", schema.Int("")),
		))).Number("0x00", 2),
	).Compile()
	require.NoError(t, err)

	inst := value.New(class)
	require.NoError(t, inst.Set(context.Background(), "groups", map[string]any{
		"g": []any{map[string]any{"id": 255, "codes": []any{255}}},
	}))

	doc, err := New().Save(context.Background(), inst)
	require.NoError(t, err)

	want := &document.Mapping{Entries: []document.Entry{
		{Key: "g", Value: &document.Sequence{Items: []document.Node{
			&document.Mapping{Entries: []document.Entry{
				{Key: "id", Value: &document.Scalar{Tag: document.TagInt, Text: "0xFF"}},
				{Key: "codes", Value: &document.Sequence{Items: []document.Node{
					&document.Scalar{Tag: document.TagInt, Text: "255"},
				}}},
			}},
		}}},
	}}
	got, _ := doc.Root.Get("groups")
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("depth mismatch (-want +got):\n%s", diff)
	}

	loaded := value.New(class)
	require.NoError(t, New().Load(context.Background(), doc, loaded))
	assert.Equal(t, inst.Live(), loaded.Live())
}

func TestLoad_AllOrNothing(t *testing.T) {
	b := bridge()
	class := serverClass(t, b)
	ctx := context.Background()
	engine := New(WithBridge(b))

	inst := value.New(class, value.WithBridge(b))
	require.NoError(t, inst.Set(ctx, "motd", "keep me"))

	doc := &document.Document{Root: &document.Mapping{Entries: []document.Entry{
		{Key: "port", Value: &document.Scalar{Tag: document.TagInt, Text: "0x0050"}},
		{Key: "entries", Value: &document.Mapping{Entries: []document.Entry{
			{Key: "no separator", Value: &document.Mapping{}},
		}}},
		{Key: "labels", Value: &document.Sequence{}},
	}}}

	err := engine.Load(ctx, doc, inst)
	require.Error(t, err)
	assert.True(t, transform.IsKind(err, transform.UnparseableKey))
	assert.Contains(t, err.Error(), "property labels")

	v, _ := inst.Get("motd")
	assert.Equal(t, "keep me", v)
	v, _ = inst.Get("port")
	assert.Equal(t, int64(26), v)
}

func TestLoad_Validation(t *testing.T) {
	b := bridge()
	class := serverClass(t, b)
	ctx := context.Background()
	inst := value.New(class, value.WithBridge(b))

	err := New(WithBridge(b)).Unmarshal(ctx, []byte("entries:\n  \"X:1\":\n    x: -4\n"), inst)
	var verr *script.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "x must not be negative", verr.Message)
	assert.Empty(t, inst.Live())
}

func TestLoad_SkipsUnknown(t *testing.T) {
	b := bridge()
	class := serverClass(t, b)
	ctx := context.Background()
	inst := value.New(class, value.WithBridge(b))

	data := []byte("port: 80\nlegacy: true\nentries:\n  \"A:1\":\n    x: 1\n    removed: 2\n")
	require.NoError(t, New(WithBridge(b)).Unmarshal(ctx, data, inst))
	assert.Equal(t, map[string]any{
		"port":    int64(80),
		"entries": []any{map[string]any{"category": "A", "internalID": int64(1), "x": int64(1)}},
	}, inst.Live())
}

func TestLoad_PlainNumberUnderPattern(t *testing.T) {
	class, err := schema.NewClass("plain").Property(
		schema.Int("port").Number("0x0000", 1),
		schema.Float("ratio").Number("0,", 1),
	).Compile()
	require.NoError(t, err)

	var warnings []Warning
	engine := New(WithWarningHandler(func(w Warning) { warnings = append(warnings, w) }))
	inst := value.New(class)
	require.NoError(t, engine.Unmarshal(context.Background(), []byte("port: 80\n"), inst))

	v, _ := inst.Get("port")
	assert.Equal(t, int64(80), v)
	require.Len(t, warnings, 1)
	assert.Equal(t, "port", warnings[0].Property)
	var serr *style.Error
	assert.True(t, errors.As(warnings[0].Err, &serr))

	// Values written by the engine load back without warnings.
	warnings = nil
	require.NoError(t, inst.Set(context.Background(), "ratio", 1e22))
	data, err := engine.Marshal(context.Background(), inst)
	require.NoError(t, err)
	loaded := value.New(class)
	require.NoError(t, engine.Unmarshal(context.Background(), data, loaded))
	assert.Equal(t, inst.Live(), loaded.Live())
	assert.Empty(t, warnings)
}
