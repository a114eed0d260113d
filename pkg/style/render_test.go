package style

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bfv/configs/pkg/document"
)

func TestRender_Scalars(t *testing.T) {
	hex := &NumberStyle{Pattern: "0x0000", Depth: 1}
	require.NoError(t, hex.Compile())

	tests := []struct {
		name  string
		value any
		eff   Effective
		want  document.Node
	}{
		{"nil", nil, Effective{}, document.Null()},
		{"bool", true, Effective{}, &document.Scalar{Tag: document.TagBool, Text: "true"}},
		{"plain string", "hello", Effective{}, document.NewString("hello")},
		{"plain int", int64(26), Effective{}, &document.Scalar{Tag: document.TagInt, Text: "26"}},
		{"hex int", int64(26), Effective{Number: hex}, &document.Scalar{Tag: document.TagInt, Text: "0x001A"}},
		{"default bytes", []byte{1, 2}, Effective{}, &document.Binary{Data: []byte{1, 2}, Encoding: document.ByteSequence}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.value, tt.eff)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Render() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRender_FallbackOnStyleError(t *testing.T) {
	narrow := &NumberStyle{Pattern: "0x00"}
	require.NoError(t, narrow.Compile())

	got, err := Render(int64(4096), Effective{Number: narrow})
	var serr *Error
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, &document.Scalar{Tag: document.TagInt, Text: "4096"}, got)
}

func TestRender_Unsupported(t *testing.T) {
	_, err := Render(struct{}{}, Effective{})
	assert.Error(t, err)
}

func TestStringBlock_Render(t *testing.T) {
	base := DefaultStringBlock()

	tests := []struct {
		name  string
		style StringBlockStyle
		input string
		want  document.Node
	}{
		{
			name:  "single line stays inline",
			style: base,
			input: "one line",
			want:  document.NewString("one line"),
		},
		{
			name:  "strip",
			style: base,
			input: "a\nb\n\n",
			want:  &document.StringBlock{Text: "a\nb", Layout: document.Literal, Chomping: document.ChompStrip, Indent: -1},
		},
		{
			name:  "clip",
			style: StringBlockStyle{Layout: document.Folded, Chomping: document.ChompClip, MinimumLength: 1, MinimumLines: 1, Spacing: 4},
			input: "a\nb\n\n\n",
			want:  &document.StringBlock{Text: "a\nb\n", Layout: document.Folded, Chomping: document.ChompClip, Indent: 4},
		},
		{
			name:  "keep",
			style: StringBlockStyle{Chomping: document.ChompKeep, MinimumLines: 1, Spacing: -1},
			input: "a\nb\n\n",
			want:  &document.StringBlock{Text: "a\nb\n\n", Chomping: document.ChompKeep, Indent: -1},
		},
		{
			name:  "too short",
			style: StringBlockStyle{MinimumLength: 20, MinimumLines: 1},
			input: "a\nb",
			want:  document.NewString("a\nb"),
		},
		{
			name:  "too few lines",
			style: StringBlockStyle{MinimumLength: 1, MinimumLines: 3},
			input: "a\nb\nc",
			want:  document.NewString("a\nb\nc"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			style := tt.style
			got, err := Render(tt.input, Effective{StringBlock: &style})
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Render() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestChomp(t *testing.T) {
	assert.Equal(t, "x", Chomp("x\n\n", document.ChompStrip))
	assert.Equal(t, "x\n", Chomp("x\n\n", document.ChompClip))
	assert.Equal(t, "x", Chomp("x", document.ChompClip))
	assert.Equal(t, "x\n\n", Chomp("x\n\n", document.ChompKeep))
}

func TestBinaryStyle_EncodingFor(t *testing.T) {
	tests := []struct {
		name  string
		style BinaryStyle
		size  int
		want  document.Encoding
	}{
		{"default short flips to bytes", DefaultBinary(), 4, document.ByteSequence},
		{"default at threshold stays block", DefaultBinary(), 10, document.Base64Block},
		{"default long", DefaultBinary(), 64, document.Base64Block},
		{"bytes longer flips", BinaryStyle{Encoding: document.ByteSequence, SwitchIfLongerThan: 16, SwitchIfShorterThan: -1}, 17, document.Base64Block},
		{"bytes under limit", BinaryStyle{Encoding: document.ByteSequence, SwitchIfLongerThan: 16, SwitchIfShorterThan: -1}, 15, document.ByteSequence},
		{"tie favours block", BinaryStyle{Encoding: document.ByteSequence, SwitchIfLongerThan: 16, SwitchIfShorterThan: -1}, 16, document.Base64Block},
		{"disabled thresholds", BinaryStyle{Encoding: document.ByteSequence, SwitchIfLongerThan: -1, SwitchIfShorterThan: -1}, 1000, document.ByteSequence},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			style := tt.style
			assert.Equal(t, tt.want, style.EncodingFor(tt.size))
		})
	}

	var none *BinaryStyle
	assert.Equal(t, document.ByteSequence, none.EncodingFor(100))
}

func TestParse(t *testing.T) {
	hex := &NumberStyle{Pattern: "0x0000"}
	require.NoError(t, hex.Compile())

	tests := []struct {
		name    string
		node    document.Node
		eff     Effective
		kind    Kind
		want    any
		wantErr bool
	}{
		{"string scalar", document.NewString("abc"), Effective{}, KindString, "abc", false},
		{"string from int scalar", &document.Scalar{Tag: document.TagInt, Text: "12"}, Effective{}, KindString, "12", false},
		{"string block", &document.StringBlock{Text: "a\nb"}, Effective{}, KindString, "a\nb", false},
		{"null string", document.Null(), Effective{}, KindString, nil, true},
		{"hex", &document.Scalar{Tag: document.TagInt, Text: "0x001A"}, Effective{Number: hex}, KindInt, int64(26), false},
		{"garbage under hex", document.NewString("zz"), Effective{Number: hex}, KindInt, nil, true},
		{"type loss string", document.NewString("05"), Effective{}, KindInt, int64(5), false},
		{"float", &document.Scalar{Tag: document.TagFloat, Text: "1.5"}, Effective{}, KindFloat, 1.5, false},
		{"number from mapping", &document.Mapping{}, Effective{}, KindInt, nil, true},
		{"bool", &document.Scalar{Tag: document.TagBool, Text: "true"}, Effective{}, KindBool, true, false},
		{"bool yes", document.NewString("no"), Effective{}, KindBool, false, false},
		{"bad bool", document.NewString("maybe"), Effective{}, KindBool, nil, true},
		{"binary node", &document.Binary{Data: []byte{9}}, Effective{}, KindBinary, []byte{9}, false},
		{"byte sequence", &document.Sequence{Items: []document.Node{
			&document.Scalar{Tag: document.TagInt, Text: "1"},
			&document.Scalar{Tag: document.TagInt, Text: "255"},
		}}, Effective{}, KindBinary, []byte{1, 255}, false},
		{"base64 string", document.NewString("AQI="), Effective{}, KindBinary, []byte{1, 2}, false},
		{"bad byte", &document.Sequence{Items: []document.Node{document.NewString("300")}}, Effective{}, KindBinary, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.node, tt.eff, tt.kind)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_PlainFallbackReportsError(t *testing.T) {
	hex := &NumberStyle{Pattern: "0x0000"}
	require.NoError(t, hex.Compile())

	got, err := Parse(&document.Scalar{Tag: document.TagInt, Text: "26"}, Effective{Number: hex}, KindInt)
	assert.Equal(t, int64(26), got)
	var serr *Error
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "0x0000", serr.Pattern)

	got, err = Parse(document.NewString("zz"), Effective{Number: hex}, KindInt)
	assert.Nil(t, got)
	assert.True(t, errors.As(err, &serr))
}
