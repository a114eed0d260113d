package style

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/bfv/configs/pkg/document"
)

// Render turns a scalar value into a document node under eff.
//
// When a number does not fit its pattern, Render returns the default
// rendering together with a *Error so the caller can report the fallback.
func Render(v any, eff Effective) (document.Node, error) {
	switch x := v.(type) {
	case nil:
		return document.Null(), nil
	case bool:
		return &document.Scalar{Tag: document.TagBool, Text: strconv.FormatBool(x)}, nil
	case string:
		if eff.StringBlock != nil {
			return eff.StringBlock.Render(x), nil
		}
		return document.NewString(x), nil
	case []byte:
		return eff.Binary.Render(x), nil
	}

	n, err := toNumber(v)
	if err != nil {
		return nil, fmt.Errorf("rendering %T: unsupported scalar value", v)
	}
	p := eff.Number.Compiled()
	out, err := p.Format(v)
	if err != nil {
		return formatDefault(n), err
	}
	return out, nil
}

// Parse reads a node written under eff back into a value of kind.
//
// A number that does not match its pattern is retried as a plain number so
// hand edited documents still load. The plain value is then returned
// together with the pattern's *Error so the caller can report the fallback.
func Parse(node document.Node, eff Effective, kind Kind) (any, error) {
	switch kind {
	case KindString:
		text, ok := document.Text(node)
		if !ok || document.IsNull(node) {
			return nil, fmt.Errorf("expected a string, got %s", describe(node))
		}
		return text, nil

	case KindInt, KindFloat:
		s, ok := node.(*document.Scalar)
		if !ok || s.Tag == document.TagNull {
			return nil, fmt.Errorf("expected a number, got %s", describe(node))
		}
		p := eff.Number.Compiled()
		v, err := p.Parse(s.Text, kind)
		if err == nil || p.IsDefault() {
			return v, err
		}
		if plain, perr := (*Pattern)(nil).Parse(s.Text, kind); perr == nil {
			return plain, err
		}
		return nil, err

	case KindBool:
		s, ok := node.(*document.Scalar)
		if !ok || s.Tag == document.TagNull {
			return nil, fmt.Errorf("expected a bool, got %s", describe(node))
		}
		return parseBool(s.Text)

	case KindBinary:
		return parseBinary(node)
	}
	return nil, fmt.Errorf("unsupported kind %s", kind)
}

func parseBool(text string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "true", "yes", "on", "y":
		return true, nil
	case "false", "no", "off", "n":
		return false, nil
	}
	return false, fmt.Errorf("invalid bool %q", text)
}

func parseBinary(node document.Node) ([]byte, error) {
	switch x := node.(type) {
	case *document.Binary:
		return x.Data, nil
	case *document.Sequence:
		out := make([]byte, 0, len(x.Items))
		for i, item := range x.Items {
			s, ok := item.(*document.Scalar)
			if !ok {
				return nil, fmt.Errorf("byte %d: expected a number, got %s", i, describe(item))
			}
			b, err := strconv.ParseInt(strings.TrimSpace(s.Text), 0, 16)
			if err != nil || b < -128 || b > 255 {
				return nil, fmt.Errorf("byte %d: invalid value %q", i, s.Text)
			}
			out = append(out, byte(b))
		}
		return out, nil
	case *document.Scalar, *document.StringBlock:
		text, _ := document.Text(x)
		data, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(text), ""))
		if err != nil {
			return nil, fmt.Errorf("invalid base64 payload: %w", err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("expected binary data, got %s", describe(node))
}

func describe(n document.Node) string {
	if n == nil {
		return "nothing"
	}
	if s, ok := n.(*document.Scalar); ok {
		return s.Tag.String() + " scalar"
	}
	return n.Kind().String()
}
