package commands

import (
	"encoding/base64"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const notSet = "(not set)"

// formatValue renders a resolved value on one line: scalars as text,
// binary as base64 and composites in YAML flow style.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return notSet
	case string:
		return fmt.Sprintf("%q", x)
	case []byte:
		return base64.StdEncoding.EncodeToString(x)
	case map[string]any, []any:
		var n yaml.Node
		if err := n.Encode(plain(x)); err != nil {
			return fmt.Sprint(x)
		}
		n.Style = yaml.FlowStyle
		out, err := yaml.Marshal(&n)
		if err != nil {
			return fmt.Sprint(x)
		}
		return strings.TrimSpace(string(out))
	}
	return fmt.Sprint(v)
}

// plain replaces binary leaves with base64 text so composites encode as
// readable scalars.
func plain(v any) any {
	switch x := v.(type) {
	case []byte:
		return base64.StdEncoding.EncodeToString(x)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = plain(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = plain(e)
		}
		return out
	}
	return v
}
