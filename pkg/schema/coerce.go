package schema

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"

	"github.com/bfv/configs/pkg/style"
)

// Coerce converts v into the canonical form of p:
//
//	int      int64
//	float    float64
//	string   string
//	bool     bool
//	binary   []byte
//	object   map[string]any of canonical field values
//	sequence []any
//	mapping  map[string]any
//
// nil stays nil. Values of another scalar type are converted when the
// conversion is lossless, so "54" becomes 54 for an int field.
func Coerce(p *PropertySchema, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch p.Type {
	case TypeScalar:
		return CoerceScalar(p.Kind, v)

	case TypeObject:
		fields, err := toStringMap(v)
		if err != nil {
			return nil, err
		}
		out := make(map[string]any, len(fields))
		for name, fv := range fields {
			f, ok := p.Field(name)
			if !ok {
				return nil, fmt.Errorf("unknown field %q", name)
			}
			c, err := Coerce(f, fv)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			if c != nil {
				out[name] = c
			}
		}
		return out, nil

	case TypeSequence:
		items, err := toSlice(v)
		if err != nil {
			return nil, err
		}
		out := make([]any, len(items))
		for i, item := range items {
			c, err := Coerce(p.Elem, item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = c
		}
		return out, nil

	case TypeMapping:
		entries, err := toStringMap(v)
		if err != nil {
			return nil, err
		}
		out := make(map[string]any, len(entries))
		for k, ev := range entries {
			c, err := Coerce(p.Elem, ev)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = c
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported property type %s", p.Type)
}

// CoerceScalar converts v to the canonical Go type of kind.
func CoerceScalar(kind ScalarKind, v any) (any, error) {
	switch kind {
	case style.KindString:
		switch x := v.(type) {
		case string:
			return x, nil
		case []byte:
			return string(x), nil
		case bool:
			return strconv.FormatBool(x), nil
		case fmt.Stringer:
			return x.String(), nil
		}
		if f, ok := toFloat(v); ok {
			if i, isInt := toInt(v); isInt {
				return strconv.FormatInt(i, 10), nil
			}
			return style.FormatFloat(f), nil
		}

	case style.KindInt:
		if i, ok := toInt(v); ok {
			return i, nil
		}
		if f, ok := toFloat(v); ok {
			if f == math.Trunc(f) && math.Abs(f) < 1<<63 {
				return int64(f), nil
			}
			return nil, fmt.Errorf("%v is not an integer", v)
		}
		if s, ok := v.(string); ok {
			return (*style.Pattern)(nil).Parse(s, style.KindInt)
		}

	case style.KindFloat:
		if f, ok := toFloat(v); ok {
			return f, nil
		}
		if s, ok := v.(string); ok {
			return (*style.Pattern)(nil).Parse(s, style.KindFloat)
		}

	case style.KindBool:
		switch x := v.(type) {
		case bool:
			return x, nil
		case string:
			b, err := strconv.ParseBool(x)
			if err != nil {
				return nil, fmt.Errorf("invalid bool %q", x)
			}
			return b, nil
		}

	case style.KindBinary:
		switch x := v.(type) {
		case []byte:
			return x, nil
		case string:
			return []byte(x), nil
		}
		if items, err := toSlice(v); err == nil {
			out := make([]byte, len(items))
			for i, item := range items {
				n, ok := toInt(item)
				if !ok || n < 0 || n > 255 {
					return nil, fmt.Errorf("byte %d: invalid value %v", i, item)
				}
				out[i] = byte(n)
			}
			return out, nil
		}
	}
	return nil, fmt.Errorf("cannot use %T as %s", v, kind)
}

func toInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint:
		return int64(x), x <= math.MaxInt64
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		return int64(x), x <= math.MaxInt64
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	if i, ok := toInt(v); ok {
		return float64(i), true
	}
	return 0, false
}

func toStringMap(v any) (map[string]any, error) {
	if m, ok := v.(map[string]any); ok {
		return m, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map {
		return nil, fmt.Errorf("expected a mapping, got %T", v)
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[fmt.Sprint(iter.Key().Interface())] = iter.Value().Interface()
	}
	return out, nil
}

func toSlice(v any) ([]any, error) {
	if s, ok := v.([]any); ok {
		return s, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("expected a sequence, got %T", v)
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}

// SortedKeys returns the keys of m in lexical order.
func SortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
