package style

import "fmt"

// Kind is the scalar type a value is rendered from or parsed into.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
	KindBinary
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindBinary:
		return "binary"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind maps a type name used in schema definition files to a Kind.
func ParseKind(name string) (Kind, error) {
	switch name {
	case "string", "str":
		return KindString, nil
	case "int", "integer":
		return KindInt, nil
	case "float", "number":
		return KindFloat, nil
	case "bool", "boolean":
		return KindBool, nil
	case "binary", "bytes":
		return KindBinary, nil
	}
	return 0, fmt.Errorf("unknown scalar kind %q", name)
}
