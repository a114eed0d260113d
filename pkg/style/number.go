package style

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/bfv/configs/pkg/document"
)

// Pattern is a compiled number pattern.
//
//	pattern   example    result
//	0x0       1          0x1
//	0x0000    26         0x001A
//	0o        8          010
//	0o000     8          0010
//	0b0000    5          0b0101
//	0.0       5          5.0
//	00.00     5          05.00
//	.         123.456    123.456
//	00.00     123.456    123.46
//	00.00#    123.4567   123.457
//	H:M:S     5400       1:30:00
//	H:M       90         1:30
//	+0        5          +5
//	+0,       1500       +1,500
//	0,        9000500.5  9,000,500.5
//	0,.00     9500.5     9,500.50
//	00        5          "05" (not compatible: written as a string)
//
// A radix mask of one digit is a minimum width, a longer mask is a fixed
// width and values needing more digits do not fit.
type Pattern struct {
	source string

	sign  bool
	radix int
	width int
	fixed bool
	group bool

	fraction bool
	minFrac  int
	maxFrac  int

	sexagesimal int
}

// CompilePattern parses a number pattern. The empty pattern is the default
// plain decimal rendering.
func CompilePattern(src string) (*Pattern, error) {
	p := &Pattern{source: src, radix: 10, maxFrac: -1}
	s := src
	if strings.HasPrefix(s, "+") {
		p.sign = true
		s = s[1:]
	}

	switch {
	case s == "H:M:S":
		p.sexagesimal = 3
		return p, nil
	case s == "H:M":
		p.sexagesimal = 2
		return p, nil
	case hasPrefixFold(s, "0x"), hasPrefixFold(s, "0o"), hasPrefixFold(s, "0b"):
		switch strings.ToLower(s[:2]) {
		case "0x":
			p.radix = 16
		case "0o":
			p.radix = 8
		default:
			p.radix = 2
		}
		mask := s[2:]
		if strings.Trim(mask, "0") != "" {
			return nil, fmt.Errorf("invalid number pattern %q: radix mask may only contain '0'", src)
		}
		if mask == "" && p.radix != 8 {
			return nil, fmt.Errorf("invalid number pattern %q: radix mask needs at least one '0'", src)
		}
		p.width = len(mask)
		p.fixed = len(mask) > 1
		return p, nil
	}

	intPart, fracPart, hasDot := strings.Cut(s, ".")
	if strings.HasSuffix(intPart, ",") {
		p.group = true
		intPart = strings.TrimSuffix(intPart, ",")
	}
	if strings.Trim(intPart, "0") != "" {
		return nil, fmt.Errorf("invalid number pattern %q: unexpected %q in integer mask", src, strings.Trim(intPart, "0"))
	}
	p.width = len(intPart)

	if hasDot {
		p.fraction = true
		zeros := strings.TrimRight(fracPart, "#")
		optional := len(fracPart) - len(zeros)
		if strings.Trim(zeros, "0") != "" {
			return nil, fmt.Errorf("invalid number pattern %q: fraction mask may only contain '0' followed by '#'", src)
		}
		p.minFrac = len(zeros)
		switch {
		case len(zeros) == 0 && optional == 0:
			p.maxFrac = -1
		default:
			p.maxFrac = len(zeros) + optional
		}
	}
	return p, nil
}

// MustCompilePattern is like CompilePattern but panics on error.
func MustCompilePattern(src string) *Pattern {
	p, err := CompilePattern(src)
	if err != nil {
		panic(err)
	}
	return p
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// String returns the pattern source.
func (p *Pattern) String() string {
	if p == nil {
		return ""
	}
	return p.source
}

// IsDefault reports whether the pattern is the plain decimal rendering.
func (p *Pattern) IsDefault() bool {
	return p == nil || (p.radix == 10 && p.sexagesimal == 0 && !p.sign && !p.group && !p.fraction && p.width <= 1)
}

// Compatible reports whether every rendered value parses back to a number of
// the same type. Zero padded integers are written as strings and are not.
func (p *Pattern) Compatible() bool {
	if p == nil {
		return true
	}
	return !(p.radix == 10 && p.sexagesimal == 0 && !p.group && !p.fraction && p.width > 1)
}

// ── Rendering ─────────────────────────────────────────────────────────────────

type number struct {
	i       int64
	f       float64
	isFloat bool
}

func (n number) integral() bool {
	return !n.isFloat || (n.f == math.Trunc(n.f) && !math.IsInf(n.f, 0) && math.Abs(n.f) < 1<<63)
}

func (n number) int64() int64 {
	if n.isFloat {
		return int64(n.f)
	}
	return n.i
}

func (n number) float64() float64 {
	if n.isFloat {
		return n.f
	}
	return float64(n.i)
}

func toNumber(v any) (number, error) {
	switch x := v.(type) {
	case int:
		return number{i: int64(x)}, nil
	case int8:
		return number{i: int64(x)}, nil
	case int16:
		return number{i: int64(x)}, nil
	case int32:
		return number{i: int64(x)}, nil
	case int64:
		return number{i: x}, nil
	case uint:
		return fromUint(uint64(x))
	case uint8:
		return number{i: int64(x)}, nil
	case uint16:
		return number{i: int64(x)}, nil
	case uint32:
		return number{i: int64(x)}, nil
	case uint64:
		return fromUint(x)
	case float32:
		return number{f: float64(x), isFloat: true}, nil
	case float64:
		return number{f: x, isFloat: true}, nil
	}
	return number{}, fmt.Errorf("%T is not a number", v)
}

func fromUint(u uint64) (number, error) {
	if u > math.MaxInt64 {
		return number{}, fmt.Errorf("%d overflows int64", u)
	}
	return number{i: int64(u)}, nil
}

// Format renders v under the pattern. A nil pattern renders plain decimal.
func (p *Pattern) Format(v any) (*document.Scalar, error) {
	n, err := toNumber(v)
	if err != nil {
		return nil, &Error{Pattern: p.String(), Value: v, Reason: err.Error()}
	}
	if p.IsDefault() {
		return formatDefault(n), nil
	}
	if n.isFloat && (math.IsNaN(n.f) || math.IsInf(n.f, 0)) {
		return nil, &Error{Pattern: p.source, Value: v, Reason: "not a finite number"}
	}

	tag := document.TagInt
	if n.isFloat {
		tag = document.TagFloat
	}

	var text string
	switch {
	case p.sexagesimal > 0:
		text = p.formatSexagesimal(n)
	case p.radix != 10:
		if !n.integral() {
			return nil, &Error{Pattern: p.source, Value: v, Reason: "radix patterns need an integral value"}
		}
		text, err = p.formatRadix(n.int64())
		if err != nil {
			return nil, &Error{Pattern: p.source, Value: v, Reason: err.Error()}
		}
	default:
		var loss bool
		text, loss = p.formatDecimal(n)
		if loss {
			tag = document.TagString
		}
	}
	return &document.Scalar{Tag: tag, Text: text}, nil
}

func formatDefault(n number) *document.Scalar {
	if !n.isFloat {
		return &document.Scalar{Tag: document.TagInt, Text: strconv.FormatInt(n.i, 10)}
	}
	return &document.Scalar{Tag: document.TagFloat, Text: FormatFloat(n.f)}
}

// FormatFloat renders a float the way the default number style does.
func FormatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return ".nan"
	case math.IsInf(f, 1):
		return ".inf"
	case math.IsInf(f, -1):
		return "-.inf"
	}
	format := byte('f')
	if abs := math.Abs(f); abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		format = 'g'
	}
	s := strconv.FormatFloat(f, format, -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

func (p *Pattern) signOf(neg bool) string {
	switch {
	case neg:
		return "-"
	case p.sign:
		return "+"
	}
	return ""
}

func (p *Pattern) formatRadix(i int64) (string, error) {
	neg := i < 0
	var mag uint64
	if neg {
		mag = uint64(-(i + 1)) + 1
	} else {
		mag = uint64(i)
	}
	digits := strings.ToUpper(strconv.FormatUint(mag, p.radix))
	if p.fixed && len(digits) > p.width {
		return "", fmt.Errorf("needs %d digits, mask allows %d", len(digits), p.width)
	}
	if len(digits) < p.width {
		digits = strings.Repeat("0", p.width-len(digits)) + digits
	}

	var prefix string
	switch p.radix {
	case 16:
		prefix = "0x"
	case 2:
		prefix = "0b"
	case 8:
		prefix = "0"
	}
	return p.signOf(neg) + prefix + digits, nil
}

func (p *Pattern) formatSexagesimal(n number) string {
	neg := n.float64() < 0
	var whole int64
	var frac float64
	if n.isFloat {
		abs := math.Abs(n.f)
		whole = int64(math.Trunc(abs))
		frac = abs - math.Trunc(abs)
	} else {
		whole = n.i
		if neg {
			whole = -whole
		}
	}

	var parts []int64
	if p.sexagesimal == 3 {
		parts = []int64{whole / 3600, whole % 3600 / 60, whole % 60}
	} else {
		parts = []int64{whole / 60, whole % 60}
	}

	var b strings.Builder
	b.WriteString(p.signOf(neg))
	b.WriteString(strconv.FormatInt(parts[0], 10))
	for _, part := range parts[1:] {
		b.WriteByte(':')
		if part < 10 {
			b.WriteByte('0')
		}
		b.WriteString(strconv.FormatInt(part, 10))
	}
	if frac > 0 {
		fs := strconv.FormatFloat(frac, 'f', -1, 64)
		b.WriteString(strings.TrimPrefix(fs, "0"))
	}
	return b.String()
}

// formatDecimal renders a decimal pattern. loss is set when the result is a
// zero padded integer that only survives as a string.
func (p *Pattern) formatDecimal(n number) (text string, loss bool) {
	neg := n.float64() < 0 || (!n.isFloat && n.i < 0)

	var intDigits, fracDigits string
	switch {
	case p.fraction:
		abs := math.Abs(n.float64())
		var s string
		if p.maxFrac < 0 {
			s = strconv.FormatFloat(abs, 'f', -1, 64)
		} else {
			s = strconv.FormatFloat(abs, 'f', p.maxFrac, 64)
		}
		intDigits, fracDigits, _ = strings.Cut(s, ".")
		if p.maxFrac >= 0 {
			for len(fracDigits) > p.minFrac && strings.HasSuffix(fracDigits, "0") {
				fracDigits = fracDigits[:len(fracDigits)-1]
			}
		}
		if len(fracDigits) < p.minFrac {
			fracDigits += strings.Repeat("0", p.minFrac-len(fracDigits))
		}
	case n.isFloat && !n.integral():
		s := strconv.FormatFloat(math.Abs(n.f), 'f', -1, 64)
		intDigits, fracDigits, _ = strings.Cut(s, ".")
	default:
		i := n.int64()
		if i < 0 {
			intDigits = strings.TrimPrefix(strconv.FormatInt(i, 10), "-")
		} else {
			intDigits = strconv.FormatInt(i, 10)
		}
	}

	if len(intDigits) < p.width {
		intDigits = strings.Repeat("0", p.width-len(intDigits)) + intDigits
		loss = !p.fraction && fracDigits == "" && !p.group && len(intDigits) > 1
	}
	if p.group {
		intDigits = groupThousands(intDigits)
	}
	if strings.Trim(intDigits+fracDigits, "0,") == "" {
		neg = false
	}

	text = p.signOf(neg) + intDigits
	if fracDigits != "" {
		text += "." + fracDigits
	}
	return text, loss
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// ── Parsing ───────────────────────────────────────────────────────────────────

// Parse reads text written under the pattern back into a value of kind,
// which must be KindInt or KindFloat. Results are int64 or float64.
func (p *Pattern) Parse(text string, kind Kind) (any, error) {
	n, err := p.parse(strings.TrimSpace(text))
	if err != nil {
		return nil, &Error{Pattern: p.String(), Value: text, Reason: err.Error()}
	}
	switch kind {
	case KindInt:
		if !n.integral() {
			return nil, &Error{Pattern: p.String(), Value: text, Reason: "not an integer"}
		}
		return n.int64(), nil
	case KindFloat:
		return n.float64(), nil
	}
	return nil, &Error{Pattern: p.String(), Value: text, Reason: fmt.Sprintf("%s is not a number kind", kind)}
}

func (p *Pattern) parse(s string) (number, error) {
	if s == "" {
		return number{}, fmt.Errorf("empty number")
	}
	if f, ok := parseSpecialFloat(s); ok {
		return number{f: f, isFloat: true}, nil
	}

	neg := false
	body := s
	switch body[0] {
	case '-':
		neg = true
		body = body[1:]
	case '+':
		body = body[1:]
	}

	if p != nil && p.sexagesimal > 0 {
		return parseSexagesimal(body, neg)
	}
	if p != nil && p.radix != 10 {
		return parseRadix(body, p.radix, neg)
	}

	// Radix literals are accepted under the default pattern too.
	if p.IsDefault() && len(body) > 2 && body[0] == '0' {
		switch body[1] {
		case 'x', 'X':
			return parseRadix(body, 16, neg)
		case 'b', 'B':
			return parseRadix(body, 2, neg)
		case 'o', 'O':
			return parseRadix(body, 8, neg)
		}
	}

	body = strings.ReplaceAll(body, ",", "")
	body = strings.ReplaceAll(body, "_", "")
	if !strings.ContainsAny(body, ".eE") {
		u, err := strconv.ParseUint(body, 10, 64)
		switch {
		case errors.Is(err, strconv.ErrRange), err == nil && u > math.MaxInt64 && !(neg && u == 1<<63):
			// Integral floats beyond int64 are written without a fraction.
		case err != nil:
			return number{}, fmt.Errorf("invalid integer %q", s)
		default:
			i := int64(u)
			if neg {
				i = -i
			}
			return number{i: i}, nil
		}
	}
	f, err := strconv.ParseFloat(body, 64)
	if err != nil {
		return number{}, fmt.Errorf("invalid number %q", s)
	}
	if neg {
		f = -f
	}
	return number{f: f, isFloat: true}, nil
}

func parseSpecialFloat(s string) (float64, bool) {
	switch strings.ToLower(s) {
	case ".nan":
		return math.NaN(), true
	case ".inf", "+.inf":
		return math.Inf(1), true
	case "-.inf":
		return math.Inf(-1), true
	}
	return 0, false
}

func parseRadix(body string, radix int, neg bool) (number, error) {
	digits := body
	switch radix {
	case 16:
		if !hasPrefixFold(digits, "0x") {
			return number{}, fmt.Errorf("missing 0x prefix in %q", body)
		}
		digits = digits[2:]
	case 2:
		if !hasPrefixFold(digits, "0b") {
			return number{}, fmt.Errorf("missing 0b prefix in %q", body)
		}
		digits = digits[2:]
	case 8:
		switch {
		case hasPrefixFold(digits, "0o"):
			digits = digits[2:]
		case strings.HasPrefix(digits, "0") && len(digits) > 1:
			digits = digits[1:]
		case digits != "0":
			return number{}, fmt.Errorf("missing octal prefix in %q", body)
		}
	}
	u, err := strconv.ParseUint(digits, radix, 64)
	if err != nil {
		return number{}, fmt.Errorf("invalid base %d digits %q", radix, digits)
	}
	if u > math.MaxInt64 && !(neg && u == 1<<63) {
		return number{}, fmt.Errorf("%q overflows int64", body)
	}
	i := int64(u)
	if neg {
		i = -i
	}
	return number{i: i}, nil
}

func parseSexagesimal(body string, neg bool) (number, error) {
	parts := strings.Split(body, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return number{}, fmt.Errorf("invalid sexagesimal value %q", body)
	}

	var whole int64
	for _, part := range parts[:len(parts)-1] {
		v, err := strconv.ParseInt(part, 10, 64)
		if err != nil || v < 0 {
			return number{}, fmt.Errorf("invalid sexagesimal component %q", part)
		}
		whole = whole*60 + v
	}

	last := parts[len(parts)-1]
	if strings.Contains(last, ".") {
		f, err := strconv.ParseFloat(last, 64)
		if err != nil || f < 0 {
			return number{}, fmt.Errorf("invalid sexagesimal component %q", last)
		}
		total := float64(whole)*60 + f
		if neg {
			total = -total
		}
		return number{f: total, isFloat: true}, nil
	}
	v, err := strconv.ParseInt(last, 10, 64)
	if err != nil || v < 0 {
		return number{}, fmt.Errorf("invalid sexagesimal component %q", last)
	}
	total := whole*60 + v
	if neg {
		total = -total
	}
	return number{i: total}, nil
}
