package parser

import (
	"strconv"
	"strings"

	"github.com/pullwatch/pullwatch/internal/pool"
)

// ValueKind tags the coerced type of one log field.
type ValueKind uint8

const (
	// ValueNil marks an absent field ("nil" in the log).
	ValueNil ValueKind = iota
	// ValueBool marks a true/false literal.
	ValueBool
	// ValueInt marks a decimal or 0x-prefixed integer literal.
	ValueInt
	// ValueFloat marks a float literal.
	ValueFloat
	// ValueText marks everything else, quotes stripped.
	ValueText
)

// Value is one coerced log field.
type Value struct {
	Kind ValueKind
	I    int64
	F    float64
	B    bool
	S    string
}

// IsNil reports whether the field was absent.
func (v Value) IsNil() bool { return v.Kind == ValueNil }

// Int returns the field as an integer. Floats truncate; everything
// non-numeric yields 0.
func (v Value) Int() int64 {
	switch v.Kind {
	case ValueInt:
		return v.I
	case ValueFloat:
		return int64(v.F)
	case ValueBool:
		if v.B {
			return 1
		}
		return 0
	default:
		return 0
	}
}

// Float returns the field as a float64.
func (v Value) Float() float64 {
	switch v.Kind {
	case ValueFloat:
		return v.F
	case ValueInt:
		return float64(v.I)
	default:
		return 0
	}
}

// Str returns the field's textual form.
func (v Value) Str() string {
	switch v.Kind {
	case ValueText:
		return v.S
	case ValueNil:
		return ""
	case ValueBool:
		return strconv.FormatBool(v.B)
	case ValueInt:
		return strconv.FormatInt(v.I, 10)
	default:
		return strconv.FormatFloat(v.F, 'g', -1, 64)
	}
}

// Truthy reports whether the field marks a set flag: the literals 1 and
// true. Absent fields ("nil") are false.
func (v Value) Truthy() bool {
	switch v.Kind {
	case ValueBool:
		return v.B
	case ValueInt:
		return v.I != 0
	default:
		return false
	}
}

// Coerce converts one raw field into a typed Value: nil -> absent,
// true/false -> bool, decimal and 0x-hex -> int, float literal ->
// float, anything else -> text.
func Coerce(field []byte) Value {
	if len(field) == 0 {
		return Value{Kind: ValueNil}
	}

	s := pool.BytesToString(field)
	switch s {
	case "nil":
		return Value{Kind: ValueNil}
	case "true":
		return Value{Kind: ValueBool, B: true}
	case "false":
		return Value{Kind: ValueBool, B: false}
	}

	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		if n, err := strconv.ParseInt(s[2:], 16, 64); err == nil {
			return Value{Kind: ValueInt, I: n}
		}
	}

	if n, err := pool.ParseInt64(field); err == nil {
		return Value{Kind: ValueInt, I: n}
	}

	if looksNumeric(field) {
		if f, err := pool.ParseFloat64(field); err == nil {
			return Value{Kind: ValueFloat, F: f}
		}
	}

	// Text: the field scanner already stripped quotes; copy out of
	// the shared line buffer.
	return Value{Kind: ValueText, S: string(field)}
}

// looksNumeric gates the float parse so strings like "NaN-named" units
// never reach strconv.
func looksNumeric(b []byte) bool {
	for i, c := range b {
		switch {
		case c >= '0' && c <= '9':
		case c == '.' || c == 'e' || c == 'E':
		case (c == '-' || c == '+') && (i == 0 || b[i-1] == 'e' || b[i-1] == 'E'):
		default:
			return false
		}
	}
	return len(b) > 0
}
