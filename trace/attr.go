package trace

import "strconv"

// ValueKind discriminates the type held by a Value.
type ValueKind int

const (
	ValueString ValueKind = iota
	ValueInt
	ValueFloat
	ValueBool
)

// String returns a human-readable kind name.
func (k ValueKind) String() string {
	switch k {
	case ValueString:
		return "string"
	case ValueInt:
		return "int"
	case ValueFloat:
		return "float"
	case ValueBool:
		return "bool"
	default:
		return "unknown"
	}
}

// Value is a typed attribute value. Only strings, 64-bit integers, 64-bit
// floats, and booleans are representable; anything else must be stringified
// by the caller.
type Value struct {
	kind ValueKind
	str  string
	num  int64
	flt  float64
	b    bool
}

func StringValue(v string) Value { return Value{kind: ValueString, str: v} }
func IntValue(v int64) Value     { return Value{kind: ValueInt, num: v} }
func FloatValue(v float64) Value { return Value{kind: ValueFloat, flt: v} }
func BoolValue(v bool) Value     { return Value{kind: ValueBool, b: v} }

// Kind returns the type held by the value.
func (v Value) Kind() ValueKind { return v.kind }

// Str returns the string payload. Zero for non-string values.
func (v Value) Str() string { return v.str }

// Int returns the integer payload. Zero for non-integer values.
func (v Value) Int() int64 { return v.num }

// Float returns the float payload. Zero for non-float values.
func (v Value) Float() float64 { return v.flt }

// Bool returns the boolean payload. False for non-boolean values.
func (v Value) Bool() bool { return v.b }

// Emit renders the value as a string regardless of kind.
func (v Value) Emit() string {
	switch v.kind {
	case ValueString:
		return v.str
	case ValueInt:
		return strconv.FormatInt(v.num, 10)
	case ValueFloat:
		return strconv.FormatFloat(v.flt, 'g', -1, 64)
	case ValueBool:
		return strconv.FormatBool(v.b)
	default:
		return ""
	}
}

// Attr is a single key/value attribute.
type Attr struct {
	Key   string
	Value Value
}

// String builds a string attribute.
func String(key, value string) Attr {
	return Attr{Key: key, Value: StringValue(value)}
}

// Int builds an integer attribute.
func Int(key string, value int64) Attr {
	return Attr{Key: key, Value: IntValue(value)}
}

// Float builds a float attribute.
func Float(key string, value float64) Attr {
	return Attr{Key: key, Value: FloatValue(value)}
}

// Bool builds a boolean attribute.
func Bool(key string, value bool) Attr {
	return Attr{Key: key, Value: BoolValue(value)}
}
