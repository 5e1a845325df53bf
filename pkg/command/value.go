package command

import (
	"strconv"
)

// Value is a typed command argument produced by the tokenizer. Kind holds
// exactly one of ArgInteger, ArgFloat, ArgBoolean or ArgString.
type Value struct {
	Kind  ArgFlags
	Int   int64
	Float float64
	Bool  bool
	Str   string
}

// IntValue returns an integer argument value.
func IntValue(v int64) Value { return Value{Kind: ArgInteger, Int: v} }

// FloatValue returns a floating point argument value.
func FloatValue(v float64) Value { return Value{Kind: ArgFloat, Float: v} }

// BoolValue returns a boolean argument value.
func BoolValue(v bool) Value { return Value{Kind: ArgBoolean, Bool: v} }

// StringValue returns a string argument value.
func StringValue(v string) Value { return Value{Kind: ArgString, Str: v} }

// String renders the value the way it would be typed on a command line.
func (v Value) String() string {
	switch v.Kind {
	case ArgInteger:
		return strconv.FormatInt(v.Int, 10)
	case ArgFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case ArgBoolean:
		return strconv.FormatBool(v.Bool)
	default:
		return v.Str
	}
}

// Args is the container delivered to command handlers. Exactly one of Values
// or Named is populated: Values for positional commands, Named for associative
// ones. In Named, untagged positions fall back to their decimal index as key.
type Args struct {
	Values []Value
	Named  map[string]Value
}

// Len returns the number of arguments regardless of container shape.
func (a Args) Len() int {
	if a.Named != nil {
		return len(a.Named)
	}
	return len(a.Values)
}
