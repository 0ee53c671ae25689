// Package eval interprets specialized IR against a heap that checks the
// reference counting inserted by the refcount pass.
//
// Values describe themselves: scalars are ints or floats, inline structs
// and tagged unions are aggregates, and everything refcounted lives in the
// heap behind a handle. A handle of 0 is the null pointer of a
// nullable-pointer union. Every allocation starts with a count of one;
// use after free, double free and objects still alive when a run ends are
// reported as *Error.
package eval

import (
	"fmt"
	"strings"
)

// ValueKind identifies the runtime shape of a Value.
type ValueKind uint8

const (
	VKInvalid ValueKind = iota
	VKInt
	VKFloat
	// VKAgg is an inline aggregate: struct, tagged union or closure env.
	VKAgg
	// VKPtr is a handle to a heap object, or null.
	VKPtr
)

func (k ValueKind) String() string {
	switch k {
	case VKInt:
		return "int"
	case VKFloat:
		return "float"
	case VKAgg:
		return "agg"
	case VKPtr:
		return "ptr"
	default:
		return "invalid"
	}
}

// Value is one runtime value.
type Value struct {
	Kind   ValueKind
	Int    int64
	Float  float64
	Fields []Value
	H      Handle
}

// IntValue makes an integer (also used for booleans and tags).
func IntValue(v int64) Value { return Value{Kind: VKInt, Int: v} }

// FloatValue makes a float.
func FloatValue(v float64) Value { return Value{Kind: VKFloat, Float: v} }

// AggValue makes an inline aggregate.
func AggValue(fields ...Value) Value {
	return Value{Kind: VKAgg, Fields: append([]Value(nil), fields...)}
}

// PtrValue wraps a heap handle.
func PtrValue(h Handle) Value { return Value{Kind: VKPtr, H: h} }

// Null is the empty pointer.
func Null() Value { return Value{Kind: VKPtr} }

func boolValue(b bool) Value {
	if b {
		return IntValue(1)
	}
	return IntValue(0)
}

// IsNull reports whether v is the null pointer.
func (v Value) IsNull() bool { return v.Kind == VKPtr && v.H == 0 }

// String is a debug rendering that does not consult the heap.
func (v Value) String() string {
	switch v.Kind {
	case VKInt:
		return fmt.Sprintf("%d", v.Int)
	case VKFloat:
		return fmt.Sprintf("%g", v.Float)
	case VKAgg:
		parts := make([]string, len(v.Fields))
		for i, f := range v.Fields {
			parts[i] = f.String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case VKPtr:
		if v.H == 0 {
			return "null"
		}
		return fmt.Sprintf("#%d", v.H)
	default:
		return "<invalid>"
	}
}
