package bytecode

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindNil Kind = iota
	KindNumber
	KindText
	KindBool
)

// String returns a human-readable name for Kind.
func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	case KindBool:
		return "bool"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Value is a runtime value: a number, a text, a boolean or nil.
// Only the field matching Kind is meaningful. The zero Value is nil.
type Value struct {
	Kind Kind    `cbor:"1,keyasint"`
	Num  float64 `cbor:"2,keyasint,omitempty"`
	Str  string  `cbor:"3,keyasint,omitempty"`
	Bool bool    `cbor:"4,keyasint,omitempty"`
}

// Nil returns the absent value.
func Nil() Value { return Value{} }

// Number returns a numeric value.
func Number(n float64) Value { return Value{Kind: KindNumber, Num: n} }

// Text returns a string value.
func Text(s string) Value { return Value{Kind: KindText, Str: s} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// Equal reports whether a and b are the same variant with equal payloads.
// Values of different variants are never equal.
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNil:
		return true
	case KindNumber:
		return a.Num == b.Num
	case KindText:
		return a.Str == b.Str
	case KindBool:
		return a.Bool == b.Bool
	}
	return false
}

// Compare orders two values of the same variant. ok is false when the
// values are incomparable (different variants, or a NaN operand).
func Compare(a, b Value) (cmp int, ok bool) {
	if a.Kind != b.Kind {
		return 0, false
	}
	switch a.Kind {
	case KindNil:
		return 0, true
	case KindNumber:
		switch {
		case a.Num < b.Num:
			return -1, true
		case a.Num > b.Num:
			return 1, true
		case a.Num == b.Num:
			return 0, true
		}
		return 0, false // NaN
	case KindText:
		return strings.Compare(a.Str, b.Str), true
	case KindBool:
		switch {
		case a.Bool == b.Bool:
			return 0, true
		case !a.Bool:
			return -1, true
		default:
			return 1, true
		}
	}
	return 0, false
}

// Add combines two values. Numbers add, texts concatenate, booleans or.
// Any other pairing yields nil.
func Add(a, b Value) Value {
	if a.Kind != b.Kind {
		return Nil()
	}
	switch a.Kind {
	case KindNumber:
		return Number(a.Num + b.Num)
	case KindText:
		return Text(a.Str + b.Str)
	case KindBool:
		return Bool(a.Bool || b.Bool)
	}
	return Nil()
}

// Subtract is defined for numbers only; anything else yields nil.
func Subtract(a, b Value) Value {
	if a.Kind == KindNumber && b.Kind == KindNumber {
		return Number(a.Num - b.Num)
	}
	return Nil()
}

// Multiply multiplies numbers and ands booleans; anything else yields nil.
func Multiply(a, b Value) Value {
	if a.Kind != b.Kind {
		return Nil()
	}
	switch a.Kind {
	case KindNumber:
		return Number(a.Num * b.Num)
	case KindBool:
		return Bool(a.Bool && b.Bool)
	}
	return Nil()
}

// Divide is defined for numbers only. Division by zero follows IEEE 754.
func Divide(a, b Value) Value {
	if a.Kind == KindNumber && b.Kind == KindNumber {
		return Number(a.Num / b.Num)
	}
	return Nil()
}

// Negate flips the sign of a number or the truth of a boolean.
func Negate(v Value) Value {
	switch v.Kind {
	case KindNumber:
		return Number(-v.Num)
	case KindBool:
		return Bool(!v.Bool)
	}
	return Nil()
}

// Truthy coerces a value to a boolean: nil is false, booleans pass
// through, everything else is true.
func Truthy(v Value) bool {
	switch v.Kind {
	case KindNil:
		return false
	case KindBool:
		return v.Bool
	}
	return true
}

// String formats the value as a program would print it.
func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case KindText:
		return v.Str
	case KindBool:
		return strconv.FormatBool(v.Bool)
	}
	return "nil"
}

// GoString formats the value with its variant, e.g. Number(5).
func (v Value) GoString() string {
	switch v.Kind {
	case KindNumber:
		return "Number(" + strconv.FormatFloat(v.Num, 'g', -1, 64) + ")"
	case KindText:
		return "Text(" + strconv.Quote(v.Str) + ")"
	case KindBool:
		return "Bool(" + strconv.FormatBool(v.Bool) + ")"
	}
	return "Nil"
}
