package filter

import (
	"fmt"
	"math"
	"strconv"
)

// Kind tags a metadata value as numeric or textual.
type Kind int

const (
	KindNumeric Kind = iota + 1
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindText:
		return "text"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a tagged metadata value. The tag decides which EAV table a
// constraint is compiled against.
type Value struct {
	kind Kind
	num  float64
	text string
}

// Number returns a numeric Value.
func Number(f float64) Value { return Value{kind: KindNumeric, num: f} }

// Text returns a textual Value.
func Text(s string) Value { return Value{kind: KindText, text: s} }

// ValueOf converts a Go value to a tagged Value. Strings are textual, Go
// integer and float types are numeric; anything else is rejected.
func ValueOf(v any) (Value, error) {
	switch x := v.(type) {
	case Value:
		return x, nil
	case string:
		return Text(x), nil
	case float64:
		return Number(x), nil
	case float32:
		return Number(float64(x)), nil
	case int:
		return Number(float64(x)), nil
	case int8:
		return Number(float64(x)), nil
	case int16:
		return Number(float64(x)), nil
	case int32:
		return Number(float64(x)), nil
	case int64:
		return Number(float64(x)), nil
	case uint:
		return Number(float64(x)), nil
	case uint8:
		return Number(float64(x)), nil
	case uint16:
		return Number(float64(x)), nil
	case uint32:
		return Number(float64(x)), nil
	case uint64:
		return Number(float64(x)), nil
	}
	return Value{}, fmt.Errorf("%w: %T is neither numeric nor text", ErrInvalidValue, v)
}

// Kind reports the value's tag. The zero Value has kind 0.
func (v Value) Kind() Kind { return v.kind }

// Float returns the numeric payload.
func (v Value) Float() float64 { return v.num }

// String returns the text payload for textual values and a formatted number
// otherwise.
func (v Value) String() string {
	if v.kind == KindNumeric {
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	}
	return v.text
}

// Arg returns the value as a driver argument.
func (v Value) Arg() any {
	if v.kind == KindNumeric {
		return v.num
	}
	return v.text
}

func (v Value) valid() bool {
	switch v.kind {
	case KindNumeric:
		return !math.IsNaN(v.num)
	case KindText:
		return true
	}
	return false
}
