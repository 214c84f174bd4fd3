package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Value is an optional numeric measurement or bound.
// Params: present flag and float payload.
// Returns: explicit Present(v) | Absent sum type without sentinel numbers.
type Value struct {
	v       float64
	present bool
}

// Present wraps one known numeric value.
// Params: numeric payload.
// Returns: present value.
func Present(v float64) Value {
	return Value{v: v, present: true}
}

// Absent returns missing value marker.
// Params: none.
// Returns: absent value.
func Absent() Value {
	return Value{}
}

// FromPtr converts nullable pointer into Value.
// Params: optional float pointer (nil means absent).
// Returns: present or absent value.
func FromPtr(p *float64) Value {
	if p == nil {
		return Absent()
	}
	return Present(*p)
}

// Get returns payload and presence flag.
// Params: none.
// Returns: numeric payload and true when present.
func (v Value) Get() (float64, bool) {
	return v.v, v.present
}

// IsPresent reports whether value is set.
func (v Value) IsPresent() bool {
	return v.present
}

// Or returns payload or fallback when absent.
func (v Value) Or(fallback float64) float64 {
	if !v.present {
		return fallback
	}
	return v.v
}

// String renders value for logs.
func (v Value) String() string {
	if !v.present {
		return "absent"
	}
	return strconv.FormatFloat(v.v, 'f', -1, 64)
}

// MarshalJSON encodes absent values as null.
// Params: none.
// Returns: JSON number or null.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.present {
		return []byte("null"), nil
	}
	return json.Marshal(v.v)
}

// UnmarshalJSON decodes JSON number or null.
// Params: raw JSON token.
// Returns: decode error for non-numeric payloads.
func (v *Value) UnmarshalJSON(raw []byte) error {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		*v = Absent()
		return nil
	}
	var number float64
	if err := json.Unmarshal(raw, &number); err != nil {
		return fmt.Errorf("decode value: %w", err)
	}
	*v = Present(number)
	return nil
}
