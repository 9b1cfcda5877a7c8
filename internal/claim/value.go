package claim

import (
	"encoding/json"
	"strconv"
)

// Value holds one extracted field exactly as the model returned it.
// The model is free to answer with a string, number, bool, list or null,
// so fields stay untyped and callers ask for the form they need.
type Value struct {
	raw any
	set bool
}

// NewValue wraps a JSON-shaped value.
func NewValue(v any) Value {
	return Value{raw: v, set: true}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var x any
	if err := json.Unmarshal(data, &x); err != nil {
		return err
	}
	v.raw = x
	v.set = true
	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.raw)
}

// IsZero reports whether the field was absent.
func (v Value) IsZero() bool { return !v.set }

// IsSet reports whether the key was present, even with a null value.
func (v Value) IsSet() bool { return v.set }

// Truthy reports whether the field holds a non-empty value.
func (v Value) Truthy() bool { return v.set && Truthy(v.raw) }

// Raw returns the underlying JSON value.
func (v Value) Raw() any { return v.raw }

// Text returns the value if it is a string.
func (v Value) Text() (string, bool) {
	s, ok := v.raw.(string)
	return s, ok
}

// String renders the value for display. Absent and null values render empty.
func (v Value) String() string {
	switch t := v.raw.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(data)
	}
}
