package claim

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Record is a merged claim in its canonical JSON-shaped form.
type Record map[string]any

// NewRecord returns a record with all six sections set to empty containers.
func NewRecord() Record {
	r := make(Record, len(Sections))
	for _, s := range Sections {
		k, _ := KindOf(s)
		r[s] = k.Empty()
	}
	return r
}

// Object returns the object section, creating it if it is missing or not an object.
func (r Record) Object(section string) map[string]any {
	if m, ok := r[section].(map[string]any); ok {
		return m
	}
	m := map[string]any{}
	r[section] = m
	return m
}

// List returns the list section, or nil if it is missing or not a list.
func (r Record) List(section string) []any {
	l, _ := r[section].([]any)
	return l
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = DeepCopy(v)
	}
	return out
}

// Typed decodes the record into its typed view.
func (r Record) Typed() (*Claim, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	var c Claim
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return &c, nil
}

// RecordFromJSON decodes a stored record and fills in any missing sections.
func RecordFromJSON(data []byte) (Record, error) {
	r := NewRecord()
	if len(data) == 0 {
		return r, nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	for _, s := range Sections {
		if v, ok := m[s]; ok && v != nil {
			r[s] = v
		}
	}
	return r, nil
}

// DeepCopy copies JSON-shaped values (maps, slices, scalars).
func DeepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = DeepCopy(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = DeepCopy(val)
		}
		return out
	default:
		return v
	}
}

// Truthy reports whether a JSON value counts as present: nil, false, zero,
// the empty string and empty containers do not.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case json.Number:
		f, err := t.Float64()
		return t != "" && (err != nil || f != 0)
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}

// Equal reports whether two decoded JSON values are equal. Numbers compare
// by value, so json.Number("1") equals json.Number("1.0") and float64(1).
func Equal(a, b any) bool {
	if x, ok := numeric(a); ok {
		y, ok := numeric(b)
		return ok && x == y
	}
	switch at := a.(type) {
	case map[string]any:
		bt, ok := b.(map[string]any)
		if !ok || len(at) != len(bt) {
			return false
		}
		for k, v := range at {
			w, ok := bt[k]
			if !ok || !Equal(v, w) {
				return false
			}
		}
		return true
	case []any:
		bt, ok := b.([]any)
		if !ok || len(at) != len(bt) {
			return false
		}
		for i := range at {
			if !Equal(at[i], bt[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

func numeric(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	}
	return 0, false
}
