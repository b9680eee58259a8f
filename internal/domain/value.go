package domain

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
)

// ValueKind tags the concrete type held by a Value.
type ValueKind uint8

const (
	KindUndefined ValueKind = iota
	KindNull
	KindBool
	KindNumber
	KindString
	KindObject
)

func (k ValueKind) String() string {
	switch k {
	case KindUndefined:
		return "undefined"
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindObject:
		return "object"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Value is a feature flag value: a boolean, number, string or JSON object/array.
// The zero Value is undefined, which is distinct from an explicit JSON null.
type Value struct {
	kind ValueKind
	b    bool
	n    float64
	s    string
	obj  json.RawMessage
}

func Bool(b bool) Value { return Value{kind: KindBool, b: b} }
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }
func String(s string) Value { return Value{kind: KindString, s: s} }
func Null() Value { return Value{kind: KindNull} }
func Undefined() Value { return Value{} }
func (v Value) Kind() ValueKind { return v.kind }

// Object wraps an already encoded JSON object or array.
func Object(raw json.RawMessage) Value {
	return Value{kind: KindObject, obj: append(json.RawMessage(nil), raw...)}
}

// IsDefined reports whether the value was set, including to null.
func (v Value) IsDefined() bool {
	return v.kind != KindUndefined
}

// Truthy coerces the value for gating decisions.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n != 0 && !math.IsNaN(v.n)
	case KindString:
		return v.s != ""
	case KindObject:
		return true
	default:
		return false
	}
}

// Interface returns the value as a plain Go value suitable for generic JSON encoding.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindObject:
		return v.obj
	default:
		return nil
	}
}

// Equal compares kind and content. Objects compare by their compacted encoding.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindBool:
		return v.b == other.b
	case KindNumber:
		return v.n == other.n
	case KindString:
		return v.s == other.s
	case KindObject:
		var a, b bytes.Buffer
		if json.Compact(&a, v.obj) != nil || json.Compact(&b, other.obj) != nil {
			return bytes.Equal(v.obj, other.obj)
		}
		return bytes.Equal(a.Bytes(), b.Bytes())
	}
	return true
}

func (v Value) String() string {
	b, err := v.MarshalJSON()
	if err != nil {
		return v.kind.String()
	}
	return string(b)
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindBool:
		return json.Marshal(v.b)
	case KindNumber:
		if math.IsNaN(v.n) || math.IsInf(v.n, 0) {
			return nil, fmt.Errorf("feature flag value: unsupported number %v", v.n)
		}
		return json.Marshal(v.n)
	case KindString:
		return json.Marshal(v.s)
	case KindObject:
		return v.obj, nil
	default:
		return []byte("null"), nil
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		*v = Undefined()
		return nil
	}

	switch data[0] {
	case 'n':
		*v = Null()
		return nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = Bool(b)
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = String(s)
	case '{', '[':
		if !json.Valid(data) {
			return fmt.Errorf("feature flag value: invalid JSON object")
		}
		*v = Object(data)
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("feature flag value: %w", err)
		}
		*v = Number(n)
	}
	return nil
}

// Scan implements sql.Scanner for jsonb columns.
func (v *Value) Scan(src any) error {
	switch data := src.(type) {
	case nil:
		*v = Undefined()
		return nil
	case []byte:
		return v.UnmarshalJSON(data)
	case string:
		return v.UnmarshalJSON([]byte(data))
	default:
		return fmt.Errorf("feature flag value: cannot scan %T", src)
	}
}

// Value implements driver.Valuer. Undefined is stored as SQL NULL.
func (v Value) Value() (driver.Value, error) {
	if !v.IsDefined() {
		return nil, nil
	}
	b, err := v.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// ValueMap maps a plan level, user id or tenant id to a flag value.
type ValueMap map[string]Value

// Lookup returns the value stored under key only when it is defined.
func (m ValueMap) Lookup(key string) (Value, bool) {
	if key == "" || m == nil {
		return Value{}, false
	}
	v, ok := m[key]
	if !ok || !v.IsDefined() {
		return Value{}, false
	}
	return v, true
}

// Clone returns a shallow copy; Values are immutable so this is a full copy.
func (m ValueMap) Clone() ValueMap {
	out := make(ValueMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
