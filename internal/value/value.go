// Package value implements the recursive tagged-variant tree the
// configuration resolver walks: Null | Bool | Int | Float | String | List |
// Map. It mirrors the dynamically-typed config snapshots (arbitrary JSON)
// the backend persists, giving the resolver a single type to pattern-match
// over instead of threading `any` through every substitution step.
package value

import (
	"bytes"
	"encoding/json"
)

// Kind tags which variant a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindMap
)

// Value is a recursive variant over the shapes a config snapshot can take.
// Exactly one of the typed fields is meaningful, selected by Kind.
type Value struct {
	Kind  Kind
	Bool  bool
	Int   int64
	Float float64
	Str   string
	List  []Value
	Map   map[string]Value
}

func Null() Value                  { return Value{Kind: KindNull} }
func Bool(b bool) Value            { return Value{Kind: KindBool, Bool: b} }
func Int(i int64) Value            { return Value{Kind: KindInt, Int: i} }
func Float(f float64) Value        { return Value{Kind: KindFloat, Float: f} }
func String(s string) Value        { return Value{Kind: KindString, Str: s} }
func List(items []Value) Value     { return Value{Kind: KindList, List: items} }
func Map(m map[string]Value) Value { return Value{Kind: KindMap, Map: m} }

// IsNull reports whether v is the null variant.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// FromAny converts a decoded JSON value (as produced by encoding/json's
// default unmarshal into `any`) into a Value tree.
func FromAny(in any) Value {
	switch t := in.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Int(i)
		}
		f, _ := t.Float64()
		return Float(f)
	case float64:
		if t == float64(int64(t)) {
			return Int(int64(t))
		}
		return Float(t)
	case int:
		return Int(int64(t))
	case int64:
		return Int(t)
	case string:
		return String(t)
	case []any:
		items := make([]Value, len(t))
		for i, elem := range t {
			items[i] = FromAny(elem)
		}
		return List(items)
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, elem := range t {
			m[k] = FromAny(elem)
		}
		return Map(m)
	default:
		return Null()
	}
}

// ToAny converts a Value tree back into the plain `any` shape suitable for
// json.Marshal.
func (v Value) ToAny() any {
	switch v.Kind {
	case KindNull:
		return nil
	case KindBool:
		return v.Bool
	case KindInt:
		return v.Int
	case KindFloat:
		return v.Float
	case KindString:
		return v.Str
	case KindList:
		out := make([]any, len(v.List))
		for i, item := range v.List {
			out[i] = item.ToAny()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.Map))
		for k, item := range v.Map {
			out[k] = item.ToAny()
		}
		return out
	default:
		return nil
	}
}

// ParseJSON decodes raw JSON text into a Value tree, using json.Number so
// integer-valued fields round-trip without floating-point drift.
func ParseJSON(raw []byte) (Value, error) {
	if len(raw) == 0 {
		return Map(map[string]Value{}), nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var decoded any
	if err := dec.Decode(&decoded); err != nil {
		return Value{}, err
	}
	return FromAny(decoded), nil
}

// MarshalJSON renders the Value tree back to JSON text.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.ToAny())
}
