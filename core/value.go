package core

import (
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindDate
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindDate:
		return "date"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Value is a single front matter value: a scalar, a date, a list or a nested mapping.
// The zero Value is null.
type Value struct {
	kind Kind
	str  string
	num  int64
	flt  float64
	bln  bool
	date time.Time
	list []Value
	fm   *FrontMatter
}

func NullValue() Value               { return Value{} }
func StringValue(s string) Value     { return Value{kind: KindString, str: s} }
func IntValue(n int64) Value         { return Value{kind: KindInt, num: n} }
func FloatValue(f float64) Value     { return Value{kind: KindFloat, flt: f} }
func BoolValue(b bool) Value         { return Value{kind: KindBool, bln: b} }
func DateValue(t time.Time) Value    { return Value{kind: KindDate, date: t} }
func ListValue(items ...Value) Value { return Value{kind: KindList, list: items} }

// MapValue wraps a nested mapping. A nil mapping is stored as an empty one.
func MapValue(fm *FrontMatter) Value {
	if fm == nil {
		fm = NewFrontMatter()
	}
	return Value{kind: KindMap, fm: fm}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) AsString() (string, bool)  { return v.str, v.kind == KindString }
func (v Value) AsInt() (int64, bool)      { return v.num, v.kind == KindInt }
func (v Value) AsBool() (bool, bool)      { return v.bln, v.kind == KindBool }
func (v Value) AsDate() (time.Time, bool) { return v.date, v.kind == KindDate }

// AsFloat returns the numeric value of int and float values.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.flt, true
	case KindInt:
		return float64(v.num), true
	}
	return 0, false
}

// AsList returns a copy of the list items.
func (v Value) AsList() ([]Value, bool) {
	if v.kind != KindList {
		return nil, false
	}
	out := make([]Value, len(v.list))
	copy(out, v.list)
	return out, true
}

// AsMap returns a copy of the nested mapping.
func (v Value) AsMap() (*FrontMatter, bool) {
	if v.kind != KindMap {
		return nil, false
	}
	return v.fm.Clone(), true
}

// AsStrings returns the items of a list whose items are all strings.
func (v Value) AsStrings() ([]string, bool) {
	if v.kind != KindList {
		return nil, false
	}
	out := make([]string, 0, len(v.list))
	for _, item := range v.list {
		s, ok := item.AsString()
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

// Interface converts the value to plain Go values: nil, string, int64, float64,
// bool, time.Time, []any or map[string]any.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt:
		return v.num
	case KindFloat:
		return v.flt
	case KindBool:
		return v.bln
	case KindDate:
		return v.date
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Interface()
		}
		return out
	case KindMap:
		return v.fm.Map()
	default:
		return nil
	}
}

func (v Value) clone() Value {
	switch v.kind {
	case KindList:
		items := make([]Value, len(v.list))
		for i, item := range v.list {
			items[i] = item.clone()
		}
		v.list = items
	case KindMap:
		v.fm = v.fm.Clone()
	}
	return v
}

// canonical converts the value into something encoding/json renders deterministically.
func (v Value) canonical() any {
	switch v.kind {
	case KindFloat:
		if math.IsNaN(v.flt) || math.IsInf(v.flt, 0) {
			return strconv.FormatFloat(v.flt, 'g', -1, 64)
		}
		return v.flt
	case KindDate:
		return FormatDate(v.date)
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.canonical()
		}
		return out
	case KindMap:
		out := make(map[string]any, v.fm.Len())
		for _, key := range v.fm.keys {
			out[key] = v.fm.values[key].canonical()
		}
		return out
	default:
		return v.Interface()
	}
}

// FormatDate renders a date as YYYY-MM-DD when it carries no time of day, and as
// RFC 3339 otherwise.
func FormatDate(t time.Time) string {
	if t.Location() == time.UTC && t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(time.DateOnly)
	}
	return t.Format(time.RFC3339Nano)
}

// ParseDate accepts YYYY-MM-DD and RFC 3339 timestamps.
func ParseDate(s string) (time.Time, bool) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// FrontMatter is an ordered mapping of header keys to values. Key order follows
// the source document.
type FrontMatter struct {
	keys   []string
	values map[string]Value
}

func NewFrontMatter() *FrontMatter {
	return &FrontMatter{values: make(map[string]Value)}
}

// Set stores a value. New keys are appended; existing keys keep their position.
func (fm *FrontMatter) Set(key string, v Value) {
	if _, exists := fm.values[key]; !exists {
		fm.keys = append(fm.keys, key)
	}
	fm.values[key] = v
}

func (fm *FrontMatter) Get(key string) (Value, bool) {
	if fm == nil {
		return Value{}, false
	}
	v, ok := fm.values[key]
	return v, ok
}

// GetString returns the value for key when it is a string.
func (fm *FrontMatter) GetString(key string) (string, bool) {
	v, ok := fm.Get(key)
	if !ok {
		return "", false
	}
	return v.AsString()
}

// GetStrings returns the value for key when it is a list of strings.
func (fm *FrontMatter) GetStrings(key string) ([]string, bool) {
	v, ok := fm.Get(key)
	if !ok {
		return nil, false
	}
	return v.AsStrings()
}

// Keys returns the keys in document order.
func (fm *FrontMatter) Keys() []string {
	if fm == nil {
		return nil
	}
	out := make([]string, len(fm.keys))
	copy(out, fm.keys)
	return out
}

func (fm *FrontMatter) Len() int {
	if fm == nil {
		return 0
	}
	return len(fm.keys)
}

// Clone returns a deep copy.
func (fm *FrontMatter) Clone() *FrontMatter {
	out := NewFrontMatter()
	if fm == nil {
		return out
	}
	for _, key := range fm.keys {
		out.Set(key, fm.values[key].clone())
	}
	return out
}

// Map converts the mapping to plain Go values. Key order is lost.
func (fm *FrontMatter) Map() map[string]any {
	out := make(map[string]any, fm.Len())
	if fm == nil {
		return out
	}
	for _, key := range fm.keys {
		out[key] = fm.values[key].Interface()
	}
	return out
}

// Canonical returns a key-order independent JSON rendering used for fingerprinting.
func (fm *FrontMatter) Canonical() []byte {
	// Every canonical value is a JSON-safe type, so Marshal cannot fail here.
	b, _ := json.Marshal(MapValue(fm).canonical())
	return b
}
