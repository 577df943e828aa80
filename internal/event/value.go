package event

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Kind identifies the variant held by a Value.
// Params: none.
// Returns: enum value for the tagged union.
type Kind uint8

const (
	// KindNull is an absent or JSON null value.
	KindNull Kind = iota
	// KindString is a text value.
	KindString
	// KindInt is an integral number.
	KindInt
	// KindFloat is a non-integral or explicitly fractional number.
	KindFloat
	// KindBool is a boolean value.
	KindBool
	// KindMap is a nested ordered mapping.
	KindMap
	// KindList is a sequence of values.
	KindList
)

// String returns the lower-case kind name.
// Params: none.
// Returns: kind name used in logs.
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
	case KindMap:
		return "map"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

// Value is one event field value: string, number, bool, mapping, sequence, or null.
// Params: constructed through String/Int/Float/Bool/MapValue/List/Null helpers.
// Returns: immutable tagged value.
type Value struct {
	kind Kind
	str  string
	num  int64
	flt  float64
	flag bool
	m    *Map
	list []Value
}

// Null returns the null value.
func Null() Value { return Value{kind: KindNull} }

// String wraps text.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Int wraps an integral number.
func Int(n int64) Value { return Value{kind: KindInt, num: n} }

// Float wraps a floating-point number.
func Float(f float64) Value { return Value{kind: KindFloat, flt: f} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, flag: b} }

// MapValue wraps a nested mapping; nil becomes an empty map.
func MapValue(m *Map) Value {
	if m == nil {
		m = NewMap()
	}
	return Value{kind: KindMap, m: m}
}

// List wraps a sequence of values.
func List(items ...Value) Value {
	copied := make([]Value, len(items))
	copy(copied, items)
	return Value{kind: KindList, list: copied}
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// Map returns the nested mapping when v is a map.
func (v Value) Map() (*Map, bool) {
	if v.kind != KindMap {
		return nil, false
	}
	return v.m, true
}

// Text returns the raw string when v is a string.
func (v Value) Text() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// IntValue returns the integer when v is an int.
func (v Value) IntValue() (int64, bool) {
	if v.kind != KindInt {
		return 0, false
	}
	return v.num, true
}

// Number returns the numeric value for int and float kinds.
// Params: none.
// Returns: float64 value and true for numeric kinds.
func (v Value) Number() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.num), true
	case KindFloat:
		return v.flt, true
	default:
		return 0, false
	}
}

// String renders v as text the way field references are substituted into templates.
// Params: none.
// Returns: strings verbatim, numbers in their native text, lists comma-joined, maps as JSON.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt:
		return strconv.FormatInt(v.num, 10)
	case KindFloat:
		return FormatFloat(v.flt)
	case KindBool:
		return strconv.FormatBool(v.flag)
	case KindList:
		parts := make([]string, 0, len(v.list))
		for _, item := range v.list {
			parts = append(parts, item.String())
		}
		return strings.Join(parts, ",")
	case KindMap:
		var builder strings.Builder
		writeJSON(&builder, v)
		return builder.String()
	default:
		return ""
	}
}

// FormatFloat renders a float in float text form, always keeping a fractional part.
// Params: f value to render.
// Returns: text such as "42.0", "0.25", "NaN" or "+Inf".
func FormatFloat(f float64) string {
	if math.IsNaN(f) {
		return "NaN"
	}
	if math.IsInf(f, 1) {
		return "+Inf"
	}
	if math.IsInf(f, -1) {
		return "-Inf"
	}
	text := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(text, ".eE") {
		text += ".0"
	}
	return text
}

// writeJSON serializes v into builder keeping map key order.
// Params: builder destination; v value to encode.
// Returns: none.
func writeJSON(builder *strings.Builder, v Value) {
	switch v.kind {
	case KindNull:
		builder.WriteString("null")
	case KindString:
		encoded, _ := json.Marshal(v.str)
		builder.Write(encoded)
	case KindInt, KindBool:
		builder.WriteString(v.String())
	case KindFloat:
		if math.IsNaN(v.flt) || math.IsInf(v.flt, 0) {
			builder.WriteString("null")
			return
		}
		builder.WriteString(FormatFloat(v.flt))
	case KindList:
		builder.WriteByte('[')
		for idx, item := range v.list {
			if idx > 0 {
				builder.WriteByte(',')
			}
			writeJSON(builder, item)
		}
		builder.WriteByte(']')
	case KindMap:
		builder.WriteByte('{')
		first := true
		v.m.Range(func(key string, item Value) bool {
			if !first {
				builder.WriteByte(',')
			}
			first = false
			encoded, _ := json.Marshal(key)
			builder.Write(encoded)
			builder.WriteByte(':')
			writeJSON(builder, item)
			return true
		})
		builder.WriteByte('}')
	}
}
