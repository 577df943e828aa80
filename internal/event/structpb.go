package event

import (
	"math"
	"sort"

	"google.golang.org/protobuf/types/known/structpb"
)

// FromStruct converts a protobuf Struct into an event.
// Params: s protobuf struct payload; nil yields an empty event.
// Returns: event with keys sorted, since protobuf maps carry no order.
func FromStruct(s *structpb.Struct) *Event {
	return FromMap(mapFromFields(s.GetFields()))
}

func mapFromFields(fields map[string]*structpb.Value) *Map {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := NewMap()
	for _, key := range keys {
		out.Set(key, fromProtoValue(fields[key]))
	}
	return out
}

// fromProtoValue converts one protobuf value; integral doubles become Int.
// Params: value protobuf value.
// Returns: tagged event value.
func fromProtoValue(value *structpb.Value) Value {
	switch kind := value.GetKind().(type) {
	case *structpb.Value_StringValue:
		return String(kind.StringValue)
	case *structpb.Value_BoolValue:
		return Bool(kind.BoolValue)
	case *structpb.Value_NumberValue:
		n := kind.NumberValue
		if n == math.Trunc(n) && math.Abs(n) < 1<<53 {
			return Int(int64(n))
		}
		return Float(n)
	case *structpb.Value_StructValue:
		return MapValue(mapFromFields(kind.StructValue.GetFields()))
	case *structpb.Value_ListValue:
		items := make([]Value, 0, len(kind.ListValue.GetValues()))
		for _, item := range kind.ListValue.GetValues() {
			items = append(items, fromProtoValue(item))
		}
		return Value{kind: KindList, list: items}
	default:
		return Null()
	}
}
