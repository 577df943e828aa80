// Package event models pipeline events as ordered field maps with tagged-union values.
package event

import "strings"

// Event is one pipeline record: ordered top-level fields.
// Params: built with New/FromMap or the decoders in this package.
// Returns: read-only view for output adapters.
type Event struct {
	fields *Map
}

// New creates an empty event.
func New() *Event {
	return &Event{fields: NewMap()}
}

// FromMap wraps an ordered map as an event without copying.
// Params: fields top-level field map; nil yields an empty event.
// Returns: event backed by fields.
func FromMap(fields *Map) *Event {
	if fields == nil {
		fields = NewMap()
	}
	return &Event{fields: fields}
}

// Set stores a top-level field.
func (e *Event) Set(name string, value Value) {
	e.fields.Set(name, value)
}

// Get returns a top-level field by exact name.
func (e *Event) Get(name string) (Value, bool) {
	if e == nil {
		return Value{}, false
	}
	return e.fields.Get(name)
}

// Keys returns top-level field names in event order.
func (e *Event) Keys() []string {
	if e == nil {
		return nil
	}
	return e.fields.Keys()
}

// Fields exposes the ordered top-level map.
func (e *Event) Fields() *Map {
	if e == nil {
		return nil
	}
	return e.fields
}

// Lookup resolves a field reference.
// Params: ref is a plain field name ("foo", "@host") or a nested reference ("[foo][bar]").
// Returns: referenced value and presence flag.
func (e *Event) Lookup(ref string) (Value, bool) {
	path, nested := parseReference(ref)
	if !nested {
		return e.Get(ref)
	}

	current, ok := e.Get(path[0])
	if !ok {
		return Value{}, false
	}
	for _, segment := range path[1:] {
		inner, isMap := current.Map()
		if !isMap {
			return Value{}, false
		}
		current, ok = inner.Get(segment)
		if !ok {
			return Value{}, false
		}
	}
	return current, true
}

// parseReference splits "[a][b]" references into segments.
// Params: ref raw reference text.
// Returns: path segments and true when ref uses bracket syntax.
func parseReference(ref string) ([]string, bool) {
	if len(ref) < 3 || ref[0] != '[' || ref[len(ref)-1] != ']' {
		return nil, false
	}
	segments := strings.Split(ref[1:len(ref)-1], "][")
	for _, segment := range segments {
		if segment == "" {
			return nil, false
		}
	}
	return segments, true
}
