package event

// Map is an insertion-ordered mapping of field names to values.
// Params: built with NewMap and Set.
// Returns: ordered field container shared by events and nested values.
type Map struct {
	keys   []string
	values map[string]Value
}

// NewMap creates an empty ordered map.
// Params: none.
// Returns: empty map ready for Set.
func NewMap() *Map {
	return &Map{values: make(map[string]Value)}
}

// Set stores value under key; an existing key keeps its original position.
// Params: key field name; value field value.
// Returns: none.
func (m *Map) Set(key string, value Value) {
	if m.values == nil {
		m.values = make(map[string]Value)
	}
	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get returns the value stored under key.
// Params: key field name.
// Returns: value and presence flag.
func (m *Map) Get(key string) (Value, bool) {
	if m == nil {
		return Value{}, false
	}
	value, ok := m.values[key]
	return value, ok
}

// Keys returns field names in insertion order.
// Params: none.
// Returns: copied key slice.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	keys := make([]string, len(m.keys))
	copy(keys, m.keys)
	return keys
}

// Len returns the number of fields.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Range calls fn for each field in order until fn returns false.
// Params: fn visitor receiving key and value.
// Returns: none.
func (m *Map) Range(fn func(key string, value Value) bool) {
	if m == nil {
		return
	}
	for _, key := range m.keys {
		if !fn(key, m.values[key]) {
			return
		}
	}
}
