package graphite

import "graphout/internal/event"

type flattenFrame struct {
	fields *event.Map
	prefix string
	keys   []string
	next   int
}

// Flatten converts a nested mapping into dotted-path scalar leaves.
// Params: fields nested mapping; prefix path prepended to every key (empty for none).
// Returns: ordered flat map; list and null entries are dropped at every depth.
func Flatten(fields *event.Map, prefix string) *event.Map {
	out := event.NewMap()
	if fields == nil {
		return out
	}

	stack := []*flattenFrame{{fields: fields, prefix: prefix, keys: fields.Keys()}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if top.next >= len(top.keys) {
			stack = stack[:len(stack)-1]
			continue
		}

		key := top.keys[top.next]
		top.next++

		value, _ := top.fields.Get(key)
		path := joinPath(top.prefix, key)

		switch value.Kind() {
		case event.KindMap:
			nested, _ := value.Map()
			stack = append(stack, &flattenFrame{fields: nested, prefix: path, keys: nested.Keys()})
		case event.KindList, event.KindNull:
			continue
		default:
			out.Set(path, value)
		}
	}

	return out
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
