package event

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

// TestDecodeJSON_PreservesFieldOrderAndNumberKinds verifies ordered decoding and int/float split.
// Params: testing.T for assertions.
// Returns: none.
func TestDecodeJSON_PreservesFieldOrderAndNumberKinds(t *testing.T) {
	ev, err := DecodeJSON([]byte(`{"zeta":1,"alpha":2.5,"mid":{"b":3,"a":"x"},"list":[1,2],"nil":null,"ok":true}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"zeta", "alpha", "mid", "list", "nil", "ok"}, ev.Keys())

	zeta, ok := ev.Get("zeta")
	require.True(t, ok)
	assert.Equal(t, KindInt, zeta.Kind())

	alpha, _ := ev.Get("alpha")
	assert.Equal(t, KindFloat, alpha.Kind())

	mid, _ := ev.Get("mid")
	nested, ok := mid.Map()
	require.True(t, ok)
	assert.Equal(t, []string{"b", "a"}, nested.Keys())

	list, _ := ev.Get("list")
	assert.Equal(t, KindList, list.Kind())

	null, _ := ev.Get("nil")
	assert.Equal(t, KindNull, null.Kind())
}

// TestDecodeJSON_RejectsNonObjectRoot verifies root shape validation.
// Params: testing.T for assertions.
// Returns: none.
func TestDecodeJSON_RejectsNonObjectRoot(t *testing.T) {
	_, err := DecodeJSON([]byte(`[1,2]`))
	require.Error(t, err)

	_, err = DecodeJSON([]byte(`{"a":1} {"b":2}`))
	require.Error(t, err)

	_, err = DecodeJSON([]byte(`{"a":`))
	require.Error(t, err)
}

// TestDecodeJSONStream_AcceptsNDJSONAndArrays verifies multi-event payload forms.
// Params: testing.T for assertions.
// Returns: none.
func TestDecodeJSONStream_AcceptsNDJSONAndArrays(t *testing.T) {
	payload := "{\"a\":1}\n{\"b\":2}\n[{\"c\":3},{\"d\":4}]\n"

	var names []string
	count, err := DecodeJSONStream(strings.NewReader(payload), func(ev *Event) error {
		names = append(names, ev.Keys()[0])
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 4, count)
	assert.Equal(t, []string{"a", "b", "c", "d"}, names)
}

// TestDecodeJSONStream_StopsOnCallbackError verifies callback errors are returned.
// Params: testing.T for assertions.
// Returns: none.
func TestDecodeJSONStream_StopsOnCallbackError(t *testing.T) {
	stop := errors.New("stop")
	count, err := DecodeJSONStream(strings.NewReader(`{"a":1}{"b":2}`), func(*Event) error {
		return stop
	})
	require.ErrorIs(t, err, stop)
	assert.Equal(t, 0, count)

	_, err = DecodeJSONStream(strings.NewReader(`42`), func(*Event) error { return nil })
	require.Error(t, err)
}

// TestEventLookup_NestedReferences verifies [a][b] references.
// Params: testing.T for assertions.
// Returns: none.
func TestEventLookup_NestedReferences(t *testing.T) {
	ev, err := DecodeJSON([]byte(`{"@host":"web1","req":{"time":{"ms":12}}}`))
	require.NoError(t, err)

	host, ok := ev.Lookup("@host")
	require.True(t, ok)
	assert.Equal(t, "web1", host.String())

	ms, ok := ev.Lookup("[req][time][ms]")
	require.True(t, ok)
	assert.Equal(t, "12", ms.String())

	_, ok = ev.Lookup("[req][missing]")
	assert.False(t, ok)

	_, ok = ev.Lookup("[@host][x]")
	assert.False(t, ok)
}

// TestValueString_TextForms verifies template substitution text for every kind.
// Params: testing.T for assertions.
// Returns: none.
func TestValueString_TextForms(t *testing.T) {
	nested := NewMap()
	nested.Set("b", Int(1))
	nested.Set("a", String("x"))

	cases := []struct {
		value Value
		want  string
	}{
		{String("fancy"), "fancy"},
		{Int(42), "42"},
		{Float(42), "42.0"},
		{Float(0.25), "0.25"},
		{Bool(true), "true"},
		{List(Int(1), String("two")), "1,two"},
		{MapValue(nested), `{"b":1,"a":"x"}`},
		{Null(), ""},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.value.String())
	}
}

// TestMapSet_KeepsFirstPosition verifies overwrite keeps insertion order.
// Params: testing.T for assertions.
// Returns: none.
func TestMapSet_KeepsFirstPosition(t *testing.T) {
	m := NewMap()
	m.Set("a", Int(1))
	m.Set("b", Int(2))
	m.Set("a", Int(3))

	assert.Equal(t, []string{"a", "b"}, m.Keys())
	value, _ := m.Get("a")
	n, _ := value.IntValue()
	assert.Equal(t, int64(3), n)
}

// TestFromStruct_SortsKeysAndConvertsNumbers verifies protobuf Struct conversion.
// Params: testing.T for assertions.
// Returns: none.
func TestFromStruct_SortsKeysAndConvertsNumbers(t *testing.T) {
	payload, err := structpb.NewStruct(map[string]any{
		"load": 0.5,
		"foo":  float64(123),
		"host": "web1",
		"nested": map[string]any{
			"z": 1,
			"a": 2,
		},
		"tags": []any{"a", "b"},
	})
	require.NoError(t, err)

	ev := FromStruct(payload)
	assert.Equal(t, []string{"foo", "host", "load", "nested", "tags"}, ev.Keys())

	foo, _ := ev.Get("foo")
	assert.Equal(t, KindInt, foo.Kind())

	load, _ := ev.Get("load")
	assert.Equal(t, KindFloat, load.Kind())

	nested, _ := ev.Get("nested")
	inner, ok := nested.Map()
	require.True(t, ok)
	assert.Equal(t, []string{"a", "z"}, inner.Keys())

	tags, _ := ev.Get("tags")
	assert.Equal(t, "a,b", tags.String())
}
