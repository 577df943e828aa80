package graphite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func metricPaths(metrics []Metric) []string {
	out := make([]string, 0, len(metrics))
	for _, metric := range metrics {
		out = append(out, metric.Path)
	}
	return out
}

func fieldSettings(include, exclude []string, format string) Settings {
	return Settings{
		Host:             "localhost",
		Port:             2003,
		FieldsAreMetrics: true,
		IncludeMetrics:   include,
		ExcludeMetrics:   exclude,
		MetricsFormat:    format,
	}
}

// TestExtractExplicit_EmitsOnePerTemplate verifies explicit mode emits exactly one metric per pair.
// Params: testing.T for assertions.
// Returns: none.
func TestExtractExplicit_EmitsOnePerTemplate(t *testing.T) {
	extractor, err := NewExtractor(Settings{Metrics: []MetricTemplate{
		{Path: "hurray.%{foo}", Value: "%{bar}"},
		{Path: "absent.%{nope}", Value: "%{nothing}"},
		{Path: "static", Value: "1"},
	}})
	require.NoError(t, err)

	metrics := extractor.Extract(testEvent(t, `{"foo":"fancy","bar":42}`))
	require.Len(t, metrics, 3)
	assert.Equal(t, []string{"hurray.fancy", "absent.", "static"}, metricPaths(metrics))
	assert.Equal(t, "42", metrics[0].Value.String())
	assert.Equal(t, OriginTemplate, metrics[0].Origin)
	assert.Empty(t, metrics[0].Missing)
	assert.Equal(t, []string{"nope", "nothing"}, metrics[1].Missing)
	assert.Equal(t, "", metrics[1].Value.String())
}

// TestExtractExplicit_FlattenExplicitExpandsNamedMapping verifies opt-in nested expansion.
// Params: testing.T for assertions.
// Returns: none.
func TestExtractExplicit_FlattenExplicitExpandsNamedMapping(t *testing.T) {
	settings := Settings{Metrics: []MetricTemplate{{Path: "custom.foo", Value: "%{foo}"}}}
	ev := testEvent(t, `{"custom.foo":{"a":3,"c":{"d":2}},"foo":"7"}`)

	plain, err := NewExtractor(settings)
	require.NoError(t, err)
	assert.Equal(t, []string{"custom.foo"}, metricPaths(plain.Extract(ev)))

	settings.FlattenExplicit = true
	nested, err := NewExtractor(settings)
	require.NoError(t, err)
	metrics := nested.Extract(ev)
	assert.Equal(t, []string{"custom.foo.a", "custom.foo.c.d"}, metricPaths(metrics))
	assert.Equal(t, OriginLeaf, metrics[0].Origin)
}

// TestExtractFields_FilterAndFormat verifies include/exclude filtering and path formatting.
// Params: testing.T for assertions.
// Returns: none.
func TestExtractFields_FilterAndFormat(t *testing.T) {
	ev := testEvent(t, `{"@timestamp":"2024-01-01T00:00:00Z","@version":"1","@host":"web1","foo":"123","bar":"42","tags":["a"],"nothing":null}`)

	cases := []struct {
		name    string
		include []string
		exclude []string
		format  string
		want    []string
	}{
		{"match all", []string{".*"}, nil, "foo.bar.sys.data.*", []string{"foo.bar.sys.data.@host", "foo.bar.sys.data.foo", "foo.bar.sys.data.bar"}},
		{"include one", []string{"foo"}, nil, "%{@host}.*", []string{"web1.foo"}},
		{"exclude wins", []string{".*"}, []string{"^foo$", "@host"}, "*", []string{"bar"}},
		{"no wildcard uses bare name", []string{"^foo$"}, nil, "invalidformat", []string{"foo"}},
		{"no match", []string{"notmatchinganything"}, nil, "*", []string{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			extractor, err := NewExtractor(fieldSettings(tc.include, tc.exclude, tc.format))
			require.NoError(t, err)
			assert.Equal(t, tc.want, metricPaths(extractor.Extract(ev)))
		})
	}
}

// TestExtractFields_NeverEmitsMetadata verifies @timestamp and @version are always skipped.
// Params: testing.T for assertions.
// Returns: none.
func TestExtractFields_NeverEmitsMetadata(t *testing.T) {
	extractor, err := NewExtractor(fieldSettings([]string{"^@"}, nil, "*"))
	require.NoError(t, err)

	metrics := extractor.Extract(testEvent(t, `{"@timestamp":1700000000,"@version":"1","@load":1.5}`))
	assert.Equal(t, []string{"@load"}, metricPaths(metrics))
	assert.Equal(t, OriginField, metrics[0].Origin)
}

// TestExtractFields_FlattensNestedFields verifies nested mappings expand into dotted leaves.
// Params: testing.T for assertions.
// Returns: none.
func TestExtractFields_FlattensNestedFields(t *testing.T) {
	extractor, err := NewExtractor(fieldSettings([]string{"foo"}, nil, "foo.%{@host}.sys.data.*"))
	require.NoError(t, err)

	metrics := extractor.Extract(testEvent(t, `{"@host":"myhost","foo":{"a":3,"c":{"d":2},"l":[1,2]}}`))
	assert.Equal(t, []string{"foo.myhost.sys.data.foo.a", "foo.myhost.sys.data.foo.c.d"}, metricPaths(metrics))
	for _, metric := range metrics {
		assert.Equal(t, OriginLeaf, metric.Origin)
	}
}

// TestNewExtractor_RejectsInvalidRules verifies configuration errors for bad patterns and templates.
// Params: testing.T for assertions.
// Returns: none.
func TestNewExtractor_RejectsInvalidRules(t *testing.T) {
	_, err := NewExtractor(fieldSettings([]string{"("}, nil, "*"))
	require.ErrorIs(t, err, ErrConfiguration)

	_, err = NewExtractor(fieldSettings([]string{".*"}, []string{"["}, "*"))
	require.ErrorIs(t, err, ErrConfiguration)

	_, err = NewExtractor(fieldSettings([]string{".*"}, nil, "a.%{host.*"))
	require.ErrorIs(t, err, ErrConfiguration)

	_, err = NewExtractor(Settings{Metrics: []MetricTemplate{{Path: "", Value: "1"}}})
	require.ErrorIs(t, err, ErrConfiguration)

	_, err = NewExtractor(Settings{Metrics: []MetricTemplate{{Path: "a", Value: "%{"}}})
	require.ErrorIs(t, err, ErrConfiguration)
}

// TestSettingsValidate_MatchesConstructorChecks verifies Validate rejects what NewOutput rejects.
// Params: testing.T for assertions.
// Returns: none.
func TestSettingsValidate_MatchesConstructorChecks(t *testing.T) {
	valid := fieldSettings([]string{".*"}, nil, "*")
	require.NoError(t, valid.Validate())

	invalid := valid
	invalid.ExcludeMetrics = []string{"("}
	require.ErrorIs(t, invalid.Validate(), ErrConfiguration)

	invalid = valid
	invalid.Port = 0
	require.ErrorIs(t, invalid.Validate(), ErrConfiguration)
}
