package graphite

import (
	"strings"

	"graphout/internal/event"
	"graphout/internal/match"
)

// Origin records how a metric value was obtained; it drives numeric rendering.
// Params: none.
// Returns: enum value.
type Origin uint8

const (
	// OriginTemplate is a value produced by explicit-mode template substitution.
	OriginTemplate Origin = iota
	// OriginField is a top-level scalar field in field-driven mode.
	OriginField
	// OriginLeaf is a scalar leaf produced by flattening a nested mapping.
	OriginLeaf
)

// Metric is one extracted (path, value) pair.
// Params: Path resolved metric path; Value raw value; Origin value source; Missing absent references.
// Returns: input for Formatter.
type Metric struct {
	Path    string
	Value   event.Value
	Origin  Origin
	Missing []string
}

// alwaysExcluded fields are pipeline metadata, never metrics.
var alwaysExcluded = map[string]struct{}{
	"@timestamp": {},
	"@version":   {},
}

type compiledMetric struct {
	rawPath string
	path    *Template
	value   *Template
}

// Extractor derives metrics from events in explicit or field-driven mode.
// Params: built by NewExtractor from Settings.
// Returns: reusable, read-only extractor.
type Extractor struct {
	fieldsAreMetrics bool
	flattenExplicit  bool
	metrics          []compiledMetric
	filter           *match.Filter
	format           *Template
}

// NewExtractor compiles templates and filters from settings.
// Params: s resolved settings.
// Returns: extractor or ErrConfiguration on malformed templates and patterns.
func NewExtractor(s Settings) (*Extractor, error) {
	out := &Extractor{
		fieldsAreMetrics: s.FieldsAreMetrics,
		flattenExplicit:  s.FlattenExplicit,
	}

	if s.FieldsAreMetrics {
		filter, err := match.CompileFilter(s.IncludeMetrics, s.ExcludeMetrics)
		if err != nil {
			return nil, configError("metrics filter: %v", err)
		}
		out.filter = filter

		if strings.Contains(s.MetricsFormat, MetricWildcard) {
			format, err := CompileTemplate(s.MetricsFormat)
			if err != nil {
				return nil, configError("metrics_format: %v", err)
			}
			out.format = format
		}
		return out, nil
	}

	out.metrics = make([]compiledMetric, 0, len(s.Metrics))
	for idx, definition := range s.Metrics {
		path, err := CompileTemplate(definition.Path)
		if err != nil {
			return nil, configError("metrics[%d].path: %v", idx, err)
		}
		if strings.TrimSpace(definition.Path) == "" {
			return nil, configError("metrics[%d].path cannot be empty", idx)
		}
		value, err := CompileTemplate(definition.Value)
		if err != nil {
			return nil, configError("metrics[%d].value: %v", idx, err)
		}
		out.metrics = append(out.metrics, compiledMetric{rawPath: definition.Path, path: path, value: value})
	}
	return out, nil
}

// Extract produces the ordered metrics for one event.
// Params: ev event to read; it is not retained.
// Returns: metrics in configured order (explicit) or event field order (field-driven).
func (e *Extractor) Extract(ev *event.Event) []Metric {
	if e.fieldsAreMetrics {
		return e.extractFields(ev)
	}
	return e.extractExplicit(ev)
}

// extractExplicit emits one metric per configured pair.
// Params: ev event to read.
// Returns: ordered metrics.
func (e *Extractor) extractExplicit(ev *event.Event) []Metric {
	out := make([]Metric, 0, len(e.metrics))
	for _, definition := range e.metrics {
		path, missingPath := definition.path.ResolveReport(ev)

		if e.flattenExplicit {
			if raw, ok := ev.Get(definition.rawPath); ok {
				if nested, isMap := raw.Map(); isMap {
					Flatten(nested, path).Range(func(key string, value event.Value) bool {
						out = append(out, Metric{Path: key, Value: value, Origin: OriginLeaf})
						return true
					})
					continue
				}
			}
		}

		value, missingValue := definition.value.ResolveReport(ev)
		out = append(out, Metric{
			Path:    path,
			Value:   event.String(value),
			Origin:  OriginTemplate,
			Missing: append(missingPath, missingValue...),
		})
	}
	return out
}

// extractFields emits metrics for every qualifying top-level field.
// Params: ev event to read.
// Returns: metrics in event field order; nested fields expand in flatten order.
func (e *Extractor) extractFields(ev *event.Event) []Metric {
	namePath := e.pathBuilder(ev)

	out := make([]Metric, 0)
	ev.Fields().Range(func(name string, value event.Value) bool {
		if _, skip := alwaysExcluded[name]; skip {
			return true
		}
		if !e.filter.Allow(name) {
			return true
		}

		switch value.Kind() {
		case event.KindMap:
			nested, _ := value.Map()
			Flatten(nested, name).Range(func(key string, leaf event.Value) bool {
				out = append(out, Metric{Path: namePath(key), Value: leaf, Origin: OriginLeaf})
				return true
			})
		case event.KindList, event.KindNull:
		default:
			out = append(out, Metric{Path: namePath(name), Value: value, Origin: OriginField})
		}
		return true
	})
	return out
}

// pathBuilder resolves metrics_format once per event.
// Params: ev event used for %{field} placeholders in the format.
// Returns: function mapping a field name to its metric path.
func (e *Extractor) pathBuilder(ev *event.Event) func(string) string {
	if e.format == nil {
		return func(name string) string { return name }
	}
	resolved := e.format.Resolve(ev)
	return func(name string) string {
		return strings.ReplaceAll(resolved, MetricWildcard, name)
	}
}
