// Package metrics scrapes host statistics into nested event samples.
package metrics

import (
	"context"
	"fmt"
	"math"
	"sort"

	"graphout/internal/event"
)

// ValueKind identifies normalization kind for a metric value.
// Params: none.
// Returns: enum value for number/percent/ratio normalization.
type ValueKind uint8

const (
	// KindNumber represents counters and byte sizes rendered as integers.
	KindNumber ValueKind = iota
	// KindPercent represents 0..100 utilization rendered with two decimals.
	KindPercent
	// KindRatio represents fractional gauges such as load averages.
	KindRatio
)

// Value carries one numeric sample and its normalization kind.
// Params: raw float sample and kind.
// Returns: typed metric value converted by Event.
type Value struct {
	Raw  float64
	Kind ValueKind
}

// Event converts the sample into an event value.
// Params: none.
// Returns: Int for KindNumber, Float rounded to two decimals otherwise.
func (v Value) Event() event.Value {
	if v.Kind == KindNumber {
		if v.Raw <= 0 || math.IsNaN(v.Raw) {
			return event.Int(0)
		}
		if v.Raw >= math.MaxInt64 {
			return event.Int(math.MaxInt64)
		}
		return event.Int(int64(v.Raw))
	}
	if math.IsNaN(v.Raw) || math.IsInf(v.Raw, 0) {
		return event.Float(0)
	}
	return event.Float(math.Round(v.Raw*100) / 100)
}

// Point is one keyed metric sample with variable set.
// Params: key string and variable->value map.
// Returns: one scrape sample entity.
type Point struct {
	Key    string
	Values map[string]Value
}

// Collector scrapes one host statistic group.
// Params: context for cancellation and deadlines.
// Returns: point list or scrape error.
type Collector interface {
	Name() string
	Scrape(ctx context.Context) ([]Point, error)
}

// Nest turns points into {key: {var: value}} with variables in name order.
// Params: points scrape result.
// Returns: nested mapping ready to become an event field.
func Nest(points []Point) *event.Map {
	out := event.NewMap()
	for _, point := range points {
		names := make([]string, 0, len(point.Values))
		for name := range point.Values {
			names = append(names, name)
		}
		sort.Strings(names)

		vars := event.NewMap()
		for _, name := range names {
			vars.Set(name, point.Values[name].Event())
		}
		out.Set(point.Key, event.MapValue(vars))
	}
	return out
}

// NewCollector builds a host collector by name.
// Params: name one of cpu, ram, swap, load, disk, fs, net.
// Returns: collector or error for unknown names.
func NewCollector(name string) (Collector, error) {
	switch name {
	case "cpu":
		return NewCPUCollector(name), nil
	case "ram":
		return NewRAMCollector(name), nil
	case "swap":
		return NewSWAPCollector(name), nil
	case "load":
		return NewLoadCollector(name), nil
	case "disk":
		return NewDiskCollector(name), nil
	case "fs":
		return NewFSCollector(name), nil
	case "net":
		return NewNetCollector(name), nil
	default:
		return nil, fmt.Errorf("unsupported host collector %q", name)
	}
}
