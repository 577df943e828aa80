package metrics

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/load"
)

// LoadCollector scrapes 1/5/15 minute load averages.
type LoadCollector struct {
	metricName string
	readAvg    func(ctx context.Context) (*load.AvgStat, error)
}

// NewLoadCollector creates a load average collector.
// Params: metricName used as the event field name.
// Returns: configured load collector.
func NewLoadCollector(metricName string) *LoadCollector {
	return &LoadCollector{metricName: metricName, readAvg: load.AvgWithContext}
}

// Name returns logical metric name.
func (c *LoadCollector) Name() string {
	return c.metricName
}

// Scrape reads load averages and emits one `avg` key.
// Params: ctx for cancellation.
// Returns: one load point or error.
func (c *LoadCollector) Scrape(ctx context.Context) ([]Point, error) {
	avg, err := c.readAvg(ctx)
	if err != nil {
		return nil, fmt.Errorf("read load average: %w", err)
	}

	return []Point{{
		Key: "avg",
		Values: map[string]Value{
			"load1":  {Raw: avg.Load1, Kind: KindRatio},
			"load5":  {Raw: avg.Load5, Kind: KindRatio},
			"load15": {Raw: avg.Load15, Kind: KindRatio},
		},
	}}, nil
}
