package metrics

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/cpu"
)

// CPUCollector scrapes CPU total and per-core utilization.
// Params: metricName used as the event field name.
// Returns: CPU collector instance.
type CPUCollector struct {
	metricName string
	readPct    func(ctx context.Context, perCPU bool) ([]float64, error)
}

// NewCPUCollector creates a CPU collector.
// Params: metricName used as the event field name.
// Returns: configured CPU collector.
func NewCPUCollector(metricName string) *CPUCollector {
	return &CPUCollector{
		metricName: metricName,
		readPct: func(ctx context.Context, perCPU bool) ([]float64, error) {
			return cpu.PercentWithContext(ctx, 0, perCPU)
		},
	}
}

// Name returns logical metric name.
func (c *CPUCollector) Name() string {
	return c.metricName
}

// Scrape reads CPU utilization since the previous call for total and each core.
// Params: ctx for cancellation.
// Returns: `total` and `coreN` points or error.
func (c *CPUCollector) Scrape(ctx context.Context) ([]Point, error) {
	total, err := c.readPct(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("read total CPU percent: %w", err)
	}

	perCore, err := c.readPct(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("read per-core CPU percent: %w", err)
	}

	points := make([]Point, 0, len(perCore)+1)
	if len(total) > 0 {
		points = append(points, Point{
			Key:    "total",
			Values: map[string]Value{"util": {Raw: total[0], Kind: KindPercent}},
		})
	}
	for idx, util := range perCore {
		points = append(points, Point{
			Key:    fmt.Sprintf("core%d", idx),
			Values: map[string]Value{"util": {Raw: util, Kind: KindPercent}},
		})
	}

	return points, nil
}
