package metrics

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/mem"
)

// SWAPCollector scrapes swap totals, used bytes, and utilization.
type SWAPCollector struct {
	metricName string
	readSwap   func(ctx context.Context) (*mem.SwapMemoryStat, error)
}

// NewSWAPCollector creates a SWAP collector.
// Params: metricName used as the event field name.
// Returns: configured SWAP collector.
func NewSWAPCollector(metricName string) *SWAPCollector {
	return &SWAPCollector{metricName: metricName, readSwap: mem.SwapMemoryWithContext}
}

// Name returns logical metric name.
func (c *SWAPCollector) Name() string {
	return c.metricName
}

// Scrape reads swap state and emits one `total` key.
// Params: ctx for cancellation.
// Returns: one SWAP point or error.
func (c *SWAPCollector) Scrape(ctx context.Context) ([]Point, error) {
	sm, err := c.readSwap(ctx)
	if err != nil {
		return nil, fmt.Errorf("read swap memory: %w", err)
	}

	return []Point{{
		Key: "total",
		Values: map[string]Value{
			"total": {Raw: float64(sm.Total), Kind: KindNumber},
			"used":  {Raw: float64(sm.Used), Kind: KindNumber},
			"util":  {Raw: utilization(sm.Used, sm.Total), Kind: KindPercent},
		},
	}}, nil
}
