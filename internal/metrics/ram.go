package metrics

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/mem"
)

// RAMCollector scrapes RAM totals, used/free, and utilization.
type RAMCollector struct {
	metricName string
	readVM     func(ctx context.Context) (*mem.VirtualMemoryStat, error)
}

// NewRAMCollector creates a RAM collector.
// Params: metricName used as the event field name.
// Returns: configured RAM collector.
func NewRAMCollector(metricName string) *RAMCollector {
	return &RAMCollector{metricName: metricName, readVM: mem.VirtualMemoryWithContext}
}

// Name returns logical metric name.
func (c *RAMCollector) Name() string {
	return c.metricName
}

// Scrape reads RAM state and emits one `total` key.
// Params: ctx for cancellation.
// Returns: one RAM point or error.
func (c *RAMCollector) Scrape(ctx context.Context) ([]Point, error) {
	vm, err := c.readVM(ctx)
	if err != nil {
		return nil, fmt.Errorf("read virtual memory: %w", err)
	}

	return []Point{{
		Key: "total",
		Values: map[string]Value{
			"total": {Raw: float64(vm.Total), Kind: KindNumber},
			"used":  {Raw: float64(vm.Used), Kind: KindNumber},
			"free":  {Raw: float64(vm.Available), Kind: KindNumber},
			"util":  {Raw: utilization(vm.Used, vm.Total), Kind: KindPercent},
		},
	}}, nil
}

// utilization returns used/total as a percentage; zero total yields zero.
func utilization(used, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(used) / float64(total) * 100
}
