package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	psnet "github.com/shirou/gopsutil/v4/net"
)

// NetCollector scrapes per-interface traffic counters and derives per-second rates.
// The loopback interface is skipped.
type NetCollector struct {
	metricName string
	mu         sync.Mutex
	window     counterWindow[psnet.IOCountersStat]
	readIO     func(ctx context.Context, perNIC bool) ([]psnet.IOCountersStat, error)
	now        func() time.Time
}

// NewNetCollector creates a network interface collector.
// Params: metricName used as the event field name.
// Returns: configured network collector.
func NewNetCollector(metricName string) *NetCollector {
	return &NetCollector{
		metricName: metricName,
		readIO:     psnet.IOCountersWithContext,
		now:        time.Now,
	}
}

// Name returns logical metric name.
func (c *NetCollector) Name() string {
	return c.metricName
}

// Scrape reads interface counters; the first scrape reports zero rates.
// Params: ctx for cancellation.
// Returns: one point per interface or error.
func (c *NetCollector) Scrape(ctx context.Context) ([]Point, error) {
	stats, err := c.readIO(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("read interface counters: %w", err)
	}

	current := make(map[string]psnet.IOCountersStat, len(stats))
	for _, stat := range stats {
		if stat.Name == "" || stat.Name == "lo" {
			continue
		}
		current[stat.Name] = stat
	}

	c.mu.Lock()
	seconds, prev := c.window.advance(c.now(), current)
	c.mu.Unlock()

	points := make([]Point, 0, len(current))
	for name, stat := range current {
		var rxBytes, txBytes, rxPkts, txPkts, rxErr, txErr, rxDrop, txDrop uint64
		if before, ok := prev[name]; ok {
			rxBytes = positiveDelta(stat.BytesRecv, before.BytesRecv)
			txBytes = positiveDelta(stat.BytesSent, before.BytesSent)
			rxPkts = positiveDelta(stat.PacketsRecv, before.PacketsRecv)
			txPkts = positiveDelta(stat.PacketsSent, before.PacketsSent)
			rxErr = positiveDelta(stat.Errin, before.Errin)
			txErr = positiveDelta(stat.Errout, before.Errout)
			rxDrop = positiveDelta(stat.Dropin, before.Dropin)
			txDrop = positiveDelta(stat.Dropout, before.Dropout)
		}

		points = append(points, Point{
			Key: pathKey(name),
			Values: map[string]Value{
				"rx_bytes": {Raw: ratePerSecond(rxBytes, seconds), Kind: KindNumber},
				"tx_bytes": {Raw: ratePerSecond(txBytes, seconds), Kind: KindNumber},
				"rx_pkts":  {Raw: ratePerSecond(rxPkts, seconds), Kind: KindNumber},
				"tx_pkts":  {Raw: ratePerSecond(txPkts, seconds), Kind: KindNumber},
				"rx_err":   {Raw: float64(rxErr), Kind: KindNumber},
				"tx_err":   {Raw: float64(txErr), Kind: KindNumber},
				"rx_drop":  {Raw: float64(rxDrop), Kind: KindNumber},
				"tx_drop":  {Raw: float64(txDrop), Kind: KindNumber},
			},
		})
	}
	return points, nil
}
