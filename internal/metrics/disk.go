package metrics

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/disk"
)

// DiskCollector scrapes block device IO counters and derives per-second rates.
// Partitions, loop and ram devices are skipped.
type DiskCollector struct {
	metricName string
	mu         sync.Mutex
	window     counterWindow[disk.IOCountersStat]
	readIO     func(context.Context, ...string) (map[string]disk.IOCountersStat, error)
	now        func() time.Time
}

// NewDiskCollector creates a disk IO collector.
// Params: metricName used as the event field name.
// Returns: configured disk collector.
func NewDiskCollector(metricName string) *DiskCollector {
	return &DiskCollector{
		metricName: metricName,
		readIO:     disk.IOCountersWithContext,
		now:        time.Now,
	}
}

// Name returns logical metric name.
func (c *DiskCollector) Name() string {
	return c.metricName
}

// Scrape reads device counters; the first scrape reports zero rates.
// Params: ctx for cancellation.
// Returns: one point per base block device or error.
func (c *DiskCollector) Scrape(ctx context.Context) ([]Point, error) {
	stats, err := c.readIO(ctx)
	if err != nil {
		return nil, fmt.Errorf("read disk counters: %w", err)
	}

	current := make(map[string]disk.IOCountersStat, len(stats))
	for name, stat := range stats {
		if isBaseDiskDevice(name) {
			current[name] = stat
		}
	}

	c.mu.Lock()
	seconds, prev := c.window.advance(c.now(), current)
	c.mu.Unlock()

	points := make([]Point, 0, len(current))
	for name, stat := range current {
		var reads, writes, readBytes, writeBytes, readTime, writeTime, ioTime uint64
		if before, ok := prev[name]; ok {
			reads = positiveDelta(stat.ReadCount, before.ReadCount)
			writes = positiveDelta(stat.WriteCount, before.WriteCount)
			readBytes = positiveDelta(stat.ReadBytes, before.ReadBytes)
			writeBytes = positiveDelta(stat.WriteBytes, before.WriteBytes)
			readTime = positiveDelta(stat.ReadTime, before.ReadTime)
			writeTime = positiveDelta(stat.WriteTime, before.WriteTime)
			ioTime = positiveDelta(stat.IoTime, before.IoTime)
		}

		util := 0.0
		if seconds > 0 {
			util = float64(ioTime) / (seconds * 1000) * 100
		}

		points = append(points, Point{
			Key: pathKey(name),
			Values: map[string]Value{
				"read_ops":     {Raw: ratePerSecond(reads, seconds), Kind: KindRatio},
				"write_ops":    {Raw: ratePerSecond(writes, seconds), Kind: KindRatio},
				"read_bytes":   {Raw: ratePerSecond(readBytes, seconds), Kind: KindNumber},
				"write_bytes":  {Raw: ratePerSecond(writeBytes, seconds), Kind: KindNumber},
				"await":        {Raw: averageOrZero(readTime+writeTime, reads+writes), Kind: KindRatio},
				"util":         {Raw: min(util, 100), Kind: KindPercent},
				"inflight_ops": {Raw: float64(stat.IopsInProgress), Kind: KindNumber},
			},
		})
	}
	return points, nil
}

// isBaseDiskDevice reports whether name is a whole block device rather than a partition.
// Params: device name with or without the /dev/ prefix.
// Returns: false for partitions, loop and ram devices and empty names.
func isBaseDiskDevice(name string) bool {
	device := strings.TrimPrefix(strings.TrimSpace(name), "/dev/")
	if device == "" {
		return false
	}

	for _, prefix := range []string{"loop", "ram"} {
		if rest, ok := strings.CutPrefix(device, prefix); ok && isDigits(rest) {
			return false
		}
	}
	for _, prefix := range []string{"xvd", "sd", "vd", "hd"} {
		if rest, ok := strings.CutPrefix(device, prefix); ok {
			letters := strings.TrimLeft(rest, "abcdefghijklmnopqrstuvwxyz")
			return letters == "" || !isDigits(letters)
		}
	}
	for _, prefix := range []string{"nvme", "mmcblk"} {
		if strings.HasPrefix(device, prefix) {
			// nvme0n1p2 and mmcblk0p1 are partitions.
			idx := strings.LastIndexByte(device, 'p')
			return idx <= len(prefix) || !isDigits(device[idx+1:])
		}
	}
	return true
}

// isDigits checks that value is a non-empty decimal number.
func isDigits(value string) bool {
	if value == "" {
		return false
	}
	for idx := 0; idx < len(value); idx++ {
		if value[idx] < '0' || value[idx] > '9' {
			return false
		}
	}
	return true
}
