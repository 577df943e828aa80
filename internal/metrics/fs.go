package metrics

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/shirou/gopsutil/v4/disk"
)

// FSCollector scrapes filesystem space and inode usage per mount point.
type FSCollector struct {
	metricName     string
	readPartitions func(ctx context.Context, all bool) ([]disk.PartitionStat, error)
	readUsage      func(ctx context.Context, path string) (*disk.UsageStat, error)
}

// NewFSCollector creates a filesystem usage collector.
// Params: metricName used as the event field name.
// Returns: configured filesystem collector.
func NewFSCollector(metricName string) *FSCollector {
	return &FSCollector{
		metricName:     metricName,
		readPartitions: disk.PartitionsWithContext,
		readUsage:      disk.UsageWithContext,
	}
}

// Name returns logical metric name.
func (c *FSCollector) Name() string {
	return c.metricName
}

// Scrape reads mounted filesystems; mounts whose usage cannot be read are skipped.
// Params: ctx for cancellation.
// Returns: one point per mount point, keyed by pathKey, or error when nothing could be read.
func (c *FSCollector) Scrape(ctx context.Context) ([]Point, error) {
	partitions, err := c.readPartitions(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("read partitions: %w", err)
	}

	points := make([]Point, 0, len(partitions))
	seen := make(map[string]struct{}, len(partitions))
	for _, part := range partitions {
		mount := strings.TrimSpace(part.Mountpoint)
		if mount == "" {
			continue
		}
		key := pathKey(mount)
		if _, dup := seen[key]; dup {
			continue
		}

		usage, err := c.readUsage(ctx, mount)
		if err != nil {
			continue
		}
		seen[key] = struct{}{}

		inodesUtil := usage.InodesUsedPercent
		if math.IsNaN(inodesUtil) || math.IsInf(inodesUtil, 0) {
			inodesUtil = 0
		}

		points = append(points, Point{
			Key: key,
			Values: map[string]Value{
				"total":       {Raw: float64(usage.Total), Kind: KindNumber},
				"used":        {Raw: float64(usage.Used), Kind: KindNumber},
				"free":        {Raw: float64(usage.Free), Kind: KindNumber},
				"util":        {Raw: usage.UsedPercent, Kind: KindPercent},
				"inodes_used": {Raw: float64(usage.InodesUsed), Kind: KindNumber},
				"inodes_util": {Raw: inodesUtil, Kind: KindPercent},
			},
		})
	}

	if len(points) == 0 && len(partitions) > 0 {
		return nil, fmt.Errorf("all filesystem usage reads failed")
	}
	return points, nil
}
