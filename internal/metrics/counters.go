package metrics

import (
	"strings"
	"time"
)

// counterWindow tracks the previous sample of monotonically increasing counters.
type counterWindow[T any] struct {
	at   time.Time
	prev map[string]T
}

// advance stores current and returns the elapsed seconds and the previous sample.
// Params: now sample time; current counters keyed by device.
// Returns: seconds since the previous sample (0 on first call) and previous counters.
func (w *counterWindow[T]) advance(now time.Time, current map[string]T) (float64, map[string]T) {
	seconds := 0.0
	if !w.at.IsZero() {
		seconds = now.Sub(w.at).Seconds()
		if seconds < 0 {
			seconds = 0
		}
	}
	prev := w.prev
	w.at = now
	w.prev = current
	return seconds, prev
}

// positiveDelta returns current-previous, or zero after a counter reset.
func positiveDelta(current, previous uint64) uint64 {
	if current < previous {
		return 0
	}
	return current - previous
}

// ratePerSecond divides delta by seconds; zero seconds yields zero.
func ratePerSecond(delta uint64, seconds float64) float64 {
	if seconds <= 0 {
		return 0
	}
	return float64(delta) / seconds
}

// averageOrZero calculates numerator/denominator or zero.
func averageOrZero(numerator, denominator uint64) float64 {
	if denominator == 0 {
		return 0
	}
	return float64(numerator) / float64(denominator)
}

// pathKey turns device names and mount points into one metric path segment.
// Params: raw name such as "/dev/sda", "/var/lib" or "eth0".
// Returns: segment without separators; "/" becomes "root".
func pathKey(raw string) string {
	name := strings.TrimSpace(raw)
	name = strings.TrimPrefix(name, "/dev/")
	name = strings.Trim(name, "/")
	if name == "" {
		return "root"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '.', ' ', '\t':
			return '_'
		}
		return r
	}, name)
}
