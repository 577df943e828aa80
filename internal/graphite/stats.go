package graphite

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const statsNamespace = "graphout"

// Stats holds adapter self-metrics.
// Params: built by NewStats; a nil *Stats disables accounting.
// Returns: Prometheus collectors updated by Output and Client.
type Stats struct {
	Events           prometheus.Counter
	LinesSent        prometheus.Counter
	LinesDropped     prometheus.Counter
	MetricsSkipped   *prometheus.CounterVec
	DeliveryFailures prometheus.Counter
	Connects         prometheus.Counter
	ConnectionErrors *prometheus.CounterVec
	Connected        prometheus.Gauge
}

// NewStats creates adapter collectors and registers them.
// Params: reg registerer; nil leaves collectors unregistered.
// Returns: stats or registration error.
func NewStats(reg prometheus.Registerer) (*Stats, error) {
	s := &Stats{
		Events: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: statsNamespace,
			Subsystem: "output",
			Name:      "events_total",
			Help:      "Events handed to the graphite output",
		}),
		LinesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: statsNamespace,
			Subsystem: "output",
			Name:      "lines_sent_total",
			Help:      "Metric lines written to the collector",
		}),
		LinesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: statsNamespace,
			Subsystem: "output",
			Name:      "lines_dropped_total",
			Help:      "Metric lines lost after the reconnect retry failed",
		}),
		MetricsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: statsNamespace,
			Subsystem: "output",
			Name:      "metrics_skipped_total",
			Help:      "Extracted metrics skipped because path or value could not be rendered",
		}, []string{"reason"}),
		DeliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: statsNamespace,
			Subsystem: "output",
			Name:      "delivery_failures_total",
			Help:      "Events with at least one undelivered line",
		}),
		Connects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: statsNamespace,
			Subsystem: "connection",
			Name:      "connects_total",
			Help:      "Successful TCP connections to the collector",
		}),
		ConnectionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: statsNamespace,
			Subsystem: "connection",
			Name:      "errors_total",
			Help:      "Collector connection failures by operation",
		}, []string{"op"}),
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: statsNamespace,
			Subsystem: "connection",
			Name:      "connected",
			Help:      "Collector connection state (0=disconnected, 1=connected)",
		}),
	}

	if reg == nil {
		return s, nil
	}

	collectors := []prometheus.Collector{
		s.Events,
		s.LinesSent,
		s.LinesDropped,
		s.MetricsSkipped,
		s.DeliveryFailures,
		s.Connects,
		s.ConnectionErrors,
		s.Connected,
	}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register graphite stats: %w", err)
		}
	}
	return s, nil
}

func (s *Stats) event() {
	if s != nil {
		s.Events.Inc()
	}
}

func (s *Stats) lineSent() {
	if s != nil {
		s.LinesSent.Inc()
	}
}

func (s *Stats) linesDropped(n int) {
	if s != nil && n > 0 {
		s.LinesDropped.Add(float64(n))
		s.DeliveryFailures.Inc()
	}
}

func (s *Stats) metricSkipped(reason string) {
	if s != nil {
		s.MetricsSkipped.WithLabelValues(reason).Inc()
	}
}

func (s *Stats) connected() {
	if s != nil {
		s.Connects.Inc()
		s.Connected.Set(1)
	}
}

func (s *Stats) disconnected() {
	if s != nil {
		s.Connected.Set(0)
	}
}

func (s *Stats) connectionError(op string) {
	if s != nil {
		s.ConnectionErrors.WithLabelValues(op).Inc()
	}
}
