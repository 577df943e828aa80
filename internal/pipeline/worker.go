package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"graphout/internal/event"
	"graphout/internal/metrics"
)

// HostWorkerConfig defines the periodic host statistics source.
// Params: host name stamped as @host, scrape interval and collectors.
// Returns: host worker runtime configuration.
type HostWorkerConfig struct {
	Host        string
	ScrapeEvery time.Duration
	Collectors  []metrics.Collector
}

type hostWorker struct {
	cfg    HostWorkerConfig
	sink   Sink
	logger *slog.Logger
	now    func() time.Time
}

// newHostWorker builds a host worker from runtime config.
// Params: cfg runtime settings; sink event consumer; logger root logger.
// Returns: worker instance or error.
func newHostWorker(cfg HostWorkerConfig, sink Sink, logger *slog.Logger) (*hostWorker, error) {
	if len(cfg.Collectors) == 0 {
		return nil, fmt.Errorf("at least one collector is required")
	}
	if cfg.ScrapeEvery <= 0 {
		return nil, fmt.Errorf("scrape interval must be > 0")
	}
	if sink == nil {
		return nil, fmt.Errorf("sink is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &hostWorker{
		cfg:    cfg,
		sink:   sink,
		logger: logger.With(slog.String("input", "host")),
		now:    time.Now,
	}, nil
}

// run executes the scrape loop until context cancellation.
// Params: ctx controls lifecycle.
// Returns: nil on graceful stop.
func (w *hostWorker) run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.ScrapeEvery)
	defer ticker.Stop()

	// Warm-up scrape so the first sample does not wait a full interval.
	w.scrapeOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.scrapeOnce(ctx)
		}
	}
}

// scrapeOnce collects every collector into one event and hands it to the sink.
// Params: ctx for scrape cancellation.
// Returns: none.
func (w *hostWorker) scrapeOnce(ctx context.Context) {
	ev := w.buildEvent(ctx)
	if ev == nil {
		return
	}
	if err := w.sink.Consume(ctx, ev); err != nil && ctx.Err() == nil {
		w.logger.Warn("enqueue host sample failed", slog.String("error", err.Error()))
	}
}

// buildEvent scrapes all collectors; failed collectors are logged and omitted.
// Params: ctx for scrape cancellation.
// Returns: event or nil when every collector failed.
func (w *hostWorker) buildEvent(ctx context.Context) *event.Event {
	ev := event.New()
	ev.Set("@timestamp", event.String(w.now().UTC().Format(time.RFC3339Nano)))
	ev.Set("@host", event.String(w.cfg.Host))

	scraped := 0
	for _, collector := range w.cfg.Collectors {
		points, err := collector.Scrape(ctx)
		if err != nil {
			w.logger.Error(
				"scrape failed",
				slog.String("metric", collector.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}
		ev.Set(collector.Name(), event.MapValue(metrics.Nest(points)))
		scraped++
	}

	if scraped == 0 {
		return nil
	}
	return ev
}
