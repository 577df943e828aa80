// Package pipeline wires event inputs to the graphite output.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/health"

	"graphout/internal/config"
	"graphout/internal/graphite"
	"graphout/internal/metrics"
)

// Engine owns input and output runners.
// Params: runner list and logger.
// Returns: pipeline runtime engine.
type Engine struct {
	runners []runner
	logger  *slog.Logger
}

type runner interface {
	run(context.Context) error
}

// listeners records bound ingest addresses, mainly for tests using port 0.
type listeners struct {
	http net.Addr
	grpc net.Addr
}

// NewFromConfig builds the output queue and every enabled input.
// Params: ctx lifecycle context; cfg validated config; logger root logger; reg registerer for self-metrics (nil disables).
// Returns: engine or error; listeners are closed on error.
func NewFromConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) (*Engine, error) {
	engine, _, err := buildEngine(ctx, cfg, logger, reg, nil)
	return engine, err
}

// buildEngine is NewFromConfig with an optional dialer override.
// Params: ctx lifecycle context; cfg validated config; logger; reg registerer; dialer optional collector dialer.
// Returns: engine, bound listener addresses, or error.
func buildEngine(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	reg prometheus.Registerer,
	dialer graphite.Dialer,
) (*Engine, listeners, error) {
	var bound listeners
	if cfg == nil {
		return nil, bound, fmt.Errorf("config is nil")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if ctx.Err() != nil {
		return nil, bound, ctx.Err()
	}

	stats, err := graphite.NewStats(reg)
	if err != nil {
		return nil, bound, err
	}

	var healthSrv *health.Server
	opts := []graphite.Option{
		graphite.WithLogger(logger.With(slog.String("output", "graphite"))),
		graphite.WithStats(stats),
	}
	if cfg.Input.GRPC.Enabled {
		healthSrv = health.NewServer()
		opts = append(opts, graphite.WithStateObserver(graphiteHealthObserver(healthSrv)))
	}
	if dialer != nil {
		opts = append(opts, graphite.WithDialer(dialer))
	}

	settings := cfg.Graphite.Settings()
	output, err := graphite.NewOutput(settings, opts...)
	if err != nil {
		return nil, bound, fmt.Errorf("init graphite output: %w", err)
	}

	outputSink, err := NewOutputSink(output, cfg.Input.QueueSize, 2*settings.Timeout+settings.ReconnectInterval, logger)
	if err != nil {
		return nil, bound, fmt.Errorf("init output queue: %w", err)
	}

	runners := []runner{outputSink}
	cleanup := make([]func(), 0, 2)
	fail := func(err error) (*Engine, listeners, error) {
		for _, fn := range cleanup {
			fn()
		}
		_ = output.Close()
		return nil, listeners{}, err
	}

	if cfg.Input.Host.Enabled {
		worker, err := buildHostWorker(cfg, outputSink, logger)
		if err != nil {
			return fail(err)
		}
		runners = append(runners, worker)
	}

	if cfg.Input.HTTP.Enabled {
		router := newHTTPIngestRouter(cfg.Input.HTTP.Path, cfg.Input.HTTP.MaxBodyBytes, outputSink, logger)
		srv, err := newHTTPIngestServer(cfg.Input.HTTP.Listen, router, logger)
		if err != nil {
			return fail(fmt.Errorf("init http ingest: %w", err))
		}
		cleanup = append(cleanup, func() { _ = srv.ln.Close() })
		bound.http = srv.Addr()
		runners = append(runners, srv)
	}

	if cfg.Input.GRPC.Enabled {
		srv, err := newGRPCIngestServer(cfg.Input.GRPC.Listen, outputSink, healthSrv, logger)
		if err != nil {
			return fail(fmt.Errorf("init grpc ingest: %w", err))
		}
		cleanup = append(cleanup, func() { _ = srv.ln.Close() })
		bound.grpc = srv.ln.Addr()
		runners = append(runners, srv)
	}

	return &Engine{runners: runners, logger: logger}, bound, nil
}

// buildHostWorker creates the host statistics worker from [input.host].
// Params: cfg runtime config; sink event consumer; logger root logger.
// Returns: worker or error.
func buildHostWorker(cfg *config.Config, sink Sink, logger *slog.Logger) (*hostWorker, error) {
	collectors := make([]metrics.Collector, 0, len(cfg.Input.Host.Collectors))
	for _, name := range cfg.Input.Host.Collectors {
		collector, err := metrics.NewCollector(name)
		if err != nil {
			return nil, fmt.Errorf("build host worker: %w", err)
		}
		collectors = append(collectors, collector)
	}

	worker, err := newHostWorker(HostWorkerConfig{
		Host:        cfg.Global.Host,
		ScrapeEvery: cfg.Input.Host.Scrape.Duration,
		Collectors:  collectors,
	}, NewMultiSink(sink, NewLogSink(logger)), logger)
	if err != nil {
		return nil, fmt.Errorf("build host worker: %w", err)
	}
	return worker, nil
}

// Run starts all runners and waits until they stop.
// Params: ctx lifecycle context.
// Returns: nil on graceful stop; the first runner error otherwise (which also stops the others).
func (e *Engine) Run(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)
	for _, r := range e.runners {
		activeRunner := r
		group.Go(func() error {
			return activeRunner.run(groupCtx)
		})
	}
	return group.Wait()
}
