package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"graphout/internal/config"
	"graphout/internal/logging"
	"graphout/internal/pipeline"
)

var errPipelineExited = errors.New("pipeline exited without context cancellation")

// Runtime defines runtime inputs required to start the adapter.
// Params: ConfigPath points to the TOML config file or directory; Reload triggers config reloads.
// Returns: Runtime value used by Run.
type Runtime struct {
	ConfigPath string
	Reload     <-chan struct{}
}

type pipelineRunner interface {
	Run(context.Context) error
}

type runDeps struct {
	loadConfig  func(string) (*config.Config, error)
	openLog     func(config.LogConfig) (*slog.Logger, func(), error)
	serveAdmin  func(context.Context, config.AdminConfig, prometheus.Gatherer, *slog.Logger) (func(), error)
	newPipeline func(context.Context, *config.Config, *slog.Logger, prometheus.Registerer) (pipelineRunner, error)
}

// logSink is a logger plus the callback that flushes and closes its outputs.
type logSink struct {
	logger *slog.Logger
	close  func()
}

// generation is one running pipeline and admin listener built from a single config snapshot.
type generation struct {
	cfg       *config.Config
	sink      *logSink
	cancel    context.CancelFunc
	done      chan error
	stopAdmin func()
}

// supervisor owns the current generation and replaces it on reload.
type supervisor struct {
	path    string
	deps    runDeps
	current *generation
}

// Run loads configuration, starts the adapter, and rebuilds it whenever Runtime.Reload fires.
// Params: ctx controls lifecycle; rt provides the config path and optional reload channel.
// Returns: startup error, pipeline failure, or unrecoverable reload failure; nil on graceful stop.
func Run(ctx context.Context, rt Runtime) error {
	return runWithDeps(ctx, rt, defaultRunDeps())
}

func runWithDeps(ctx context.Context, rt Runtime, deps runDeps) error {
	if strings.TrimSpace(rt.ConfigPath) == "" {
		return errors.New("config path is required")
	}

	cfg, err := deps.loadConfig(rt.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	sink, err := openLogSink(deps, cfg.Log)
	if err != nil {
		return err
	}
	gen, err := launch(ctx, cfg, sink, deps)
	if err != nil {
		sink.release()
		return err
	}

	s := &supervisor{path: rt.ConfigPath, deps: deps, current: gen}
	return s.supervise(ctx, rt.Reload)
}

func defaultRunDeps() runDeps {
	return runDeps{
		loadConfig: config.Load,
		openLog:    logging.New,
		serveAdmin: startAdminServer,
		newPipeline: func(ctx context.Context, cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) (pipelineRunner, error) {
			return pipeline.NewFromConfig(ctx, cfg, logger, reg)
		},
	}
}

// supervise waits for shutdown, pipeline exit, or reload requests.
// Params: ctx root lifecycle; reload optional trigger channel, closed channels are ignored.
// Returns: nil on graceful stop or the error that ended the adapter.
func (s *supervisor) supervise(ctx context.Context, reload <-chan struct{}) error {
	for {
		select {
		case runErr := <-s.current.done:
			s.current.done = nil
			return s.finish(ctx, runErr)
		case <-ctx.Done():
			return s.finish(ctx, nil)
		case _, ok := <-reload:
			if !ok {
				reload = nil
				continue
			}
			if ctx.Err() != nil {
				continue
			}
			if err := s.reload(ctx); err != nil && s.current == nil {
				return err
			}
		}
	}
}

// finish halts the current generation and closes its log sink.
// Params: ctx root lifecycle; runErr pipeline result when it exited on its own.
// Returns: nil when ctx ended, otherwise the wrapped pipeline failure.
func (s *supervisor) finish(ctx context.Context, runErr error) error {
	gen := s.current
	gen.halt()
	defer gen.sink.release()

	if ctx.Err() != nil {
		gen.sink.logger.Info("adapter stopped", slog.String("reason", ctx.Err().Error()))
		return nil
	}
	if runErr == nil {
		runErr = errPipelineExited
	}
	gen.sink.logger.Error("pipeline stopped unexpectedly", slog.String("error", runErr.Error()))
	return fmt.Errorf("run pipeline: %w", runErr)
}

// reload swaps in a generation built from the config file, relaunching the previous config if that fails.
// Params: ctx root lifecycle.
// Returns: nil when applied or interrupted by shutdown; an error with s.current still running when the
// old config was kept; an error with s.current nil when nothing could be restored.
func (s *supervisor) reload(ctx context.Context) error {
	prev := s.current
	logger := prev.sink.logger
	logger.Info("config reload requested")

	cfg, err := s.deps.loadConfig(s.path)
	if err != nil {
		logger.Error("config reload validation failed", slog.String("error", err.Error()))
		return fmt.Errorf("reload config: %w", err)
	}
	sink, err := openLogSink(s.deps, cfg.Log)
	if err != nil {
		logger.Error("config reload logger init failed", slog.String("error", err.Error()))
		return fmt.Errorf("reload: %w", err)
	}

	// The old generation must release its listeners before the new one binds them.
	prev.halt()
	next, launchErr := launch(ctx, cfg, sink, s.deps)
	if launchErr == nil {
		prev.sink.release()
		s.current = next
		sink.logger.Info("config reload applied")
		return nil
	}
	sink.release()

	if ctx.Err() != nil {
		logger.Info("config reload interrupted by shutdown")
		return nil
	}

	logger.Error("config reload apply failed, restoring previous runtime", slog.String("error", launchErr.Error()))
	restored, restoreErr := launch(ctx, prev.cfg, prev.sink, s.deps)
	if restoreErr != nil {
		prev.sink.release()
		s.current = nil
		return fmt.Errorf("apply reload: %w; rollback failed: %w", launchErr, restoreErr)
	}
	s.current = restored
	logger.Warn("config reload rejected, previous runtime restored", slog.String("error", launchErr.Error()))
	return fmt.Errorf("apply reload: %w", launchErr)
}

func openLogSink(deps runDeps, cfg config.LogConfig) (*logSink, error) {
	logger, closeFn, err := deps.openLog(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return &logSink{logger: logger, close: closeFn}, nil
}

// release closes the sink once; later calls are no-ops.
func (l *logSink) release() {
	if l == nil || l.close == nil {
		return
	}
	l.close()
	l.close = nil
}

// launch starts the admin listener and the pipeline for cfg against a fresh self-metrics registry.
// Params: ctx parent lifecycle; cfg validated config; sink logger owned by the caller; deps component factories.
// Returns: running generation, or the first startup error with everything already started undone.
func launch(ctx context.Context, cfg *config.Config, sink *logSink, deps runDeps) (_ *generation, err error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("runtime context canceled: %w", ctxErr)
	}

	runCtx, cancel := context.WithCancel(ctx)
	unwind := []func(){cancel}
	defer func() {
		if err == nil {
			return
		}
		for i := len(unwind) - 1; i >= 0; i-- {
			unwind[i]()
		}
	}()

	// Stats collectors are registered once per registry, so every generation gets its own.
	registry := newRegistry()

	stopAdmin, err := deps.serveAdmin(runCtx, cfg.Admin, registry, sink.logger)
	if err != nil {
		return nil, fmt.Errorf("start admin: %w", err)
	}
	unwind = append(unwind, stopAdmin)

	runner, err := deps.newPipeline(runCtx, cfg, sink.logger, registry)
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- runner.Run(runCtx)
	}()

	logStartup(sink.logger, cfg)
	return &generation{
		cfg:       cfg,
		sink:      sink,
		cancel:    cancel,
		done:      done,
		stopAdmin: stopAdmin,
	}, nil
}

// halt cancels the pipeline, waits for it to return, and stops the admin listener.
// The log sink stays open; halt is safe to call more than once.
func (g *generation) halt() {
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
	if g.done != nil {
		<-g.done
		g.done = nil
	}
	if g.stopAdmin != nil {
		g.stopAdmin()
		g.stopAdmin = nil
	}
}

func newRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

// logStartup reports the effective output mode and enabled inputs.
func logStartup(logger *slog.Logger, cfg *config.Config) {
	mode := "explicit"
	if cfg.Graphite.FieldsAreMetrics {
		mode = "fields"
	}

	inputs := make([]string, 0, 3)
	if cfg.Input.Host.Enabled {
		inputs = append(inputs, "host")
	}
	if cfg.Input.HTTP.Enabled {
		inputs = append(inputs, "http")
	}
	if cfg.Input.GRPC.Enabled {
		inputs = append(inputs, "grpc")
	}

	logger.Info(
		"adapter started",
		slog.String("host", cfg.Global.Host),
		slog.String("graphite", cfg.Graphite.Settings().Address()),
		slog.String("mode", mode),
		slog.String("inputs", strings.Join(inputs, ",")),
		slog.Int("queue_size", cfg.Input.QueueSize),
		slog.Int("templates", len(cfg.Graphite.Metrics)),
	)
}
