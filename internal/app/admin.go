package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"graphout/internal/config"
)

const (
	adminShutdownTimeout = 3 * time.Second
	adminReadHeaderTO    = 2 * time.Second
)

// newAdminRouter serves pprof under /debug, self-metrics on /metrics and a liveness probe.
// Params: gatherer registry exposed on /metrics.
// Returns: chi router.
func newAdminRouter(gatherer prometheus.Gatherer) chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Mount("/debug", middleware.Profiler())
	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	return router
}

// startAdminServer starts the optional admin HTTP endpoint and wires graceful shutdown.
// Params: ctx controls lifecycle; cfg provides enabled/listen options; gatherer metrics source; logger reports runtime events.
// Returns: stop function (idempotent) and startup error.
func startAdminServer(ctx context.Context, cfg config.AdminConfig, gatherer prometheus.Gatherer, logger *slog.Logger) (func(), error) {
	if !cfg.Enabled {
		return func() {}, nil
	}

	listener, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return nil, fmt.Errorf("listen %q: %w", cfg.Listen, err)
	}

	server := &http.Server{
		Handler:           newAdminRouter(gatherer),
		ReadHeaderTimeout: adminReadHeaderTO,
	}

	var once sync.Once
	stop := func() {
		once.Do(func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), adminShutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("admin shutdown error", slog.String("error", err.Error()))
			}
		})
	}

	go func() {
		<-ctx.Done()
		stop()
	}()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("admin server failed", slog.String("addr", cfg.Listen), slog.String("error", err.Error()))
		}
	}()

	logger.Info("admin server started", slog.String("addr", listener.Addr().String()))
	return stop, nil
}
