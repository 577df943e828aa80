package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

const httpShutdownTimeout = 5 * time.Second

// httpIngestServer runs an HTTP server tied to a lifecycle context.
// Params: listen address, handler, and logger for diagnostics.
// Returns: runnable HTTP server instance.
type httpIngestServer struct {
	ln     net.Listener
	server *http.Server
	logger *slog.Logger
}

// newHTTPIngestServer binds the listen address; serving starts in run.
// Params: listen address in host:port; handler HTTP handler; logger root logger.
// Returns: server instance or bind error.
func newHTTPIngestServer(listen string, handler http.Handler, logger *slog.Logger) (*httpIngestServer, error) {
	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return nil, fmt.Errorf("listen %q: %w", listen, err)
	}

	return &httpIngestServer{
		ln: ln,
		server: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger.With(slog.String("input", "http"), slog.String("listen", ln.Addr().String())),
	}, nil
}

// Addr returns the bound address.
func (s *httpIngestServer) Addr() net.Addr {
	return s.ln.Addr()
}

// run starts serving and shuts down on context cancellation.
// Params: ctx lifecycle context.
// Returns: nil on graceful stop; error on early serve failures.
func (s *httpIngestServer) run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(s.ln)
	}()
	s.logger.Info("http ingest listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		s.logger.Error("http ingest server stopped unexpectedly", slog.String("error", err.Error()))
		return fmt.Errorf("http ingest: %w", err)
	}
}
