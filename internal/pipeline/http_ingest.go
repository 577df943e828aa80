package pipeline

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"graphout/internal/event"
)

const httpHandlerTimeout = 15 * time.Second

// eventQueue accepts events without blocking; *OutputSink satisfies it.
type eventQueue interface {
	Offer(ev *event.Event) error
}

type ingestResponse struct {
	Accepted int    `json:"accepted"`
	Error    string `json:"error,omitempty"`
}

// newHTTPIngestRouter builds the ingest router: POST path takes a JSON object, array or NDJSON stream.
// Params: path route; maxBody limit on both the raw and the decompressed body (0 = unlimited); queue event target; logger root logger.
// Returns: chi router.
func newHTTPIngestRouter(path string, maxBody int64, queue eventQueue, logger *slog.Logger) chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(httpHandlerTimeout))
	router.Post(path, makeHTTPIngestHandler(maxBody, queue, logger))
	return router
}

// makeHTTPIngestHandler decodes the whole body before enqueueing, so a malformed request enqueues nothing.
// Params: maxBody request body limit; queue event target; logger root logger.
// Returns: HTTP handler function.
func makeHTTPIngestHandler(maxBody int64, queue eventQueue, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body io.Reader = r.Body
		if maxBody > 0 {
			body = http.MaxBytesReader(w, r.Body, maxBody)
		}

		if strings.Contains(r.Header.Get("Content-Encoding"), "gzip") {
			gzipReader, err := gzip.NewReader(body)
			if err != nil {
				writeIngestResponse(w, http.StatusBadRequest, ingestResponse{Error: "invalid gzip body"})
				return
			}
			defer gzipReader.Close()
			body = gzipReader
			if maxBody > 0 {
				// The limit applies to the inflated stream too.
				body = http.MaxBytesReader(w, gzipReader, maxBody)
			}
		}

		events := make([]*event.Event, 0, 1)
		_, err := event.DecodeJSONStream(body, func(ev *event.Event) error {
			events = append(events, ev)
			return nil
		})
		if err != nil {
			status := http.StatusBadRequest
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				status = http.StatusRequestEntityTooLarge
			}
			logger.Warn("http ingest decode failed", slog.String("remote", r.RemoteAddr), slog.String("error", err.Error()))
			writeIngestResponse(w, status, ingestResponse{Error: err.Error()})
			return
		}
		if len(events) == 0 {
			writeIngestResponse(w, http.StatusBadRequest, ingestResponse{Error: "no events in body"})
			return
		}

		for idx, ev := range events {
			if err := queue.Offer(ev); err != nil {
				logger.Warn(
					"http ingest rejected events",
					slog.Int("accepted", idx),
					slog.Int("rejected", len(events)-idx),
					slog.String("error", err.Error()),
				)
				writeIngestResponse(w, http.StatusServiceUnavailable, ingestResponse{Accepted: idx, Error: err.Error()})
				return
			}
		}

		writeIngestResponse(w, http.StatusAccepted, ingestResponse{Accepted: len(events)})
	}
}

func writeIngestResponse(w http.ResponseWriter, status int, body ingestResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
