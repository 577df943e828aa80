package pipeline

import (
	"context"
	"log/slog"

	"graphout/internal/event"
)

// Sink consumes events produced by inputs.
// Params: context and one event.
// Returns: error if sink cannot accept the event.
type Sink interface {
	Consume(ctx context.Context, ev *event.Event) error
}

// LogSink writes events into debug logs.
// Params: logger used for output.
// Returns: debug sink instance.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a debug sink.
// Params: logger instance.
// Returns: event sink implementation.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Consume logs one event as compact JSON when debug logging is enabled.
// Params: ctx for level checks; ev event to log.
// Returns: nil.
func (s *LogSink) Consume(ctx context.Context, ev *event.Event) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if !s.logger.Enabled(ctx, slog.LevelDebug) {
		return nil
	}

	s.logger.Debug(
		"event",
		slog.Int("fields", ev.Fields().Len()),
		slog.String("payload", event.MapValue(ev.Fields()).String()),
	)
	return nil
}

// MultiSink dispatches one event to multiple sink implementations.
// Params: sink list.
// Returns: composite sink.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink builds composite sink from sink list.
// Params: sinks target list; nil entries are skipped.
// Returns: multi sink implementation.
func NewMultiSink(sinks ...Sink) *MultiSink {
	out := make([]Sink, 0, len(sinks))
	for _, sink := range sinks {
		if sink == nil {
			continue
		}
		out = append(out, sink)
	}
	return &MultiSink{sinks: out}
}

// Consume forwards event to each child sink.
// Params: ctx consume context; ev event.
// Returns: first error from downstream sinks, if any.
func (s *MultiSink) Consume(ctx context.Context, ev *event.Event) error {
	var firstErr error
	for _, sink := range s.sinks {
		if err := sink.Consume(ctx, ev); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
