package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"graphout/internal/event"
	"graphout/internal/graphite"
)

const (
	minShutdownDrain = 3 * time.Second
	maxShutdownDrain = time.Minute
)

// ErrQueueFull is returned when the output queue cannot take another event.
var ErrQueueFull = errors.New("output queue is full")

// EventProcessor handles one event at a time; *graphite.Output satisfies it.
type EventProcessor interface {
	Process(ctx context.Context, ev *event.Event) error
	Close() error
}

// OutputSink queues events for a single dispatcher goroutine that owns the processor.
// Params: built by NewOutputSink.
// Returns: sink and runner with bounded memory.
type OutputSink struct {
	processor EventProcessor
	logger    *slog.Logger
	input     chan *event.Event
	drainFor  time.Duration
}

// NewOutputSink creates the queue in front of processor.
// Params: processor event handler; queueSize buffered events (0 = unbuffered); drainFor shutdown flush budget; logger.
// Returns: output sink or error.
func NewOutputSink(processor EventProcessor, queueSize int, drainFor time.Duration, logger *slog.Logger) (*OutputSink, error) {
	if processor == nil {
		return nil, fmt.Errorf("event processor is nil")
	}
	if queueSize < 0 {
		return nil, fmt.Errorf("queue size must be >= 0")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	drainFor = min(max(drainFor, minShutdownDrain), maxShutdownDrain)
	return &OutputSink{
		processor: processor,
		logger:    logger,
		input:     make(chan *event.Event, queueSize),
		drainFor:  drainFor,
	}, nil
}

// Consume enqueues ev, waiting for room while ctx is alive.
// Params: ctx consume context; ev event handed over to the dispatcher.
// Returns: context error when canceled while waiting for backpressure release.
func (s *OutputSink) Consume(ctx context.Context, ev *event.Event) error {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case s.input <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Offer enqueues ev without waiting.
// Params: ev event handed over to the dispatcher.
// Returns: ErrQueueFull when the queue has no room (drop-new policy).
func (s *OutputSink) Offer(ev *event.Event) error {
	select {
	case s.input <- ev:
		return nil
	default:
		return ErrQueueFull
	}
}

// Pending returns the number of queued events.
func (s *OutputSink) Pending() int {
	return len(s.input)
}

// run dispatches queued events until ctx is canceled, then drains what is left.
// Params: ctx lifecycle context.
// Returns: nil on graceful stop.
func (s *OutputSink) run(ctx context.Context) error {
	defer func() {
		if err := s.processor.Close(); err != nil {
			s.logger.Warn("close graphite output failed", slog.String("error", err.Error()))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			s.drain(nil)
			return nil
		case ev := <-s.input:
			if ctx.Err() != nil {
				s.drain(ev)
				return nil
			}
			s.dispatch(ctx, ev)
		}
	}
}

// drain processes already queued events under a bounded shutdown context.
// Params: first event already taken off the queue, or nil.
// Returns: none.
func (s *OutputSink) drain(first *event.Event) {
	pending := len(s.input)
	if first == nil && pending == 0 {
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.drainFor)
	defer cancel()

	if first != nil {
		s.dispatch(shutdownCtx, first)
	}
	for idx := 0; idx < pending; idx++ {
		if shutdownCtx.Err() != nil {
			s.logger.Warn("shutdown drain timed out, dropping queued events", slog.Int("events", pending-idx))
			return
		}
		s.dispatch(shutdownCtx, <-s.input)
	}
}

// dispatch hands one event to the processor and logs delivery failures.
// Params: ctx processing context; ev event.
// Returns: none.
func (s *OutputSink) dispatch(ctx context.Context, ev *event.Event) {
	err := s.processor.Process(ctx, ev)
	if err == nil {
		return
	}

	var delivery *graphite.DeliveryError
	if errors.As(err, &delivery) {
		s.logger.Warn(
			"graphite delivery failed, lines dropped",
			slog.Int("sent", delivery.Sent),
			slog.Int("dropped", delivery.Dropped),
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.Error("process event failed", slog.String("error", err.Error()))
}
