package pipeline

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"graphout/internal/event"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// lockedBuffer is a goroutine-safe log destination.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// recordingQueue captures offered events; limit > 0 makes it reject once full.
type recordingQueue struct {
	mu     sync.Mutex
	limit  int
	events []*event.Event
}

func (q *recordingQueue) Offer(ev *event.Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.limit > 0 && len(q.events) >= q.limit {
		return ErrQueueFull
	}
	q.events = append(q.events, ev)
	return nil
}

func (q *recordingQueue) snapshot() []*event.Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*event.Event(nil), q.events...)
}

// recordingSink captures consumed events.
type recordingSink struct {
	mu     sync.Mutex
	events []*event.Event
}

func (s *recordingSink) Consume(_ context.Context, ev *event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSink) snapshot() []*event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*event.Event(nil), s.events...)
}

// recordingProcessor captures processed events and returns scripted errors.
type recordingProcessor struct {
	mu        sync.Mutex
	processed []*event.Event
	errs      []error
	closed    bool
	gate      chan struct{}
}

func (p *recordingProcessor) Process(ctx context.Context, ev *event.Event) error {
	if p.gate != nil {
		select {
		case <-p.gate:
		default:
			select {
			case <-p.gate:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.processed = append(p.processed, ev)
	if len(p.errs) > 0 {
		err := p.errs[0]
		p.errs = p.errs[1:]
		return err
	}
	return nil
}

func (p *recordingProcessor) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *recordingProcessor) snapshot() ([]*event.Event, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*event.Event(nil), p.processed...), p.closed
}

func namedEvent(t *testing.T, name string) *event.Event {
	t.Helper()
	ev := event.New()
	ev.Set("name", event.String(name))
	return ev
}

func eventName(ev *event.Event) string {
	value, _ := ev.Get("name")
	return value.String()
}
