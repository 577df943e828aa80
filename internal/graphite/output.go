// Package graphite turns events into plaintext Graphite lines and ships them over TCP.
package graphite

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"graphout/internal/event"
)

// Option customizes an Output.
type Option func(*Output)

// WithLogger sets the output logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Output) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithStats enables self-metrics accounting.
func WithStats(stats *Stats) Option {
	return func(o *Output) { o.stats = stats }
}

// WithClock overrides the wall clock used when events carry no timestamp.
func WithClock(now func() time.Time) Option {
	return func(o *Output) {
		if now != nil {
			o.now = now
		}
	}
}

// WithDialer overrides the TCP dialer.
func WithDialer(dialer Dialer) Option {
	return func(o *Output) { o.dialer = dialer }
}

// WithStateObserver registers a connection state callback.
func WithStateObserver(fn func(State)) Option {
	return func(o *Output) { o.onStateChange = fn }
}

// Output is the adapter entry point: Process is called once per event, never concurrently.
// Params: built by NewOutput.
// Returns: event-to-collector adapter.
type Output struct {
	settings  Settings
	extractor *Extractor
	formatter Formatter
	client    *Client

	logger        *slog.Logger
	stats         *Stats
	now           func() time.Time
	dialer        Dialer
	onStateChange func(State)
}

// NewOutput validates settings and compiles extraction rules; it does not connect.
// Params: s resolved settings; opts optional collaborators.
// Returns: output or ErrConfiguration.
func NewOutput(s Settings, opts ...Option) (*Output, error) {
	if err := s.validateEndpoint(); err != nil {
		return nil, err
	}
	numeric, err := ParseNumericFormat(string(s.NumericFormat))
	if err != nil {
		return nil, err
	}
	s.NumericFormat = numeric
	if strings.TrimSpace(s.TimestampField) == "" {
		s.TimestampField = DefaultTimestampField
	}

	extractor, err := NewExtractor(s)
	if err != nil {
		return nil, err
	}

	out := &Output{
		settings:  s,
		extractor: extractor,
		formatter: Formatter{Numeric: numeric},
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(out)
	}

	client, err := NewClient(ClientOptions{
		Address:           s.Address(),
		Timeout:           s.Timeout,
		ReconnectInterval: s.ReconnectInterval,
		Dialer:            out.dialer,
		Logger:            out.logger,
		Stats:             out.stats,
		OnStateChange:     out.onStateChange,
	})
	if err != nil {
		return nil, err
	}
	out.client = client
	return out, nil
}

// Process extracts, formats and sends the metrics of one event.
// Params: ctx bounds socket I/O; ev event read only during this call.
// Returns: nil, or *DeliveryError when lines were lost; skipped metrics are logged, not returned.
func (o *Output) Process(ctx context.Context, ev *event.Event) error {
	o.stats.event()
	ts := o.timestamp(ev)

	metrics := o.extractor.Extract(ev)
	lines := make([]string, 0, len(metrics))
	for _, metric := range metrics {
		if len(metric.Missing) > 0 {
			o.logger.Debug(
				"field reference missing, resolved to empty string",
				slog.String("path", metric.Path),
				slog.String("fields", strings.Join(metric.Missing, ",")),
			)
		}

		line, err := o.formatter.Format(metric, ts)
		if err != nil {
			reason := skipReason(metric)
			o.stats.metricSkipped(reason)
			// Non-numeric fields are routine in field-driven mode (@host, tags).
			level := slog.LevelWarn
			if reason == "value" {
				level = slog.LevelDebug
			}
			o.logger.Log(ctx, level, "skipping metric", slog.String("path", metric.Path), slog.String("error", err.Error()))
			continue
		}
		lines = append(lines, line)
	}

	if len(lines) == 0 {
		o.logger.Debug("event produced no metrics, nothing sent")
		return nil
	}

	for idx, line := range lines {
		if err := o.client.Send(ctx, line); err != nil {
			dropped := len(lines) - idx
			o.stats.linesDropped(dropped)
			cause := err
			var sendErr *DeliveryError
			if errors.As(err, &sendErr) {
				cause = sendErr.Err
			}
			return &DeliveryError{Sent: idx, Dropped: dropped, Err: cause}
		}
		o.stats.lineSent()
	}

	o.logger.Debug("sent graphite lines", slog.Int("lines", len(lines)), slog.Int64("timestamp", ts))
	return nil
}

// State returns the collector connection state.
func (o *Output) State() State {
	return o.client.State()
}

// Close closes the collector connection.
func (o *Output) Close() error {
	return o.client.Close()
}

// timestamp reads the configured timestamp field or falls back to the clock.
// Params: ev event.
// Returns: unix seconds.
func (o *Output) timestamp(ev *event.Event) int64 {
	if value, ok := ev.Lookup(o.settings.TimestampField); ok {
		if ts, ok := timestampFromValue(value); ok {
			return ts
		}
		o.logger.Debug(
			"timestamp field unusable, using wall clock",
			slog.String("field", o.settings.TimestampField),
			slog.String("kind", value.Kind().String()),
		)
	}
	return o.now().Unix()
}

// timestampFromValue converts numbers, numeric strings and RFC 3339 strings to unix seconds.
// Params: value timestamp field value.
// Returns: unix seconds and true on success.
func timestampFromValue(value event.Value) (int64, bool) {
	if n, ok := value.IntValue(); ok {
		return n, true
	}
	if f, ok := value.Number(); ok {
		return secondsFromFloat(f)
	}

	text, ok := value.Text()
	if !ok {
		return 0, false
	}
	text = strings.TrimSpace(text)
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return n, true
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return secondsFromFloat(f)
	}
	if parsed, err := time.Parse(time.RFC3339Nano, text); err == nil {
		return parsed.Unix(), true
	}
	return 0, false
}

// secondsFromFloat truncates f to whole seconds.
// Params: f unix seconds as float.
// Returns: false for NaN, infinities and values outside the int64 range.
func secondsFromFloat(f float64) (int64, bool) {
	if math.IsNaN(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func skipReason(metric Metric) string {
	if metric.Path == "" || strings.ContainsAny(metric.Path, " \t\r\n") {
		return "path"
	}
	return "value"
}
