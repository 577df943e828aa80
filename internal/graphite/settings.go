package graphite

import (
	"net"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultTimestampField is the event field read for the emission time.
	DefaultTimestampField = "@timestamp"
	// MetricWildcard is the metrics_format marker replaced by the field name.
	MetricWildcard = "*"
)

// MetricTemplate is one explicit (path, value) pair.
// Params: Path and Value are %{field} templates.
// Returns: explicit metric definition.
type MetricTemplate struct {
	Path  string
	Value string
}

// Settings is the resolved adapter configuration.
// Params: collector endpoint, extraction mode options, numeric policy and I/O timeouts.
// Returns: input for NewOutput and NewExtractor.
type Settings struct {
	Host              string
	Port              int
	Metrics           []MetricTemplate
	FieldsAreMetrics  bool
	IncludeMetrics    []string
	ExcludeMetrics    []string
	MetricsFormat     string
	TimestampField    string
	Timeout           time.Duration
	ReconnectInterval time.Duration
	NumericFormat     NumericFormat
	FlattenExplicit   bool
}

// Address returns the collector host:port.
func (s Settings) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// validateEndpoint checks collector endpoint and I/O durations.
// Params: receiver settings.
// Returns: ErrConfiguration on missing host/port or negative durations.
func (s Settings) validateEndpoint() error {
	if strings.TrimSpace(s.Host) == "" {
		return configError("host is required")
	}
	if s.Port <= 0 || s.Port > 65535 {
		return configError("port %d must be within 1..65535", s.Port)
	}
	if s.Timeout < 0 {
		return configError("timeout cannot be negative")
	}
	if s.ReconnectInterval < 0 {
		return configError("reconnect interval cannot be negative")
	}
	return nil
}

// Validate runs every construction-time check NewOutput performs, without building a client.
// Params: receiver settings.
// Returns: ErrConfiguration describing the first invalid option.
func (s Settings) Validate() error {
	if err := s.validateEndpoint(); err != nil {
		return err
	}
	if _, err := ParseNumericFormat(string(s.NumericFormat)); err != nil {
		return err
	}
	_, err := NewExtractor(s)
	return err
}
