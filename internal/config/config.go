package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"graphout/internal/graphite"
)

const (
	defaultLogLevel          = "info"
	defaultLogFormat         = "line"
	defaultAdminListen       = "127.0.0.1:6060"
	defaultGraphiteHost      = "localhost"
	defaultGraphitePort      = 2003
	defaultGraphiteTimeout   = 5 * time.Second
	defaultReconnectInterval = 2 * time.Second
	defaultMetricsFormat     = graphite.MetricWildcard
	defaultQueueSize         = 1024
	defaultHostScrape        = 10 * time.Second
	defaultHTTPListen        = "127.0.0.1:8080"
	defaultHTTPPath          = "/events"
	defaultHTTPMaxBody       = int64(1 << 20)
	defaultGRPCListen        = "127.0.0.1:50051"
)

var (
	defaultIncludeMetrics = []string{".*"}
	defaultExcludeMetrics = []string{`%\{[^}]+\}`}
	defaultHostCollectors = []string{"cpu", "ram", "swap", "load"}
	knownHostCollectors   = map[string]struct{}{"cpu": {}, "ram": {}, "swap": {}, "load": {}, "disk": {}, "fs": {}, "net": {}}
)

// Duration wraps time.Duration for TOML parsing.
// Params: text duration string (e.g. "5s", "1m").
// Returns: parse error on invalid duration.
type Duration struct {
	time.Duration
}

// UnmarshalText parses TOML duration values.
// Params: text is raw duration bytes from TOML.
// Returns: error when value is not a valid Go duration.
func (d *Duration) UnmarshalText(text []byte) error {
	value := strings.TrimSpace(string(text))
	if value == "" {
		d.Duration = 0
		return nil
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value, err)
	}

	d.Duration = parsed
	return nil
}

// Config represents the root adapter configuration.
// Params: TOML document sections.
// Returns: validated runtime configuration.
type Config struct {
	Global   GlobalConfig   `toml:"global"`
	Log      LogConfig      `toml:"log"`
	Admin    AdminConfig    `toml:"admin"`
	Graphite GraphiteConfig `toml:"graphite"`
	Input    InputConfig    `toml:"input"`
}

// GlobalConfig contains values shared by all inputs.
// Params: host name stamped on host-sourced events.
// Returns: global settings.
type GlobalConfig struct {
	Host string `toml:"host"`
}

// LogConfig contains console/file logging configuration.
// Params: console and file sink options.
// Returns: logger sink settings.
type LogConfig struct {
	Console LogSinkConfig `toml:"console"`
	File    LogSinkConfig `toml:"file"`
}

// LogSinkConfig defines one logging sink.
// Params: sink options from TOML.
// Returns: sink setup.
type LogSinkConfig struct {
	Enabled bool   `toml:"enabled"`
	Level   string `toml:"level"`
	Format  string `toml:"format"`
	Path    string `toml:"path"`
	Color   *bool  `toml:"color"`
}

// AdminConfig defines the optional pprof and self-metrics HTTP endpoint.
// Params: enabled flag and listen address in host:port format.
// Returns: admin server settings.
type AdminConfig struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
}

// GraphiteConfig is the [graphite] output section.
// Params: collector endpoint, extraction mode and numeric policy options.
// Returns: raw output settings; see Settings.
type GraphiteConfig struct {
	Host              string         `toml:"host"`
	Port              int            `toml:"port"`
	Metrics           []MetricConfig `toml:"metrics"`
	FieldsAreMetrics  bool           `toml:"fields_are_metrics"`
	IncludeMetrics    []string       `toml:"include_metrics"`
	ExcludeMetrics    []string       `toml:"exclude_metrics"`
	MetricsFormat     string         `toml:"metrics_format"`
	TimestampField    string         `toml:"timestamp_field"`
	Timeout           Duration       `toml:"timeout"`
	ReconnectInterval Duration       `toml:"reconnect_interval"`
	NumericFormat     string         `toml:"numeric_format"`
	FlattenExplicit   bool           `toml:"flatten_explicit"`
}

// MetricConfig is one [[graphite.metrics]] entry.
// Params: path and value templates.
// Returns: explicit metric definition.
type MetricConfig struct {
	Path  string `toml:"path"`
	Value string `toml:"value"`
}

// InputConfig groups event sources feeding the output queue.
// Params: shared queue capacity and per-source sections.
// Returns: input settings.
type InputConfig struct {
	QueueSize int             `toml:"queue_size"`
	Host      HostInputConfig `toml:"host"`
	HTTP      HTTPInputConfig `toml:"http"`
	GRPC      GRPCInputConfig `toml:"grpc"`
}

// HostInputConfig defines the periodic host statistics source.
// Params: scrape interval and collector names (cpu, ram, swap, load, disk, fs, net).
// Returns: host input settings.
type HostInputConfig struct {
	Enabled    bool     `toml:"enabled"`
	Scrape     Duration `toml:"scrape"`
	Collectors []string `toml:"collectors"`
}

// HTTPInputConfig defines the JSON ingest endpoint.
// Params: listen address, request path and body limit.
// Returns: HTTP input settings.
type HTTPInputConfig struct {
	Enabled      bool   `toml:"enabled"`
	Listen       string `toml:"listen"`
	Path         string `toml:"path"`
	MaxBodyBytes int64  `toml:"max_body_bytes"`
}

// GRPCInputConfig defines the gRPC ingest endpoint.
// Params: listen address.
// Returns: gRPC input settings.
type GRPCInputConfig struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
}

// Settings converts the section into output settings.
// Params: receiver graphite section with defaults applied.
// Returns: graphite.Settings for graphite.NewOutput.
func (g GraphiteConfig) Settings() graphite.Settings {
	metrics := make([]graphite.MetricTemplate, 0, len(g.Metrics))
	for _, metric := range g.Metrics {
		metrics = append(metrics, graphite.MetricTemplate{Path: metric.Path, Value: metric.Value})
	}

	return graphite.Settings{
		Host:              g.Host,
		Port:              g.Port,
		Metrics:           metrics,
		FieldsAreMetrics:  g.FieldsAreMetrics,
		IncludeMetrics:    append([]string(nil), g.IncludeMetrics...),
		ExcludeMetrics:    append([]string(nil), g.ExcludeMetrics...),
		MetricsFormat:     g.MetricsFormat,
		TimestampField:    g.TimestampField,
		Timeout:           g.Timeout.Duration,
		ReconnectInterval: g.ReconnectInterval.Duration,
		NumericFormat:     graphite.NumericFormat(g.NumericFormat),
		FlattenExplicit:   g.FlattenExplicit,
	}
}

// Load reads, expands, validates, and returns config from path.
// Params: path to TOML config file or directory with *.toml files.
// Returns: validated config pointer or error.
func Load(path string) (*Config, error) {
	raw, err := readConfigSource(path)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(raw))

	var cfg Config
	if err := toml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("decode TOML %q: %w", path, err)
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// readConfigSource reads one TOML file or concatenates *.toml files from directory.
// Params: path to config file or directory.
// Returns: raw TOML bytes or error.
func readConfigSource(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat config %q: %w", path, err)
	}

	if !info.IsDir() {
		raw, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil, fmt.Errorf("read config %q: %w", path, readErr)
		}
		return raw, nil
	}

	return readConfigDir(path)
}

// readConfigDir concatenates config snippets from one directory.
// Params: path to directory that contains *.toml files.
// Returns: concatenated TOML content or error.
func readConfigDir(path string) ([]byte, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("read config dir %q: %w", path, err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".toml") {
			files = append(files, entry.Name())
		}
	}

	sort.Strings(files)
	if len(files) == 0 {
		return nil, fmt.Errorf("read config dir %q: no *.toml files", path)
	}

	var builder strings.Builder
	for _, name := range files {
		filePath := filepath.Join(path, name)
		raw, readErr := os.ReadFile(filePath)
		if readErr != nil {
			return nil, fmt.Errorf("read config %q: %w", filePath, readErr)
		}
		builder.Write(raw)
		if len(raw) == 0 || raw[len(raw)-1] != '\n' {
			builder.WriteByte('\n')
		}
		builder.WriteByte('\n')
	}

	return []byte(builder.String()), nil
}

// applyDefaults fills defaults for optional configuration fields.
// Params: receiver config pointer.
// Returns: error if defaulting needs host lookup and it fails.
func (c *Config) applyDefaults() error {
	c.Log.Console.Level = lowerOrDefault(c.Log.Console.Level, defaultLogLevel)
	c.Log.Console.Format = lowerOrDefault(c.Log.Console.Format, defaultLogFormat)
	c.Log.File.Level = lowerOrDefault(c.Log.File.Level, defaultLogLevel)
	c.Log.File.Format = lowerOrDefault(c.Log.File.Format, "json")
	if c.Log.Console.Color == nil {
		c.Log.Console.Color = boolPtr(true)
	}
	if c.Log.File.Color == nil {
		c.Log.File.Color = boolPtr(false)
	}

	if !c.Log.Console.Enabled && !c.Log.File.Enabled {
		c.Log.Console.Enabled = true
	}

	if strings.TrimSpace(c.Global.Host) == "" {
		host, err := os.Hostname()
		if err != nil {
			return fmt.Errorf("resolve hostname: %w", err)
		}
		c.Global.Host = host
	}

	if c.Admin.Enabled && strings.TrimSpace(c.Admin.Listen) == "" {
		c.Admin.Listen = defaultAdminListen
	}

	c.applyGraphiteDefaults()
	c.applyInputDefaults()
	return nil
}

// applyGraphiteDefaults fills [graphite] defaults.
// Params: receiver config pointer.
// Returns: none.
func (c *Config) applyGraphiteDefaults() {
	g := &c.Graphite
	if strings.TrimSpace(g.Host) == "" {
		g.Host = defaultGraphiteHost
	}
	if g.Port == 0 {
		g.Port = defaultGraphitePort
	}
	if g.IncludeMetrics == nil {
		g.IncludeMetrics = append([]string(nil), defaultIncludeMetrics...)
	}
	if g.ExcludeMetrics == nil {
		g.ExcludeMetrics = append([]string(nil), defaultExcludeMetrics...)
	}
	if g.MetricsFormat == "" {
		g.MetricsFormat = defaultMetricsFormat
	}
	if strings.TrimSpace(g.TimestampField) == "" {
		g.TimestampField = graphite.DefaultTimestampField
	}
	if g.Timeout.Duration == 0 {
		g.Timeout.Duration = defaultGraphiteTimeout
	}
	if g.ReconnectInterval.Duration == 0 {
		g.ReconnectInterval.Duration = defaultReconnectInterval
	}
	g.NumericFormat = lowerOrDefault(g.NumericFormat, string(graphite.NumericLegacy))
}

// applyInputDefaults fills [input] defaults.
// Params: receiver config pointer.
// Returns: none.
func (c *Config) applyInputDefaults() {
	in := &c.Input
	if in.QueueSize == 0 {
		in.QueueSize = defaultQueueSize
	}

	if in.Host.Scrape.Duration == 0 {
		in.Host.Scrape.Duration = defaultHostScrape
	}
	if in.Host.Collectors == nil {
		in.Host.Collectors = append([]string(nil), defaultHostCollectors...)
	}
	for idx, name := range in.Host.Collectors {
		in.Host.Collectors[idx] = strings.ToLower(strings.TrimSpace(name))
	}

	if in.HTTP.Enabled && strings.TrimSpace(in.HTTP.Listen) == "" {
		in.HTTP.Listen = defaultHTTPListen
	}
	if strings.TrimSpace(in.HTTP.Path) == "" {
		in.HTTP.Path = defaultHTTPPath
	}
	if in.HTTP.MaxBodyBytes == 0 {
		in.HTTP.MaxBodyBytes = defaultHTTPMaxBody
	}

	if in.GRPC.Enabled && strings.TrimSpace(in.GRPC.Listen) == "" {
		in.GRPC.Listen = defaultGRPCListen
	}
}

// validate checks config consistency and required fields.
// Params: receiver config pointer.
// Returns: validation error for invalid or incomplete config.
func (c *Config) validate() error {
	if strings.TrimSpace(c.Global.Host) == "" {
		return fmt.Errorf("global.host resolved to empty value")
	}

	if err := validateSink("log.console", c.Log.Console, false); err != nil {
		return err
	}
	if err := validateSink("log.file", c.Log.File, true); err != nil {
		return err
	}
	if err := validateListen("admin", c.Admin.Enabled, c.Admin.Listen); err != nil {
		return err
	}

	if err := validateGraphite("graphite", c.Graphite); err != nil {
		return err
	}

	return validateInput("input", c.Input)
}

// validateGraphite validates the output section by compiling it.
// Params: path is config path prefix; cfg graphite section.
// Returns: validation error or nil.
func validateGraphite(path string, cfg GraphiteConfig) error {
	for idx, metric := range cfg.Metrics {
		if strings.TrimSpace(metric.Path) == "" {
			return fmt.Errorf("%s.metrics[%d].path cannot be empty", path, idx)
		}
		if strings.TrimSpace(metric.Value) == "" {
			return fmt.Errorf("%s.metrics[%d].value cannot be empty", path, idx)
		}
	}
	if err := validateNonNegativeDurationField(path+".timeout", cfg.Timeout.Duration); err != nil {
		return err
	}
	if err := validateNonNegativeDurationField(path+".reconnect_interval", cfg.ReconnectInterval.Duration); err != nil {
		return err
	}

	if err := cfg.Settings().Validate(); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// validateInput validates input sources.
// Params: path is config path prefix; cfg input section.
// Returns: validation error or nil.
func validateInput(path string, cfg InputConfig) error {
	if cfg.QueueSize < 0 {
		return fmt.Errorf("%s.queue_size must be >= 0", path)
	}
	if !cfg.Host.Enabled && !cfg.HTTP.Enabled && !cfg.GRPC.Enabled {
		return fmt.Errorf("at least one of %s.host, %s.http, %s.grpc must be enabled", path, path, path)
	}

	if cfg.Host.Enabled {
		if cfg.Host.Scrape.Duration <= 0 {
			return fmt.Errorf("%s.host.scrape must be > 0", path)
		}
		if len(cfg.Host.Collectors) == 0 {
			return fmt.Errorf("%s.host.collectors must list at least one collector", path)
		}
		seen := make(map[string]struct{}, len(cfg.Host.Collectors))
		for idx, name := range cfg.Host.Collectors {
			if _, ok := knownHostCollectors[name]; !ok {
				return fmt.Errorf("%s.host.collectors[%d]: unsupported collector %q", path, idx, name)
			}
			if _, dup := seen[name]; dup {
				return fmt.Errorf("%s.host.collectors[%d]: duplicate collector %q", path, idx, name)
			}
			seen[name] = struct{}{}
		}
	}

	if err := validateListen(path+".http", cfg.HTTP.Enabled, cfg.HTTP.Listen); err != nil {
		return err
	}
	if cfg.HTTP.Enabled {
		if !strings.HasPrefix(cfg.HTTP.Path, "/") {
			return fmt.Errorf("%s.http.path must start with /", path)
		}
		if cfg.HTTP.MaxBodyBytes < 0 {
			return fmt.Errorf("%s.http.max_body_bytes must be >= 0", path)
		}
	}

	return validateListen(path+".grpc", cfg.GRPC.Enabled, cfg.GRPC.Listen)
}

// validateSink validates one logging sink configuration.
// Params: name is sink path for errors; sink is sink config; requirePath means path required when enabled.
// Returns: validation error or nil.
func validateSink(name string, sink LogSinkConfig, requirePath bool) error {
	if sink.Enabled && requirePath && strings.TrimSpace(sink.Path) == "" {
		return fmt.Errorf("%s.path is required when sink is enabled", name)
	}

	if err := validateLogLevel(sink.Level); err != nil {
		return fmt.Errorf("%s.level: %w", name, err)
	}
	if err := validateLogFormat(sink.Format); err != nil {
		return fmt.Errorf("%s.format: %w", name, err)
	}

	return nil
}

// validateLogLevel validates known log levels.
// Params: level is lower-case level name.
// Returns: error when level is unsupported.
func validateLogLevel(level string) error {
	switch strings.TrimSpace(strings.ToLower(level)) {
	case "info", "warn", "error", "panic", "debug":
		return nil
	default:
		return fmt.Errorf("unsupported value %q", level)
	}
}

// validateLogFormat validates supported sink formats.
// Params: format is lower-case format name.
// Returns: error when format is unsupported.
func validateLogFormat(format string) error {
	switch strings.TrimSpace(strings.ToLower(format)) {
	case "line", "json":
		return nil
	default:
		return fmt.Errorf("unsupported value %q", format)
	}
}

// validateListen validates an optional listen endpoint.
// Params: path is config path prefix; enabled flag; listen host:port.
// Returns: validation error for invalid listen endpoint.
func validateListen(path string, enabled bool, listen string) error {
	if !enabled {
		return nil
	}
	if strings.TrimSpace(listen) == "" {
		return fmt.Errorf("%s.listen cannot be empty when enabled", path)
	}
	if _, _, err := net.SplitHostPort(listen); err != nil {
		return fmt.Errorf("%s.listen must be host:port: %w", path, err)
	}
	return nil
}

// validateNonNegativeDurationField rejects negative durations.
// Params: fieldPath for errors; value duration.
// Returns: validation error or nil.
func validateNonNegativeDurationField(fieldPath string, value time.Duration) error {
	if value < 0 {
		return fmt.Errorf("%s must be >= 0", fieldPath)
	}
	return nil
}

// lowerOrDefault returns a trimmed lower-case value or default fallback.
// Params: value to normalize; fallback value when empty.
// Returns: normalized value.
func lowerOrDefault(value, fallback string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return fallback
	}
	return normalized
}

func boolPtr(value bool) *bool {
	return &value
}
