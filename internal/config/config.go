package config

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/frp/internal/errors"
	"github.com/vango-dev/frp/pkg/frp"
)

// ConfigFileNames are the file names LoadFromDir looks for, in order.
var ConfigFileNames = []string{"frp.json", "frp.yaml", "frp.yml"}

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = ":8080"

	// DefaultReadTimeout is how long a connection may stay silent.
	DefaultReadTimeout = "60s"

	// DefaultWindow is the input window granted to each connection.
	DefaultWindow = 64

	// DefaultMetricsPath is where Prometheus metrics are served.
	DefaultMetricsPath = "/metrics"
)

// Config represents the complete server configuration.
type Config struct {
	// Name identifies the deployment in logs and metrics.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	Server  ServerConfig  `json:"server" yaml:"server"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
	Tracing TracingConfig `json:"tracing" yaml:"tracing"`
	Log     LogConfig     `json:"log" yaml:"log"`
	Budget  BudgetConfig  `json:"budget" yaml:"budget"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// ServerConfig configures the HTTP and websocket bridge.
type ServerConfig struct {
	// Addr is the listen address (host:port).
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`

	// ReadBufferSize and WriteBufferSize size the websocket buffers.
	ReadBufferSize  int `json:"readBufferSize,omitempty" yaml:"readBufferSize,omitempty"`
	WriteBufferSize int `json:"writeBufferSize,omitempty" yaml:"writeBufferSize,omitempty"`

	// ReadTimeout is how long a connection may stay silent (e.g., "60s").
	ReadTimeout string `json:"readTimeout,omitempty" yaml:"readTimeout,omitempty"`

	// InputRate is the sustained number of inputs per second a connection
	// may send. Zero disables rate limiting.
	InputRate float64 `json:"inputRate,omitempty" yaml:"inputRate,omitempty"`

	// InputBurst is the number of inputs allowed above InputRate.
	InputBurst int `json:"inputBurst,omitempty" yaml:"inputBurst,omitempty"`

	// Window is the input window advertised in Hello and Ack frames.
	Window int `json:"window,omitempty" yaml:"window,omitempty"`

	// AllowedOrigins lists origins accepted on /ws. Empty means same-origin
	// only; "*" accepts any origin.
	AllowedOrigins []string `json:"allowedOrigins,omitempty" yaml:"allowedOrigins,omitempty"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	Subsystem string `json:"subsystem,omitempty" yaml:"subsystem,omitempty"`
	Path      string `json:"path,omitempty" yaml:"path,omitempty"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	TracerName string `json:"tracerName,omitempty" yaml:"tracerName,omitempty"`

	// Exporter is "stdout" or "none". With "none" spans go to the global
	// tracer provider.
	Exporter string `json:"exporter,omitempty" yaml:"exporter,omitempty"`
}

// LogConfig configures the slog logger.
type LogConfig struct {
	Level  string `json:"level,omitempty" yaml:"level,omitempty"`
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// BudgetConfig mirrors frp.Budget. Zero disables a limit.
type BudgetConfig struct {
	MaxEmissions      int `json:"maxEmissions,omitempty" yaml:"maxEmissions,omitempty"`
	MaxDeferredRounds int `json:"maxDeferredRounds,omitempty" yaml:"maxDeferredRounds,omitempty"`
}

// Default creates a Config with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            DefaultAddr,
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			ReadTimeout:     DefaultReadTimeout,
			InputRate:       120,
			InputBurst:      32,
			Window:          DefaultWindow,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "frp",
			Path:      DefaultMetricsPath,
		},
		Tracing: TracingConfig{
			TracerName: "github.com/vango-dev/frp",
			Exporter:   "none",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Budget: BudgetConfig{
			MaxEmissions:      frp.DefaultMaxEmissions,
			MaxDeferredRounds: frp.DefaultMaxDeferredRounds,
		},
	}
}

// Load reads configuration from path. Files ending in .yaml or .yml are
// parsed as YAML, anything else as JSON.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New("E301").
			WithDetail("Cannot read " + path).
			Wrap(err)
	}

	cfg := Default()
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, errors.New("E301").
			WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
			Wrap(err)
	}

	cfg.configPath = path
	cfg.applyDefaults()
	return cfg, nil
}

// LoadFromDir loads the first of ConfigFileNames found in dir. When none
// exists it returns Default() with an empty Path.
func LoadFromDir(dir string) (*Config, error) {
	for _, name := range ConfigFileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return Default(), nil
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	for _, name := range ConfigFileNames {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// SaveTo writes the configuration to path, as YAML or JSON by extension.
func (c *Config) SaveTo(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return errors.New("E301").Wrap(err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("E301").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	d := Default()
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = d.Server.ReadTimeout
	}
	if c.Server.Window == 0 {
		c.Server.Window = d.Server.Window
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = d.Metrics.Namespace
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = d.Metrics.Path
	}
	if c.Tracing.TracerName == "" {
		c.Tracing.TracerName = d.Tracing.TracerName
	}
	if c.Tracing.Exporter == "" {
		c.Tracing.Exporter = d.Tracing.Exporter
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return errors.New("E302").WithDetail(fmt.Sprintf(format, args...))
	}

	if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
		return invalid("server.addr %q is not host:port", c.Server.Addr)
	}
	if c.Server.ReadBufferSize < 0 || c.Server.WriteBufferSize < 0 {
		return invalid("websocket buffer sizes must not be negative")
	}
	if d, err := time.ParseDuration(c.Server.ReadTimeout); err != nil || d < 0 {
		return invalid("server.readTimeout %q is not a duration", c.Server.ReadTimeout)
	}
	if c.Server.InputRate < 0 {
		return invalid("server.inputRate must not be negative")
	}
	if c.Server.InputRate > 0 && c.Server.InputBurst < 1 {
		return invalid("server.inputBurst must be at least 1 when inputRate is set")
	}
	if c.Server.Window < 1 {
		return invalid("server.window must be at least 1")
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		return invalid("metrics.path %q must start with /", c.Metrics.Path)
	}
	switch c.Tracing.Exporter {
	case "none", "stdout":
	default:
		return invalid("tracing.exporter %q must be none or stdout", c.Tracing.Exporter)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return invalid("log.format %q must be text or json", c.Log.Format)
	}
	if c.Budget.MaxEmissions < 0 || c.Budget.MaxDeferredRounds < 0 {
		return invalid("budget limits must not be negative")
	}
	return nil
}

// ReadTimeoutDuration returns Server.ReadTimeout parsed, or the default
// when it does not parse.
func (s ServerConfig) ReadTimeoutDuration() time.Duration {
	if d, err := time.ParseDuration(s.ReadTimeout); err == nil {
		return d
	}
	d, _ := time.ParseDuration(DefaultReadTimeout)
	return d
}

// SlogLevel maps Level to a slog.Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, errors.New("E303").WithDetail(fmt.Sprintf("log.level %q is not one of debug, info, warn, error", l.Level))
}

// NewLogger builds a logger writing to w in the configured format.
func (l LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := l.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// Budget converts the section into an frp.Budget.
func (b BudgetConfig) Budget() frp.Budget {
	return frp.Budget{
		MaxEmissions:      b.MaxEmissions,
		MaxDeferredRounds: b.MaxDeferredRounds,
	}
}
