// Package config loads service configuration for spmanalyzer.
package config

import (
	"errors"
	"fmt"
	"strings"
)

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	// Get specific configuration sections
	GetServerConfig() (*ServerData, error)
	GetAnalysisConfig() (*AnalysisData, error)
	GetHistoryConfig() (*HistoryData, error)

	IsReadOnly() bool
	Close() error
}

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// History backends.
const (
	HistorySQLite   = "sqlite"
	HistoryPostgres = "postgres"
	HistoryNone     = "none"
)

// Defaults applied by ApplyDefaults.
const (
	DefaultListenAddr           = "0.0.0.0"
	DefaultPort                 = 8080
	DefaultSampling             = "bresenham"
	DefaultMaxCurves            = 20
	DefaultMinInterpolatePoints = 2
	DefaultMaxInterpolatePoints = 10000
	DefaultCacheSize            = 20
	DefaultHistoryPath          = "spmanalyzer.db"
	DefaultLogMaxSizeMB         = 50
	DefaultLogMaxBackups        = 3
)

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Server   ServerData   `json:"server"`
	Analysis AnalysisData `json:"analysis"`
	History  HistoryData  `json:"history"`
	Logging  LoggingData  `json:"logging"`
	Tracing  TracingData  `json:"tracing"`
}

// ServerData configures the REST listener.
type ServerData struct {
	ListenAddr string `json:"listen_addr,omitempty"`
	Port       int    `json:"port,omitempty"`
	Cert       string `json:"cert,omitempty"`
	Key        string `json:"key,omitempty"`
	// DataRoot, when set, restricts session txt paths to this directory tree.
	DataRoot string `json:"data_root,omitempty"`
}

// Addr returns host:port for net/http.
func (s ServerData) Addr() string {
	return fmt.Sprintf("%s:%d", s.ListenAddr, s.Port)
}

// TLS reports whether both a certificate and key are configured.
func (s ServerData) TLS() bool {
	return s.Cert != "" && s.Key != ""
}

// AnalysisData holds engine defaults used when a request omits a parameter.
type AnalysisData struct {
	DefaultSampling      string `json:"default_sampling,omitempty"`
	DefaultMaxCurves     int    `json:"default_max_curves,omitempty"`
	MinInterpolatePoints int    `json:"min_interpolate_points,omitempty"`
	MaxInterpolatePoints int    `json:"max_interpolate_points,omitempty"`
	CacheSize            int    `json:"cache_size,omitempty"`
}

// HistoryData selects where analysis history is recorded.
type HistoryData struct {
	Backend     string `json:"backend,omitempty"`
	SQLitePath  string `json:"sqlite_path,omitempty"`
	PostgresDSN string `json:"postgres_dsn,omitempty"`
}

// LoggingData configures internal/log.
type LoggingData struct {
	Debug      bool   `json:"debug,omitempty"`
	File       string `json:"file,omitempty"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty"`
}

// TracingData configures the analysis span exporter. Spans are written as
// JSON lines to File, or to stdout when File is empty.
type TracingData struct {
	Enabled bool   `json:"enabled,omitempty"`
	File    string `json:"file,omitempty"`
}

// ApplyDefaults fills every zero-valued field with its default.
func (c *ConfigData) ApplyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = DefaultListenAddr
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}

	if c.Analysis.DefaultSampling == "" {
		c.Analysis.DefaultSampling = DefaultSampling
	}
	c.Analysis.DefaultSampling = strings.ToLower(c.Analysis.DefaultSampling)
	if c.Analysis.DefaultMaxCurves == 0 {
		c.Analysis.DefaultMaxCurves = DefaultMaxCurves
	}
	if c.Analysis.MinInterpolatePoints == 0 {
		c.Analysis.MinInterpolatePoints = DefaultMinInterpolatePoints
	}
	if c.Analysis.MaxInterpolatePoints == 0 {
		c.Analysis.MaxInterpolatePoints = DefaultMaxInterpolatePoints
	}
	if c.Analysis.CacheSize == 0 {
		c.Analysis.CacheSize = DefaultCacheSize
	}

	if c.History.Backend == "" {
		c.History.Backend = HistorySQLite
	}
	if c.History.Backend == HistorySQLite && c.History.SQLitePath == "" {
		c.History.SQLitePath = DefaultHistoryPath
	}

	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = DefaultLogMaxSizeMB
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = DefaultLogMaxBackups
	}
}

// Validate reports every problem found, joined into one error.
func (c *ConfigData) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		bad("server port %d out of range", c.Server.Port)
	}
	if (c.Server.Cert == "") != (c.Server.Key == "") {
		bad("server cert and key must be set together")
	}

	switch c.Analysis.DefaultSampling {
	case "bresenham", "interpolate":
	default:
		bad("unknown default sampling %q", c.Analysis.DefaultSampling)
	}
	if c.Analysis.DefaultMaxCurves < 1 {
		bad("default max curves must be at least 1, got %d", c.Analysis.DefaultMaxCurves)
	}
	if c.Analysis.MinInterpolatePoints < 1 {
		bad("min interpolate points must be at least 1, got %d", c.Analysis.MinInterpolatePoints)
	}
	if c.Analysis.MaxInterpolatePoints < c.Analysis.MinInterpolatePoints {
		bad("max interpolate points %d is below the minimum %d", c.Analysis.MaxInterpolatePoints, c.Analysis.MinInterpolatePoints)
	}
	if c.Analysis.CacheSize < 1 {
		bad("cache size must be at least 1, got %d", c.Analysis.CacheSize)
	}

	switch c.History.Backend {
	case HistorySQLite:
		if c.History.SQLitePath == "" {
			bad("sqlite history requires sqlite-path")
		}
	case HistoryPostgres:
		if c.History.PostgresDSN == "" {
			bad("postgres history requires postgres-dsn")
		}
	case HistoryNone:
	default:
		bad("unknown history backend %q", c.History.Backend)
	}

	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxBackups < 0 {
		bad("log rotation settings must not be negative")
	}

	return errors.Join(errs...)
}
