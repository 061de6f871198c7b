package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v2"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
	config   *ConfigData
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadConfig reads the file, applies defaults and validates the result.
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}
	config, err := ParseYAML(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", y.filename, err)
	}
	y.config = config
	return config, nil
}

// ParseYAML decodes a configuration document. Unknown keys are rejected so a
// misspelled option does not silently fall back to its default.
func ParseYAML(data []byte) (*ConfigData, error) {
	var doc ConfigYAML
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.SetStrict(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	config := &ConfigData{
		Server: ServerData{
			ListenAddr: doc.Server.ListenAddr,
			Port:       doc.Server.Port,
			Cert:       doc.Server.Cert,
			Key:        doc.Server.Key,
			DataRoot:   doc.Server.DataRoot,
		},
		Analysis: AnalysisData{
			DefaultSampling:      doc.Analysis.DefaultSampling,
			DefaultMaxCurves:     doc.Analysis.DefaultMaxCurves,
			MinInterpolatePoints: doc.Analysis.MinInterpolatePoints,
			MaxInterpolatePoints: doc.Analysis.MaxInterpolatePoints,
			CacheSize:            doc.Analysis.CacheSize,
		},
		History: HistoryData{
			Backend:     doc.History.Backend,
			SQLitePath:  doc.History.SQLitePath,
			PostgresDSN: doc.History.PostgresDSN,
		},
		Logging: LoggingData{
			Debug:      doc.Logging.Debug,
			File:       doc.Logging.File,
			MaxSizeMB:  doc.Logging.MaxSizeMB,
			MaxBackups: doc.Logging.MaxBackups,
		},
		Tracing: TracingData{
			Enabled: doc.Tracing.Enabled,
			File:    doc.Tracing.File,
		},
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (y *YAMLProvider) loaded() (*ConfigData, error) {
	if y.config == nil {
		return y.LoadConfig()
	}
	return y.config, nil
}

// GetServerConfig returns the REST server section
func (y *YAMLProvider) GetServerConfig() (*ServerData, error) {
	c, err := y.loaded()
	if err != nil {
		return nil, err
	}
	return &c.Server, nil
}

// GetAnalysisConfig returns the analysis defaults
func (y *YAMLProvider) GetAnalysisConfig() (*AnalysisData, error) {
	c, err := y.loaded()
	if err != nil {
		return nil, err
	}
	return &c.Analysis, nil
}

// GetHistoryConfig returns the history store section
func (y *YAMLProvider) GetHistoryConfig() (*HistoryData, error) {
	c, err := y.loaded()
	if err != nil {
		return nil, err
	}
	return &c.History, nil
}

// IsReadOnly returns true since YAML files are read-only through this interface
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}

// YAML-specific structs with kebab-case keys
type ConfigYAML struct {
	Server   ServerYAML   `yaml:"server,omitempty"`
	Analysis AnalysisYAML `yaml:"analysis,omitempty"`
	History  HistoryYAML  `yaml:"history,omitempty"`
	Logging  LoggingYAML  `yaml:"logging,omitempty"`
	Tracing  TracingYAML  `yaml:"tracing,omitempty"`
}

type ServerYAML struct {
	ListenAddr string `yaml:"listen-addr,omitempty"`
	Port       int    `yaml:"port,omitempty"`
	Cert       string `yaml:"cert,omitempty"`
	Key        string `yaml:"key,omitempty"`
	DataRoot   string `yaml:"data-root,omitempty"`
}

type AnalysisYAML struct {
	DefaultSampling      string `yaml:"default-sampling,omitempty"`
	DefaultMaxCurves     int    `yaml:"default-max-curves,omitempty"`
	MinInterpolatePoints int    `yaml:"min-interpolate-points,omitempty"`
	MaxInterpolatePoints int    `yaml:"max-interpolate-points,omitempty"`
	CacheSize            int    `yaml:"cache-size,omitempty"`
}

type HistoryYAML struct {
	Backend     string `yaml:"backend,omitempty"`
	SQLitePath  string `yaml:"sqlite-path,omitempty"`
	PostgresDSN string `yaml:"postgres-dsn,omitempty"`
}

type LoggingYAML struct {
	Debug      bool   `yaml:"debug,omitempty"`
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max-size-mb,omitempty"`
	MaxBackups int    `yaml:"max-backups,omitempty"`
}

type TracingYAML struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	File    string `yaml:"file,omitempty"`
}
