// Package config loads runtime configuration in layers: defaults, then an
// optional YAML file, then RLMTRACE_* environment overrides, then caller
// overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"rlmtrace/internal/observability"
)

// Config is the resolved runtime configuration.
type Config struct {
	// StreamURL is the live execution service's event stream endpoint.
	StreamURL string `yaml:"stream_url"`
	// ListenAddr is the HTTP API bind address for serve mode.
	ListenAddr string `yaml:"listen_addr"`
	// JournalPath enables raw-record journaling when non-empty.
	JournalPath string `yaml:"journal_path"`
	// HistorySize bounds the completed-run cache.
	HistorySize int `yaml:"history_size"`
	// RunTimeoutSeconds caps one run's wall time; 0 means unlimited.
	RunTimeoutSeconds int `yaml:"run_timeout_seconds"`
	// LogLevel is the debug-log threshold: debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	Metrics observability.MetricsConfig `yaml:"metrics"`
}

const (
	DefaultListenAddr  = ":8420"
	DefaultHistorySize = 32
	DefaultLogLevel    = "info"

	configFileName = ".rlmtrace.yaml"
	envPrefix      = "RLMTRACE_"
)

// EnvLookup abstracts os.LookupEnv for tests.
type EnvLookup func(key string) (string, bool)

// DefaultEnvLookup reads the process environment.
var DefaultEnvLookup EnvLookup = os.LookupEnv

type loadOptions struct {
	envLookup  EnvLookup
	readFile   func(string) ([]byte, error)
	homeDir    func() (string, error)
	configPath string
	overrides  func(*Config)
}

// Option adjusts how Load resolves configuration.
type Option func(*loadOptions)

// WithEnvLookup substitutes the environment source.
func WithEnvLookup(lookup EnvLookup) Option {
	return func(o *loadOptions) {
		if lookup != nil {
			o.envLookup = lookup
		}
	}
}

// WithConfigPath pins the YAML file location instead of ~/.rlmtrace.yaml.
func WithConfigPath(path string) Option {
	return func(o *loadOptions) { o.configPath = path }
}

// WithReadFile substitutes the file reader.
func WithReadFile(read func(string) ([]byte, error)) Option {
	return func(o *loadOptions) {
		if read != nil {
			o.readFile = read
		}
	}
}

// WithOverrides applies caller overrides after every other layer.
func WithOverrides(apply func(*Config)) Option {
	return func(o *loadOptions) { o.overrides = apply }
}

// Load resolves the configuration.
func Load(opts ...Option) (Config, error) {
	options := loadOptions{
		envLookup: DefaultEnvLookup,
		readFile:  os.ReadFile,
		homeDir:   os.UserHomeDir,
	}
	for _, opt := range opts {
		opt(&options)
	}

	cfg := Config{
		ListenAddr:  DefaultListenAddr,
		HistorySize: DefaultHistorySize,
		LogLevel:    DefaultLogLevel,
		Metrics:     observability.MetricsConfig{Enabled: true},
	}

	if err := applyFile(&cfg, options); err != nil {
		return Config{}, err
	}
	if err := applyEnv(&cfg, options.envLookup); err != nil {
		return Config{}, err
	}
	if options.overrides != nil {
		options.overrides(&cfg)
	}

	if cfg.HistorySize <= 0 {
		cfg.HistorySize = DefaultHistorySize
	}
	return cfg, nil
}

func applyFile(cfg *Config, options loadOptions) error {
	path := options.configPath
	explicit := path != ""
	if !explicit {
		home, err := options.homeDir()
		if err != nil {
			return nil
		}
		path = filepath.Join(home, configFileName)
	}

	data, err := options.readFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return nil
		}
		if explicit {
			return fmt.Errorf("read config %s: %w", path, err)
		}
		return nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config, lookup EnvLookup) error {
	if raw, ok := lookup(envPrefix + "STREAM_URL"); ok {
		cfg.StreamURL = strings.TrimSpace(raw)
	}
	if raw, ok := lookup(envPrefix + "LISTEN_ADDR"); ok {
		cfg.ListenAddr = strings.TrimSpace(raw)
	}
	if raw, ok := lookup(envPrefix + "JOURNAL_PATH"); ok {
		cfg.JournalPath = strings.TrimSpace(raw)
	}
	if raw, ok := lookup(envPrefix + "LOG_LEVEL"); ok {
		cfg.LogLevel = strings.TrimSpace(raw)
	}
	if raw, ok := lookup(envPrefix + "HISTORY_SIZE"); ok {
		value, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("parse %sHISTORY_SIZE: %w", envPrefix, err)
		}
		cfg.HistorySize = value
	}
	if raw, ok := lookup(envPrefix + "RUN_TIMEOUT_SECONDS"); ok {
		value, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("parse %sRUN_TIMEOUT_SECONDS: %w", envPrefix, err)
		}
		cfg.RunTimeoutSeconds = value
	}
	if raw, ok := lookup(envPrefix + "METRICS_ENABLED"); ok {
		value, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("parse %sMETRICS_ENABLED: %w", envPrefix, err)
		}
		cfg.Metrics.Enabled = value
	}
	return nil
}
