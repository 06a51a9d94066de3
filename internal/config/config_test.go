package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func noEnv(string) (string, bool) { return "", false }

func envFrom(vars map[string]string) EnvLookup {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(
		WithEnvLookup(noEnv),
		WithReadFile(func(string) ([]byte, error) { return nil, os.ErrNotExist }),
	)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != DefaultListenAddr {
		t.Errorf("listen addr = %q, want %q", cfg.ListenAddr, DefaultListenAddr)
	}
	if cfg.HistorySize != DefaultHistorySize {
		t.Errorf("history size = %d, want %d", cfg.HistorySize, DefaultHistorySize)
	}
	if cfg.LogLevel != DefaultLogLevel {
		t.Errorf("log level = %q, want %q", cfg.LogLevel, DefaultLogLevel)
	}
	if !cfg.Metrics.Enabled {
		t.Error("metrics should default to enabled")
	}
	if cfg.StreamURL != "" || cfg.JournalPath != "" || cfg.RunTimeoutSeconds != 0 {
		t.Errorf("unexpected non-zero defaults: %+v", cfg)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rlmtrace.yaml")
	body := strings.Join([]string{
		"stream_url: http://localhost:9000/stream",
		"listen_addr: :9420",
		"history_size: 8",
		"run_timeout_seconds: 120",
		"log_level: debug",
		"metrics:",
		"  enabled: false",
	}, "\n")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(WithEnvLookup(noEnv), WithConfigPath(path))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StreamURL != "http://localhost:9000/stream" {
		t.Errorf("stream url = %q", cfg.StreamURL)
	}
	if cfg.ListenAddr != ":9420" || cfg.HistorySize != 8 || cfg.RunTimeoutSeconds != 120 {
		t.Errorf("file layer not applied: %+v", cfg)
	}
	if cfg.LogLevel != "debug" || cfg.Metrics.Enabled {
		t.Errorf("file layer not applied: %+v", cfg)
	}
}

func TestLoadExplicitFileMissing(t *testing.T) {
	_, err := Load(
		WithEnvLookup(noEnv),
		WithConfigPath(filepath.Join(t.TempDir(), "nope.yaml")),
	)
	if err == nil {
		t.Fatal("explicitly named config file must exist")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rlmtrace.yaml")
	if err := os.WriteFile(path, []byte("stream_url: [unclosed"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(WithEnvLookup(noEnv), WithConfigPath(path)); err == nil {
		t.Fatal("invalid yaml should fail loading")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rlmtrace.yaml")
	if err := os.WriteFile(path, []byte("stream_url: http://file/stream\nhistory_size: 8\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(
		WithConfigPath(path),
		WithEnvLookup(envFrom(map[string]string{
			"RLMTRACE_STREAM_URL":      " http://env/stream ",
			"RLMTRACE_HISTORY_SIZE":    "16",
			"RLMTRACE_METRICS_ENABLED": "false",
		})),
	)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StreamURL != "http://env/stream" {
		t.Errorf("stream url = %q, want env value trimmed", cfg.StreamURL)
	}
	if cfg.HistorySize != 16 {
		t.Errorf("history size = %d, want 16", cfg.HistorySize)
	}
	if cfg.Metrics.Enabled {
		t.Error("metrics should be disabled by env")
	}
}

func TestEnvParseErrors(t *testing.T) {
	cases := map[string]map[string]string{
		"history size":    {"RLMTRACE_HISTORY_SIZE": "many"},
		"run timeout":     {"RLMTRACE_RUN_TIMEOUT_SECONDS": "soon"},
		"metrics enabled": {"RLMTRACE_METRICS_ENABLED": "maybe"},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(
				WithEnvLookup(envFrom(vars)),
				WithReadFile(func(string) ([]byte, error) { return nil, os.ErrNotExist }),
			)
			if err == nil {
				t.Fatal("unparseable env value should fail loading")
			}
		})
	}
}

func TestOverridesWinAndHistoryFloor(t *testing.T) {
	cfg, err := Load(
		WithEnvLookup(envFrom(map[string]string{"RLMTRACE_LISTEN_ADDR": ":1"})),
		WithReadFile(func(string) ([]byte, error) { return nil, os.ErrNotExist }),
		WithOverrides(func(c *Config) {
			c.ListenAddr = ":2"
			c.HistorySize = -5
		}),
	)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":2" {
		t.Errorf("listen addr = %q, overrides should win over env", cfg.ListenAddr)
	}
	if cfg.HistorySize != DefaultHistorySize {
		t.Errorf("history size = %d, non-positive values should fall back", cfg.HistorySize)
	}
}
