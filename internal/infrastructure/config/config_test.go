package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Input config
	assert.Empty(t, cfg.Input.Paths)
	assert.Equal(t, "auto", cfg.Input.Format)
	assert.Zero(t, cfg.Input.Timeout)

	// Reader config
	assert.Equal(t, 256, cfg.Reader.BatchSize)
	assert.Equal(t, 64, cfg.Reader.QueueDepth)
	assert.Equal(t, 16<<20, cfg.Reader.MaxRecordSize)
	assert.Equal(t, 2*time.Second, cfg.Reader.Grace.Std())

	// Analysis config
	assert.Equal(t, "containment", cfg.Analysis.EdgeRule)
	assert.Equal(t, "inferno", cfg.Analysis.Palette)
	assert.Equal(t, 10, cfg.Analysis.PaletteSize)
	assert.False(t, cfg.Analysis.IncludeActivations)

	// Output config
	assert.Equal(t, "flowtrace-graph.json", cfg.Output.Graph)
	assert.Empty(t, cfg.Output.Summary)

	// Logging config
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"FLOWTRACE_INPUTS":              "a.ftrace,b.ftrace",
		"FLOWTRACE_FORMAT":              "json",
		"FLOWTRACE_TIMEOUT":             "90s",
		"FLOWTRACE_BATCH_SIZE":          "32",
		"FLOWTRACE_QUEUE_DEPTH":         "8",
		"FLOWTRACE_EDGE_RULE":           "parent",
		"FLOWTRACE_PALETTE":             "viridis",
		"FLOWTRACE_PALETTE_SIZE":        "5",
		"FLOWTRACE_INCLUDE_ACTIVATIONS": "true",
		"FLOWTRACE_OUTPUT":              "out/graph.json",
		"FLOWTRACE_SUMMARY":             "out/summary.json",
		"FLOWTRACE_LOG_LEVEL":           "debug",
		"FLOWTRACE_LOG_DEV":             "true",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, []string{"a.ftrace", "b.ftrace"}, cfg.Input.Paths)
	assert.Equal(t, "json", cfg.Input.Format)
	assert.Equal(t, 90*time.Second, cfg.Input.Timeout.Std())
	assert.Equal(t, 32, cfg.Reader.BatchSize)
	assert.Equal(t, 8, cfg.Reader.QueueDepth)
	assert.Equal(t, "parent", cfg.Analysis.EdgeRule)
	assert.Equal(t, "viridis", cfg.Analysis.Palette)
	assert.Equal(t, 5, cfg.Analysis.PaletteSize)
	assert.True(t, cfg.Analysis.IncludeActivations)
	assert.Equal(t, "out/graph.json", cfg.Output.Graph)
	assert.Equal(t, "out/summary.json", cfg.Output.Summary)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)

	// untouched values keep their defaults
	assert.Equal(t, 16<<20, cfg.Reader.MaxRecordSize)
}

func TestLoadInvalidEnvironment(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad duration", "FLOWTRACE_TIMEOUT", "soon"},
		{"bad integer", "FLOWTRACE_BATCH_SIZE", "many"},
		{"bad bool", "FLOWTRACE_LOG_DEV", "perhaps"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			cfg, err := Load("")
			assert.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}

func TestLoadFile(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "yaml",
			file: "flowtrace.yaml",
			content: `input:
  paths: ["traces/"]
  timeout: 1m
analysis:
  palette: magma
  include_activations: true
logging:
  level: warn
`,
		},
		{
			name: "toml",
			file: "flowtrace.toml",
			content: `[input]
paths = ["traces/"]
timeout = "1m"

[analysis]
palette = "magma"
include_activations = true

[logging]
level = "warn"
`,
		},
		{
			name:    "json",
			file:    "flowtrace.json",
			content: `{"input":{"paths":["traces/"],"timeout":"1m"},"analysis":{"palette":"magma","include_activations":true},"logging":{"level":"warn"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			cfg, err := Load(path)
			require.NoError(t, err)

			assert.Equal(t, []string{"traces/"}, cfg.Input.Paths)
			assert.Equal(t, time.Minute, cfg.Input.Timeout.Std())
			assert.Equal(t, "magma", cfg.Analysis.Palette)
			assert.True(t, cfg.Analysis.IncludeActivations)
			assert.Equal(t, "warn", cfg.Logging.Level)

			// keys absent from the file keep defaults
			assert.Equal(t, 10, cfg.Analysis.PaletteSize)
			assert.Equal(t, "containment", cfg.Analysis.EdgeRule)
		})
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flowtrace.yaml")
	require.NoError(t, os.WriteFile(path, []byte("analysis:\n  palette: magma\n"), 0o644))

	t.Setenv(FileEnv, path)
	t.Setenv("FLOWTRACE_PALETTE", "plasma")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "plasma", cfg.Analysis.Palette)
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	ini := filepath.Join(dir, "flowtrace.ini")
	require.NoError(t, os.WriteFile(ini, []byte("palette=magma"), 0o644))
	_, err = Load(ini)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	broken := filepath.Join(dir, "broken.toml")
	require.NoError(t, os.WriteFile(broken, []byte("[input\npaths = "), 0o644))
	_, err = Load(broken)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"no inputs", func(c *Config) { c.Input.Paths = nil }, true},
		{"negative timeout", func(c *Config) { c.Input.Timeout = Duration(-time.Second) }, true},
		{"zero batch", func(c *Config) { c.Reader.BatchSize = 0 }, true},
		{"zero queue", func(c *Config) { c.Reader.QueueDepth = 0 }, true},
		{"zero record size", func(c *Config) { c.Reader.MaxRecordSize = 0 }, true},
		{"zero palette", func(c *Config) { c.Analysis.PaletteSize = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Input.Paths = []string{"traces/"}
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	assert.ErrorIs(t, Default().Validate(), ErrNoInputs)
}
