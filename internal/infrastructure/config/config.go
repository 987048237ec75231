package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// FileEnv names the environment variable holding the config file path.
const FileEnv = "FLOWTRACE_CONFIG"

var (
	ErrNoInputs          = errors.New("no trace inputs configured")
	ErrUnsupportedFormat = errors.New("unsupported config file format")
)

// Config holds all application configuration.
type Config struct {
	Input    InputConfig    `yaml:"input" toml:"input" json:"input"`
	Reader   ReaderConfig   `yaml:"reader" toml:"reader" json:"reader"`
	Analysis AnalysisConfig `yaml:"analysis" toml:"analysis" json:"analysis"`
	Output   OutputConfig   `yaml:"output" toml:"output" json:"output"`
	Logging  LogConfig      `yaml:"logging" toml:"logging" json:"logging"`
}

// InputConfig selects the trace streams to read.
type InputConfig struct {
	Paths   []string `envconfig:"FLOWTRACE_INPUTS" yaml:"paths" toml:"paths" json:"paths"`
	Format  string   `envconfig:"FLOWTRACE_FORMAT" yaml:"format" toml:"format" json:"format"`
	Timeout Duration `envconfig:"FLOWTRACE_TIMEOUT" yaml:"timeout" toml:"timeout" json:"timeout"`
}

// ReaderConfig tunes the concurrent readers.
type ReaderConfig struct {
	BatchSize     int      `envconfig:"FLOWTRACE_BATCH_SIZE" yaml:"batch_size" toml:"batch_size" json:"batch_size"`
	QueueDepth    int      `envconfig:"FLOWTRACE_QUEUE_DEPTH" yaml:"queue_depth" toml:"queue_depth" json:"queue_depth"`
	MaxRecordSize int      `envconfig:"FLOWTRACE_MAX_RECORD_SIZE" yaml:"max_record_size" toml:"max_record_size" json:"max_record_size"`
	Grace         Duration `envconfig:"FLOWTRACE_GRACE" yaml:"grace" toml:"grace" json:"grace"`
}

// AnalysisConfig controls graph reconstruction and coloring.
type AnalysisConfig struct {
	EdgeRule           string `envconfig:"FLOWTRACE_EDGE_RULE" yaml:"edge_rule" toml:"edge_rule" json:"edge_rule"`
	Palette            string `envconfig:"FLOWTRACE_PALETTE" yaml:"palette" toml:"palette" json:"palette"`
	PaletteSize        int    `envconfig:"FLOWTRACE_PALETTE_SIZE" yaml:"palette_size" toml:"palette_size" json:"palette_size"`
	IncludeActivations bool   `envconfig:"FLOWTRACE_INCLUDE_ACTIVATIONS" yaml:"include_activations" toml:"include_activations" json:"include_activations"`
}

// OutputConfig holds artifact locations. Empty paths disable an artifact.
type OutputConfig struct {
	Graph   string `envconfig:"FLOWTRACE_OUTPUT" yaml:"graph" toml:"graph" json:"graph"`
	Summary string `envconfig:"FLOWTRACE_SUMMARY" yaml:"summary" toml:"summary" json:"summary"`
	Metrics string `envconfig:"FLOWTRACE_METRICS_FILE" yaml:"metrics" toml:"metrics" json:"metrics"`
	Indent  bool   `envconfig:"FLOWTRACE_INDENT" yaml:"indent" toml:"indent" json:"indent"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"FLOWTRACE_LOG_LEVEL" yaml:"level" toml:"level" json:"level"`
	Development bool   `envconfig:"FLOWTRACE_LOG_DEV" yaml:"development" toml:"development" json:"development"`
}

// Duration is a time.Duration that decodes from strings such as "30s" in
// environment variables and config files alike.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Load builds the configuration in layers: defaults, then the config file
// (path, or $FLOWTRACE_CONFIG when path is empty), then environment
// variables.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv(FileEnv)
	}
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// LoadFile overlays the YAML, TOML or JSON file at path onto cfg. Keys
// missing from the file keep their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	case ".toml":
		err = toml.Unmarshal(data, c)
	case ".json":
		err = sonic.Unmarshal(data, c)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks values that do not depend on other packages. Names such
// as the palette or edge rule are checked where they are resolved.
func (c *Config) Validate() error {
	if len(c.Input.Paths) == 0 {
		return ErrNoInputs
	}
	switch {
	case c.Input.Timeout < 0:
		return fmt.Errorf("timeout must not be negative, got %s", c.Input.Timeout.Std())
	case c.Reader.BatchSize <= 0:
		return fmt.Errorf("batch size must be positive, got %d", c.Reader.BatchSize)
	case c.Reader.QueueDepth <= 0:
		return fmt.Errorf("queue depth must be positive, got %d", c.Reader.QueueDepth)
	case c.Reader.MaxRecordSize <= 0:
		return fmt.Errorf("max record size must be positive, got %d", c.Reader.MaxRecordSize)
	case c.Analysis.PaletteSize <= 0:
		return fmt.Errorf("palette size must be positive, got %d", c.Analysis.PaletteSize)
	}
	return nil
}

// Usage prints the recognized environment variables.
func Usage() error {
	return envconfig.Usage("", Default())
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Input: InputConfig{
			Format: "auto",
		},
		Reader: ReaderConfig{
			BatchSize:     256,
			QueueDepth:    64,
			MaxRecordSize: 16 << 20,
			Grace:         Duration(2 * time.Second),
		},
		Analysis: AnalysisConfig{
			EdgeRule:    "containment",
			Palette:     "inferno",
			PaletteSize: 10,
		},
		Output: OutputConfig{
			Graph: "flowtrace-graph.json",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
	}
}
