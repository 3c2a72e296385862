package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string            `toml:"environment"` // "development" or "production"
	Server      ServerConfig      `toml:"server"`
	Storage     StorageConfig     `toml:"storage"`
	Pipeline    PipelineConfig    `toml:"pipeline"`
	Logging     LoggingConfig     `toml:"logging"`
	WebSocket   WebSocketConfig   `toml:"websocket"`
	Maintenance MaintenanceConfig `toml:"maintenance"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"required,min=1,max=65535"`
	Host string `toml:"host" validate:"required"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"`
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// PipelineConfig configures the audiobook generation pipeline.
type PipelineConfig struct {
	UploadDir  string `toml:"upload_dir" validate:"required"` // Where uploaded PDFs land before processing
	OutputRoot string `toml:"output_root" validate:"required"`
	// MarkerArtifact is the file that identifies a stage-produced output
	// directory during reconciliation.
	MarkerArtifact string `toml:"marker_artifact"`
	// GraceDelay is how long subscribers keep receiving after a terminal
	// status before their subscriptions are severed.
	GraceDelay string                 `toml:"grace_delay"`
	Stages     map[string]StageConfig `toml:"stages" validate:"required"`
}

// StageConfig describes one externally executed pipeline stage.
type StageConfig struct {
	Command string   `toml:"command" validate:"required"`
	Args    []string `toml:"args"`
	Timeout string   `toml:"timeout" validate:"required"`
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// WebSocketConfig contains configuration for the live status hub
type WebSocketConfig struct {
	// ProgressThrottle limits how often per-job progress output lines are
	// broadcast to websocket clients. Status transitions are never throttled.
	ProgressThrottle string `toml:"progress_throttle"`
}

// MaintenanceConfig configures the background upload sweeper.
type MaintenanceConfig struct {
	Enabled       bool   `toml:"enabled"`
	SweepSchedule string `toml:"sweep_schedule"` // Cron schedule format
	UploadMaxAge  string `toml:"upload_max_age"` // e.g. "24h" - uploads older than this are purged
}

// GraceDelayDuration returns the parsed subscriber grace delay.
func (p PipelineConfig) GraceDelayDuration() time.Duration {
	if d, err := time.ParseDuration(p.GraceDelay); err == nil && d > 0 {
		return d
	}
	return time.Second
}

// TimeoutDuration returns the parsed stage timeout.
func (s StageConfig) TimeoutDuration() time.Duration {
	if d, err := time.ParseDuration(s.Timeout); err == nil && d > 0 {
		return d
	}
	return 5 * time.Minute
}

// LoadFromFiles loads configuration with priority: defaults -> file1 -> file2 -> ... -> env
// Later files override earlier files; environment variables override all files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the configuration using go-playground/validator.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	for _, name := range []string{"analyze", "segments", "synthesize", "timings"} {
		stage, ok := c.Pipeline.Stages[name]
		if !ok {
			return fmt.Errorf("invalid configuration: pipeline stage %q is not configured", name)
		}
		if _, err := time.ParseDuration(stage.Timeout); err != nil {
			return fmt.Errorf("invalid configuration: pipeline stage %q timeout: %w", name, err)
		}
	}
	return nil
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("AUDIFORGE_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("AUDIFORGE_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("AUDIFORGE_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if badgerPath := os.Getenv("AUDIFORGE_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	if uploadDir := os.Getenv("AUDIFORGE_UPLOAD_DIR"); uploadDir != "" {
		config.Pipeline.UploadDir = uploadDir
	}
	if outputRoot := os.Getenv("AUDIFORGE_OUTPUT_ROOT"); outputRoot != "" {
		config.Pipeline.OutputRoot = outputRoot
	}

	if level := os.Getenv("AUDIFORGE_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("AUDIFORGE_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
}
