// Package common provides shared utilities and default configuration.
package common

// NewDefaultConfig returns the default configuration. Config files, the
// environment, and CLI flags layer on top of these values in that order.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path:           "./data/audiforge",
				ResetOnStartup: false,
			},
		},
		Pipeline: PipelineConfig{
			UploadDir:      "./uploads",
			OutputRoot:     "./output",
			MarkerArtifact: "segments.json",
			GraceDelay:     "1s",
			Stages: map[string]StageConfig{
				"analyze": {
					Command: "python3",
					Args:    []string{"tools/generate_segments.py", "{input}", "{output_root}"},
					Timeout: "5m",
				},
				"segments": {
					Command: "python3",
					Args:    []string{"tools/segment_import.py", "import", "{segments}", "--title", "{book_id}"},
					Timeout: "2m",
				},
				"synthesize": {
					Command: "python3",
					Args:    []string{"tools/audio_reader.py", "--segments-json", "{segments}", "--output", "{output_root}"},
					Timeout: "30m",
				},
				"timings": {
					Command: "python3",
					Args:    []string{"tools/timing_import.py", "import", "{timings}", "{book_id}"},
					Timeout: "2m",
				},
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
		WebSocket: WebSocketConfig{
			ProgressThrottle: "500ms",
		},
		Maintenance: MaintenanceConfig{
			Enabled:       true,
			SweepSchedule: "0 * * * *",
			UploadMaxAge:  "24h",
		},
	}
}
