// Package config loads tenderd configuration from a JSON file backend at
// $XDG_CONFIG_HOME/tenderd/config.json with TENDERD_* environment variable
// overrides.
package config

type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Pipeline PipelineConfig
	Worker   WorkerConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port int
}

type StorageConfig struct {
	DataDir string
}

type PipelineConfig struct {
	// Dir holds additional pipeline YAML files; the embedded standard
	// pipeline is always available.
	Dir     string
	Default string
}

type WorkerConfig struct {
	// PollInterval is a Go duration string for the job queue poll loop.
	PollInterval string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4600,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Pipeline: PipelineConfig{
			Default: "standard",
		},
		Worker: WorkerConfig{
			PollInterval: "500ms",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the file backend and applies environment
// variable overrides (TENDERD_*).
func Load() (Config, error) {
	return loadWith(newPlatformBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()
	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}
