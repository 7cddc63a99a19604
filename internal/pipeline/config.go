package pipeline

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Step types dispatched by the orchestrator.
const (
	StepPrepare  = "prepare"
	StepExtract  = "extract"
	StepTemplate = "template"
	StepGenerate = "generate" // alias of template
	StepValidate = "validate"
	StepGate     = "gate"
)

// DefaultPipeline is the name of the embedded standard pipeline.
const DefaultPipeline = "standard"

//go:embed standard.yaml
var defaultPipelineYAML []byte

// Config is a named, versioned ordered list of pipeline steps.
type Config struct {
	Name    string       `yaml:"name"`
	Version int          `yaml:"version"`
	Steps   []StepConfig `yaml:"steps"`
}

// StepConfig is one step declaration.
type StepConfig struct {
	ID     string         `yaml:"id"`
	Type   string         `yaml:"type"`
	Config map[string]any `yaml:"config"`
	Retry  RetryConfig    `yaml:"retry"`
}

// RetryConfig marks a step retryable. Steps without it run exactly once.
type RetryConfig struct {
	MaxAttempts int    `yaml:"max_attempts"`
	Backoff     string `yaml:"backoff"` // Go duration, default 500ms
}

// BackoffBase returns the parsed backoff base duration.
func (r RetryConfig) BackoffBase() time.Duration {
	d, err := time.ParseDuration(r.Backoff)
	if err != nil || d <= 0 {
		return 500 * time.Millisecond
	}
	return d
}

var knownStepTypes = map[string]bool{
	StepPrepare:  true,
	StepExtract:  true,
	StepTemplate: true,
	StepGenerate: true,
	StepValidate: true,
	StepGate:     true,
}

// Validate checks the structural schema and the ordering constraints:
// prepare before anything that reads documents, extract before its consumers.
// Configuration errors fail fast, before any run is created.
func (c Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("pipeline name is empty")
	}
	if c.Version <= 0 {
		return fmt.Errorf("pipeline %q: version must be positive", c.Name)
	}
	if len(c.Steps) == 0 {
		return fmt.Errorf("pipeline %q: no steps declared", c.Name)
	}

	prepareIdx, extractIdx := -1, -1
	seen := make(map[string]bool)
	for i, s := range c.Steps {
		if s.ID == "" {
			return fmt.Errorf("pipeline %q: step %d has no id", c.Name, i)
		}
		if seen[s.ID] {
			return fmt.Errorf("pipeline %q: duplicate step id %q", c.Name, s.ID)
		}
		seen[s.ID] = true
		if s.Type == "" {
			return fmt.Errorf("pipeline %q: step %q has no type", c.Name, s.ID)
		}
		if !knownStepTypes[s.Type] {
			return fmt.Errorf("pipeline %q: step %q has unknown type %q", c.Name, s.ID, s.Type)
		}
		switch s.Type {
		case StepPrepare:
			if prepareIdx < 0 {
				prepareIdx = i
			}
		case StepExtract:
			if extractIdx < 0 {
				extractIdx = i
			}
		}
	}

	for i, s := range c.Steps {
		switch s.Type {
		case StepExtract:
			if prepareIdx < 0 || prepareIdx > i {
				return fmt.Errorf("pipeline %q: step %q requires a prior prepare step", c.Name, s.ID)
			}
		case StepTemplate, StepGenerate, StepValidate, StepGate:
			if extractIdx < 0 || extractIdx > i {
				return fmt.Errorf("pipeline %q: step %q requires a prior extract step", c.Name, s.ID)
			}
		}
	}
	return nil
}

// Loader resolves pipeline configurations by name: YAML files in dir first,
// falling back to the embedded standard pipeline.
type Loader struct {
	dir string
}

// NewLoader creates a Loader over the given pipeline directory. An empty
// dir serves only the embedded default.
func NewLoader(dir string) *Loader {
	return &Loader{dir: dir}
}

// Load resolves and validates a named pipeline. An empty name means the
// standard pipeline.
func (l *Loader) Load(name string) (Config, error) {
	if name == "" {
		name = DefaultPipeline
	}

	data := defaultPipelineYAML
	if l.dir != "" {
		path := filepath.Join(l.dir, name+".yaml")
		if b, err := os.ReadFile(path); err == nil {
			data = b
		} else if name != DefaultPipeline {
			return Config{}, fmt.Errorf("pipeline %q not found: %w", name, err)
		}
	} else if name != DefaultPipeline {
		return Config{}, fmt.Errorf("pipeline %q not found", name)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing pipeline %q: %w", name, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// stringVal reads a string key from a step's free-form config.
func stringVal(cfg map[string]any, key string) string {
	if v, ok := cfg[key].(string); ok {
		return v
	}
	return ""
}

// stringSlice reads a string list from a step's free-form config.
func stringSlice(cfg map[string]any, key string) []string {
	raw, ok := cfg[key].([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
