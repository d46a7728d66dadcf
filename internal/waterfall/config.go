package waterfall

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Config is the top-level waterfall configuration.
type Config struct {
	Chain    []SourceConfig `yaml:"chain"`
	Validate ValidateConfig `yaml:"validate"`
}

// SourceConfig defines one stage in the waterfall chain.
type SourceConfig struct {
	Name          string `yaml:"name"`
	Enabled       *bool  `yaml:"enabled,omitempty"`
	MaxCandidates int    `yaml:"max_candidates,omitempty"`
}

// IsEnabled defaults to true when the config omits the flag.
func (s SourceConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// ValidateConfig holds validator retry settings.
type ValidateConfig struct {
	MaxAttempts   int `yaml:"max_attempts"`
	BackoffBaseMS int `yaml:"backoff_base_ms"`
	MaxCandidates int `yaml:"max_candidates"` // global fallback per source
}

// DefaultConfig is the chain used when no config file is given: free sources
// first, the billed lookup last.
func DefaultConfig() *Config {
	return &Config{
		Chain: []SourceConfig{
			{Name: "raw"},
			{Name: "generated", MaxCandidates: 5},
			{Name: "workmail", MaxCandidates: 3},
		},
		Validate: ValidateConfig{
			MaxAttempts:   3,
			BackoffBaseMS: 500,
			MaxCandidates: 10,
		},
	}
}

// LoadConfig reads waterfall config from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "waterfall: read config %s", path)
	}

	// The YAML has a top-level "waterfall" key
	var wrapper struct {
		Waterfall Config `yaml:"waterfall"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "waterfall: parse config")
	}

	cfg := &wrapper.Waterfall
	if len(cfg.Chain) == 0 {
		return nil, eris.New("waterfall: config has an empty chain")
	}
	def := DefaultConfig().Validate
	if cfg.Validate.MaxAttempts == 0 {
		cfg.Validate.MaxAttempts = def.MaxAttempts
	}
	if cfg.Validate.BackoffBaseMS == 0 {
		cfg.Validate.BackoffBaseMS = def.BackoffBaseMS
	}
	if cfg.Validate.MaxCandidates == 0 {
		cfg.Validate.MaxCandidates = def.MaxCandidates
	}

	return cfg, nil
}

// CandidateCap returns the per-source candidate cap, falling back to the
// global validate cap.
func (c *Config) CandidateCap(s SourceConfig) int {
	if s.MaxCandidates > 0 {
		return s.MaxCandidates
	}
	return c.Validate.MaxCandidates
}
