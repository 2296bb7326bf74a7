package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dmphub/dmpsync/pkg/engine/comparator"
	"github.com/dmphub/dmpsync/pkg/engine/policy"
)

// MatchConfig is the YAML match policy: confidence band boundaries and
// disposition rules applied to scored candidates.
type MatchConfig struct {
	// Threshold is the minimum score before a candidate is tracked.
	Threshold int `yaml:"threshold"`
	// Bands maps minimum scores to confidence tiers.
	Bands []comparator.Band `yaml:"bands"`
	// Rules decide what happens to a scored candidate.
	Rules []policy.DynamicRule `yaml:"rules"`
}

// DefaultMatchConfig returns the built-in bands with no extra rules.
func DefaultMatchConfig() MatchConfig {
	return MatchConfig{
		Threshold: 1,
		Bands:     append([]comparator.Band(nil), comparator.DefaultBands...),
	}
}

// LoadMatchConfig reads a match policy file, filling in defaults for
// anything the file leaves out.
func LoadMatchConfig(path string) (MatchConfig, error) {
	cfg := DefaultMatchConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read match config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse match config: %w", err)
	}

	if cfg.Threshold < 0 {
		return cfg, fmt.Errorf("threshold must not be negative, got %d", cfg.Threshold)
	}
	if len(cfg.Bands) == 0 {
		cfg.Bands = append([]comparator.Band(nil), comparator.DefaultBands...)
	}
	for _, r := range cfg.Rules {
		switch r.Action {
		case policy.ActionFile, policy.ActionDiscard, policy.ActionHold:
		default:
			return cfg, fmt.Errorf("rule %s has unknown action %q", r.ID, r.Action)
		}
	}
	return cfg, nil
}
