package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Bounds is an inclusive [Min, Max] clamp range, used for the spec's
// draw-probability bounds ([0.12, 0.38]) and multiplier bounds ([0.75, 1.35]).
type Bounds struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Clamp restricts v to [b.Min, b.Max].
func (b Bounds) Clamp(v float64) float64 {
	if v < b.Min {
		return b.Min
	}
	if v > b.Max {
		return b.Max
	}
	return v
}

// LeagueOverride overrides a subset of PipelineConfig's global knobs for
// one league_id. Every field is a pointer so that 0.0 is a legitimate
// override; a nil field falls back to the global value. Only EVThreshold is
// read (by EVThresholdFor); Rho, HomeAdvantage and DrawRate are parsed from
// YAML but not applied anywhere in the pipeline.
type LeagueOverride struct {
	Rho           *float64 `yaml:"rho,omitempty"`
	HomeAdvantage *float64 `yaml:"home_advantage,omitempty"`
	DrawRate      *float64 `yaml:"draw_rate,omitempty"`
	EVThreshold   *float64 `yaml:"ev_threshold,omitempty"`
}

// PipelineConfig is the explicit configuration struct named by spec §9,
// replacing any ad-hoc loosely-typed options map. It is resolved once at
// the request boundary and threaded down explicitly.
type PipelineConfig struct {
	Xi                  float64                    `yaml:"xi"`
	Rho                 float64                    `yaml:"rho"`
	LookbackYears       int                        `yaml:"lookback_years"`
	EVThreshold         float64                    `yaml:"ev_threshold"`
	MaxContradictions   int                        `yaml:"max_contradictions"`
	PortfolioLambda     float64                    `yaml:"portfolio_lambda"`
	DrawBounds          Bounds                     `yaml:"draw_bounds"`
	MultiplierBounds    Bounds                     `yaml:"multiplier_bounds"`
	MinCalibrationSamples int                      `yaml:"min_calibration_samples"`
	MaxTickets          int                        `yaml:"max_tickets"`
	LeagueOverrides     map[string]LeagueOverride  `yaml:"league_overrides"`
}

// DefaultPipelineConfig returns the literal defaults named throughout spec.md.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Xi:                    0.0065,
		Rho:                   -0.13,
		LookbackYears:         5,
		EVThreshold:           0.0,
		MaxContradictions:     0,
		PortfolioLambda:       0.5,
		DrawBounds:            Bounds{Min: 0.12, Max: 0.38},
		MultiplierBounds:      Bounds{Min: 0.75, Max: 1.35},
		MinCalibrationSamples: 200,
		MaxTickets:            10,
		LeagueOverrides:       map[string]LeagueOverride{},
	}
}

// EVThresholdFor resolves the effective ev_threshold for a league,
// falling back to the global value.
func (c PipelineConfig) EVThresholdFor(leagueID string) float64 {
	if ov, ok := c.LeagueOverrides[leagueID]; ok && ov.EVThreshold != nil {
		return *ov.EVThreshold
	}
	return c.EVThreshold
}

// LoadPipelineConfig reads a PipelineConfig from a YAML file, same shape as
// the old risk-limits loader: read file, unmarshal, return typed error.
// A missing file is not an error — the caller gets DefaultPipelineConfig().
func LoadPipelineConfig(path string) (PipelineConfig, error) {
	cfg := DefaultPipelineConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read pipeline config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse pipeline config: %w", err)
	}

	if cfg.LeagueOverrides == nil {
		cfg.LeagueOverrides = map[string]LeagueOverride{}
	}

	return cfg, nil
}
