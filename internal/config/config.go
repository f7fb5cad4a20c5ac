// Package config provides configuration loading for wikimapper.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigFile is the name of the project-level config file.
const ConfigFile = "wikimapper.yaml"

// Config represents the complete wikimapper configuration.
type Config struct {
	Wikibase  WikibaseConfig  `yaml:"wikibase"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Cache     CacheConfig     `yaml:"cache"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Mapping   MappingConfig   `yaml:"mapping"`
	Suggest   SuggestConfig   `yaml:"suggest"`
}

// WikibaseConfig configures the knowledge-base API endpoints.
type WikibaseConfig struct {
	// APIURL is the Wikibase action API endpoint
	APIURL string `yaml:"api_url"`
	// Language filters labels and descriptions
	Language string `yaml:"language"`
	// EntityBaseURL is the prefix for human-readable entity pages
	EntityBaseURL string `yaml:"entity_base_url"`
	// ConstraintProperty is the constraint-declaring property id
	ConstraintProperty string `yaml:"constraint_property"`
	// SearchLimit caps full-text search results
	SearchLimit int `yaml:"search_limit"`
}

// ReconcileConfig configures the reconciliation service endpoints.
type ReconcileConfig struct {
	// PrimaryURL is the main reconciliation endpoint
	PrimaryURL string `yaml:"primary_url"`
	// FallbackURL is tried when the primary fails; same request shape
	FallbackURL string `yaml:"fallback_url"`
	// DefaultType is the candidate type filter used when a property declares
	// no value-type constraint; empty disables filtering
	DefaultType string `yaml:"default_type"`
	// AutoAdvanceDelay is the pause before advancing past an auto-accepted cell
	AutoAdvanceDelay time.Duration `yaml:"auto_advance_delay"`
}

// CacheConfig configures the property knowledge cache.
type CacheConfig struct {
	// TTL is how long a cached property record or constraint set stays fresh
	TTL time.Duration `yaml:"ttl"`
}

// ScoringConfig holds the candidate scoring constants. The fallback formula
// and the auto-accept threshold are empirical values carried over from the
// original workflow; change them here, not in code.
type ScoringConfig struct {
	// PositionBase is the score of the first candidate when the service
	// returns no score; each later position loses PositionStep
	PositionBase float64 `yaml:"position_base"`
	// PositionStep is the per-position score decrement
	PositionStep float64 `yaml:"position_step"`
	// PositionFloor is the minimum position-based score
	PositionFloor float64 `yaml:"position_floor"`
	// SearchBase is the first-position score for full-text search fallback hits
	SearchBase float64 `yaml:"search_base"`
	// TypeMatchBonus is added when a candidate's types satisfy a value-type constraint
	TypeMatchBonus float64 `yaml:"type_match_bonus"`
	// TypeMismatchPenalty is subtracted when constraints exist and none match
	TypeMismatchPenalty float64 `yaml:"type_mismatch_penalty"`
	// AutoAcceptThreshold auto-accepts the top candidate at or above this adjusted score
	AutoAcceptThreshold float64 `yaml:"auto_accept_threshold"`
}

// MappingConfig configures classification defaults.
type MappingConfig struct {
	// IgnorePatterns routes matching keys to the ignored category on classify
	IgnorePatterns []string `yaml:"ignore_patterns"`
	// RequiredTypeProperty is the "instance of"-equivalent property id
	RequiredTypeProperty string `yaml:"required_type_property"`
}

// SuggestConfig configures the LLM mapping-suggestion provider.
type SuggestConfig struct {
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
}

// Default returns a Config with sensible defaults targeting wikidata.org.
func Default() *Config {
	return &Config{
		Wikibase: WikibaseConfig{
			APIURL:             "https://www.wikidata.org/w/api.php",
			Language:           "en",
			EntityBaseURL:      "https://www.wikidata.org/wiki/",
			ConstraintProperty: "P2302",
			SearchLimit:        10,
		},
		Reconcile: ReconcileConfig{
			PrimaryURL:       "https://wikidata.reconci.link/en/api",
			FallbackURL:      "https://tools.wmflabs.org/openrefine-wikidata/en/api",
			AutoAdvanceDelay: 1500 * time.Millisecond,
		},
		Cache: CacheConfig{
			TTL: time.Hour,
		},
		Scoring: ScoringConfig{
			PositionBase:        100,
			PositionStep:        10,
			PositionFloor:       10,
			SearchBase:          50,
			TypeMatchBonus:      10,
			TypeMismatchPenalty: 15,
			AutoAcceptThreshold: 100,
		},
		Mapping: MappingConfig{
			IgnorePatterns:       []string{"o:", "@"},
			RequiredTypeProperty: "P31",
		},
		Suggest: SuggestConfig{
			Model:       "gemini-2.0-flash",
			Temperature: 0.1,
		},
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Wikibase.APIURL == "" {
		return fmt.Errorf("wikibase.api_url is required")
	}
	if c.Reconcile.PrimaryURL == "" {
		return fmt.Errorf("reconcile.primary_url is required")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive")
	}
	if c.Scoring.AutoAcceptThreshold <= 0 {
		return fmt.Errorf("scoring.auto_accept_threshold must be positive")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}
