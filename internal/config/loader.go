package config

import (
	"log/slog"
	"os"
	"time"
)

// Load builds the effective configuration: defaults, then the project config
// file if present, then environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = ConfigFile
	}
	if fileCfg, err := LoadFromFile(path); err == nil {
		slog.Debug("Loaded config file", "path", path)
		cfg.merge(fileCfg)
	} else if !os.IsNotExist(err) {
		slog.Warn("Failed to load config file", "path", path, "err", err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// merge overlays non-zero values from other onto c.
func (c *Config) merge(other *Config) {
	mergeString(&c.Wikibase.APIURL, other.Wikibase.APIURL)
	mergeString(&c.Wikibase.Language, other.Wikibase.Language)
	mergeString(&c.Wikibase.EntityBaseURL, other.Wikibase.EntityBaseURL)
	mergeString(&c.Wikibase.ConstraintProperty, other.Wikibase.ConstraintProperty)
	if other.Wikibase.SearchLimit > 0 {
		c.Wikibase.SearchLimit = other.Wikibase.SearchLimit
	}

	mergeString(&c.Reconcile.PrimaryURL, other.Reconcile.PrimaryURL)
	mergeString(&c.Reconcile.FallbackURL, other.Reconcile.FallbackURL)
	mergeString(&c.Reconcile.DefaultType, other.Reconcile.DefaultType)
	if other.Reconcile.AutoAdvanceDelay > 0 {
		c.Reconcile.AutoAdvanceDelay = other.Reconcile.AutoAdvanceDelay
	}

	if other.Cache.TTL > 0 {
		c.Cache.TTL = other.Cache.TTL
	}

	mergeFloat(&c.Scoring.PositionBase, other.Scoring.PositionBase)
	mergeFloat(&c.Scoring.PositionStep, other.Scoring.PositionStep)
	mergeFloat(&c.Scoring.PositionFloor, other.Scoring.PositionFloor)
	mergeFloat(&c.Scoring.SearchBase, other.Scoring.SearchBase)
	mergeFloat(&c.Scoring.TypeMatchBonus, other.Scoring.TypeMatchBonus)
	mergeFloat(&c.Scoring.TypeMismatchPenalty, other.Scoring.TypeMismatchPenalty)
	mergeFloat(&c.Scoring.AutoAcceptThreshold, other.Scoring.AutoAcceptThreshold)

	if len(other.Mapping.IgnorePatterns) > 0 {
		c.Mapping.IgnorePatterns = other.Mapping.IgnorePatterns
	}
	mergeString(&c.Mapping.RequiredTypeProperty, other.Mapping.RequiredTypeProperty)

	mergeString(&c.Suggest.Model, other.Suggest.Model)
	if other.Suggest.Temperature > 0 {
		c.Suggest.Temperature = other.Suggest.Temperature
	}
}

// applyEnv overlays WIKIMAPPER_* environment variables, which win over both
// defaults and the config file.
func (c *Config) applyEnv() {
	mergeString(&c.Wikibase.APIURL, os.Getenv("WIKIMAPPER_API_URL"))
	mergeString(&c.Wikibase.Language, os.Getenv("WIKIMAPPER_LANGUAGE"))
	mergeString(&c.Reconcile.PrimaryURL, os.Getenv("WIKIMAPPER_RECONCILE_URL"))
	mergeString(&c.Reconcile.FallbackURL, os.Getenv("WIKIMAPPER_RECONCILE_FALLBACK_URL"))
	if v := os.Getenv("WIKIMAPPER_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.Cache.TTL = d
		} else {
			slog.Warn("Ignoring invalid WIKIMAPPER_CACHE_TTL", "value", v)
		}
	}
	mergeString(&c.Suggest.Model, os.Getenv("WIKIMAPPER_SUGGEST_MODEL"))
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func mergeFloat(dst *float64, v float64) {
	if v > 0 {
		*dst = v
	}
}
