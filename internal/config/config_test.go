package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wikimapper.yaml")
	content := `wikibase:
  api_url: https://wb.example.org/w/api.php
  language: de
cache:
  ttl: 10m
mapping:
  ignore_patterns:
    - "internal:"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Wikibase.APIURL != "https://wb.example.org/w/api.php" {
		t.Errorf("APIURL = %q, want file value", cfg.Wikibase.APIURL)
	}
	if cfg.Wikibase.Language != "de" {
		t.Errorf("Language = %q, want de", cfg.Wikibase.Language)
	}
	if cfg.Cache.TTL != 10*time.Minute {
		t.Errorf("TTL = %v, want 10m", cfg.Cache.TTL)
	}
	if len(cfg.Mapping.IgnorePatterns) != 1 || cfg.Mapping.IgnorePatterns[0] != "internal:" {
		t.Errorf("IgnorePatterns = %v, want [internal:]", cfg.Mapping.IgnorePatterns)
	}

	// Values the file does not mention keep their defaults.
	if cfg.Reconcile.PrimaryURL == "" {
		t.Error("PrimaryURL should fall back to the default")
	}
	if cfg.Scoring.AutoAcceptThreshold != 100 {
		t.Errorf("AutoAcceptThreshold = %v, want default 100", cfg.Scoring.AutoAcceptThreshold)
	}
}

func TestPartialScoringSectionKeepsOtherDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wikimapper.yaml")
	content := `scoring:
  type_match_bonus: 20
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Scoring.TypeMatchBonus != 20 {
		t.Errorf("TypeMatchBonus = %v, want file value 20", cfg.Scoring.TypeMatchBonus)
	}

	defaults := Default().Scoring
	if cfg.Scoring.AutoAcceptThreshold != defaults.AutoAcceptThreshold {
		t.Errorf("AutoAcceptThreshold = %v, want default %v", cfg.Scoring.AutoAcceptThreshold, defaults.AutoAcceptThreshold)
	}
	if cfg.Scoring.PositionBase != defaults.PositionBase || cfg.Scoring.PositionStep != defaults.PositionStep {
		t.Errorf("position scoring = %v/%v, want defaults", cfg.Scoring.PositionBase, cfg.Scoring.PositionStep)
	}
	if cfg.Scoring.TypeMismatchPenalty != defaults.TypeMismatchPenalty {
		t.Errorf("TypeMismatchPenalty = %v, want default %v", cfg.Scoring.TypeMismatchPenalty, defaults.TypeMismatchPenalty)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() with absent file should succeed, got %v", err)
	}
	if cfg.Wikibase.APIURL != Default().Wikibase.APIURL {
		t.Errorf("APIURL = %q, want default", cfg.Wikibase.APIURL)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wikimapper.yaml")
	if err := os.WriteFile(path, []byte("wikibase:\n  language: de\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("WIKIMAPPER_LANGUAGE", "fr")
	t.Setenv("WIKIMAPPER_CACHE_TTL", "30m")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Wikibase.Language != "fr" {
		t.Errorf("Language = %q, env should win over the file", cfg.Wikibase.Language)
	}
	if cfg.Cache.TTL != 30*time.Minute {
		t.Errorf("TTL = %v, want 30m from env", cfg.Cache.TTL)
	}
}

func TestInvalidEnvTTLIgnored(t *testing.T) {
	t.Setenv("WIKIMAPPER_CACHE_TTL", "not-a-duration")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Cache.TTL != time.Hour {
		t.Errorf("TTL = %v, want default hour when env value is invalid", cfg.Cache.TTL)
	}
}

func TestValidateRejectsMissingEndpoints(t *testing.T) {
	cfg := Default()
	cfg.Wikibase.APIURL = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing api_url")
	}

	cfg = Default()
	cfg.Cache.TTL = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for non-positive ttl")
	}
}
