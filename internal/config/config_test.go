package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	opts := Default()

	if opts.MaxResults != 5 {
		t.Fatalf("wrong default max_results: %d", opts.MaxResults)
	}
	if opts.TimeoutMs != 2000 {
		t.Fatalf("wrong default timeout_ms: %d", opts.TimeoutMs)
	}
	if opts.HalfLifeHours != 168 {
		t.Fatalf("wrong default half_life_hours: %v", opts.HalfLifeHours)
	}
	if !opts.EnableSkipPatterns || !opts.EnableFts || !opts.EnableMmr {
		t.Fatalf("pipeline stages should default on: %+v", opts)
	}
	if opts.DBPath == "" || opts.UtilityPath == "" {
		t.Fatalf("storage paths must have defaults")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	opts, warnings, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("missing config must not fail: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if opts.MaxResults != Default().MaxResults {
		t.Fatalf("expected defaults, got %+v", opts)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
max_results: 8
half_life_hours: 24
enable_mmr: false
mmr_lambda: 0.5
skip_patterns:
  - "^ping$"
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	opts, warnings, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if opts.MaxResults != 8 || opts.HalfLifeHours != 24 || opts.EnableMmr || opts.MmrLambda != 0.5 {
		t.Fatalf("yaml values not applied: %+v", opts)
	}
	if len(opts.SkipPatterns) != 1 || opts.SkipPatterns[0] != "^ping$" {
		t.Fatalf("skip patterns not applied: %v", opts.SkipPatterns)
	}
	// Unset keys keep their defaults.
	if opts.TimeoutMs != 2000 {
		t.Fatalf("unset key lost its default: %d", opts.TimeoutMs)
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("max_results: [not an int"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, err := Load(path); err == nil {
		t.Fatalf("malformed yaml must fail loudly")
	}
}

func TestSanitizeWarnsAndFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
max_results: -1
min_score: 1.5
mmr_lambda: 2
fuzzy_cache_threshold: -0.2
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	opts, warnings, err := Load(path)
	if err != nil {
		t.Fatalf("invalid values must warn, not fail: %v", err)
	}
	if len(warnings) != 4 {
		t.Fatalf("expected 4 warnings, got %v", warnings)
	}

	def := Default()
	if opts.MaxResults != def.MaxResults || opts.MinScore != def.MinScore {
		t.Fatalf("invalid values must fall back to defaults: %+v", opts)
	}
	if opts.MmrLambda != def.MmrLambda || opts.FuzzyCacheThreshold != def.FuzzyCacheThreshold {
		t.Fatalf("invalid values must fall back to defaults: %+v", opts)
	}
}

func TestNegativeHalfLifeDisablesDecay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("half_life_hours: -5\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	opts, warnings, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if opts.HalfLifeHours != 0 {
		t.Fatalf("negative half-life should clamp to disabled, got %v", opts.HalfLifeHours)
	}
	if len(warnings) != 1 {
		t.Fatalf("expected a warning, got %v", warnings)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("RECALL_MAX_RESULTS", "3")
	t.Setenv("RECALL_HALF_LIFE_HOURS", "12")
	t.Setenv("RECALL_DB_PATH", "/tmp/override.db")

	opts, _, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if opts.MaxResults != 3 || opts.HalfLifeHours != 12 || opts.DBPath != "/tmp/override.db" {
		t.Fatalf("env overrides not applied: %+v", opts)
	}
}

func TestEnvOverridesBeatFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("max_results: 8\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("RECALL_MAX_RESULTS", "2")

	opts, _, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if opts.MaxResults != 2 {
		t.Fatalf("env must win over the file, got %d", opts.MaxResults)
	}
}
