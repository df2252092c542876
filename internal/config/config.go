// Package config loads recall configuration from a YAML file with
// environment variable overrides. Invalid individual values produce
// warnings and fall back to defaults; a bad option never takes the
// whole configuration down.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Options is the full configuration surface of the recall engine.
type Options struct {
	// Storage
	DBPath      string `yaml:"db_path"`
	UtilityPath string `yaml:"utility_path"`

	// Result shaping
	MaxResults      int     `yaml:"max_results"`
	MinScore        float64 `yaml:"min_score"`
	MaxContextChars int     `yaml:"max_context_chars"`

	// Vector search
	TimeoutMs     int    `yaml:"timeout_ms"`
	EmbedProvider string `yaml:"embed_provider"` // "provider/model" spec

	// Temporal decay; 0 disables.
	HalfLifeHours float64 `yaml:"half_life_hours"`

	// Intent gating
	EnableSkipPatterns bool     `yaml:"enable_skip_patterns"`
	SkipPatterns       []string `yaml:"skip_patterns"`

	// Keyword signal boosting of vector scores
	EnableFts      bool    `yaml:"enable_fts"`
	FtsBoostWeight float64 `yaml:"fts_boost_weight"`

	// Diversity filtering
	EnableMmr bool    `yaml:"enable_mmr"`
	MmrLambda float64 `yaml:"mmr_lambda"`

	// Query cache
	CacheSize           int     `yaml:"cache_size"`
	CacheTTLMs          int     `yaml:"cache_ttl_ms"`
	FuzzyCacheThreshold float64 `yaml:"fuzzy_cache_threshold"`

	// Enrichment and feedback
	EnableTemporalParsing bool `yaml:"enable_temporal_parsing"`
	EnableFeedbackLoop    bool `yaml:"enable_feedback_loop"`
}

// DefaultConfigPath is the default config file location.
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".recall", "config.yaml")
}

// Default returns the built-in defaults.
func Default() Options {
	home, _ := os.UserHomeDir()
	return Options{
		DBPath:                filepath.Join(home, ".recall", "recall.db"),
		UtilityPath:           filepath.Join(home, ".recall", "utility.json"),
		MaxResults:            5,
		MinScore:              0.3,
		MaxContextChars:       4000,
		TimeoutMs:             2000,
		HalfLifeHours:         168, // one week
		EnableSkipPatterns:    true,
		EnableFts:             true,
		FtsBoostWeight:        0.15,
		EnableMmr:             true,
		MmrLambda:             0.7,
		CacheSize:             50,
		CacheTTLMs:            300000,
		FuzzyCacheThreshold:   0.8,
		EnableTemporalParsing: true,
		EnableFeedbackLoop:    true,
	}
}

// Load resolves options from defaults, then the YAML file at path (if it
// exists), then RECALL_* environment variables. It returns warnings for
// individual values that were invalid and replaced by defaults.
func Load(path string) (Options, []string, error) {
	opts := Default()
	var warnings []string

	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// No config file: defaults plus env.
	case err != nil:
		return opts, nil, fmt.Errorf("reading config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &opts); err != nil {
			return opts, nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	applyEnv(&opts)
	warnings = append(warnings, sanitize(&opts)...)
	return opts, warnings, nil
}

// applyEnv overlays RECALL_* environment variables onto opts.
func applyEnv(opts *Options) {
	if v := os.Getenv("RECALL_DB_PATH"); v != "" {
		opts.DBPath = v
	}
	if v := os.Getenv("RECALL_UTILITY_PATH"); v != "" {
		opts.UtilityPath = v
	}
	if v := os.Getenv("RECALL_EMBED"); v != "" {
		opts.EmbedProvider = v
	}
	if v := os.Getenv("RECALL_MAX_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.MaxResults = n
		}
	}
	if v := os.Getenv("RECALL_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.TimeoutMs = n
		}
	}
	if v := os.Getenv("RECALL_HALF_LIFE_HOURS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			opts.HalfLifeHours = f
		}
	}
}

// sanitize clamps invalid values back to defaults, returning a warning
// per replaced value.
func sanitize(opts *Options) []string {
	def := Default()
	var warnings []string

	warn := func(field string, got any, fallback any) {
		warnings = append(warnings, fmt.Sprintf("config: invalid %s %v, using %v", field, got, fallback))
	}

	if opts.MaxResults <= 0 {
		warn("max_results", opts.MaxResults, def.MaxResults)
		opts.MaxResults = def.MaxResults
	}
	if opts.MinScore < 0 || opts.MinScore > 1 {
		warn("min_score", opts.MinScore, def.MinScore)
		opts.MinScore = def.MinScore
	}
	if opts.MaxContextChars <= 0 {
		warn("max_context_chars", opts.MaxContextChars, def.MaxContextChars)
		opts.MaxContextChars = def.MaxContextChars
	}
	if opts.TimeoutMs <= 0 {
		warn("timeout_ms", opts.TimeoutMs, def.TimeoutMs)
		opts.TimeoutMs = def.TimeoutMs
	}
	if opts.HalfLifeHours < 0 {
		warn("half_life_hours", opts.HalfLifeHours, 0)
		opts.HalfLifeHours = 0
	}
	if opts.FtsBoostWeight < 0 || opts.FtsBoostWeight > 1 {
		warn("fts_boost_weight", opts.FtsBoostWeight, def.FtsBoostWeight)
		opts.FtsBoostWeight = def.FtsBoostWeight
	}
	if opts.MmrLambda < 0 || opts.MmrLambda > 1 {
		warn("mmr_lambda", opts.MmrLambda, def.MmrLambda)
		opts.MmrLambda = def.MmrLambda
	}
	if opts.CacheSize <= 0 {
		warn("cache_size", opts.CacheSize, def.CacheSize)
		opts.CacheSize = def.CacheSize
	}
	if opts.CacheTTLMs <= 0 {
		warn("cache_ttl_ms", opts.CacheTTLMs, def.CacheTTLMs)
		opts.CacheTTLMs = def.CacheTTLMs
	}
	if opts.FuzzyCacheThreshold < 0 || opts.FuzzyCacheThreshold > 1 {
		warn("fuzzy_cache_threshold", opts.FuzzyCacheThreshold, def.FuzzyCacheThreshold)
		opts.FuzzyCacheThreshold = def.FuzzyCacheThreshold
	}

	return warnings
}
