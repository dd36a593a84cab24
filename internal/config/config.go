// Package config handles YAML configuration-file loading for the repgrow
// CLI: strict unknown-field rejection via Decoder.KnownFields(true),
// ${VAR}/${VAR:-default} environment expansion, and a Duration wrapper for
// human-readable YAML durations.
package config

import (
	"fmt"
	"time"
)

// Config mirrors a repgrow.yaml file. Every field is optional. Only
// policy.my_side has a matching CLI flag (--side), which takes precedence;
// the other fields are set from the file alone.
type Config struct {
	Search     SearchConfig     `yaml:"search"`
	Policy     PolicyConfig     `yaml:"policy"`
	Quality    QualityConfig    `yaml:"quality"`
	Popularity PopularityConfig `yaml:"popularity"`
	HTTP       HTTPConfig       `yaml:"http"`
	Cache      CacheConfig      `yaml:"cache"`
	Rate       RateConfig       `yaml:"rate"`
	Storage    StorageConfig    `yaml:"storage"`
}

// SearchConfig holds dispatcher/pipeline sizing defaults.
type SearchConfig struct {
	Concurrency        int  `yaml:"concurrency"`
	MaxTotalNodes      int64 `yaml:"max_total_nodes"`
	MaxChildrenMySide  int  `yaml:"max_children_my_side"`
	MaxChildrenOppSide int  `yaml:"max_children_opp_side"`
}

// PolicyConfig holds candidate-selection defaults.
type PolicyConfig struct {
	MySide          string  `yaml:"my_side"`
	CentipawnWindow int     `yaml:"centipawn_window"`
	MinPlayRate     float64 `yaml:"min_play_rate"`
}

// QualityConfig configures the engine-evaluation provider.
type QualityConfig struct {
	Source  string `yaml:"source"`
	MultiPV int    `yaml:"multi_pv"`
	BaseURL string `yaml:"base_url"`
}

// PopularityConfig configures the human-game-frequency provider.
type PopularityConfig struct {
	Source    string `yaml:"source"`
	BaseURL   string `yaml:"base_url"`
	Speed     string `yaml:"speed"`
	MinRating int    `yaml:"min_rating"`
	MaxRating int    `yaml:"max_rating"`
	SinceYear int    `yaml:"since_year"`
}

// HTTPConfig configures the shared HTTP client used by both providers.
type HTTPConfig struct {
	TimeoutMS int `yaml:"timeout_ms"`
	Retries   int `yaml:"retries"`
}

// CacheConfig configures each provider's response cache.
type CacheConfig struct {
	Entries int `yaml:"entries"`
	TTLSecs int `yaml:"ttl_secs"`
}

// RateConfig configures each provider's token-bucket rate limiter.
type RateConfig struct {
	CloudPerSec    int `yaml:"cloud_per_sec"`
	ExplorerPerSec int `yaml:"explorer_per_sec"`
}

// StorageConfig configures the optional S3-backed run-summary mirror.
type StorageConfig struct {
	Enabled bool   `yaml:"enabled"`
	Bucket  string `yaml:"bucket"`
	Dataset string `yaml:"dataset"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}
