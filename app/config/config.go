package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/institution-matcher/internal/grouping"
	"github.com/institution-matcher/internal/scoring"
	"gopkg.in/yaml.v3"
)

type RetrievalCfg struct {
	CandidateLimit   int `yaml:"candidate_limit" json:"candidate_limit"`
	MeiliCandidates  int `yaml:"meili_candidates" json:"meili_candidates"`
	MeiliTimeoutMs   int `yaml:"meili_timeout_ms" json:"meili_timeout_ms"`
	SearchCacheSize  int `yaml:"search_cache_size" json:"search_cache_size"`
	SearchCacheTTLMs int `yaml:"search_cache_ttl_ms" json:"search_cache_ttl_ms"`
}

type GroupingCfg struct {
	Threshold float64         `yaml:"threshold" json:"threshold"`
	Engine    grouping.Config `yaml:",inline" json:"engine"`
}

type MatcherCfg struct {
	Scoring         scoring.Config `yaml:"scoring" json:"scoring"`
	Retrieval       RetrievalCfg   `yaml:"retrieval" json:"retrieval"`
	Grouping        GroupingCfg    `yaml:"grouping" json:"grouping"`
	RuleTTLSeconds  int            `yaml:"rule_ttl_seconds" json:"rule_ttl_seconds"`
	AuditBufferSize int            `yaml:"audit_buffer_size" json:"audit_buffer_size"`
	LotMarkers      []string       `yaml:"lot_markers" json:"lot_markers"`
	UseLibpostal    bool           `yaml:"use_libpostal" json:"use_libpostal"`

	// RequestTimeoutMs hạn chót cho một lần resolve/search qua HTTP
	RequestTimeoutMs int `yaml:"request_timeout_ms" json:"request_timeout_ms"`
}

var C = Default()

// Default cấu hình mặc định khi không có file
func Default() MatcherCfg {
	return MatcherCfg{
		Scoring: scoring.DefaultConfig(),
		Retrieval: RetrievalCfg{
			CandidateLimit:   10,
			MeiliCandidates:  200,
			MeiliTimeoutMs:   800,
			SearchCacheSize:  5000,
			SearchCacheTTLMs: 10 * 60 * 1000,
		},
		Grouping:        GroupingCfg{Threshold: grouping.DefaultThreshold},
		RuleTTLSeconds:  3600,
		AuditBufferSize: 1024,

		RequestTimeoutMs: 1500,
	}
}

// Load đọc matcher.yaml đè lên giá trị mặc định. A missing file keeps the defaults.
func Load(path string) error {
	cfg := Default()

	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return err
	default:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	// ENV overrides
	switch os.Getenv("USE_LIBPOSTAL") {
	case "0":
		cfg.UseLibpostal = false
	case "1":
		cfg.UseLibpostal = true
	}

	if err := cfg.Scoring.Validate(); err != nil {
		return fmt.Errorf("scoring config: %w", err)
	}
	if cfg.RequestTimeoutMs <= 0 {
		return fmt.Errorf("request_timeout_ms must be positive: %d", cfg.RequestTimeoutMs)
	}
	if cfg.Grouping.Threshold < 0 || cfg.Grouping.Threshold > 1 {
		return fmt.Errorf("grouping threshold out of range [0,1]: %v", cfg.Grouping.Threshold)
	}

	C = cfg
	return nil
}

func (c MatcherCfg) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}

func (c MatcherCfg) RuleTTL() time.Duration {
	return time.Duration(c.RuleTTLSeconds) * time.Second
}

func (c MatcherCfg) SearchCacheTTL() time.Duration {
	return time.Duration(c.Retrieval.SearchCacheTTLMs) * time.Millisecond
}

func (c MatcherCfg) MeiliTimeout() time.Duration {
	return time.Duration(c.Retrieval.MeiliTimeoutMs) * time.Millisecond
}
