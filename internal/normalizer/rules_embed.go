package normalizer

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/institution-matcher/app/models"
	"gopkg.in/yaml.v3"
)

//go:embed data/default_rules.yaml
var defaultRulesYAML []byte

// RulesConfig chứa rule và region mapping load từ YAML
type RulesConfig struct {
	Rules   []ruleYAML   `yaml:"rules"`
	Regions []regionYAML `yaml:"regions"`
}

type ruleYAML struct {
	ID            string            `yaml:"id"`
	Name          string            `yaml:"name"`
	Type          string            `yaml:"type"`
	Priority      int               `yaml:"priority"`
	Inactive      bool              `yaml:"inactive"`
	Suffixes      []string          `yaml:"suffixes"`
	Overrides     map[string]string `yaml:"overrides"`
	ExcludedChars string            `yaml:"excluded_chars"`
	Numerals      map[string]string `yaml:"numerals"`
}

type regionYAML struct {
	Abbreviation  string `yaml:"abbreviation"`
	CanonicalName string `yaml:"canonical_name"`
	RegionCode    string `yaml:"region_code"`
}

// ParseRulesConfig parses a rules document into typed rules and region rows.
func ParseRulesConfig(data []byte) ([]models.NormalizationRule, []models.RegionMapping, error) {
	var cfg RulesConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, nil, fmt.Errorf("parse rules yaml: %w", err)
	}

	rules := make([]models.NormalizationRule, 0, len(cfg.Rules))
	for _, ry := range cfg.Rules {
		r := models.NormalizationRule{
			ID:       ry.ID,
			Name:     ry.Name,
			Type:     models.RuleType(ry.Type),
			Priority: ry.Priority,
			Active:   !ry.Inactive,
		}
		switch r.Type {
		case models.RuleTypeSuffixRemoval:
			r.SuffixRemoval = &models.SuffixParams{Suffixes: ry.Suffixes}
		case models.RuleTypeRegionExpansion:
			if len(ry.Overrides) > 0 {
				r.RegionExpansion = &models.RegionParams{Overrides: ry.Overrides}
			}
		case models.RuleTypeSpecialCharRemoval:
			r.SpecialCharRemoval = &models.SpecialCharParams{ExcludedChars: ry.ExcludedChars}
		case models.RuleTypeNumeralNormalization:
			r.NumeralNormalization = &models.NumeralParams{Numerals: ry.Numerals}
		}
		if err := r.Validate(); err != nil {
			return nil, nil, err
		}
		rules = append(rules, r)
	}

	regions := make([]models.RegionMapping, 0, len(cfg.Regions))
	for _, rg := range cfg.Regions {
		regions = append(regions, models.RegionMapping{
			Abbreviation:  rg.Abbreviation,
			CanonicalName: rg.CanonicalName,
			RegionCode:    rg.RegionCode,
		})
	}
	return rules, regions, nil
}

// LoadDefaultRules trả về bộ rule mặc định được embed
func LoadDefaultRules() ([]models.NormalizationRule, []models.RegionMapping, error) {
	return ParseRulesConfig(defaultRulesYAML)
}

// StaticSource serves a fixed rule set; it satisfies RuleSource and RegionSource.
type StaticSource struct {
	Rules   []models.NormalizationRule
	Regions []models.RegionMapping
}

// ActiveRules implements RuleSource
func (ss *StaticSource) ActiveRules(ctx context.Context) ([]models.NormalizationRule, error) {
	out := make([]models.NormalizationRule, 0, len(ss.Rules))
	for _, r := range ss.Rules {
		if r.Active {
			out = append(out, r)
		}
	}
	return out, nil
}

// RegionMappings implements RegionSource
func (ss *StaticSource) RegionMappings(ctx context.Context) ([]models.RegionMapping, error) {
	return ss.Regions, nil
}
