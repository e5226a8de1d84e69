package models

import (
	"errors"
	"fmt"
)

// RuleType loại rule chuẩn hóa tên cơ sở
type RuleType string

// RuleType constants
const (
	RuleTypeSuffixRemoval           RuleType = "suffix_removal"
	RuleTypeRegionExpansion         RuleType = "region_expansion"
	RuleTypeWhitespaceNormalization RuleType = "whitespace_normalization"
	RuleTypeSpecialCharRemoval      RuleType = "special_character_removal"
	RuleTypeNumeralNormalization    RuleType = "numeral_normalization"
	RuleTypeAddressStandardization  RuleType = "address_standardization"
	RuleTypeComposite               RuleType = "composite"
)

// NormalizationRule one typed rule loaded from the normalization_rules collection.
// Exactly one parameter block is set and it must match Type.
type NormalizationRule struct {
	ID       string   `bson:"rule_id" json:"id"`
	Name     string   `bson:"name" json:"name"`
	Type     RuleType `bson:"type" json:"type"`
	Priority int      `bson:"priority" json:"priority"` // higher runs first
	Active   bool     `bson:"active" json:"active"`

	SuffixRemoval        *SuffixParams      `bson:"suffix_removal,omitempty" json:"suffix_removal,omitempty"`
	RegionExpansion      *RegionParams      `bson:"region_expansion,omitempty" json:"region_expansion,omitempty"`
	SpecialCharRemoval   *SpecialCharParams `bson:"special_char_removal,omitempty" json:"special_char_removal,omitempty"`
	NumeralNormalization *NumeralParams     `bson:"numeral_normalization,omitempty" json:"numeral_normalization,omitempty"`
}

// SuffixParams trailing patterns stripped by suffix_removal
type SuffixParams struct {
	Suffixes []string `bson:"suffixes" json:"suffixes"`
}

// RegionParams overrides merged on top of the region reference
type RegionParams struct {
	Overrides map[string]string `bson:"overrides,omitempty" json:"overrides,omitempty"`
}

// SpecialCharParams characters kept in addition to letters, digits and spaces
type SpecialCharParams struct {
	ExcludedChars string `bson:"excluded_chars" json:"excluded_chars"`
}

// NumeralParams spelled-out numeral → digits
type NumeralParams struct {
	Numerals map[string]string `bson:"numerals" json:"numerals"`
}

// IsValidRuleType kiểm tra rule type có hợp lệ không
func (nr *NormalizationRule) IsValidRuleType() bool {
	validTypes := []RuleType{
		RuleTypeSuffixRemoval,
		RuleTypeRegionExpansion,
		RuleTypeWhitespaceNormalization,
		RuleTypeSpecialCharRemoval,
		RuleTypeNumeralNormalization,
		RuleTypeAddressStandardization,
		RuleTypeComposite,
	}

	for _, validType := range validTypes {
		if nr.Type == validType {
			return true
		}
	}
	return false
}

// Validate checks that the parameter block matches the rule type.
func (nr *NormalizationRule) Validate() error {
	if nr.ID == "" {
		return errors.New("rule id is required")
	}
	if !nr.IsValidRuleType() {
		return fmt.Errorf("rule %s: unknown type %q", nr.ID, nr.Type)
	}

	set := 0
	for _, present := range []bool{
		nr.SuffixRemoval != nil,
		nr.RegionExpansion != nil,
		nr.SpecialCharRemoval != nil,
		nr.NumeralNormalization != nil,
	} {
		if present {
			set++
		}
	}
	if set > 1 {
		return fmt.Errorf("rule %s: more than one parameter block set", nr.ID)
	}

	switch nr.Type {
	case RuleTypeSuffixRemoval:
		if nr.SuffixRemoval == nil || len(nr.SuffixRemoval.Suffixes) == 0 {
			return fmt.Errorf("rule %s: suffix_removal requires suffixes", nr.ID)
		}
	case RuleTypeRegionExpansion:
		// overrides are optional, the region reference is the primary mapping
		if set == 1 && nr.RegionExpansion == nil {
			return fmt.Errorf("rule %s: unexpected parameters for region_expansion", nr.ID)
		}
	case RuleTypeSpecialCharRemoval:
		if set == 1 && nr.SpecialCharRemoval == nil {
			return fmt.Errorf("rule %s: unexpected parameters for special_character_removal", nr.ID)
		}
	case RuleTypeNumeralNormalization:
		if set == 1 && nr.NumeralNormalization == nil {
			return fmt.Errorf("rule %s: unexpected parameters for numeral_normalization", nr.ID)
		}
	default:
		if set != 0 {
			return fmt.Errorf("rule %s: %s takes no parameters", nr.ID, nr.Type)
		}
	}
	return nil
}

// RegionMapping một dòng trong bảng tham chiếu đơn vị hành chính
type RegionMapping struct {
	Abbreviation  string `bson:"abbreviation" json:"abbreviation"`     // e.g. 서울
	CanonicalName string `bson:"canonical_name" json:"canonical_name"` // e.g. 서울특별시
	RegionCode    string `bson:"region_code" json:"region_code"`       // e.g. SEO
}
