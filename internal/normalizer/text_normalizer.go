package normalizer

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/institution-matcher/app/models"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// maxPasses bounds the fixed-point loop. Rule sets built by buildSnapshot
// converge in two passes; the rest is slack.
const maxPasses = 4

// TextNormalizer applies a rule snapshot to institution names.
// It holds no mutable state and is safe for concurrent use.
type TextNormalizer struct{}

// NewTextNormalizer tạo mới TextNormalizer
func NewTextNormalizer() *TextNormalizer {
	return &TextNormalizer{}
}

// Normalize runs every rule of the snapshot in priority order until the text
// stops changing, and returns the result with the trace of rules that changed it.
func (tn *TextNormalizer) Normalize(snap *Snapshot, raw string) (string, []models.AppliedRule) {
	start := norm.NFC.String(raw)
	if snap == nil {
		return start, nil
	}

	s := start
	fired := make(map[string]bool)
	var trace []models.AppliedRule

	for pass := 0; pass < maxPasses; pass++ {
		before := s
		for i := range snap.Rules {
			rule := &snap.Rules[i]
			next := applyRule(snap, rule, s)

			changed := next != s
			if rule.Type == models.RuleTypeComposite {
				changed = s != start
			}
			if changed && !fired[rule.ID] {
				fired[rule.ID] = true
				trace = append(trace, models.AppliedRule{RuleID: rule.ID, Name: rule.Name, Type: rule.Type})
			}
			s = next
		}
		if s == before {
			break
		}
	}
	return s, trace
}

func applyRule(snap *Snapshot, rule *models.NormalizationRule, s string) string {
	switch rule.Type {
	case models.RuleTypeSuffixRemoval:
		return removeSuffixes(s, rule.SuffixRemoval.Suffixes)
	case models.RuleTypeRegionExpansion:
		var overrides map[string]string
		if rule.RegionExpansion != nil {
			overrides = rule.RegionExpansion.Overrides
		}
		return expandRegions(snap, overrides, s)
	case models.RuleTypeWhitespaceNormalization:
		return collapseSpaces(s)
	case models.RuleTypeSpecialCharRemoval:
		excluded := ""
		if rule.SpecialCharRemoval != nil {
			excluded = rule.SpecialCharRemoval.ExcludedChars
		}
		return removeSpecialChars(s, excluded)
	case models.RuleTypeNumeralNormalization:
		var numerals map[string]string
		if rule.NumeralNormalization != nil {
			numerals = rule.NumeralNormalization.Numerals
		}
		return normalizeNumerals(s, numerals)
	default:
		// address_standardization belongs to AddressNormalizer, composite is a marker
		return s
	}
}

// removeSuffixes strips configured trailing patterns until none match.
// A suffix equal to the whole string is kept, so a name never becomes empty.
func removeSuffixes(s string, suffixes []string) string {
	ordered := make([]string, 0, len(suffixes))
	for _, suf := range suffixes {
		if suf = strings.TrimSpace(suf); suf != "" {
			ordered = append(ordered, suf)
		}
	}
	// longest first so "보건지소" wins over "지소"
	sort.SliceStable(ordered, func(i, j int) bool {
		return utf8.RuneCountInString(ordered[i]) > utf8.RuneCountInString(ordered[j])
	})

	out := strings.TrimRightFunc(s, unicode.IsSpace)
	for {
		stripped := false
		for _, suf := range ordered {
			if !strings.HasSuffix(out, suf) {
				continue
			}
			rest := strings.TrimRightFunc(strings.TrimSuffix(out, suf), unicode.IsSpace)
			if strings.TrimSpace(rest) == "" {
				continue
			}
			out = rest
			stripped = true
			break
		}
		if !stripped {
			break
		}
	}
	if out == strings.TrimRightFunc(s, unicode.IsSpace) {
		// nothing stripped: leave trailing blanks to the whitespace rule
		return s
	}
	return out
}

// expandRegions replaces whole-token abbreviations. Rule overrides win over
// the region reference.
func expandRegions(snap *Snapshot, overrides map[string]string, s string) string {
	return mapTokens(s, func(tok string) string {
		if v, ok := overrides[tok]; ok && v != "" {
			if _, chained := overrides[v]; !chained {
				return v
			}
		}
		if v, ok := snap.expand(tok); ok {
			return v
		}
		return tok
	})
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func removeSpecialChars(s, excluded string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || unicode.IsMark(r) {
			return r
		}
		if strings.ContainsRune(excluded, r) {
			return r
		}
		return -1
	}, s)
}

// normalizeNumerals maps spelled-out numerals (whole tokens) to digits and
// full-width digits to ASCII.
func normalizeNumerals(s string, numerals map[string]string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) && r > unicode.MaxASCII {
			p := width.LookupRune(r)
			if p.Kind() == width.EastAsianFullwidth {
				if n := p.Narrow(); n != 0 {
					return n
				}
			}
		}
		return r
	}, s)
	if len(numerals) == 0 {
		return s
	}
	return mapTokens(s, func(tok string) string {
		if v, ok := numerals[tok]; ok {
			return v
		}
		return tok
	})
}

// mapTokens rewrites each maximal run of non-space runes and keeps the
// separators exactly as they were.
func mapTokens(s string, fn func(string) string) string {
	var b strings.Builder
	b.Grow(len(s))
	tokStart := -1
	for i, r := range s {
		if unicode.IsSpace(r) {
			if tokStart >= 0 {
				b.WriteString(fn(s[tokStart:i]))
				tokStart = -1
			}
			b.WriteRune(r)
			continue
		}
		if tokStart < 0 {
			tokStart = i
		}
	}
	if tokStart >= 0 {
		b.WriteString(fn(s[tokStart:]))
	}
	return b.String()
}
