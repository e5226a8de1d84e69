package models

// Signal names, in the order they appear in a scoring result
const (
	SignalTextMatch       = "text_match"
	SignalNameSimilarity  = "name_similarity"
	SignalAddressMatch    = "address_match"
	SignalRegionCodeMatch = "region_code_match"
)

// MatchSignal one independently computed 0-100 indicator
type MatchSignal struct {
	Name         string                 `bson:"name" json:"name"`
	Value        int                    `bson:"value" json:"value"`   // 0-100
	Weight       float64                `bson:"weight" json:"weight"` // 0-1
	Contribution float64                `bson:"contribution" json:"contribution"`
	Detail       map[string]interface{} `bson:"detail,omitempty" json:"detail,omitempty"`
}

// Recommendation tier
type Recommendation string

// Recommendation constants
const (
	RecommendationAutoMatch    Recommendation = "auto_match"
	RecommendationManualReview Recommendation = "manual_review"
	RecommendationReject       Recommendation = "reject"
)

// IsValid kiểm tra recommendation có hợp lệ không
func (r Recommendation) IsValid() bool {
	switch r {
	case RecommendationAutoMatch, RecommendationManualReview, RecommendationReject:
		return true
	}
	return false
}

// AppliedRule trace entry of a rule that changed the text
type AppliedRule struct {
	RuleID string   `bson:"rule_id" json:"rule_id"`
	Name   string   `bson:"name" json:"name"`
	Type   RuleType `bson:"type" json:"type"`
}

// RankedCandidate registry entry with its full scoring result
type RankedCandidate struct {
	Entry          RegistryEntry  `json:"entry"`
	Score          int            `json:"score"`
	QuickScore     int            `json:"quick_score"`
	Signals        []MatchSignal  `json:"signals"`
	Recommendation Recommendation `json:"recommendation"`
}

// ResolutionResult output of a resolve call
type ResolutionResult struct {
	RunID              string            `json:"run_id"`
	SourceName         string            `json:"source_name"`
	NormalizedName     string            `json:"normalized_name"`
	NormalizationTrace []AppliedRule     `json:"normalization_trace"`
	AddressHash        *string           `json:"address_hash,omitempty"`
	RulesVersion       string            `json:"rules_version"`
	Recommendations    []RankedCandidate `json:"ranked_recommendations"`
	BestMatch          *RankedCandidate  `json:"best_match,omitempty"`
}
