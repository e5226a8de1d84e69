package models

import (
	"time"
)

// MetricsSnapshot per-day rollup of the validation log. MetricDate is the identity.
type MetricsSnapshot struct {
	MetricDate               string             `bson:"metric_date" json:"metric_date"` // YYYY-MM-DD
	TotalRegistryEntries     int64              `bson:"total_registry_entries" json:"total_registry_entries"`
	TotalAliases             int64              `bson:"total_aliases" json:"total_aliases"`
	TotalAttempts            int                `bson:"total_attempts" json:"total_attempts"`
	MatchedCount             int                `bson:"matched_count" json:"matched_count"`
	UnmatchedCount           int                `bson:"unmatched_count" json:"unmatched_count"`
	MatchSuccessRate         float64            `bson:"match_success_rate" json:"match_success_rate"`
	AutoRecommendSuccessRate float64            `bson:"auto_recommend_success_rate" json:"auto_recommend_success_rate"`
	SearchHitRate            float64            `bson:"search_hit_rate" json:"search_hit_rate"`
	AddressMatchRate         float64            `bson:"address_match_rate" json:"address_match_rate"`
	SignalContribution       map[string]float64 `bson:"signal_contribution" json:"signal_contribution"`
	RegionCoverage           map[string]int     `bson:"region_coverage" json:"region_coverage"`
	ComputedAt               time.Time          `bson:"computed_at" json:"computed_at"`
}

// MetricDateLayout layout của MetricDate
const MetricDateLayout = "2006-01-02"
