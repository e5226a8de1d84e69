package models

import (
	"time"
)

// ValidationLogEntry audit row written once per resolve attempt.
// Only the manual review fields may change after insert.
type ValidationLogEntry struct {
	ID                 int64          `bson:"log_id" json:"id"`
	RunID              string         `bson:"run_id" json:"run_id"`
	RunType            string         `bson:"run_type" json:"run_type"`
	SourceTable        string         `bson:"source_table" json:"source_table"`
	SourceName         string         `bson:"source_name" json:"source_name"`
	RegionCode         string         `bson:"region_code,omitempty" json:"region_code,omitempty"`
	NormalizedName     string         `bson:"normalized_name" json:"normalized_name"`
	MatchedCode        *string        `bson:"matched_code,omitempty" json:"matched_code,omitempty"`
	MatchConfidence    *int           `bson:"match_confidence,omitempty" json:"match_confidence,omitempty"`
	Recommendation     Recommendation `bson:"recommendation,omitempty" json:"recommendation,omitempty"`
	AddressMatched     bool           `bson:"address_matched" json:"address_matched"`
	Success            bool           `bson:"success" json:"success"`
	FailureReason      *string        `bson:"failure_reason,omitempty" json:"failure_reason,omitempty"`
	ManualReviewStatus string         `bson:"manual_review_status" json:"manual_review_status"`
	ManualReviewNotes  string         `bson:"manual_review_notes,omitempty" json:"manual_review_notes,omitempty"`
	Signals            []MatchSignal  `bson:"signals,omitempty" json:"signals,omitempty"`
	CreatedAt          time.Time      `bson:"created_at" json:"created_at"`
}

// RunType constants
const (
	RunTypeInteractive = "interactive"
	RunTypeBatch       = "batch"
)

// ReviewStatus constants
const (
	ReviewStatusPending  = "pending"
	ReviewStatusApproved = "approved"
	ReviewStatusRejected = "rejected"
)

// FailureReasonNoCandidates logged when retrieval returns nothing
const FailureReasonNoCandidates = "no candidates"

// IsValidReviewStatus kiểm tra status có hợp lệ không
func IsValidReviewStatus(status string) bool {
	validStatuses := []string{
		ReviewStatusPending,
		ReviewStatusApproved,
		ReviewStatusRejected,
	}

	for _, validStatus := range validStatuses {
		if status == validStatus {
			return true
		}
	}
	return false
}

// IsValidRunType kiểm tra run type có hợp lệ không
func IsValidRunType(runType string) bool {
	return runType == RunTypeInteractive || runType == RunTypeBatch
}

// IsPending kiểm tra có đang chờ review không
func (vle *ValidationLogEntry) IsPending() bool {
	return vle.ManualReviewStatus == ReviewStatusPending
}
