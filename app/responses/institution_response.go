package responses

import (
	"github.com/institution-matcher/app/models"
	"github.com/institution-matcher/app/services"
)

// ResolveResponse response resolve một tên
type ResolveResponse struct {
	Result           *models.ResolutionResult `json:"result"`
	ProcessingTimeMs int64                    `json:"processing_time_ms"` // Thời gian xử lý (ms)
}

// SearchResponse response search
type SearchResponse struct {
	Query            string                   `json:"query"`
	RegionCode       string                   `json:"region_code,omitempty"`
	Candidates       []models.RankedCandidate `json:"candidates"`
	Total            int                      `json:"total"`
	ProcessingTimeMs int64                    `json:"processing_time_ms"`
}

// BatchResolveResponse response tạo batch job
type BatchResolveResponse struct {
	JobID            string `json:"job_id"`            // ID của job, cũng là run_id
	EstimatedSeconds int    `json:"estimated_seconds"` // Thời gian ước tính (giây)
	TotalItems       int    `json:"total_items"`
	Message          string `json:"message"`
}

// JobStatusResponse response trạng thái job
type JobStatusResponse struct {
	services.JobStatus
}

// AliasResponse response đăng ký alias
type AliasResponse struct {
	Alias   *models.Alias `json:"alias"`
	Message string        `json:"message"`
}

// ReviewListResponse response danh sách chờ review
type ReviewListResponse struct {
	Reviews []models.ValidationLogEntry `json:"reviews"`
	Total   int                         `json:"total"`
	Limit   int                         `json:"limit"`
}

// ReviewActionResponse response thao tác review
type ReviewActionResponse struct {
	Success   bool   `json:"success"`
	LogID     int64  `json:"log_id"`
	Status    string `json:"status"`
	Message   string `json:"message"`
	UpdatedAt string `json:"updated_at"`
}

// GroupResponse response grouping
type GroupResponse struct {
	*models.GroupingResult
	ProcessingTimeMs int64 `json:"processing_time_ms"`
}

// MetricsResponse response snapshot metrics theo ngày
type MetricsResponse struct {
	Snapshot *models.MetricsSnapshot `json:"snapshot"`
}

// SeedResponse response seed
type SeedResponse struct {
	*services.SeedResult
	Message string `json:"message"`
}
