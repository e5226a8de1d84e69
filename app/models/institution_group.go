package models

// InstitutionRecord một bản ghi đầu vào cho grouping
type InstitutionRecord struct {
	StandardCode    string `bson:"standard_code" json:"standard_code"`
	Name            string `bson:"name" json:"name"`
	SubUnit         string `bson:"sub_unit,omitempty" json:"sub_unit,omitempty"`
	SubUnitCategory string `bson:"sub_unit_category,omitempty" json:"sub_unit_category,omitempty"`
	RoadAddress     string `bson:"road_address,omitempty" json:"road_address,omitempty"`
	RegionCode      string `bson:"region_code,omitempty" json:"region_code,omitempty"`
	SubRegionCode   string `bson:"sub_region_code,omitempty" json:"sub_region_code,omitempty"`
	EquipmentCount  int    `bson:"equipment_count" json:"equipment_count"`
	MatchedCount    int    `bson:"matched_count" json:"matched_count"`
	UnmatchedCount  int    `bson:"unmatched_count" json:"unmatched_count"`
	Pinned          bool   `bson:"pinned" json:"pinned"` // master pinned by a prior human action
}

// Confidence tier constants
const (
	GroupConfidenceHigh   = "high"
	GroupConfidenceMedium = "medium"
	GroupConfidenceLow    = "low"
)

// InstitutionGroup cluster of near-duplicate records. Transient, recomputed on demand.
type InstitutionGroup struct {
	ClusterID        string              `json:"cluster_id"`
	Master           InstitutionRecord   `json:"master"`
	MasterReason     string              `json:"master_reason"`
	Members          []InstitutionRecord `json:"members"`
	SimilarityScore  float64             `json:"similarity_score"` // 0-1
	Confidence       string              `json:"confidence"`
	NeedsWarning     bool                `json:"needs_warning"`
	ProtectedMembers []string            `json:"protected_members,omitempty"`
	TotalEquipment   int                 `json:"total_equipment"`
	MatchedCount     int                 `json:"matched_count"`
	UnmatchedCount   int                 `json:"unmatched_count"`
}

// GroupingStats thống kê kết quả grouping
type GroupingStats struct {
	TotalRecords     int     `json:"total_records"`
	GroupCount       int     `json:"group_count"`
	GroupedRecords   int     `json:"grouped_records"`
	UngroupedRecords int     `json:"ungrouped_records"`
	WarningGroups    int     `json:"warning_groups"`
	Threshold        float64 `json:"threshold"`
}

// GroupingResult output of a group call
type GroupingResult struct {
	Groups    []InstitutionGroup  `json:"groups"`
	Ungrouped []InstitutionRecord `json:"ungrouped"`
	Stats     GroupingStats       `json:"stats"`
}
