package requests

// ResolveRequest request resolve một tên cơ sở
type ResolveRequest struct {
	SourceName    string `json:"source_name" binding:"required"`   // Tên cần resolve
	SourceAddress string `json:"source_address,omitempty"`         // Địa chỉ đường (road address)
	LotAddress    string `json:"lot_address,omitempty"`            // Địa chỉ lô (lot address)
	RegionCode    string `json:"region_code,omitempty"`            // Region hint
	SourceTable   string `json:"source_table,omitempty"`           // Nguồn dữ liệu
	RunID         string `json:"run_id,omitempty"`                 // Gộp nhiều lần resolve vào một run
}

// SearchRequest request search candidate
type SearchRequest struct {
	Name       string `form:"name" json:"name" binding:"required"`
	RegionCode string `form:"region_code" json:"region_code,omitempty"`
	Limit      int    `form:"limit" json:"limit,omitempty"` // mặc định 10, tối đa 100
}

// BatchResolveRequest request resolve hàng loạt
type BatchResolveRequest struct {
	Items       []ResolveRequest `json:"items" binding:"required,min=1,max=20000,dive"` // tối đa 20k dòng
	SourceTable string           `json:"source_table,omitempty"`
}

// AliasRequest request đăng ký alias
type AliasRequest struct {
	StandardCode string `json:"standard_code" binding:"required"`
	AliasName    string `json:"alias_name" binding:"required"`
	Source       string `json:"source,omitempty" binding:"omitempty,oneof=manual review import"`
	Address      string `json:"address,omitempty"`
	LotAddress   string `json:"lot_address,omitempty"`
	RegionCode   string `json:"region_code,omitempty"`
}

// ReviewRequest request cập nhật kết quả review
type ReviewRequest struct {
	Status string `json:"status" binding:"required,oneof=pending approved rejected"`
	Notes  string `json:"notes,omitempty"`
}

// GroupRequest request gom nhóm cơ sở trùng lặp
type GroupRequest struct {
	Region    string  `json:"region" binding:"required"`
	SubRegion string  `json:"sub_region,omitempty"`
	Threshold float64 `json:"threshold,omitempty"` // 0 = mặc định
}

// SeedRequest request seed rule mặc định
type SeedRequest struct {
	RebuildIndex bool `json:"rebuild_index,omitempty"`
}
