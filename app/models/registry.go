package models

import (
	"time"
)

// RegistryEntry cơ sở chuẩn trong registry
type RegistryEntry struct {
	StandardCode  string    `bson:"standard_code" json:"standard_code"`                   // unique, immutable
	CanonicalName string    `bson:"canonical_name" json:"canonical_name"`                 // stored normalized
	AddressHash   *string   `bson:"address_hash,omitempty" json:"address_hash,omitempty"` // sha256 hex
	RegionCode    *string   `bson:"region_code,omitempty" json:"region_code,omitempty"`
	Active        bool      `bson:"active" json:"active"`
	Aliases       []string  `bson:"aliases,omitempty" json:"aliases,omitempty"` // normalized alias names
	RegisteredAt  time.Time `bson:"registered_at" json:"registered_at"`        // registration order
}

// Alias a confirmed raw name that refers to an existing registry entry. Append-only.
type Alias struct {
	StandardCode           string    `bson:"standard_code" json:"standard_code"`
	AliasName              string    `bson:"alias_name" json:"alias_name"`
	NormalizedName         string    `bson:"normalized_name" json:"normalized_name"`
	Source                 string    `bson:"source" json:"source"`
	SourceAddress          string    `bson:"source_address,omitempty" json:"source_address,omitempty"`
	AddressHash            *string   `bson:"address_hash,omitempty" json:"address_hash,omitempty"`
	NormalizationApplied   bool      `bson:"normalization_applied" json:"normalization_applied"`
	AddressMatchingApplied bool      `bson:"address_matching_applied" json:"address_matching_applied"`
	CreatedAt              time.Time `bson:"created_at" json:"created_at"`
}

// Source constants
const (
	AliasSourceManual = "manual"
	AliasSourceReview = "review"
	AliasSourceImport = "import"
)

// NewAlias tạo mới một Alias
func NewAlias(standardCode, aliasName, normalizedName, source string) *Alias {
	if source == "" {
		source = AliasSourceManual
	}
	return &Alias{
		StandardCode:         standardCode,
		AliasName:            aliasName,
		NormalizedName:       normalizedName,
		Source:               source,
		NormalizationApplied: aliasName != normalizedName,
		CreatedAt:            time.Now().UTC(),
	}
}

// Region trả về region code hoặc chuỗi rỗng
func (re *RegistryEntry) Region() string {
	if re.RegionCode == nil {
		return ""
	}
	return *re.RegionCode
}

// Hash trả về address hash hoặc chuỗi rỗng
func (re *RegistryEntry) Hash() string {
	if re.AddressHash == nil {
		return ""
	}
	return *re.AddressHash
}
