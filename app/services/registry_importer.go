package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/institution-matcher/app/models"
	"github.com/institution-matcher/internal/normalizer"
	"go.uber.org/zap"
)

// RegistryRow một dòng registry thô trong file import
type RegistryRow struct {
	StandardCode string   `json:"standard_code"`
	Name         string   `json:"name"`
	RoadAddress  string   `json:"road_address,omitempty"`
	LotAddress   string   `json:"lot_address,omitempty"`
	Region       string   `json:"region,omitempty"`
	Aliases      []string `json:"aliases,omitempty"`
	Inactive     bool     `json:"inactive,omitempty"`
}

// RegistryWriter ghi registry entries
type RegistryWriter interface {
	UpsertEntries(ctx context.Context, entries []models.RegistryEntry) error
}

// SnapshotProvider trả về snapshot rule hiện tại
type SnapshotProvider interface {
	Snapshot(ctx context.Context) (*normalizer.Snapshot, error)
}

// RegistryImporter normalizes raw registry rows with the current rule
// snapshot and upserts them. Stored names are always canonical.
type RegistryImporter struct {
	rules   SnapshotProvider
	text    *normalizer.TextNormalizer
	address *normalizer.AddressNormalizer
	writer  RegistryWriter
	logger  *zap.Logger
}

// NewRegistryImporter tạo mới RegistryImporter
func NewRegistryImporter(rules SnapshotProvider, text *normalizer.TextNormalizer, address *normalizer.AddressNormalizer, writer RegistryWriter, logger *zap.Logger) *RegistryImporter {
	return &RegistryImporter{rules: rules, text: text, address: address, writer: writer, logger: logger}
}

// Import upserts rows in file order; RegisteredAt preserves that order.
func (ri *RegistryImporter) Import(ctx context.Context, rows []RegistryRow) (int, error) {
	snap, err := ri.rules.Snapshot(ctx)
	if err != nil {
		return 0, err
	}

	base := time.Now().UTC()
	entries := make([]models.RegistryEntry, 0, len(rows))
	seen := make(map[string]bool, len(rows))
	for i, row := range rows {
		code := strings.TrimSpace(row.StandardCode)
		name := strings.TrimSpace(row.Name)
		if code == "" || name == "" {
			return 0, fmt.Errorf("row %d: standard_code and name are required", i+1)
		}
		if seen[code] {
			return 0, fmt.Errorf("row %d: duplicate standard_code %s", i+1, code)
		}
		seen[code] = true

		canonical, _ := ri.text.Normalize(snap, name)
		addr := ri.address.Normalize(snap, row.RoadAddress, row.LotAddress, row.Region)

		entry := models.RegistryEntry{
			StandardCode:  code,
			CanonicalName: canonical,
			AddressHash:   addr.AddressHash,
			Active:        !row.Inactive,
			RegisteredAt:  base.Add(time.Duration(i) * time.Millisecond),
		}
		if addr.RegionCode != "" {
			region := addr.RegionCode
			entry.RegionCode = &region
		}
		for _, a := range row.Aliases {
			if n, _ := ri.text.Normalize(snap, a); n != "" {
				entry.Aliases = append(entry.Aliases, n)
			}
		}
		entries = append(entries, entry)
	}

	if err := ri.writer.UpsertEntries(ctx, entries); err != nil {
		return 0, err
	}
	ri.logger.Info("Registry imported", zap.Int("entries", len(entries)), zap.String("rules_version", snap.Version))
	return len(entries), nil
}

// ImportJSON đọc mảng JSON RegistryRow rồi import
func (ri *RegistryImporter) ImportJSON(ctx context.Context, r io.Reader) (int, error) {
	var rows []RegistryRow
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return 0, fmt.Errorf("decode registry file: %w", err)
	}
	return ri.Import(ctx, rows)
}
