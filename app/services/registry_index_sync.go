package services

import (
	"context"
	"fmt"

	"github.com/institution-matcher/app/models"
)

// EntryReader đọc một registry entry theo standard code
type EntryReader interface {
	GetEntry(ctx context.Context, standardCode string) (*models.RegistryEntry, error)
}

// EntryIndexer ghi entries vào search index
type EntryIndexer interface {
	IndexEntries(ctx context.Context, entries []models.RegistryEntry) error
}

// RegistryIndexSync re-reads an entry from the registry store and pushes it to
// the search index, so aliases confirmed at runtime reach retrieval.
type RegistryIndexSync struct {
	reader  EntryReader
	indexer EntryIndexer
}

// NewRegistryIndexSync tạo mới RegistryIndexSync
func NewRegistryIndexSync(reader EntryReader, indexer EntryIndexer) *RegistryIndexSync {
	return &RegistryIndexSync{reader: reader, indexer: indexer}
}

// SyncEntry implements matcher.IndexSync
func (s *RegistryIndexSync) SyncEntry(ctx context.Context, standardCode string) error {
	entry, err := s.reader.GetEntry(ctx, standardCode)
	if err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("registry entry %s not found", standardCode)
	}
	return s.indexer.IndexEntries(ctx, []models.RegistryEntry{*entry})
}
