package services

import (
	"context"
	"errors"
	"testing"

	"github.com/institution-matcher/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapReader struct {
	entries map[string]models.RegistryEntry
	err     error
}

func (r *mapReader) GetEntry(ctx context.Context, code string) (*models.RegistryEntry, error) {
	if r.err != nil {
		return nil, r.err
	}
	e, ok := r.entries[code]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

type recordingIndexer struct {
	indexed []models.RegistryEntry
}

func (r *recordingIndexer) IndexEntries(ctx context.Context, entries []models.RegistryEntry) error {
	r.indexed = append(r.indexed, entries...)
	return nil
}

func TestRegistryIndexSync_PushesCurrentAliases(t *testing.T) {
	reader := &mapReader{entries: map[string]models.RegistryEntry{
		"H-001": {StandardCode: "H-001", CanonicalName: "서울특별시 강남구", Active: true, Aliases: []string{"강남 보건"}},
	}}
	indexer := &recordingIndexer{}
	syncer := NewRegistryIndexSync(reader, indexer)

	require.NoError(t, syncer.SyncEntry(context.Background(), "H-001"))
	require.Len(t, indexer.indexed, 1)
	assert.Equal(t, []string{"강남 보건"}, indexer.indexed[0].Aliases)

	assert.Error(t, syncer.SyncEntry(context.Background(), "NOPE"))

	reader.err = errors.New("mongo down")
	assert.Error(t, syncer.SyncEntry(context.Background(), "H-001"))
	assert.Len(t, indexer.indexed, 1)
}
