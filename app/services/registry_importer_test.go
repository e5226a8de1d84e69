package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/institution-matcher/app/models"
	"github.com/institution-matcher/internal/normalizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticSnapshot struct{ snap *normalizer.Snapshot }

func (s staticSnapshot) Snapshot(ctx context.Context) (*normalizer.Snapshot, error) {
	return s.snap, nil
}

type recordingRegistry struct {
	entries []models.RegistryEntry
	err     error
}

func (r *recordingRegistry) UpsertEntries(ctx context.Context, entries []models.RegistryEntry) error {
	if r.err != nil {
		return r.err
	}
	r.entries = append(r.entries, entries...)
	return nil
}

func newTestImporter(t *testing.T, writer RegistryWriter) (*RegistryImporter, *normalizer.Snapshot) {
	t.Helper()
	rules, regions, err := normalizer.LoadDefaultRules()
	require.NoError(t, err)
	snap := normalizer.NewStaticSnapshot(rules, regions)
	text := normalizer.NewTextNormalizer()
	address := normalizer.NewAddressNormalizer(nil, nil)
	return NewRegistryImporter(staticSnapshot{snap}, text, address, writer, zap.NewNop()), snap
}

func TestRegistryImporter_StoresCanonicalNames(t *testing.T) {
	writer := &recordingRegistry{}
	importer, snap := newTestImporter(t, writer)

	n, err := importer.ImportJSON(context.Background(), strings.NewReader(`[
		{"standard_code":"A001","name":"서울특별시 (주)강남구보건소","road_address":"강남대로 1","region":"서울","aliases":["강남 보건소"]},
		{"standard_code":"A002","name":"부산 해운대구보건소","inactive":true}
	]`))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, writer.entries, 2)

	text := normalizer.NewTextNormalizer()
	want, _ := text.Normalize(snap, "서울특별시 (주)강남구보건소")
	first := writer.entries[0]
	assert.Equal(t, want, first.CanonicalName)
	assert.True(t, first.Active)
	require.NotNil(t, first.AddressHash)
	require.NotNil(t, first.RegionCode)
	assert.Equal(t, snap.RegionCode("서울"), *first.RegionCode)
	wantAlias, _ := text.Normalize(snap, "강남 보건소")
	assert.Equal(t, []string{wantAlias}, first.Aliases)

	assert.False(t, writer.entries[1].Active)
	assert.True(t, writer.entries[0].RegisteredAt.Before(writer.entries[1].RegisteredAt))
}

func TestRegistryImporter_Errors(t *testing.T) {
	writer := &recordingRegistry{}
	importer, _ := newTestImporter(t, writer)
	ctx := context.Background()

	_, err := importer.Import(ctx, []RegistryRow{{StandardCode: "A001"}})
	assert.Error(t, err)

	_, err = importer.Import(ctx, []RegistryRow{{StandardCode: "A001", Name: "x"}, {StandardCode: "A001", Name: "y"}})
	assert.ErrorContains(t, err, "duplicate")
	assert.Empty(t, writer.entries)

	_, err = importer.ImportJSON(ctx, strings.NewReader(`{not json`))
	assert.Error(t, err)

	writer.err = errors.New("mongo down")
	_, err = importer.Import(ctx, []RegistryRow{{StandardCode: "A001", Name: "x"}})
	assert.ErrorContains(t, err, "mongo down")
}
