package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/institution-matcher/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSource struct {
	entries []models.RegistryEntry
	err     error
}

func (f *fakeSource) Candidates(ctx context.Context, query CandidateQuery) ([]models.RegistryEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.entries, nil
}

var baseTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func entry(code, name, region string, order int, aliases ...string) models.RegistryEntry {
	e := models.RegistryEntry{
		StandardCode:  code,
		CanonicalName: name,
		Active:        true,
		Aliases:       aliases,
		RegisteredAt:  baseTime.Add(time.Duration(order) * time.Hour),
	}
	if region != "" {
		e.RegionCode = &region
	}
	return e
}

func codes(scored []ScoredEntry) []string {
	out := make([]string, 0, len(scored))
	for _, s := range scored {
		out = append(out, s.Entry.StandardCode)
	}
	return out
}

func TestRetriever_RanksAndFilters(t *testing.T) {
	src := &fakeSource{entries: []models.RegistryEntry{
		entry("C3", "서울특별시 강남구 역삼", "11", 3),
		entry("C1", "서울특별시 서초구", "11", 1),
		entry("C2", "서울특별시 강남구", "11", 2),
		entry("C4", "부산광역시 해운대구", "26", 4),
		entry("C5", "서울특별시 강남구", "26", 5),
	}}
	r := NewRetriever(src, 10, zap.NewNop())

	got, err := r.Retrieve(context.Background(), CandidateQuery{Name: "서울특별시 강남구", Region: "11"})
	require.NoError(t, err)
	assert.Equal(t, []string{"C2", "C3", "C1"}, codes(got))
	assert.Equal(t, []int{100, 80, 50}, []int{got[0].QuickScore, got[1].QuickScore, got[2].QuickScore})
}

func TestRetriever_TiesKeepRegistrationOrder(t *testing.T) {
	src := &fakeSource{entries: []models.RegistryEntry{
		entry("B", "강남구 보건", "", 2),
		entry("A", "강남구 의원", "", 1),
		entry("C", "강남구 약국", "", 3),
	}}
	r := NewRetriever(src, 10, zap.NewNop())

	got, err := r.Retrieve(context.Background(), CandidateQuery{Name: "강남구 치과"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, codes(got))
}

func TestRetriever_AliasesAndLimit(t *testing.T) {
	var entries []models.RegistryEntry
	for i := 0; i < 15; i++ {
		entries = append(entries, entry(fmt.Sprintf("E%02d", i), fmt.Sprintf("기관 %d", i), "", i))
	}
	entries = append(entries, entry("ALIAS", "전혀 다른 이름", "", 99, "강남 기관"))
	r := NewRetriever(&fakeSource{entries: entries}, 5, zap.NewNop())

	got, err := r.Retrieve(context.Background(), CandidateQuery{Name: "강남 기관"})
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, "ALIAS", got[0].Entry.StandardCode)
	assert.Equal(t, 100, got[0].QuickScore)

	got, err = r.Retrieve(context.Background(), CandidateQuery{Name: "강남 기관", Limit: 20})
	require.NoError(t, err)
	assert.Len(t, got, 16)
}

func TestRetriever_CanonicalizesStoredNames(t *testing.T) {
	src := &fakeSource{entries: []models.RegistryEntry{entry("S", "서울특별시 강남구보건소", "11", 1)}}
	r := NewRetriever(src, 10, zap.NewNop())

	got, err := r.Retrieve(context.Background(), CandidateQuery{
		Name:         "서울특별시 강남구",
		Canonicalize: func(s string) string { return strings.TrimSuffix(s, "보건소") },
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "서울특별시 강남구", got[0].NormalizedName)
	assert.Equal(t, 100, got[0].QuickScore)
	assert.Equal(t, "서울특별시 강남구보건소", got[0].Entry.CanonicalName)
}

func TestRetriever_SkipsInactiveAndZero(t *testing.T) {
	inactive := entry("X", "강남구", "", 1)
	inactive.Active = false
	src := &fakeSource{entries: []models.RegistryEntry{inactive, entry("Y", "서초구", "", 2)}}

	got, err := NewRetriever(src, 10, zap.NewNop()).Retrieve(context.Background(), CandidateQuery{Name: "강남구"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRetriever_SourceError(t *testing.T) {
	src := &fakeSource{err: errors.New("timeout")}
	_, err := NewRetriever(src, 10, zap.NewNop()).Retrieve(context.Background(), CandidateQuery{Name: "강남구"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSourceUnavailable))
}

func TestFallbackSource(t *testing.T) {
	primary := &fakeSource{err: errors.New("meilisearch: 503")}
	secondary := &fakeSource{entries: []models.RegistryEntry{entry("C1", "서울특별시 강남구", "11", 1)}}
	fs := &FallbackSource{Primary: primary, Secondary: secondary, Logger: zap.NewNop()}

	got, err := fs.Candidates(context.Background(), CandidateQuery{Name: "강남구"})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	primary.err = nil
	primary.entries = []models.RegistryEntry{entry("P1", "부산광역시", "26", 1), entry("P2", "대구광역시", "27", 2)}
	got, err = fs.Candidates(context.Background(), CandidateQuery{Name: "강남구"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	noPrimary := &FallbackSource{Secondary: secondary, Logger: zap.NewNop()}
	got, err = noPrimary.Candidates(context.Background(), CandidateQuery{})
	require.NoError(t, err)
	assert.Equal(t, "C1", got[0].StandardCode)
}

func TestTopByQuickScore_CutsByScoreNotAge(t *testing.T) {
	entries := []models.RegistryEntry{
		entry("OLD1", "부산 병원", "", 1),
		entry("OLD2", "대구 병원", "", 2),
		entry("NEW", "서울 강남 병원", "", 3),
	}
	query := CandidateQuery{Name: "서울 강남 병원"}

	got := TopByQuickScore(query, entries, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "NEW", got[0].StandardCode)
	assert.Equal(t, "OLD1", got[1].StandardCode)

	assert.Len(t, TopByQuickScore(query, entries, 5), 3)
}

func TestRetriever_RegionFilterIsStrict(t *testing.T) {
	src := &fakeSource{entries: []models.RegistryEntry{
		entry("NOREGION", "강남구", "", 1),
		entry("SEOUL", "강남구", "11", 2),
	}}
	r := NewRetriever(src, 10, zap.NewNop())

	got, err := r.Retrieve(context.Background(), CandidateQuery{Name: "강남구", Region: "11"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "SEOUL", got[0].Entry.StandardCode)

	got, err = r.Retrieve(context.Background(), CandidateQuery{Name: "강남구"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
