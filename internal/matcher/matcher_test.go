package matcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/institution-matcher/app/models"
	"github.com/institution-matcher/internal/normalizer"
	"github.com/institution-matcher/internal/scoring"
	"github.com/institution-matcher/internal/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticRules struct {
	snap *normalizer.Snapshot
	err  error
}

func (s *staticRules) Snapshot(ctx context.Context) (*normalizer.Snapshot, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.snap, nil
}

type fakeRegistry struct {
	mu      sync.Mutex
	entries []models.RegistryEntry
	aliases []models.Alias
	err     error
	calls   int
}

func (f *fakeRegistry) Candidates(ctx context.Context, query search.CandidateQuery) ([]models.RegistryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.entries, nil
}

func (f *fakeRegistry) EntryExists(ctx context.Context, code string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	for _, e := range f.entries {
		if e.StandardCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRegistry) AppendAlias(ctx context.Context, alias *models.Alias) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aliases = append(f.aliases, *alias)
	return nil
}

type fakeReviews struct {
	known   map[int64]bool
	updated map[int64]string
}

func (f *fakeReviews) UpdateReview(ctx context.Context, id int64, status, notes string) (bool, error) {
	if !f.known[id] {
		return false, nil
	}
	f.updated[id] = status
	return true, nil
}

type recordingSink struct {
	entries []models.ValidationLogEntry
}

func (s *recordingSink) Enqueue(entry models.ValidationLogEntry) bool {
	s.entries = append(s.entries, entry)
	return true
}

type memoryCache struct {
	data    map[string][]models.RankedCandidate
	cleared int
}

func (c *memoryCache) Get(ctx context.Context, key string) ([]models.RankedCandidate, bool, error) {
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memoryCache) Set(ctx context.Context, key string, result []models.RankedCandidate) error {
	c.data[key] = result
	return nil
}

func (c *memoryCache) Clear(ctx context.Context) error {
	c.data = map[string][]models.RankedCandidate{}
	c.cleared++
	return nil
}

type recordingIndex struct {
	synced []string
	err    error
}

func (r *recordingIndex) SyncEntry(ctx context.Context, code string) error {
	r.synced = append(r.synced, code)
	return r.err
}

type fixture struct {
	m        *Matcher
	registry *fakeRegistry
	reviews  *fakeReviews
	sink     *recordingSink
	cache    *memoryCache
	index    *recordingIndex
	rules    *staticRules
	address  *normalizer.AddressNormalizer
	snap     *normalizer.Snapshot
}

var baseTime = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newFixture(t *testing.T, entries ...models.RegistryEntry) *fixture {
	t.Helper()
	rules, regions, err := normalizer.LoadDefaultRules()
	require.NoError(t, err)
	snap := normalizer.NewStaticSnapshot(rules, regions)

	engine, err := scoring.NewEngine(scoring.DefaultConfig())
	require.NoError(t, err)

	f := &fixture{
		registry: &fakeRegistry{entries: entries},
		reviews:  &fakeReviews{known: map[int64]bool{7: true}, updated: map[int64]string{}},
		sink:     &recordingSink{},
		cache:    &memoryCache{data: map[string][]models.RankedCandidate{}},
		index:    &recordingIndex{},
		rules:    &staticRules{snap: snap},
		address:  normalizer.NewAddressNormalizer(nil, nil),
		snap:     snap,
	}
	f.m = NewMatcher(Deps{
		Rules:     f.rules,
		Text:      normalizer.NewTextNormalizer(),
		Address:   f.address,
		Engine:    engine,
		Retriever: search.NewRetriever(f.registry, 10, zap.NewNop()),
		Aliases:   f.registry,
		Reviews:   f.reviews,
		Audit:     f.sink,
		Cache:     f.cache,
		Index:     f.index,
	}, zap.NewNop())
	return f
}

func registryEntry(code, name, region string, order int) models.RegistryEntry {
	e := models.RegistryEntry{
		StandardCode:  code,
		CanonicalName: name,
		Active:        true,
		RegisteredAt:  baseTime.Add(time.Duration(order) * time.Minute),
	}
	if region != "" {
		e.RegionCode = &region
	}
	return e
}

func TestResolve_NormalizesBothSidesBeforeScoring(t *testing.T) {
	f := newFixture(t)
	hash := f.address.Normalize(f.snap, "서울 강남구 선릉로 668", "", "11").Hash()
	require.NotEmpty(t, hash)

	// canonical name stored before suffix removal
	e := registryEntry("H-001", "서울특별시 강남구보건소", "11", 1)
	e.AddressHash = &hash
	f.registry.entries = []models.RegistryEntry{e}

	res, err := f.m.Resolve(context.Background(), ResolveRequest{
		SourceName:    "서울 강남구보건소",
		SourceAddress: "서울 강남구 선릉로 668",
		RegionCode:    "서울",
		SourceTable:   "inspection",
	})
	require.NoError(t, err)

	assert.Equal(t, "서울특별시 강남구", res.NormalizedName)
	require.NotNil(t, res.BestMatch)
	assert.Equal(t, "H-001", res.BestMatch.Entry.StandardCode)

	// text_match is exact only if the registry name was normalized too
	require.Len(t, res.BestMatch.Signals, 4)
	assert.Equal(t, models.SignalTextMatch, res.BestMatch.Signals[0].Name)
	assert.Equal(t, 100, res.BestMatch.Signals[0].Value)
	assert.Equal(t, 100, res.BestMatch.Signals[1].Value)
	assert.Equal(t, 100, res.BestMatch.Score)
	assert.Equal(t, models.RecommendationAutoMatch, res.BestMatch.Recommendation)
	assert.Equal(t, f.snap.Version, res.RulesVersion)

	require.Len(t, f.sink.entries, 1)
	logged := f.sink.entries[0]
	assert.True(t, logged.Success)
	assert.True(t, logged.AddressMatched)
	assert.Equal(t, "inspection", logged.SourceTable)
	assert.Equal(t, "11", logged.RegionCode)
	require.NotNil(t, logged.MatchedCode)
	assert.Equal(t, "H-001", *logged.MatchedCode)
	require.NotNil(t, logged.MatchConfidence)
	assert.Equal(t, 100, *logged.MatchConfidence)
	assert.Len(t, logged.Signals, 4)
	assert.Equal(t, models.ReviewStatusPending, logged.ManualReviewStatus)
	assert.Nil(t, logged.FailureReason)
}

func TestResolve_NoCandidates(t *testing.T) {
	f := newFixture(t, registryEntry("B-001", "부산광역시 해운대구", "26", 1))

	res, err := f.m.Resolve(context.Background(), ResolveRequest{SourceName: "서울 강남구보건소", RegionCode: "서울"})
	require.NoError(t, err)
	assert.Nil(t, res.BestMatch)
	assert.Empty(t, res.Recommendations)

	require.Len(t, f.sink.entries, 1)
	logged := f.sink.entries[0]
	assert.False(t, logged.Success)
	require.NotNil(t, logged.FailureReason)
	assert.Equal(t, models.FailureReasonNoCandidates, *logged.FailureReason)
	assert.Nil(t, logged.MatchedCode)
}

func TestResolve_RejectedBestIsLoggedAsFailure(t *testing.T) {
	f := newFixture(t, registryEntry("C-001", "서울특별시 강남구 역삼동 의원", "", 1))

	res, err := f.m.Resolve(context.Background(), ResolveRequest{SourceName: "강남구 삼성동"})
	require.NoError(t, err)
	require.NotNil(t, res.BestMatch)
	assert.Equal(t, models.RecommendationReject, res.BestMatch.Recommendation)

	logged := f.sink.entries[0]
	assert.False(t, logged.Success)
	require.NotNil(t, logged.FailureReason)
	require.NotNil(t, logged.MatchedCode)
}

func TestResolve_TiesKeepRegistrationOrder(t *testing.T) {
	f := newFixture(t,
		registryEntry("Z-LATE", "서울특별시 강남구", "11", 5),
		registryEntry("A-EARLY", "서울특별시 강남구", "11", 1),
	)

	res, err := f.m.Resolve(context.Background(), ResolveRequest{SourceName: "서울 강남구", RegionCode: "11"})
	require.NoError(t, err)
	require.Len(t, res.Recommendations, 2)
	assert.Equal(t, res.Recommendations[0].Score, res.Recommendations[1].Score)
	assert.Equal(t, "A-EARLY", res.Recommendations[0].Entry.StandardCode)
	assert.Equal(t, "Z-LATE", res.Recommendations[1].Entry.StandardCode)
}

func TestResolve_RunID(t *testing.T) {
	f := newFixture(t)

	res, err := f.m.Resolve(context.Background(), ResolveRequest{SourceName: "강남구", RunID: "batch-42", RunType: models.RunTypeBatch})
	require.NoError(t, err)
	assert.Equal(t, "batch-42", res.RunID)
	assert.Equal(t, models.RunTypeBatch, f.sink.entries[0].RunType)

	res, err = f.m.Resolve(context.Background(), ResolveRequest{SourceName: "강남구"})
	require.NoError(t, err)
	assert.Len(t, res.RunID, 36)
	assert.Equal(t, models.RunTypeInteractive, f.sink.entries[1].RunType)
}

func TestResolve_InputErrors(t *testing.T) {
	f := newFixture(t)

	_, err := f.m.Resolve(context.Background(), ResolveRequest{SourceName: "   "})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.m.Resolve(context.Background(), ResolveRequest{SourceName: "강남구", RunType: "nightly"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	assert.Empty(t, f.sink.entries)
	assert.Zero(t, f.registry.calls)
}

func TestResolve_DependencyErrors(t *testing.T) {
	f := newFixture(t)
	f.rules.err = normalizer.ErrRulesUnavailable

	_, err := f.m.Resolve(context.Background(), ResolveRequest{SourceName: "강남구"})
	assert.ErrorIs(t, err, ErrRulesUnavailable)
	assert.True(t, IsRetryable(err))

	f.rules.err = nil
	f.registry.err = errors.New("connection refused")
	_, err = f.m.Resolve(context.Background(), ResolveRequest{SourceName: "강남구"})
	assert.ErrorIs(t, err, ErrRegistryUnavailable)
	assert.True(t, IsRetryable(err))
	assert.False(t, IsRetryable(ErrInvalidInput))

	assert.Empty(t, f.sink.entries)
}

func TestSearch(t *testing.T) {
	f := newFixture(t,
		registryEntry("H-001", "서울특별시 강남구보건소", "11", 1),
		registryEntry("H-002", "서울특별시 강서구보건소", "11", 2),
	)

	got, err := f.m.Search(context.Background(), "서울 강남구보건소", "서울", 5)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "H-001", got[0].Entry.StandardCode)
	assert.Empty(t, f.sink.entries, "search never logs")

	// second call is served from cache
	again, err := f.m.Search(context.Background(), "서울 강남구보건소", "서울특별시", 5)
	require.NoError(t, err)
	assert.Equal(t, got, again)
	assert.Equal(t, 1, f.registry.calls)
}

func TestSearch_InputErrors(t *testing.T) {
	f := newFixture(t)
	for _, limit := range []int{0, -1, MaxSearchLimit + 1} {
		_, err := f.m.Search(context.Background(), "강남구", "", limit)
		assert.ErrorIs(t, err, ErrInvalidInput, "limit %d", limit)
	}
	_, err := f.m.Search(context.Background(), "", "", 10)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAddAlias(t *testing.T) {
	f := newFixture(t, registryEntry("H-001", "서울특별시 강남구보건소", "11", 1))
	f.cache.data["stale"] = nil

	alias, err := f.m.AddAlias(context.Background(), AliasRequest{
		StandardCode: "H-001",
		AliasName:    "서울 강남구보건소",
		Source:       models.AliasSourceReview,
		Address:      "서울 강남구 선릉로 668",
		RegionCode:   "서울",
	})
	require.NoError(t, err)
	assert.Equal(t, "서울특별시 강남구", alias.NormalizedName)
	assert.True(t, alias.NormalizationApplied)
	assert.True(t, alias.AddressMatchingApplied)
	assert.Equal(t, models.AliasSourceReview, alias.Source)

	want := f.address.Normalize(f.snap, "서울 강남구 선릉로 668", "", "서울").Hash()
	require.NotNil(t, alias.AddressHash)
	assert.Equal(t, want, *alias.AddressHash)

	require.Len(t, f.registry.aliases, 1)
	assert.Equal(t, 1, f.cache.cleared)
	assert.Empty(t, f.cache.data)
	assert.Equal(t, []string{"H-001"}, f.index.synced)
}

func TestAddAlias_IndexSyncFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, registryEntry("H-001", "서울특별시 강남구보건소", "11", 1))
	f.index.err = errors.New("meilisearch down")

	alias, err := f.m.AddAlias(context.Background(), AliasRequest{StandardCode: "H-001", AliasName: "강남 보건소"})
	require.NoError(t, err)
	assert.NotNil(t, alias)
	assert.Len(t, f.registry.aliases, 1)
	assert.Equal(t, []string{"H-001"}, f.index.synced)
	assert.Equal(t, 1, f.cache.cleared)
}

func TestAddAlias_Errors(t *testing.T) {
	f := newFixture(t, registryEntry("H-001", "서울특별시 강남구보건소", "11", 1))

	_, err := f.m.AddAlias(context.Background(), AliasRequest{StandardCode: "NOPE", AliasName: "강남구"})
	assert.ErrorIs(t, err, ErrUnknownStandardCode)

	_, err = f.m.AddAlias(context.Background(), AliasRequest{StandardCode: "H-001"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	f.registry.err = errors.New("timeout")
	_, err = f.m.AddAlias(context.Background(), AliasRequest{StandardCode: "H-001", AliasName: "강남구"})
	assert.ErrorIs(t, err, ErrRegistryUnavailable)

	assert.Empty(t, f.registry.aliases)
	assert.Empty(t, f.index.synced)
}

func TestReviewLog(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.m.ReviewLog(context.Background(), 7, models.ReviewStatusApproved, "confirmed by phone"))
	assert.Equal(t, models.ReviewStatusApproved, f.reviews.updated[7])

	assert.ErrorIs(t, f.m.ReviewLog(context.Background(), 8, models.ReviewStatusRejected, ""), ErrLogNotFound)
	assert.ErrorIs(t, f.m.ReviewLog(context.Background(), 7, "maybe", ""), ErrInvalidInput)
	assert.ErrorIs(t, f.m.ReviewLog(context.Background(), 0, models.ReviewStatusApproved, ""), ErrInvalidInput)
}
