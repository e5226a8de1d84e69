package matcher

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/institution-matcher/app/models"
	"github.com/institution-matcher/internal/metrics"
	"github.com/institution-matcher/internal/normalizer"
	"github.com/institution-matcher/internal/scoring"
	"github.com/institution-matcher/internal/search"
	"go.uber.org/zap"
)

// Error categories returned by the matcher. No-match is never an error.
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrRegistryUnavailable = errors.New("registry unavailable")
	ErrUnknownStandardCode = errors.New("unknown standard code")
	ErrLogNotFound         = errors.New("validation log not found")
	ErrRulesUnavailable    = normalizer.ErrRulesUnavailable
)

// MaxSearchLimit giới hạn trên của limit trong Search
const MaxSearchLimit = 100

// IsRetryable reports whether err is a dependency failure worth retrying.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRulesUnavailable) || errors.Is(err, ErrRegistryUnavailable)
}

// RuleProvider trả về snapshot rule hiện tại
type RuleProvider interface {
	Snapshot(ctx context.Context) (*normalizer.Snapshot, error)
}

// AliasStore persists confirmed aliases
type AliasStore interface {
	EntryExists(ctx context.Context, standardCode string) (bool, error)
	AppendAlias(ctx context.Context, alias *models.Alias) error
}

// IndexSync pushes the current state of a registry entry to the search index
type IndexSync interface {
	SyncEntry(ctx context.Context, standardCode string) error
}

// ReviewStore annotates validation log entries after a human review
type ReviewStore interface {
	UpdateReview(ctx context.Context, id int64, status, notes string) (bool, error)
}

// AuditSink receives one entry per resolve call and must not block
type AuditSink interface {
	Enqueue(entry models.ValidationLogEntry) bool
}

// SearchCache caches ranked search results
type SearchCache interface {
	Get(ctx context.Context, key string) ([]models.RankedCandidate, bool, error)
	Set(ctx context.Context, key string, result []models.RankedCandidate) error
	Clear(ctx context.Context) error
}

// Deps các thành phần Matcher cần
type Deps struct {
	Rules      RuleProvider
	Text       *normalizer.TextNormalizer
	Address    *normalizer.AddressNormalizer
	Engine     *scoring.Engine
	Retriever  *search.Retriever
	Aliases    AliasStore
	Reviews    ReviewStore
	Audit      AuditSink
	Cache      SearchCache // optional
	Index      IndexSync   // optional
	SourceName string      // default source table label
}

// ResolveRequest đầu vào của Resolve
type ResolveRequest struct {
	SourceName    string
	SourceAddress string
	LotAddress    string
	RegionCode    string
	SourceTable   string
	RunID         string
	RunType       string
}

// AliasRequest đầu vào của AddAlias
type AliasRequest struct {
	StandardCode string
	AliasName    string
	Source       string
	Address      string
	LotAddress   string
	RegionCode   string
}

// Matcher composes normalization, retrieval and scoring.
type Matcher struct {
	rules       RuleProvider
	text        *normalizer.TextNormalizer
	address     *normalizer.AddressNormalizer
	engine      *scoring.Engine
	retriever   *search.Retriever
	aliases     AliasStore
	reviews     ReviewStore
	audit       AuditSink
	cache       SearchCache
	index       IndexSync
	sourceTable string
	logger      *zap.Logger

	newRunID func() string
	now      func() time.Time
}

// NewMatcher tạo mới Matcher
func NewMatcher(deps Deps, logger *zap.Logger) *Matcher {
	sourceTable := deps.SourceName
	if sourceTable == "" {
		sourceTable = "api"
	}
	return &Matcher{
		rules:       deps.Rules,
		text:        deps.Text,
		address:     deps.Address,
		engine:      deps.Engine,
		retriever:   deps.Retriever,
		aliases:     deps.Aliases,
		reviews:     deps.Reviews,
		audit:       deps.Audit,
		cache:       deps.Cache,
		index:       deps.Index,
		sourceTable: sourceTable,
		logger:      logger,
		newRunID:    func() string { return uuid.New().String() },
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Resolve matches one raw institution name against the registry and writes
// one validation log entry.
func (m *Matcher) Resolve(ctx context.Context, req ResolveRequest) (*models.ResolutionResult, error) {
	started := time.Now()

	// 1. Validate
	sourceName := strings.TrimSpace(req.SourceName)
	if sourceName == "" {
		return nil, fmt.Errorf("%w: source_name is required", ErrInvalidInput)
	}
	runType := req.RunType
	if runType == "" {
		runType = models.RunTypeInteractive
	}
	if !models.IsValidRunType(runType) {
		return nil, fmt.Errorf("%w: unknown run_type %q", ErrInvalidInput, req.RunType)
	}
	runID := req.RunID
	if runID == "" {
		runID = m.newRunID()
	}
	sourceTable := req.SourceTable
	if sourceTable == "" {
		sourceTable = m.sourceTable
	}

	// 2. Snapshot rule
	snap, err := m.rules.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	// 3. Chuẩn hóa tên và địa chỉ
	normalized, trace := m.text.Normalize(snap, sourceName)
	addr := m.address.Normalize(snap, req.SourceAddress, req.LotAddress, req.RegionCode)
	region := addr.RegionCode

	// 4. Lấy ứng viên và chấm điểm
	ranked, err := m.rank(ctx, snap, normalized, region, addr.Hash(), 0)
	if err != nil {
		return nil, err
	}

	result := &models.ResolutionResult{
		RunID:              runID,
		SourceName:         sourceName,
		NormalizedName:     normalized,
		NormalizationTrace: trace,
		AddressHash:        addr.AddressHash,
		RulesVersion:       snap.Version,
		Recommendations:    ranked,
	}
	if len(ranked) > 0 {
		best := ranked[0]
		result.BestMatch = &best
	}

	// 5. Ghi audit log (fire-and-forget)
	m.audit.Enqueue(m.logEntry(result, runType, sourceTable, region))

	tier := "none"
	if result.BestMatch != nil {
		tier = string(result.BestMatch.Recommendation)
	}
	metrics.ResolutionsTotal.WithLabelValues(tier).Inc()
	metrics.ResolveDuration.Observe(time.Since(started).Seconds())

	m.logger.Info("Resolved institution",
		zap.String("run_id", runID),
		zap.String("source_name", sourceName),
		zap.String("normalized_name", normalized),
		zap.Int("candidates", len(ranked)),
		zap.String("best_recommendation", tier))
	return result, nil
}

// Search is the resolve pipeline without address input and without logging.
func (m *Matcher) Search(ctx context.Context, name, region string, limit int) ([]models.RankedCandidate, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: search_name is required", ErrInvalidInput)
	}
	if limit < 1 || limit > MaxSearchLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d, got %d", ErrInvalidInput, MaxSearchLimit, limit)
	}

	snap, err := m.rules.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	normalized, _ := m.text.Normalize(snap, name)
	regionCode := snap.RegionCode(region)

	key := searchCacheKey(snap.Version, normalized, regionCode, limit)
	if m.cache != nil {
		cached, found, err := m.cache.Get(ctx, key)
		if err != nil {
			m.logger.Warn("Lỗi đọc search cache", zap.Error(err))
		} else if found {
			return cached, nil
		}
	}

	ranked, err := m.rank(ctx, snap, normalized, regionCode, "", limit)
	if err != nil {
		return nil, err
	}

	if m.cache != nil {
		if err := m.cache.Set(ctx, key, ranked); err != nil {
			m.logger.Warn("Lỗi lưu search cache", zap.Error(err))
		}
	}
	return ranked, nil
}

// AddAlias normalizes and persists a confirmed alias for an existing entry.
func (m *Matcher) AddAlias(ctx context.Context, req AliasRequest) (*models.Alias, error) {
	code := strings.TrimSpace(req.StandardCode)
	aliasName := strings.TrimSpace(req.AliasName)
	if code == "" || aliasName == "" {
		return nil, fmt.Errorf("%w: standard_code and alias_name are required", ErrInvalidInput)
	}

	exists, err := m.aliases.EntryExists(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRegistryUnavailable, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStandardCode, code)
	}

	snap, err := m.rules.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	normalized, trace := m.text.Normalize(snap, aliasName)

	alias := models.NewAlias(code, aliasName, normalized, req.Source)
	alias.NormalizationApplied = len(trace) > 0
	alias.SourceAddress = strings.TrimSpace(req.Address)
	if alias.SourceAddress != "" || strings.TrimSpace(req.LotAddress) != "" {
		addr := m.address.Normalize(snap, req.Address, req.LotAddress, req.RegionCode)
		alias.AddressHash = addr.AddressHash
		alias.AddressMatchingApplied = addr.AddressHash != nil
	}
	alias.CreatedAt = m.now()

	if err := m.aliases.AppendAlias(ctx, alias); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRegistryUnavailable, err)
	}

	// new aliases change retrieval results
	if m.index != nil {
		if err := m.index.SyncEntry(ctx, code); err != nil {
			m.logger.Warn("Lỗi đồng bộ alias vào search index",
				zap.String("standard_code", code),
				zap.Error(err))
		}
	}
	if m.cache != nil {
		if err := m.cache.Clear(ctx); err != nil {
			m.logger.Warn("Lỗi clear search cache", zap.Error(err))
		}
	}

	m.logger.Info("Added alias",
		zap.String("standard_code", code),
		zap.String("alias_name", aliasName),
		zap.String("normalized_name", normalized))
	return alias, nil
}

// ReviewLog records a manual review decision on a validation log entry.
func (m *Matcher) ReviewLog(ctx context.Context, id int64, status, notes string) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid log id %d", ErrInvalidInput, id)
	}
	if !models.IsValidReviewStatus(status) {
		return fmt.Errorf("%w: unknown review status %q", ErrInvalidInput, status)
	}

	found, err := m.reviews.UpdateReview(ctx, id, status, notes)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRegistryUnavailable, err)
	}
	if !found {
		return fmt.Errorf("%w: %d", ErrLogNotFound, id)
	}
	return nil
}

// rank retrieves candidates and scores every one of them in parallel.
// Registry names are re-normalized with the same snapshot before comparison.
func (m *Matcher) rank(ctx context.Context, snap *normalizer.Snapshot, normalized, region, addressHash string, limit int) ([]models.RankedCandidate, error) {
	if normalized == "" {
		return []models.RankedCandidate{}, nil
	}

	canonicalize := func(s string) string {
		out, _ := m.text.Normalize(snap, s)
		return out
	}
	candidates, err := m.retriever.Retrieve(ctx, search.CandidateQuery{
		Name:         normalized,
		Region:       region,
		Limit:        limit,
		Canonicalize: canonicalize,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRegistryUnavailable, err)
	}

	ranked := make([]models.RankedCandidate, len(candidates))
	var wg sync.WaitGroup
	for i := range candidates {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := candidates[i]
			r := m.engine.Score(scoring.Input{
				CandidateName:        normalized,
				RegistryName:         c.NormalizedName,
				CandidateAddressHash: addressHash,
				RegistryAddressHash:  c.Entry.Hash(),
				CandidateRegion:      region,
				RegistryRegion:       c.Entry.Region(),
			})
			ranked[i] = models.RankedCandidate{
				Entry:          c.Entry,
				Score:          r.Score,
				QuickScore:     c.QuickScore,
				Signals:        r.Signals,
				Recommendation: r.Recommendation,
			}
		}(i)
	}
	wg.Wait()

	// ties keep registration order
	order := make(map[string]int, len(candidates))
	for _, c := range candidates {
		order[c.Entry.StandardCode] = c.Order
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return order[ranked[i].Entry.StandardCode] < order[ranked[j].Entry.StandardCode]
	})
	return ranked, nil
}

func (m *Matcher) logEntry(result *models.ResolutionResult, runType, sourceTable, region string) models.ValidationLogEntry {
	entry := models.ValidationLogEntry{
		RunID:              result.RunID,
		RunType:            runType,
		SourceTable:        sourceTable,
		SourceName:         result.SourceName,
		RegionCode:         region,
		NormalizedName:     result.NormalizedName,
		ManualReviewStatus: models.ReviewStatusPending,
		CreatedAt:          m.now(),
	}

	best := result.BestMatch
	if best == nil {
		reason := models.FailureReasonNoCandidates
		entry.FailureReason = &reason
		return entry
	}

	code := best.Entry.StandardCode
	confidence := best.Score
	entry.MatchedCode = &code
	entry.MatchConfidence = &confidence
	entry.Recommendation = best.Recommendation
	entry.Signals = best.Signals
	entry.Success = best.Recommendation != models.RecommendationReject
	for _, s := range best.Signals {
		if s.Name == models.SignalAddressMatch && s.Value == 100 {
			entry.AddressMatched = true
		}
	}
	if !entry.Success {
		reason := fmt.Sprintf("best candidate rejected (score %d)", best.Score)
		entry.FailureReason = &reason
	}
	return entry
}

func searchCacheKey(version, normalized, region string, limit int) string {
	raw := strings.Join([]string{version, normalized, region, fmt.Sprint(limit)}, "\x1F")
	return fmt.Sprintf("sha256:%x", sha256.Sum256([]byte(raw)))
}
