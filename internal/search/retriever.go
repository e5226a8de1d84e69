package search

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/institution-matcher/app/models"
	"github.com/institution-matcher/internal/metrics"
	"go.uber.org/zap"
)

// DefaultCandidateLimit số ứng viên tối đa mặc định
const DefaultCandidateLimit = 10

// ErrSourceUnavailable wraps failures of the backing registry.
var ErrSourceUnavailable = errors.New("candidate source unavailable")

// CandidateQuery tham số truy vấn ứng viên
type CandidateQuery struct {
	Name   string // normalized
	Region string // canonical region code, empty for all regions
	Limit  int
	// Canonicalize re-normalizes stored names before comparison; nil keeps them as stored.
	Canonicalize func(string) string
}

// CandidateSource returns active registry entries worth scoring, in
// registration order. Sources may over-return; Retriever narrows.
type CandidateSource interface {
	Candidates(ctx context.Context, query CandidateQuery) ([]models.RegistryEntry, error)
}

// ScoredEntry registry entry passing the pre-filter
type ScoredEntry struct {
	Entry          models.RegistryEntry
	NormalizedName string
	QuickScore     int
	Order          int // position in registration order
}

// Retriever narrows the registry to a short list with QuickSimilarity.
type Retriever struct {
	source       CandidateSource
	defaultLimit int
	logger       *zap.Logger
}

// NewRetriever tạo mới Retriever
func NewRetriever(source CandidateSource, defaultLimit int, logger *zap.Logger) *Retriever {
	if defaultLimit <= 0 {
		defaultLimit = DefaultCandidateLimit
	}
	return &Retriever{
		source:       source,
		defaultLimit: defaultLimit,
		logger:       logger,
	}
}

// Retrieve returns at most limit entries with a non-zero quick score, best first.
// Ties keep registration order.
func (r *Retriever) Retrieve(ctx context.Context, query CandidateQuery) ([]ScoredEntry, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = r.defaultLimit
	}

	// 1. Lấy ứng viên từ source
	entries, err := r.source.Candidates(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	entries = append([]models.RegistryEntry(nil), entries...)
	sortByRegistration(entries)

	// 2. Lọc region + chấm điểm nhanh
	scored := make([]ScoredEntry, 0, len(entries))
	for i, e := range entries {
		if !e.Active {
			continue
		}
		// region filter is strict: entries without a region code are skipped
		if query.Region != "" && e.Region() != query.Region {
			continue
		}

		name, best := BestQuickScore(query, e)
		if best == 0 {
			continue
		}
		scored = append(scored, ScoredEntry{Entry: e, NormalizedName: name, QuickScore: best, Order: i})
	}

	// 3. Sắp xếp giảm dần, giữ thứ tự đăng ký khi bằng điểm
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].QuickScore > scored[j].QuickScore
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}

	metrics.CandidatesRetrieved.Observe(float64(len(scored)))
	r.logger.Debug("Retrieved candidates",
		zap.String("name", query.Name),
		zap.String("region", query.Region),
		zap.Int("scanned", len(entries)),
		zap.Int("kept", len(scored)))
	return scored, nil
}

// BestQuickScore scores the query against the entry's canonical name and
// aliases and returns the canonicalized name with the best score.
func BestQuickScore(query CandidateQuery, e models.RegistryEntry) (string, int) {
	name := e.CanonicalName
	if query.Canonicalize != nil {
		name = query.Canonicalize(name)
	}
	best := QuickSimilarity(query.Name, name)
	for _, alias := range e.Aliases {
		if best == 100 {
			break
		}
		if query.Canonicalize != nil {
			alias = query.Canonicalize(alias)
		}
		if s := QuickSimilarity(query.Name, alias); s > best {
			best = s
		}
	}
	return name, best
}

// sortByRegistration orders entries by RegisteredAt, then StandardCode.
func sortByRegistration(entries []models.RegistryEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].RegisteredAt.Equal(entries[j].RegisteredAt) {
			return entries[i].RegisteredAt.Before(entries[j].RegisteredAt)
		}
		return entries[i].StandardCode < entries[j].StandardCode
	})
}

// TopByQuickScore keeps the n entries with the best quick score, ties in
// registration order. Sources use it to cap a scan without cutting by age.
func TopByQuickScore(query CandidateQuery, entries []models.RegistryEntry, n int) []models.RegistryEntry {
	if n <= 0 || len(entries) <= n {
		return entries
	}
	entries = append([]models.RegistryEntry(nil), entries...)
	sortByRegistration(entries)

	type scoredIdx struct {
		idx   int
		score int
	}
	scored := make([]scoredIdx, len(entries))
	for i, e := range entries {
		_, s := BestQuickScore(query, e)
		scored[i] = scoredIdx{i, s}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	out := make([]models.RegistryEntry, 0, n)
	for _, s := range scored[:n] {
		out = append(out, entries[s.idx])
	}
	return out
}
