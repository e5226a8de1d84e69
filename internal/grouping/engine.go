package grouping

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/institution-matcher/app/models"
	"github.com/institution-matcher/internal/metrics"
	"github.com/institution-matcher/internal/normalizer"
	"go.uber.org/zap"
)

// DefaultThreshold ngưỡng similarity mặc định
const DefaultThreshold = 0.85

// ErrInvalidThreshold threshold outside [0, 1]
var ErrInvalidThreshold = errors.New("similarity threshold must be within [0, 1]")

// DefaultProtectedPatterns nhận diện đơn vị phải match riêng từng chiếc
var DefaultProtectedPatterns = []string{
	`\d+\s*호차`,
	`구급차`,
	`이동\s*검진`,
}

// Scope phạm vi grouping
type Scope struct {
	Region    string `json:"region,omitempty"`
	SubRegion string `json:"sub_region,omitempty"`
}

// RecordSource lists the records of one scope in a stable order.
type RecordSource interface {
	ListRecords(ctx context.Context, scope Scope) ([]models.InstitutionRecord, error)
}

// RuleProvider trả về snapshot rule hiện tại
type RuleProvider interface {
	Snapshot(ctx context.Context) (*normalizer.Snapshot, error)
}

// Config cấu hình grouping
type Config struct {
	HeadquartersKeywords []string `yaml:"headquarters_keywords"`
	ProtectedPatterns    []string `yaml:"protected_patterns"`
}

// Engine clusters near-duplicate institution records.
type Engine struct {
	source    RecordSource
	rules     RuleProvider
	text      *normalizer.TextNormalizer
	chain     []selector
	protected []*regexp.Regexp
	logger    *zap.Logger
}

// NewEngine tạo mới grouping Engine
func NewEngine(source RecordSource, rules RuleProvider, text *normalizer.TextNormalizer, cfg Config, logger *zap.Logger) (*Engine, error) {
	keywords := cfg.HeadquartersKeywords
	if len(keywords) == 0 {
		keywords = DefaultHeadquartersKeywords
	}
	patterns := cfg.ProtectedPatterns
	if len(patterns) == 0 {
		patterns = DefaultProtectedPatterns
	}

	protected := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid protected pattern %q: %w", p, err)
		}
		protected = append(protected, re)
	}

	return &Engine{
		source:    source,
		rules:     rules,
		text:      text,
		chain:     masterChain(keywords),
		protected: protected,
		logger:    logger,
	}, nil
}

// Group runs one synchronous clustering pass over the scope.
func (e *Engine) Group(ctx context.Context, scope Scope, threshold float64) (*models.GroupingResult, error) {
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	if threshold < 0 || threshold > 1 || math.IsNaN(threshold) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidThreshold, threshold)
	}

	records, err := e.source.ListRecords(ctx, scope)
	if err != nil {
		metrics.GroupingRunsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("list records: %w", err)
	}
	snap, err := e.rules.Snapshot(ctx)
	if err != nil {
		metrics.GroupingRunsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	// 1. Chuẩn hóa tên
	names := make([]string, len(records))
	for i, r := range records {
		names[i], _ = e.text.Normalize(snap, r.Name)
	}

	// 2. So sánh từng cặp, hợp nhất bằng union-find
	uf := newUnionFind(len(records))
	edges := make([]edge, 0)
	for i := range records {
		if err := ctx.Err(); err != nil {
			metrics.GroupingRunsTotal.WithLabelValues("cancelled").Inc()
			return nil, err
		}
		for j := i + 1; j < len(records); j++ {
			sim := float64(normalizer.Similarity(names[i], names[j])) / 100
			if sim >= threshold {
				uf.union(i, j)
				edges = append(edges, edge{i, j, sim})
			}
		}
	}

	// 3. Gom thành nhóm theo thứ tự scope
	clusters := make(map[int][]int)
	var roots []int
	for i := range records {
		root := uf.find(i)
		if _, ok := clusters[root]; !ok {
			roots = append(roots, root)
		}
		clusters[root] = append(clusters[root], i)
	}
	edgeSum := make(map[int]float64)
	edgeCount := make(map[int]int)
	for _, ed := range edges {
		root := uf.find(ed.a)
		edgeSum[root] += ed.sim
		edgeCount[root]++
	}

	result := &models.GroupingResult{
		Groups:    []models.InstitutionGroup{},
		Ungrouped: []models.InstitutionRecord{},
	}
	for _, root := range roots {
		idxs := clusters[root]
		if len(idxs) == 1 {
			result.Ungrouped = append(result.Ungrouped, records[idxs[0]])
			continue
		}
		score := math.Round(edgeSum[root]/float64(edgeCount[root])*1000) / 1000
		group := e.buildGroup(records, idxs, score)
		result.Groups = append(result.Groups, group)
	}

	// 4. Thống kê
	stats := models.GroupingStats{
		TotalRecords:     len(records),
		GroupCount:       len(result.Groups),
		UngroupedRecords: len(result.Ungrouped),
		Threshold:        threshold,
	}
	for _, g := range result.Groups {
		stats.GroupedRecords += len(g.Members)
		if g.NeedsWarning {
			stats.WarningGroups++
		}
	}
	result.Stats = stats

	metrics.GroupingRunsTotal.WithLabelValues("ok").Inc()
	e.logger.Info("Grouping completed",
		zap.String("region", scope.Region),
		zap.String("sub_region", scope.SubRegion),
		zap.Float64("threshold", threshold),
		zap.Int("records", stats.TotalRecords),
		zap.Int("groups", stats.GroupCount),
		zap.Int("warning_groups", stats.WarningGroups))
	return result, nil
}

func (e *Engine) buildGroup(records []models.InstitutionRecord, idxs []int, score float64) models.InstitutionGroup {
	members := make([]models.InstitutionRecord, 0, len(idxs))
	codes := make([]string, 0, len(idxs))
	for _, i := range idxs {
		members = append(members, records[i])
		codes = append(codes, records[i].StandardCode)
	}

	masterIdx, reason := selectMaster(e.chain, members)
	group := models.InstitutionGroup{
		ClusterID:       clusterID(codes),
		Master:          members[masterIdx],
		MasterReason:    reason,
		Members:         members,
		SimilarityScore: score,
		Confidence:      confidenceTier(score),
	}
	for _, m := range members {
		group.TotalEquipment += m.EquipmentCount
		group.MatchedCount += m.MatchedCount
		group.UnmatchedCount += m.UnmatchedCount
		if e.isProtected(m) {
			group.NeedsWarning = true
			group.ProtectedMembers = append(group.ProtectedMembers, m.StandardCode)
		}
	}
	return group
}

func (e *Engine) isProtected(r models.InstitutionRecord) bool {
	for _, re := range e.protected {
		if re.MatchString(r.SubUnitCategory) || re.MatchString(r.SubUnit) {
			return true
		}
	}
	return false
}

func confidenceTier(score float64) string {
	switch {
	case score >= 0.95:
		return models.GroupConfidenceHigh
	case score >= 0.90:
		return models.GroupConfidenceMedium
	default:
		return models.GroupConfidenceLow
	}
}

// clusterID is stable for the same member set regardless of scope order.
func clusterID(codes []string) string {
	sorted := append([]string(nil), codes...)
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, "\x1F")))
	return fmt.Sprintf("grp-%x", sum[:8])
}

type edge struct {
	a, b int
	sim  float64
}

type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), rank: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	switch {
	case uf.rank[ra] < uf.rank[rb]:
		uf.parent[ra] = rb
	case uf.rank[ra] > uf.rank[rb]:
		uf.parent[rb] = ra
	default:
		uf.parent[rb] = ra
		uf.rank[ra]++
	}
}
