package normalizer

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/institution-matcher/app/models"
	"github.com/institution-matcher/internal/metrics"
	"go.uber.org/zap"
)

// ErrRulesUnavailable is returned when no rule snapshot has ever been loaded
// and the rule source cannot be reached. It is retryable.
var ErrRulesUnavailable = errors.New("normalization rules unavailable")

// DefaultRuleTTL thời gian cache rule mặc định
const DefaultRuleTTL = time.Hour

// RuleSource cung cấp tập rule đang active
type RuleSource interface {
	ActiveRules(ctx context.Context) ([]models.NormalizationRule, error)
}

// RegionSource cung cấp bảng tham chiếu đơn vị hành chính
type RegionSource interface {
	RegionMappings(ctx context.Context) ([]models.RegionMapping, error)
}

// Snapshot is an immutable view of the rule set and region reference.
// Callers keep the snapshot they captured for the whole operation.
type Snapshot struct {
	Rules       []models.NormalizationRule
	Regions     map[string]string // abbreviation -> canonical name
	RegionCodes map[string]string // abbreviation, canonical name or code -> code
	Version     string
	LoadedAt    time.Time

	// region reference merged with every region_expansion override
	expansions map[string]string
}

// NewStaticSnapshot builds a fixed snapshot, used by tests and offline tools.
func NewStaticSnapshot(rules []models.NormalizationRule, regions []models.RegionMapping) *Snapshot {
	return buildSnapshot(rules, regions, time.Now().UTC(), zap.NewNop())
}

// RegionCode canonicalizes a region given as abbreviation, long name or code.
// Unknown values are returned trimmed.
func (s *Snapshot) RegionCode(region string) string {
	region = strings.TrimSpace(region)
	if region == "" || s == nil {
		return region
	}
	if code, ok := s.RegionCodes[region]; ok {
		return code
	}
	return region
}

// expand looks up a whole token in the merged region table.
func (s *Snapshot) expand(token string) (string, bool) {
	if s == nil {
		return "", false
	}
	v, ok := s.expansions[token]
	return v, ok
}

func buildSnapshot(rules []models.NormalizationRule, regions []models.RegionMapping, loadedAt time.Time, logger *zap.Logger) *Snapshot {
	snap := &Snapshot{
		Regions:     make(map[string]string, len(regions)),
		RegionCodes: make(map[string]string, len(regions)*3),
		expansions:  make(map[string]string, len(regions)),
		LoadedAt:    loadedAt,
	}

	// 1. Region reference
	for _, rm := range regions {
		abbr := strings.TrimSpace(rm.Abbreviation)
		canonical := strings.TrimSpace(rm.CanonicalName)
		code := strings.TrimSpace(rm.RegionCode)
		if code != "" {
			snap.RegionCodes[code] = code
			if canonical != "" {
				snap.RegionCodes[canonical] = code
			}
			if abbr != "" {
				snap.RegionCodes[abbr] = code
			}
		}
		if abbr == "" || canonical == "" || abbr == canonical {
			continue
		}
		snap.Regions[abbr] = canonical
	}

	// 2. Rules: active + valid, priority desc, ties by id
	for _, r := range rules {
		if !r.Active {
			continue
		}
		if err := r.Validate(); err != nil {
			logger.Warn("Bỏ qua rule không hợp lệ", zap.String("rule_id", r.ID), zap.Error(err))
			continue
		}
		snap.Rules = append(snap.Rules, r)
	}
	sort.SliceStable(snap.Rules, func(i, j int) bool {
		if snap.Rules[i].Priority != snap.Rules[j].Priority {
			return snap.Rules[i].Priority > snap.Rules[j].Priority
		}
		return snap.Rules[i].ID < snap.Rules[j].ID
	})

	// 3. Merged expansion table. A target that is itself a key would make
	// expansion non-terminating, so such entries are dropped.
	candidates := make(map[string]string, len(snap.Regions))
	for k, v := range snap.Regions {
		candidates[k] = v
	}
	for _, r := range snap.Rules {
		if r.Type != models.RuleTypeRegionExpansion || r.RegionExpansion == nil {
			continue
		}
		for k, v := range r.RegionExpansion.Overrides {
			k, v = strings.TrimSpace(k), strings.TrimSpace(v)
			if k != "" && v != "" && k != v {
				candidates[k] = v
			}
		}
	}
	for k, v := range candidates {
		if _, chained := candidates[v]; chained {
			logger.Warn("Bỏ qua region mapping tạo chuỗi", zap.String("abbreviation", k), zap.String("canonical", v))
			continue
		}
		snap.expansions[k] = v
	}

	snap.Version = snapshotVersion(snap.Rules, snap.Regions)
	return snap
}

func snapshotVersion(rules []models.NormalizationRule, regions map[string]string) string {
	keys := make([]string, 0, len(regions))
	for k := range regions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	rb, _ := json.Marshal(rules)
	h.Write(rb)
	for _, k := range keys {
		h.Write([]byte(k + "\x1F" + regions[k] + "\n"))
	}
	return fmt.Sprintf("sha256:%x", h.Sum(nil))
}

// RuleStore caches the rule snapshot in process memory with a TTL.
// Reads are read-through; concurrent reloads may race, which is harmless
// because a reload is idempotent.
type RuleStore struct {
	rules   RuleSource
	regions RegionSource
	ttl     time.Duration
	logger  *zap.Logger
	now     func() time.Time

	mu         sync.RWMutex
	current    *Snapshot
	generation uint64 // bumped by Invalidate
	stale      bool
}

// NewRuleStore tạo mới RuleStore
func NewRuleStore(rules RuleSource, regions RegionSource, ttl time.Duration, logger *zap.Logger) *RuleStore {
	if ttl <= 0 {
		ttl = DefaultRuleTTL
	}
	return &RuleStore{
		rules:   rules,
		regions: regions,
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
	}
}

// Snapshot returns the current snapshot, reloading it when empty, expired
// or invalidated. A failed reload serves the previous snapshot if there is one.
func (rs *RuleStore) Snapshot(ctx context.Context) (*Snapshot, error) {
	rs.mu.RLock()
	current, gen, stale := rs.current, rs.generation, rs.stale
	rs.mu.RUnlock()

	if current != nil && !stale && rs.now().Sub(current.LoadedAt) < rs.ttl {
		return current, nil
	}

	snap, err := rs.load(ctx)
	if err != nil {
		if current != nil {
			metrics.RuleReloadsTotal.WithLabelValues("stale").Inc()
			rs.logger.Warn("Reload rule thất bại, dùng snapshot cũ",
				zap.Error(err),
				zap.String("version", current.Version),
				zap.Time("loaded_at", current.LoadedAt))
			return current, nil
		}
		metrics.RuleReloadsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("%w: %v", ErrRulesUnavailable, err)
	}

	rs.mu.Lock()
	rs.current = snap
	// an Invalidate that raced with this load still forces the next reload
	if rs.generation == gen {
		rs.stale = false
	}
	rs.mu.Unlock()

	metrics.RuleReloadsTotal.WithLabelValues("ok").Inc()
	rs.logger.Info("Đã load normalization rules",
		zap.Int("rules", len(snap.Rules)),
		zap.Int("regions", len(snap.Regions)),
		zap.String("version", snap.Version))
	return snap, nil
}

// Invalidate forces the next Snapshot call to reload. Safe for concurrent use;
// snapshots already handed out stay valid.
func (rs *RuleStore) Invalidate() {
	rs.mu.Lock()
	rs.generation++
	rs.stale = true
	rs.mu.Unlock()

	rs.logger.Info("Invalidated normalization rule cache")
}

// Current returns the last loaded snapshot without reloading, or nil.
func (rs *RuleStore) Current() *Snapshot {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.current
}

func (rs *RuleStore) load(ctx context.Context) (*Snapshot, error) {
	rules, err := rs.rules.ActiveRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	regions, err := rs.regions.RegionMappings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load region mappings: %w", err)
	}
	return buildSnapshot(rules, regions, rs.now(), rs.logger), nil
}
