package services

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/institution-matcher/app/models"
	"github.com/institution-matcher/internal/normalizer"
	"github.com/institution-matcher/internal/search"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// RuleCache is the part of the rule store the admin endpoints touch.
type RuleCache interface {
	Invalidate()
	Current() *normalizer.Snapshot
}

// AdminService service quản lý admin functions
type AdminService struct {
	db        *mongo.Database
	rules     *RuleRepository
	registry  *RegistryRepository
	index     *search.RegistryIndex // nil khi không cấu hình Meilisearch
	ruleCache RuleCache
	cache     ISearchCache
	startedAt time.Time
	logger    *zap.Logger
}

// SeedResult kết quả seed
type SeedResult struct {
	RulesSeeded      int   `json:"rules_seeded"`
	RegionsSeeded    int   `json:"regions_seeded"`
	EntriesIndexed   int   `json:"entries_indexed"`
	ProcessingTimeMs int64 `json:"processing_time_ms"`
}

// SystemStats thống kê hệ thống
type SystemStats struct {
	RulesVersion  string                 `json:"rules_version,omitempty"`
	RulesLoadedAt *time.Time             `json:"rules_loaded_at,omitempty"`
	Uptime        string                 `json:"uptime"`
	MemoryUsage   map[string]interface{} `json:"memory_usage"`
	SearchCache   *CacheStats            `json:"search_cache,omitempty"`
	DatabaseStats DatabaseStats          `json:"database_stats"`
}

// DatabaseStats thống kê database
type DatabaseStats struct {
	RegistryEntries    int64 `json:"registry_entries"`
	Aliases            int64 `json:"aliases"`
	ValidationLogs     int64 `json:"validation_logs"`
	PendingReviews     int64 `json:"pending_reviews"`
	NormalizationRules int64 `json:"normalization_rules"`
}

// NewAdminService tạo mới AdminService
func NewAdminService(db *mongo.Database, rules *RuleRepository, registry *RegistryRepository, index *search.RegistryIndex, ruleCache RuleCache, cache ISearchCache, logger *zap.Logger) *AdminService {
	return &AdminService{
		db:        db,
		rules:     rules,
		registry:  registry,
		index:     index,
		ruleCache: ruleCache,
		cache:     cache,
		startedAt: time.Now(),
		logger:    logger,
	}
}

// InvalidateRules forces a rule reload on next use and drops cached search
// results computed with the old rules.
func (as *AdminService) InvalidateRules(ctx context.Context) error {
	as.ruleCache.Invalidate()
	if as.cache != nil {
		if err := as.cache.Clear(ctx); err != nil {
			return fmt.Errorf("clear search cache: %w", err)
		}
	}
	return nil
}

// SeedDefaults seed rule mặc định vào MongoDB, rồi index registry vào Meilisearch nếu cần
func (as *AdminService) SeedDefaults(ctx context.Context, rebuildIndex bool) (*SeedResult, error) {
	startTime := time.Now()

	// 1. Rule + region mặc định
	rules, regions, err := normalizer.LoadDefaultRules()
	if err != nil {
		return nil, fmt.Errorf("lỗi load default rules: %w", err)
	}
	if err := as.rules.SeedDefaults(ctx, rules, regions); err != nil {
		return nil, err
	}
	as.ruleCache.Invalidate()

	result := &SeedResult{RulesSeeded: len(rules), RegionsSeeded: len(regions)}

	// 2. Rebuild Meilisearch index nếu cần
	if rebuildIndex {
		n, err := as.RebuildIndex(ctx)
		if err != nil {
			return nil, err
		}
		result.EntriesIndexed = n
	}

	result.ProcessingTimeMs = time.Since(startTime).Milliseconds()
	as.logger.Info("Seed completed",
		zap.Int("rules", result.RulesSeeded),
		zap.Int("regions", result.RegionsSeeded),
		zap.Int("entries_indexed", result.EntriesIndexed),
		zap.Int64("processing_time_ms", result.ProcessingTimeMs))
	return result, nil
}

// RebuildIndex pushes the whole registry to Meilisearch.
func (as *AdminService) RebuildIndex(ctx context.Context) (int, error) {
	if as.index == nil {
		return 0, fmt.Errorf("meilisearch is not configured")
	}
	entries, err := as.registry.ListEntries(ctx)
	if err != nil {
		return 0, err
	}
	if err := as.index.BuildIndexes(); err != nil {
		return 0, fmt.Errorf("lỗi build Meilisearch indexes: %w", err)
	}
	// documents cũ có thể mang id theo định dạng trước
	if err := as.index.ClearDocuments(ctx); err != nil {
		return 0, err
	}
	if err := as.index.SeedEntries(entries); err != nil {
		return 0, fmt.Errorf("lỗi seed registry vào Meilisearch: %w", err)
	}
	return len(entries), nil
}

// GetSystemStats lấy thống kê hệ thống
func (as *AdminService) GetSystemStats(ctx context.Context) (*SystemStats, error) {
	dbStats, err := as.getDatabaseStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("lỗi lấy database stats: %w", err)
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	stats := &SystemStats{
		Uptime: time.Since(as.startedAt).Round(time.Second).String(),
		MemoryUsage: map[string]interface{}{
			"alloc_mb":       bToMb(m.Alloc),
			"total_alloc_mb": bToMb(m.TotalAlloc),
			"sys_mb":         bToMb(m.Sys),
			"num_gc":         m.NumGC,
			"goroutines":     runtime.NumGoroutine(),
		},
		DatabaseStats: *dbStats,
	}
	if snap := as.ruleCache.Current(); snap != nil {
		loadedAt := snap.LoadedAt
		stats.RulesVersion = snap.Version
		stats.RulesLoadedAt = &loadedAt
	}
	if as.cache != nil {
		if cs, err := as.cache.GetStats(ctx); err == nil {
			stats.SearchCache = cs
		}
	}
	return stats, nil
}

func (as *AdminService) getDatabaseStats(ctx context.Context) (*DatabaseStats, error) {
	stats := &DatabaseStats{}

	counts := []struct {
		collection string
		filter     bson.M
		dst        *int64
	}{
		{CollectionRegistry, bson.M{}, &stats.RegistryEntries},
		{CollectionAliases, bson.M{}, &stats.Aliases},
		{CollectionValidationLogs, bson.M{}, &stats.ValidationLogs},
		{CollectionValidationLogs, bson.M{
			"manual_review_status": models.ReviewStatusPending,
			"recommendation":       models.RecommendationManualReview,
		}, &stats.PendingReviews},
		{CollectionRules, bson.M{"active": true}, &stats.NormalizationRules},
	}
	for _, c := range counts {
		n, err := as.db.Collection(c.collection).CountDocuments(ctx, c.filter)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", c.collection, err)
		}
		*c.dst = n
	}
	return stats, nil
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}
