package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/institution-matcher/app/models"
)

// CacheService in-process LRU search cache with a per-entry TTL
type CacheService struct {
	cache *expirable.LRU[string, []models.RankedCandidate]

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCacheService tạo mới CacheService
func NewCacheService(size int, ttl time.Duration) (*CacheService, error) {
	if size <= 0 {
		return nil, fmt.Errorf("cache size must be positive, got %d", size)
	}
	return &CacheService{
		cache: expirable.NewLRU[string, []models.RankedCandidate](size, nil, ttl),
	}, nil
}

// Get lấy kết quả từ cache
func (cs *CacheService) Get(ctx context.Context, key string) ([]models.RankedCandidate, bool, error) {
	if result, ok := cs.cache.Get(key); ok {
		cs.hits.Add(1)
		return result, true, nil
	}
	cs.misses.Add(1)
	return nil, false, nil
}

// Set lưu kết quả vào cache
func (cs *CacheService) Set(ctx context.Context, key string, result []models.RankedCandidate) error {
	cs.cache.Add(key, result)
	return nil
}

// Clear xóa toàn bộ cache
func (cs *CacheService) Clear(ctx context.Context) error {
	cs.cache.Purge()
	cs.hits.Store(0)
	cs.misses.Store(0)
	return nil
}

// GetStats lấy thống kê cache
func (cs *CacheService) GetStats(ctx context.Context) (*CacheStats, error) {
	hits, misses := cs.hits.Load(), cs.misses.Load()
	return &CacheStats{
		HitRate:    hitRate(hits, misses),
		TotalHits:  hits,
		TotalMiss:  misses,
		TotalItems: int64(cs.cache.Len()),
	}, nil
}

// Close không cần cho in-memory cache
func (cs *CacheService) Close() error {
	return nil
}
