package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/institution-matcher/app/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisCacheService search cache shared between API replicas
type RedisCacheService struct {
	client *redis.Client
	logger *zap.Logger
	prefix string
	ttl    time.Duration

	// Stats
	hits   atomic.Int64
	misses atomic.Int64
}

// NewRedisCacheService tạo mới Redis cache service
func NewRedisCacheService(redisURL string, ttl time.Duration, logger *zap.Logger) (*RedisCacheService, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("lỗi parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("không thể kết nối Redis: %w", err)
	}

	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisCacheService{
		client: client,
		logger: logger,
		prefix: "inst_match:search:",
		ttl:    ttl,
	}, nil
}

// Get lấy kết quả search từ Redis
func (rcs *RedisCacheService) Get(ctx context.Context, key string) ([]models.RankedCandidate, bool, error) {
	cacheKey := rcs.prefix + key

	val, err := rcs.client.Get(ctx, cacheKey).Bytes()
	if errors.Is(err, redis.Nil) {
		rcs.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", cacheKey, err)
	}

	var result []models.RankedCandidate
	if err := json.Unmarshal(val, &result); err != nil {
		// corrupt entry, treat as miss
		rcs.logger.Warn("Lỗi unmarshal cache data", zap.String("key", cacheKey), zap.Error(err))
		rcs.misses.Add(1)
		return nil, false, nil
	}

	rcs.hits.Add(1)
	return result, true, nil
}

// Set lưu kết quả search vào Redis
func (rcs *RedisCacheService) Set(ctx context.Context, key string, result []models.RankedCandidate) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("lỗi marshal cache data: %w", err)
	}
	if err := rcs.client.Set(ctx, rcs.prefix+key, data, rcs.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Clear xóa toàn bộ key có prefix của service
func (rcs *RedisCacheService) Clear(ctx context.Context) error {
	var deleted int
	iter := rcs.client.Scan(ctx, 0, rcs.prefix+"*", 500).Iterator()
	batch := make([]string, 0, 500)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := rcs.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("lỗi xóa keys: %w", err)
			}
			deleted += len(batch)
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("lỗi scan keys: %w", err)
	}
	if len(batch) > 0 {
		if err := rcs.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("lỗi xóa keys: %w", err)
		}
		deleted += len(batch)
	}

	rcs.logger.Info("Đã clear Redis search cache", zap.Int("keys_deleted", deleted))
	return nil
}

// GetStats lấy thống kê cache
func (rcs *RedisCacheService) GetStats(ctx context.Context) (*CacheStats, error) {
	hits, misses := rcs.hits.Load(), rcs.misses.Load()

	var items int64
	iter := rcs.client.Scan(ctx, 0, rcs.prefix+"*", 1000).Iterator()
	for iter.Next(ctx) {
		items++
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("lỗi đếm keys: %w", err)
	}

	return &CacheStats{
		HitRate:    hitRate(hits, misses),
		TotalHits:  hits,
		TotalMiss:  misses,
		TotalItems: items,
	}, nil
}

// Ping kiểm tra kết nối Redis
func (rcs *RedisCacheService) Ping(ctx context.Context) error {
	return rcs.client.Ping(ctx).Err()
}

// Close đóng kết nối Redis
func (rcs *RedisCacheService) Close() error {
	return rcs.client.Close()
}
