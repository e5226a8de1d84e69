package services

import (
	"context"
	"fmt"

	"github.com/institution-matcher/app/models"
	"github.com/institution-matcher/internal/metrics"
	"go.uber.org/zap"
)

// HybridCacheService search cache kết hợp LRU in-process (L1) + Redis (L2)
type HybridCacheService struct {
	local  *CacheService // L1 cache - nhanh
	shared ISearchCache  // L2 cache - dùng chung giữa các replica, có thể nil
	logger *zap.Logger
}

// NewHybridCacheService tạo mới hybrid cache service
func NewHybridCacheService(local *CacheService, shared ISearchCache, logger *zap.Logger) *HybridCacheService {
	return &HybridCacheService{
		local:  local,
		shared: shared,
		logger: logger,
	}
}

// Get lấy kết quả từ cache (L1 trước, L2 sau)
func (hcs *HybridCacheService) Get(ctx context.Context, key string) ([]models.RankedCandidate, bool, error) {
	// 1. Thử L1
	if result, found, _ := hcs.local.Get(ctx, key); found {
		metrics.SearchCacheTotal.WithLabelValues("l1", "hit").Inc()
		return result, true, nil
	}
	metrics.SearchCacheTotal.WithLabelValues("l1", "miss").Inc()

	if hcs.shared == nil {
		return nil, false, nil
	}

	// 2. Thử L2
	result, found, err := hcs.shared.Get(ctx, key)
	if err != nil {
		metrics.SearchCacheTotal.WithLabelValues("l2", "error").Inc()
		return nil, false, err
	}
	if !found {
		metrics.SearchCacheTotal.WithLabelValues("l2", "miss").Inc()
		return nil, false, nil
	}
	metrics.SearchCacheTotal.WithLabelValues("l2", "hit").Inc()

	// 3. Đồng bộ xuống L1
	_ = hcs.local.Set(ctx, key, result)
	hcs.logger.Debug("L2 cache hit (Redis)", zap.String("key", key))
	return result, true, nil
}

// Set lưu kết quả vào cả L1 và L2
func (hcs *HybridCacheService) Set(ctx context.Context, key string, result []models.RankedCandidate) error {
	_ = hcs.local.Set(ctx, key, result)
	if hcs.shared == nil {
		return nil
	}
	if err := hcs.shared.Set(ctx, key, result); err != nil {
		hcs.logger.Warn("Lỗi lưu vào Redis", zap.Error(err))
		return err
	}
	return nil
}

// Clear xóa toàn bộ cache (cả L1 và L2)
func (hcs *HybridCacheService) Clear(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		errCh <- hcs.local.Clear(ctx)
	}()

	go func() {
		if hcs.shared == nil {
			errCh <- nil
			return
		}
		errCh <- hcs.shared.Clear(ctx)
	}()

	var errs []error
	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("clear errors: %v", errs)
	}

	hcs.logger.Info("Cleared hybrid search cache")
	return nil
}

// GetStats lấy thống kê cache (kết hợp từ cả 2)
func (hcs *HybridCacheService) GetStats(ctx context.Context) (*CacheStats, error) {
	localStats, _ := hcs.local.GetStats(ctx)
	if hcs.shared == nil {
		return localStats, nil
	}

	sharedStats, err := hcs.shared.GetStats(ctx)
	if err != nil {
		hcs.logger.Warn("Không thể lấy Redis stats", zap.Error(err))
		return localStats, nil
	}

	// L2 is only consulted on L1 misses, so hits add up and misses are L2's
	combined := &CacheStats{
		TotalHits:  localStats.TotalHits + sharedStats.TotalHits,
		TotalMiss:  sharedStats.TotalMiss,
		TotalItems: sharedStats.TotalItems,
	}
	combined.HitRate = hitRate(combined.TotalHits, combined.TotalMiss)
	return combined, nil
}

// Close đóng kết nối cả 2 cache
func (hcs *HybridCacheService) Close() error {
	if err := hcs.local.Close(); err != nil {
		return err
	}
	if hcs.shared != nil {
		return hcs.shared.Close()
	}
	return nil
}
