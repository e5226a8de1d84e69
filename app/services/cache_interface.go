package services

import (
	"context"

	"github.com/institution-matcher/app/models"
)

// CacheStats thống kê cache
type CacheStats struct {
	HitRate    float64 `json:"hit_rate"`
	TotalHits  int64   `json:"total_hits"`
	TotalMiss  int64   `json:"total_miss"`
	TotalItems int64   `json:"total_items"`
}

// ISearchCache interface định nghĩa các method cần thiết cho search cache
type ISearchCache interface {
	// Get lấy kết quả search từ cache
	Get(ctx context.Context, key string) ([]models.RankedCandidate, bool, error)

	// Set lưu kết quả search vào cache
	Set(ctx context.Context, key string, result []models.RankedCandidate) error

	// Clear xóa tất cả cache
	Clear(ctx context.Context) error

	// GetStats lấy thống kê cache
	GetStats(ctx context.Context) (*CacheStats, error)

	// Close đóng kết nối (nếu cần)
	Close() error
}

func hitRate(hits, misses int64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
