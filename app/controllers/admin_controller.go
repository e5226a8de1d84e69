package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/institution-matcher/app/requests"
	"github.com/institution-matcher/app/responses"
	"github.com/institution-matcher/app/services"
	"go.uber.org/zap"
)

// AdminOps các thao tác admin
type AdminOps interface {
	InvalidateRules(ctx context.Context) error
	SeedDefaults(ctx context.Context, rebuildIndex bool) (*services.SeedResult, error)
	RebuildIndex(ctx context.Context) (int, error)
	GetSystemStats(ctx context.Context) (*services.SystemStats, error)
}

// AdminController controller xử lý các request admin
type AdminController struct {
	admin  AdminOps
	logger *zap.Logger
}

// NewAdminController tạo mới AdminController
func NewAdminController(admin AdminOps, logger *zap.Logger) *AdminController {
	return &AdminController{admin: admin, logger: logger}
}

// InvalidateRules buộc reload rule ở lần dùng kế tiếp
func (ac *AdminController) InvalidateRules(c *gin.Context) {
	if err := ac.admin.InvalidateRules(c.Request.Context()); err != nil {
		ac.logger.Error("Lỗi invalidate rules", zap.Error(err))
		c.JSON(http.StatusInternalServerError, newError(c, "INVALIDATE_ERROR", "Lỗi invalidate rules: "+err.Error()))
		return
	}

	ac.logger.Info("Rules invalidated")
	c.JSON(http.StatusOK, responses.SuccessResponse{
		Success:   true,
		Message:   "Rule cache đã được invalidate",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Seed seed rule + region mặc định
func (ac *AdminController) Seed(c *gin.Context) {
	var req requests.SeedRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	result, err := ac.admin.SeedDefaults(c.Request.Context(), req.RebuildIndex)
	if err != nil {
		ac.logger.Error("Lỗi seed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, newError(c, "SEED_ERROR", "Lỗi seed: "+err.Error()))
		return
	}

	c.JSON(http.StatusOK, responses.SeedResponse{
		SeedResult: result,
		Message:    "Seed thành công",
	})
}

// RebuildIndex index lại toàn bộ registry vào Meilisearch
func (ac *AdminController) RebuildIndex(c *gin.Context) {
	startTime := time.Now()

	n, err := ac.admin.RebuildIndex(c.Request.Context())
	if err != nil {
		ac.logger.Error("Lỗi rebuild index", zap.Error(err))
		c.JSON(http.StatusInternalServerError, newError(c, "REBUILD_ERROR", "Lỗi rebuild index: "+err.Error()))
		return
	}

	processingTime := time.Since(startTime)
	ac.logger.Info("Rebuild index thành công", zap.Int("entries", n), zap.Duration("duration", processingTime))
	c.JSON(http.StatusOK, responses.SuccessResponse{
		Success: true,
		Message: "Rebuild index thành công",
		Data: map[string]interface{}{
			"entries_indexed":    n,
			"processing_time_ms": processingTime.Milliseconds(),
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// GetStats lấy thống kê hệ thống
func (ac *AdminController) GetStats(c *gin.Context) {
	stats, err := ac.admin.GetSystemStats(c.Request.Context())
	if err != nil {
		ac.logger.Error("Lỗi lấy stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, newError(c, "STATS_ERROR", "Lỗi lấy thống kê: "+err.Error()))
		return
	}
	c.JSON(http.StatusOK, stats)
}
