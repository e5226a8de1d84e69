package controllers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/institution-matcher/app/models"
	"github.com/institution-matcher/app/requests"
	"github.com/institution-matcher/app/responses"
	"github.com/institution-matcher/internal/matcher"
	"go.uber.org/zap"
)

// ReviewQueue lists validation log entries awaiting a human decision
type ReviewQueue interface {
	ListPending(ctx context.Context, limit int) ([]models.ValidationLogEntry, error)
	GetLog(ctx context.Context, id int64) (*models.ValidationLogEntry, error)
}

// Reviewer ghi kết quả review
type Reviewer interface {
	ReviewLog(ctx context.Context, id int64, status, notes string) error
}

// ReviewController controller xử lý review queue
type ReviewController struct {
	queue    ReviewQueue
	reviewer Reviewer
	logger   *zap.Logger
}

// NewReviewController tạo mới ReviewController
func NewReviewController(queue ReviewQueue, reviewer Reviewer, logger *zap.Logger) *ReviewController {
	return &ReviewController{queue: queue, reviewer: reviewer, logger: logger}
}

// ListPending danh sách entry manual_review đang chờ
func (rc *ReviewController) ListPending(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			badRequest(c, fmt.Errorf("limit must be between 1 and 500"))
			return
		}
		limit = n
	}

	reviews, err := rc.queue.ListPending(c.Request.Context(), limit)
	if err != nil {
		respondError(c, rc.logger, "list_pending", fmt.Errorf("%w: %v", matcher.ErrRegistryUnavailable, err))
		return
	}

	c.JSON(http.StatusOK, responses.ReviewListResponse{
		Reviews: reviews,
		Total:   len(reviews),
		Limit:   limit,
	})
}

// GetLog lấy chi tiết một validation log entry
func (rc *ReviewController) GetLog(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, fmt.Errorf("invalid log id %q", c.Param("id")))
		return
	}

	entry, err := rc.queue.GetLog(c.Request.Context(), id)
	if err != nil {
		respondError(c, rc.logger, "get_log", fmt.Errorf("%w: %v", matcher.ErrRegistryUnavailable, err))
		return
	}
	if entry == nil {
		respondError(c, rc.logger, "get_log", fmt.Errorf("%w: %d", matcher.ErrLogNotFound, id))
		return
	}
	c.JSON(http.StatusOK, entry)
}

// Review cập nhật manual_review_status của một entry
func (rc *ReviewController) Review(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, fmt.Errorf("invalid log id %q", c.Param("id")))
		return
	}
	var req requests.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := rc.reviewer.ReviewLog(c.Request.Context(), id, req.Status, req.Notes); err != nil {
		respondError(c, rc.logger, "review", err)
		return
	}

	rc.logger.Info("Validation log reviewed", zap.Int64("log_id", id), zap.String("status", req.Status))
	c.JSON(http.StatusOK, responses.ReviewActionResponse{
		Success:   true,
		LogID:     id,
		Status:    req.Status,
		Message:   "Cập nhật review thành công",
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	})
}
