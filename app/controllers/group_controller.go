package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/institution-matcher/app/models"
	"github.com/institution-matcher/app/requests"
	"github.com/institution-matcher/app/responses"
	"github.com/institution-matcher/internal/grouping"
	"go.uber.org/zap"
)

// Grouper chạy grouping trên một scope
type Grouper interface {
	Group(ctx context.Context, scope grouping.Scope, threshold float64) (*models.GroupingResult, error)
}

// GroupController controller xử lý grouping
type GroupController struct {
	grouper          Grouper
	defaultThreshold float64
	timeout          time.Duration
	logger           *zap.Logger
}

// NewGroupController tạo mới GroupController
func NewGroupController(grouper Grouper, defaultThreshold float64, timeout time.Duration, logger *zap.Logger) *GroupController {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GroupController{
		grouper:          grouper,
		defaultThreshold: defaultThreshold,
		timeout:          timeout,
		logger:           logger,
	}
}

// Group gom nhóm cơ sở trùng lặp trong một region
func (gc *GroupController) Group(c *gin.Context) {
	var req requests.GroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	threshold := req.Threshold
	if threshold == 0 {
		threshold = gc.defaultThreshold
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), gc.timeout)
	defer cancel()

	startTime := time.Now()
	result, err := gc.grouper.Group(ctx, grouping.Scope{Region: req.Region, SubRegion: req.SubRegion}, threshold)
	if err != nil {
		respondError(c, gc.logger, "group", err)
		return
	}

	c.JSON(http.StatusOK, responses.GroupResponse{
		GroupingResult:   result,
		ProcessingTimeMs: time.Since(startTime).Milliseconds(),
	})
}
