package controllers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/institution-matcher/app/models"
	"github.com/institution-matcher/app/responses"
	"github.com/institution-matcher/internal/matcher"
	"go.uber.org/zap"
)

// SnapshotReader đọc metrics snapshot đã lưu
type SnapshotReader interface {
	GetSnapshot(ctx context.Context, date string) (*models.MetricsSnapshot, error)
}

// MetricsRecorder tính lại snapshot của một ngày
type MetricsRecorder interface {
	RecordMetrics(ctx context.Context, date time.Time) (*models.MetricsSnapshot, error)
}

// MetricsController controller xử lý metrics snapshot
type MetricsController struct {
	reader   SnapshotReader
	recorder MetricsRecorder
	logger   *zap.Logger
}

// NewMetricsController tạo mới MetricsController
func NewMetricsController(reader SnapshotReader, recorder MetricsRecorder, logger *zap.Logger) *MetricsController {
	return &MetricsController{reader: reader, recorder: recorder, logger: logger}
}

// GetSnapshot lấy snapshot theo ngày (YYYY-MM-DD)
func (mc *MetricsController) GetSnapshot(c *gin.Context) {
	date, ok := mc.parseDate(c)
	if !ok {
		return
	}

	snapshot, err := mc.reader.GetSnapshot(c.Request.Context(), date.Format(models.MetricDateLayout))
	if err != nil {
		respondError(c, mc.logger, "get_snapshot", fmt.Errorf("%w: %v", matcher.ErrRegistryUnavailable, err))
		return
	}
	if snapshot == nil {
		c.JSON(http.StatusNotFound, newError(c, "SNAPSHOT_NOT_FOUND", "Chưa có snapshot cho ngày "+c.Param("date")))
		return
	}
	c.JSON(http.StatusOK, responses.MetricsResponse{Snapshot: snapshot})
}

// Recompute tính lại và ghi đè snapshot của ngày
func (mc *MetricsController) Recompute(c *gin.Context) {
	date, ok := mc.parseDate(c)
	if !ok {
		return
	}

	snapshot, err := mc.recorder.RecordMetrics(c.Request.Context(), date)
	if err != nil {
		respondError(c, mc.logger, "record_metrics", fmt.Errorf("%w: %v", matcher.ErrRegistryUnavailable, err))
		return
	}
	c.JSON(http.StatusOK, responses.MetricsResponse{Snapshot: snapshot})
}

func (mc *MetricsController) parseDate(c *gin.Context) (time.Time, bool) {
	date, err := time.Parse(models.MetricDateLayout, c.Param("date"))
	if err != nil {
		badRequest(c, fmt.Errorf("date must be YYYY-MM-DD"))
		return time.Time{}, false
	}
	return date, true
}
