package controllers

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/institution-matcher/app/models"
	"github.com/institution-matcher/app/requests"
	"github.com/institution-matcher/app/responses"
	"github.com/institution-matcher/app/services"
	"github.com/institution-matcher/internal/matcher"
	"go.uber.org/zap"
)

// DefaultSearchLimit limit khi request không truyền
const DefaultSearchLimit = 10

// InstitutionMatcher resolve + search
type InstitutionMatcher interface {
	Resolve(ctx context.Context, req matcher.ResolveRequest) (*models.ResolutionResult, error)
	Search(ctx context.Context, name, region string, limit int) ([]models.RankedCandidate, error)
}

// BatchRunner quản lý batch job
type BatchRunner interface {
	Submit(items []services.BatchItem, sourceTable string) (string, error)
	EstimateBatchProcessingTime(n int) int
	GetJobStatus(jobID string) (*services.JobStatus, error)
	GetJobResults(jobID string) ([]services.BatchResult, error)
	GetJobResultsStream(ctx context.Context, jobID string) (<-chan services.BatchResult, error)
}

// HealthCheck kiểm tra một dependency
type HealthCheck func(ctx context.Context) error

// InstitutionController controller xử lý resolve/search/batch
type InstitutionController struct {
	matcher   InstitutionMatcher
	batch     BatchRunner
	checks    map[string]HealthCheck
	timeout   time.Duration
	version   string
	startedAt time.Time
	logger    *zap.Logger
}

// NewInstitutionController tạo mới InstitutionController
func NewInstitutionController(m InstitutionMatcher, batch BatchRunner, checks map[string]HealthCheck, timeout time.Duration, version string, logger *zap.Logger) *InstitutionController {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &InstitutionController{
		matcher:   m,
		batch:     batch,
		checks:    checks,
		timeout:   timeout,
		version:   version,
		startedAt: time.Now(),
		logger:    logger,
	}
}

// Resolve resolve một tên cơ sở
func (ic *InstitutionController) Resolve(c *gin.Context) {
	var req requests.ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), ic.timeout)
	defer cancel()

	startTime := time.Now()
	result, err := ic.matcher.Resolve(ctx, matcher.ResolveRequest{
		SourceName:    req.SourceName,
		SourceAddress: req.SourceAddress,
		LotAddress:    req.LotAddress,
		RegionCode:    req.RegionCode,
		SourceTable:   req.SourceTable,
		RunID:         req.RunID,
		RunType:       models.RunTypeInteractive,
	})
	if err != nil {
		respondError(c, ic.logger, "resolve", err)
		return
	}

	c.JSON(http.StatusOK, responses.ResolveResponse{
		Result:           result,
		ProcessingTimeMs: time.Since(startTime).Milliseconds(),
	})
}

// Search tìm candidate, không ghi audit log
func (ic *InstitutionController) Search(c *gin.Context) {
	var req requests.SearchRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Limit == 0 {
		req.Limit = DefaultSearchLimit
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), ic.timeout)
	defer cancel()

	startTime := time.Now()
	candidates, err := ic.matcher.Search(ctx, req.Name, req.RegionCode, req.Limit)
	if err != nil {
		respondError(c, ic.logger, "search", err)
		return
	}

	c.JSON(http.StatusOK, responses.SearchResponse{
		Query:            req.Name,
		RegionCode:       req.RegionCode,
		Candidates:       candidates,
		Total:            len(candidates),
		ProcessingTimeMs: time.Since(startTime).Milliseconds(),
	})
}

// BatchResolve tạo batch job
func (ic *InstitutionController) BatchResolve(c *gin.Context) {
	var req requests.BatchResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	items := make([]services.BatchItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = services.BatchItem{
			SourceName:    it.SourceName,
			SourceAddress: it.SourceAddress,
			LotAddress:    it.LotAddress,
			RegionCode:    it.RegionCode,
		}
	}

	jobID, err := ic.batch.Submit(items, req.SourceTable)
	if err != nil {
		respondError(c, ic.logger, "batch_resolve", err)
		return
	}

	c.JSON(http.StatusAccepted, responses.BatchResolveResponse{
		JobID:            jobID,
		EstimatedSeconds: ic.batch.EstimateBatchProcessingTime(len(items)),
		TotalItems:       len(items),
		Message:          "Job đã được tạo và đang xử lý",
	})
}

// GetJobStatus lấy trạng thái job
func (ic *InstitutionController) GetJobStatus(c *gin.Context) {
	status, err := ic.batch.GetJobStatus(c.Param("jobID"))
	if err != nil {
		respondError(c, ic.logger, "job_status", err)
		return
	}
	c.JSON(http.StatusOK, responses.JobStatusResponse{JobStatus: *status})
}

// GetJobResults lấy kết quả job với hỗ trợ NDJSON + gzip streaming
func (ic *InstitutionController) GetJobResults(c *gin.Context) {
	jobID := c.Param("jobID")

	if c.Query("format") == "ndjson" {
		ic.streamNDJSONResults(c, jobID, c.Query("gzip") == "1")
		return
	}

	results, err := ic.batch.GetJobResults(jobID)
	if err != nil {
		respondError(c, ic.logger, "job_results", err)
		return
	}

	c.JSON(http.StatusOK, responses.SuccessResponse{
		Success:   true,
		Message:   "Lấy kết quả thành công",
		Data:      results,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheck kiểm tra sức khỏe service
func (ic *InstitutionController) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := "healthy"
	code := http.StatusOK
	svc := map[string]string{"matcher": "healthy"}
	for name, check := range ic.checks {
		if err := check(ctx); err != nil {
			ic.logger.Warn("Health check failed", zap.String("service", name), zap.Error(err))
			svc[name] = "unhealthy"
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		svc[name] = "healthy"
	}

	c.JSON(code, responses.HealthCheckResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(ic.startedAt).Round(time.Second).String(),
		Version:   ic.version,
		Services:  svc,
	})
}

// Live chỉ xác nhận process còn sống
func (ic *InstitutionController) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// streamNDJSONResults stream kết quả theo format NDJSON với hỗ trợ gzip
func (ic *InstitutionController) streamNDJSONResults(c *gin.Context, jobID string, gzipEnabled bool) {
	resultChannel, err := ic.batch.GetJobResultsStream(c.Request.Context(), jobID)
	if err != nil {
		respondError(c, ic.logger, "job_results_stream", err)
		return
	}

	c.Header("Content-Type", "application/x-ndjson")
	var writer gin.ResponseWriter = c.Writer
	if gzipEnabled {
		c.Header("Content-Encoding", "gzip")
		gzWriter := gzip.NewWriter(c.Writer)
		defer gzWriter.Close()
		writer = &gzipResponseWriter{
			ResponseWriter: c.Writer,
			gzWriter:       gzWriter,
		}
	}
	c.Status(http.StatusOK)

	encoder := json.NewEncoder(writer)
	for result := range resultChannel {
		if err := encoder.Encode(result); err != nil {
			ic.logger.Error("Lỗi encode NDJSON", zap.Error(err))
			break
		}
		writer.Flush()
	}
}

// gzipResponseWriter wrapper cho gzip writer
type gzipResponseWriter struct {
	gin.ResponseWriter
	gzWriter *gzip.Writer
}

func (w *gzipResponseWriter) Write(data []byte) (int, error) {
	return w.gzWriter.Write(data)
}

func (w *gzipResponseWriter) Flush() {
	w.gzWriter.Flush()
	w.ResponseWriter.Flush()
}
