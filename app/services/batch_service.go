package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/institution-matcher/app/models"
	"github.com/institution-matcher/helpers/utils"
	"github.com/institution-matcher/internal/matcher"
	"github.com/institution-matcher/internal/metrics"
	"go.uber.org/zap"
)

// Job status constants
const (
	JobStatusPending = "pending"
	JobStatusRunning = "running"
	JobStatusDone    = "done"
	JobStatusFailed  = "failed"
)

// MaxBatchSize số bản ghi tối đa trong một job
const MaxBatchSize = 20000

// Job lookup errors
var (
	ErrJobNotFound = errors.New("job not found")
	ErrJobRunning  = errors.New("job is still running")
)

// Resolver is the matcher operation a batch job runs per row.
type Resolver interface {
	Resolve(ctx context.Context, req matcher.ResolveRequest) (*models.ResolutionResult, error)
}

// BatchItem một dòng đầu vào của batch
type BatchItem struct {
	SourceName    string `json:"source_name"`
	SourceAddress string `json:"source_address,omitempty"`
	LotAddress    string `json:"lot_address,omitempty"`
	RegionCode    string `json:"region_code,omitempty"`
}

// BatchResult kết quả một dòng; Error is set instead of Result on failure
type BatchResult struct {
	Index  int                      `json:"index"`
	Result *models.ResolutionResult `json:"result,omitempty"`
	Error  string                   `json:"error,omitempty"`
}

// JobStatus trạng thái job
type JobStatus struct {
	JobID              string    `json:"job_id"`
	Status             string    `json:"status"`
	Progress           float64   `json:"progress"`
	Processed          int       `json:"processed"`
	Failed             int       `json:"failed"`
	Total              int       `json:"total"`
	EstimatedRemaining int       `json:"estimated_remaining"`
	Message            string    `json:"message"`
	StartedAt          time.Time `json:"started_at"`
}

type batchJob struct {
	mu      sync.RWMutex
	status  JobStatus
	results []BatchResult
	done    chan struct{}
}

// BatchService runs batch validation jobs in the background. Each job is one
// validation run: its id is the run id of every log entry it writes.
type BatchService struct {
	resolver    Resolver
	sourceTable string
	workers     int
	retention   time.Duration
	logger      *zap.Logger

	mu   sync.RWMutex
	jobs map[string]*batchJob
}

// NewBatchService tạo mới BatchService
func NewBatchService(resolver Resolver, sourceTable string, workers int, logger *zap.Logger) *BatchService {
	if workers <= 0 {
		workers = 4
	}
	return &BatchService{
		resolver:    resolver,
		sourceTable: sourceTable,
		workers:     workers,
		retention:   24 * time.Hour,
		logger:      logger,
		jobs:        make(map[string]*batchJob),
	}
}

// EstimateBatchProcessingTime ước tính thời gian xử lý (giây)
func (bs *BatchService) EstimateBatchProcessingTime(n int) int {
	// ~50 rows/second per worker
	seconds := n / (50 * bs.workers)
	if seconds < 1 {
		seconds = 1
	}
	return seconds
}

// Submit starts a job and returns its id immediately.
func (bs *BatchService) Submit(items []BatchItem, sourceTable string) (string, error) {
	if len(items) == 0 {
		return "", fmt.Errorf("%w: batch is empty", matcher.ErrInvalidInput)
	}
	if len(items) > MaxBatchSize {
		return "", fmt.Errorf("%w: batch exceeds %d rows", matcher.ErrInvalidInput, MaxBatchSize)
	}
	if sourceTable == "" {
		sourceTable = bs.sourceTable
	}

	jobID := utils.GenerateUUID()
	job := &batchJob{
		status: JobStatus{
			JobID:     jobID,
			Status:    JobStatusPending,
			Total:     len(items),
			StartedAt: time.Now().UTC(),
		},
		results: make([]BatchResult, len(items)),
		done:    make(chan struct{}),
	}

	bs.mu.Lock()
	bs.evictExpired()
	bs.jobs[jobID] = job
	bs.mu.Unlock()

	go bs.run(jobID, job, items, sourceTable)
	return jobID, nil
}

func (bs *BatchService) run(jobID string, job *batchJob, items []BatchItem, sourceTable string) {
	defer close(job.done)

	job.mu.Lock()
	job.status.Status = JobStatusRunning
	job.mu.Unlock()

	ctx := context.Background()
	indexes := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < bs.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				item := items[i]
				res, err := bs.resolver.Resolve(ctx, matcher.ResolveRequest{
					SourceName:    item.SourceName,
					SourceAddress: item.SourceAddress,
					LotAddress:    item.LotAddress,
					RegionCode:    item.RegionCode,
					SourceTable:   sourceTable,
					RunID:         jobID,
					RunType:       models.RunTypeBatch,
				})

				outcome := "ok"
				job.mu.Lock()
				job.results[i] = BatchResult{Index: i, Result: res}
				if err != nil {
					job.results[i].Error = err.Error()
					job.status.Failed++
					outcome = "failed"
				}
				job.status.Processed++
				job.status.Progress = float64(job.status.Processed) / float64(job.status.Total)
				job.status.EstimatedRemaining = bs.EstimateBatchProcessingTime(job.status.Total - job.status.Processed)
				job.mu.Unlock()
				metrics.BatchRowsTotal.WithLabelValues(outcome).Inc()
			}
		}()
	}

	for i := range items {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	job.mu.Lock()
	job.status.Status = JobStatusDone
	job.status.EstimatedRemaining = 0
	job.status.Message = fmt.Sprintf("%d/%d rows resolved", job.status.Processed-job.status.Failed, job.status.Total)
	if job.status.Failed == job.status.Total {
		job.status.Status = JobStatusFailed
	}
	status := job.status
	job.mu.Unlock()

	bs.logger.Info("Batch job completed",
		zap.String("job_id", jobID),
		zap.String("status", status.Status),
		zap.Int("total", status.Total),
		zap.Int("failed", status.Failed),
		zap.Duration("elapsed", time.Since(status.StartedAt)))
}

// GetJobStatus lấy trạng thái job
func (bs *BatchService) GetJobStatus(jobID string) (*JobStatus, error) {
	job, err := bs.job(jobID)
	if err != nil {
		return nil, err
	}
	job.mu.RLock()
	defer job.mu.RUnlock()
	status := job.status
	return &status, nil
}

// GetJobResults returns all rows in input order once the job is done.
func (bs *BatchService) GetJobResults(jobID string) ([]BatchResult, error) {
	job, err := bs.job(jobID)
	if err != nil {
		return nil, err
	}
	select {
	case <-job.done:
	default:
		return nil, fmt.Errorf("%w: %s", ErrJobRunning, jobID)
	}
	job.mu.RLock()
	defer job.mu.RUnlock()
	return append([]BatchResult(nil), job.results...), nil
}

// GetJobResultsStream streams results in input order once the job is done.
func (bs *BatchService) GetJobResultsStream(ctx context.Context, jobID string) (<-chan BatchResult, error) {
	job, err := bs.job(jobID)
	if err != nil {
		return nil, err
	}

	out := make(chan BatchResult)
	go func() {
		defer close(out)
		select {
		case <-job.done:
		case <-ctx.Done():
			return
		}
		job.mu.RLock()
		results := append([]BatchResult(nil), job.results...)
		job.mu.RUnlock()
		for _, r := range results {
			select {
			case out <- r:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Wait blocks until the job finishes or ctx ends.
func (bs *BatchService) Wait(ctx context.Context, jobID string) error {
	job, err := bs.job(jobID)
	if err != nil {
		return err
	}
	select {
	case <-job.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (bs *BatchService) job(jobID string) (*batchJob, error) {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	job, ok := bs.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return job, nil
}

// evictExpired drops finished jobs older than the retention; caller holds bs.mu.
func (bs *BatchService) evictExpired() {
	cutoff := time.Now().UTC().Add(-bs.retention)
	for id, job := range bs.jobs {
		select {
		case <-job.done:
		default:
			continue
		}
		job.mu.RLock()
		expired := job.status.StartedAt.Before(cutoff)
		job.mu.RUnlock()
		if expired {
			delete(bs.jobs, id)
		}
	}
}
