package stats

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/institution-matcher/app/models"
	"github.com/institution-matcher/internal/metrics"
	"go.uber.org/zap"
)

// LogReader đọc validation log trong khoảng thời gian [from, to)
type LogReader interface {
	ListLogs(ctx context.Context, from, to time.Time) ([]models.ValidationLogEntry, error)
}

// RegistryCounter đếm số entry và alias trong registry
type RegistryCounter interface {
	CountEntries(ctx context.Context) (int64, error)
	CountAliases(ctx context.Context) (int64, error)
}

// SnapshotWriter ghi đè snapshot theo ngày
type SnapshotWriter interface {
	UpsertSnapshot(ctx context.Context, snapshot *models.MetricsSnapshot) error
}

// Aggregator rolls the validation log up into one MetricsSnapshot per day.
type Aggregator struct {
	logs     LogReader
	registry RegistryCounter
	writer   SnapshotWriter
	logger   *zap.Logger
	now      func() time.Time
}

// NewAggregator tạo mới Aggregator
func NewAggregator(logs LogReader, registry RegistryCounter, writer SnapshotWriter, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		logs:     logs,
		registry: registry,
		writer:   writer,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RecordMetrics computes the snapshot for the UTC day containing date and
// overwrites the stored one. Read failures are returned; a failed write is
// logged and the computed snapshot is still returned.
func (a *Aggregator) RecordMetrics(ctx context.Context, date time.Time) (*models.MetricsSnapshot, error) {
	date = date.UTC()
	from := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	// 1. Đọc log trong ngày
	entries, err := a.logs.ListLogs(ctx, from, to)
	if err != nil {
		metrics.MetricsRollupsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("list validation logs: %w", err)
	}

	// 2. Đếm registry
	totalEntries, err := a.registry.CountEntries(ctx)
	if err != nil {
		metrics.MetricsRollupsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("count registry entries: %w", err)
	}
	totalAliases, err := a.registry.CountAliases(ctx)
	if err != nil {
		metrics.MetricsRollupsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("count aliases: %w", err)
	}

	snapshot := Compute(entries)
	snapshot.MetricDate = from.Format(models.MetricDateLayout)
	snapshot.TotalRegistryEntries = totalEntries
	snapshot.TotalAliases = totalAliases
	snapshot.ComputedAt = a.now()

	// 3. Ghi snapshot, lỗi chỉ log
	if err := a.writer.UpsertSnapshot(ctx, snapshot); err != nil {
		metrics.MetricsRollupsTotal.WithLabelValues("write_failed").Inc()
		a.logger.Error("Lỗi ghi metrics snapshot",
			zap.String("metric_date", snapshot.MetricDate),
			zap.Error(err))
		return snapshot, nil
	}

	metrics.MetricsRollupsTotal.WithLabelValues("ok").Inc()
	a.logger.Info("Recorded metrics snapshot",
		zap.String("metric_date", snapshot.MetricDate),
		zap.Int("attempts", snapshot.TotalAttempts),
		zap.Float64("match_success_rate", snapshot.MatchSuccessRate))
	return snapshot, nil
}

// Compute derives counts and rates from one day of log entries. Rates are
// percentages rounded to two decimals; an empty day yields zero rates.
func Compute(entries []models.ValidationLogEntry) *models.MetricsSnapshot {
	s := &models.MetricsSnapshot{
		TotalAttempts:      len(entries),
		SignalContribution: map[string]float64{},
		RegionCoverage:     map[string]int{},
	}

	var hits, addressMatched, autoTotal, autoConfirmed int
	contribSum := map[string]float64{}
	contribN := map[string]int{}

	for _, e := range entries {
		if e.Success {
			s.MatchedCount++
		}
		if e.MatchedCode != nil {
			hits++
		}
		if e.AddressMatched {
			addressMatched++
		}
		if e.Recommendation == models.RecommendationAutoMatch {
			autoTotal++
			if e.ManualReviewStatus != models.ReviewStatusRejected {
				autoConfirmed++
			}
		}
		if e.RegionCode != "" {
			s.RegionCoverage[e.RegionCode]++
		}
		for _, sig := range e.Signals {
			contribSum[sig.Name] += sig.Contribution
			contribN[sig.Name]++
		}
	}
	s.UnmatchedCount = s.TotalAttempts - s.MatchedCount

	s.MatchSuccessRate = percent(s.MatchedCount, s.TotalAttempts)
	s.SearchHitRate = percent(hits, s.TotalAttempts)
	s.AddressMatchRate = percent(addressMatched, s.TotalAttempts)
	s.AutoRecommendSuccessRate = percent(autoConfirmed, autoTotal)
	for name, sum := range contribSum {
		s.SignalContribution[name] = round2(sum / float64(contribN[name]))
	}
	return s
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return round2(float64(n) / float64(total) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
