package stats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/institution-matcher/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memoryLogs struct {
	entries  []models.ValidationLogEntry
	err      error
	from, to time.Time
}

func (m *memoryLogs) ListLogs(ctx context.Context, from, to time.Time) ([]models.ValidationLogEntry, error) {
	m.from, m.to = from, to
	if m.err != nil {
		return nil, m.err
	}
	var out []models.ValidationLogEntry
	for _, e := range m.entries {
		if !e.CreatedAt.Before(from) && e.CreatedAt.Before(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

type fixedCounts struct{ entries, aliases int64 }

func (f fixedCounts) CountEntries(ctx context.Context) (int64, error) { return f.entries, nil }
func (f fixedCounts) CountAliases(ctx context.Context) (int64, error) { return f.aliases, nil }

type memoryWriter struct {
	saved map[string]models.MetricsSnapshot
	err   error
}

func (m *memoryWriter) UpsertSnapshot(ctx context.Context, s *models.MetricsSnapshot) error {
	if m.err != nil {
		return m.err
	}
	m.saved[s.MetricDate] = *s
	return nil
}

var day = time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)

func logEntry(at time.Time, success bool, rec models.Recommendation, review, region string, addressMatched bool) models.ValidationLogEntry {
	e := models.ValidationLogEntry{
		CreatedAt:          at,
		Success:            success,
		Recommendation:     rec,
		ManualReviewStatus: review,
		RegionCode:         region,
		AddressMatched:     addressMatched,
	}
	if rec != "" {
		code := "H-1"
		e.MatchedCode = &code
		e.Signals = []models.MatchSignal{
			{Name: models.SignalTextMatch, Value: 100, Weight: 0.4, Contribution: 40},
			{Name: models.SignalAddressMatch, Value: 0, Weight: 0.2, Contribution: 0},
		}
	}
	return e
}

func TestRecordMetrics(t *testing.T) {
	logs := &memoryLogs{entries: []models.ValidationLogEntry{
		logEntry(day.Add(1*time.Hour), true, models.RecommendationAutoMatch, models.ReviewStatusApproved, "11", true),
		logEntry(day.Add(2*time.Hour), true, models.RecommendationAutoMatch, models.ReviewStatusRejected, "11", false),
		logEntry(day.Add(3*time.Hour), true, models.RecommendationManualReview, models.ReviewStatusPending, "26", false),
		logEntry(day.Add(4*time.Hour), false, "", models.ReviewStatusPending, "26", false),
		// next day, excluded
		logEntry(day.Add(25*time.Hour), true, models.RecommendationAutoMatch, models.ReviewStatusPending, "11", true),
	}}
	writer := &memoryWriter{saved: map[string]models.MetricsSnapshot{}}
	agg := NewAggregator(logs, fixedCounts{entries: 120, aliases: 40}, writer, zap.NewNop())

	// any instant within the day selects the whole UTC day
	snap, err := agg.RecordMetrics(context.Background(), day.Add(13*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, day, logs.from)
	assert.Equal(t, day.AddDate(0, 0, 1), logs.to)

	assert.Equal(t, "2024-05-20", snap.MetricDate)
	assert.Equal(t, int64(120), snap.TotalRegistryEntries)
	assert.Equal(t, int64(40), snap.TotalAliases)
	assert.Equal(t, 4, snap.TotalAttempts)
	assert.Equal(t, 3, snap.MatchedCount)
	assert.Equal(t, 1, snap.UnmatchedCount)
	assert.Equal(t, 75.0, snap.MatchSuccessRate)
	assert.Equal(t, 50.0, snap.AutoRecommendSuccessRate)
	assert.Equal(t, 75.0, snap.SearchHitRate)
	assert.Equal(t, 25.0, snap.AddressMatchRate)
	assert.Equal(t, map[string]int{"11": 2, "26": 2}, snap.RegionCoverage)
	assert.Equal(t, 40.0, snap.SignalContribution[models.SignalTextMatch])
	assert.Equal(t, 0.0, snap.SignalContribution[models.SignalAddressMatch])

	saved, ok := writer.saved["2024-05-20"]
	require.True(t, ok)
	assert.Equal(t, snap.TotalAttempts, saved.TotalAttempts)
}

func TestRecordMetrics_Overwrites(t *testing.T) {
	logs := &memoryLogs{}
	writer := &memoryWriter{saved: map[string]models.MetricsSnapshot{}}
	agg := NewAggregator(logs, fixedCounts{}, writer, zap.NewNop())

	_, err := agg.RecordMetrics(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, 0, writer.saved["2024-05-20"].TotalAttempts)

	logs.entries = []models.ValidationLogEntry{logEntry(day, true, models.RecommendationAutoMatch, models.ReviewStatusPending, "11", false)}
	_, err = agg.RecordMetrics(context.Background(), day)
	require.NoError(t, err)
	assert.Len(t, writer.saved, 1)
	assert.Equal(t, 1, writer.saved["2024-05-20"].TotalAttempts)
}

func TestRecordMetrics_WriteFailureIsSwallowed(t *testing.T) {
	writer := &memoryWriter{err: errors.New("write concern timeout")}
	agg := NewAggregator(&memoryLogs{}, fixedCounts{}, writer, zap.NewNop())

	snap, err := agg.RecordMetrics(context.Background(), day)
	require.NoError(t, err)
	assert.NotNil(t, snap)
}

func TestRecordMetrics_ReadFailure(t *testing.T) {
	agg := NewAggregator(&memoryLogs{err: errors.New("boom")}, fixedCounts{}, &memoryWriter{}, zap.NewNop())
	_, err := agg.RecordMetrics(context.Background(), day)
	assert.Error(t, err)
}

func TestCompute_EmptyDay(t *testing.T) {
	s := Compute(nil)
	assert.Zero(t, s.TotalAttempts)
	assert.Zero(t, s.MatchSuccessRate)
	assert.Zero(t, s.AutoRecommendSuccessRate)
	assert.Empty(t, s.RegionCoverage)
}
