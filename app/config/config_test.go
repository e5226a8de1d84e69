package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileKeepsDefaults(t *testing.T) {
	require.NoError(t, Load(filepath.Join(t.TempDir(), "missing.yaml")))
	assert.Equal(t, 95, C.Scoring.Thresholds.AutoMatchScore)
	assert.Equal(t, 10, C.Retrieval.CandidateLimit)
	assert.Equal(t, time.Hour, C.RuleTTL())
	assert.Equal(t, 1500*time.Millisecond, C.RequestTimeout())
}

func TestLoad_RequestTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "matcher.yaml")
	require.NoError(t, os.WriteFile(path, []byte("request_timeout_ms: 3000\n"), 0o600))
	require.NoError(t, Load(path))
	assert.Equal(t, 3*time.Second, C.RequestTimeout())

	require.NoError(t, os.WriteFile(path, []byte("request_timeout_ms: -1\n"), 0o600))
	assert.Error(t, Load(path))
	assert.Equal(t, 3*time.Second, C.RequestTimeout())
}

func TestLoad_OverridesThresholds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "matcher.yaml")
	doc := `
scoring:
  weights:
    text_match: 0.5
    name_similarity: 0.2
    address_match: 0.2
    region_code_match: 0.1
  thresholds:
    auto_match_score: 90
    auto_match_min_signals: 2
    auto_match_signal_floor: 80
    manual_review_score: 60
grouping:
  threshold: 0.9
  protected_patterns: ["\\d+호차"]
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	t.Setenv("USE_LIBPOSTAL", "1")

	require.NoError(t, Load(path))
	assert.Equal(t, 90, C.Scoring.Thresholds.AutoMatchScore)
	assert.Equal(t, 0.5, C.Scoring.Weights.TextMatch)
	assert.Equal(t, 0.9, C.Grouping.Threshold)
	assert.Equal(t, []string{`\d+호차`}, C.Grouping.Engine.ProtectedPatterns)
	assert.True(t, C.UseLibpostal)
	// untouched sections keep defaults
	assert.Equal(t, 200, C.Retrieval.MeiliCandidates)
}

func TestLoad_RejectsInvalidScoring(t *testing.T) {
	path := filepath.Join(t.TempDir(), "matcher.yaml")
	doc := `
scoring:
  thresholds:
    auto_match_score: 50
    manual_review_score: 70
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	before := C
	assert.Error(t, Load(path))
	assert.Equal(t, before, C)
}
