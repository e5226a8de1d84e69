package scoring

import (
	"testing"

	"github.com/institution-matcher/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHash = "3b1f0c6f2a0d5e4c9b8a7f6e5d4c3b2a1f0e9d8c7b6a5f4e3d2c1b0a9f8e7d6c"

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(DefaultConfig())
	require.NoError(t, err)
	return e
}

func signalValues(r Result) map[string]int {
	out := make(map[string]int, len(r.Signals))
	for _, s := range r.Signals {
		out[s.Name] = s.Value
	}
	return out
}

func TestEngine_ExactMatch(t *testing.T) {
	e := newTestEngine(t)

	r := e.Score(Input{
		CandidateName: "서울특별시 강남구", RegistryName: "서울특별시 강남구",
		CandidateAddressHash: testHash, RegistryAddressHash: testHash,
		CandidateRegion: "11", RegistryRegion: "11",
	})

	v := signalValues(r)
	assert.Equal(t, 100, v[models.SignalTextMatch])
	assert.Equal(t, 100, v[models.SignalNameSimilarity])
	assert.Equal(t, 100, v[models.SignalAddressMatch])
	assert.Equal(t, 100, v[models.SignalRegionCodeMatch])
	assert.Equal(t, 100, r.Score)
	assert.Equal(t, models.RecommendationAutoMatch, r.Recommendation)
}

func TestEngine_SignalOrderAndContribution(t *testing.T) {
	r := newTestEngine(t).Score(Input{CandidateName: "강남구", RegistryName: "강남구", CandidateRegion: "11", RegistryRegion: "11"})

	require.Len(t, r.Signals, 4)
	names := []string{r.Signals[0].Name, r.Signals[1].Name, r.Signals[2].Name, r.Signals[3].Name}
	assert.Equal(t, []string{
		models.SignalTextMatch, models.SignalNameSimilarity, models.SignalAddressMatch, models.SignalRegionCodeMatch,
	}, names)
	assert.InDelta(t, 40.0, r.Signals[0].Contribution, 1e-9)
	assert.InDelta(t, 15.0, r.Signals[3].Contribution, 1e-9)
	assert.Contains(t, r.Signals[1].Detail, "jaro_winkler")
}

func TestEngine_Tiers(t *testing.T) {
	e := newTestEngine(t)

	testCases := []struct {
		name     string
		input    Input
		score    int
		expected models.Recommendation
	}{
		{
			name:     "same name only",
			input:    Input{CandidateName: "서울특별시 강남구", RegistryName: "서울특별시 강남구"},
			score:    65,
			expected: models.RecommendationReject,
		},
		{
			name:     "same name and region",
			input:    Input{CandidateName: "서울특별시 강남구", RegistryName: "서울특별시 강남구", CandidateRegion: "11", RegistryRegion: "11"},
			score:    80,
			expected: models.RecommendationManualReview,
		},
		{
			name: "containment with region",
			input: Input{
				CandidateName: "서울특별시 강남구", RegistryName: "서울특별시 강남구 역삼",
				CandidateRegion: "11", RegistryRegion: "11",
			},
			score:    66,
			expected: models.RecommendationReject,
		},
		{
			name: "address and region alone never match",
			input: Input{
				CandidateName: "해운대", RegistryName: "강남구",
				CandidateAddressHash: testHash, RegistryAddressHash: testHash,
				CandidateRegion: "11", RegistryRegion: "11",
			},
			score:    35,
			expected: models.RecommendationReject,
		},
		{
			name:     "case-insensitive exact",
			input:    Input{CandidateName: " Gangnam ", RegistryName: "gangnam", CandidateAddressHash: testHash, RegistryAddressHash: testHash, CandidateRegion: "11", RegistryRegion: "11"},
			score:    100,
			expected: models.RecommendationAutoMatch,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := e.Score(tc.input)
			assert.Equal(t, tc.score, r.Score)
			assert.Equal(t, tc.expected, r.Recommendation)
		})
	}
}

func TestEngine_AutoMatchNeedsEnoughStrongSignals(t *testing.T) {
	e := newTestEngine(t)

	// score alone would qualify but only two signals clear the floor
	signals := []models.MatchSignal{
		{Name: models.SignalTextMatch, Value: 100},
		{Name: models.SignalNameSimilarity, Value: 100},
		{Name: models.SignalAddressMatch, Value: 79},
		{Name: models.SignalRegionCodeMatch, Value: 0},
	}
	assert.Equal(t, models.RecommendationManualReview, e.Recommend(96, signals))

	signals[2].Value = 80
	assert.Equal(t, models.RecommendationAutoMatch, e.Recommend(96, signals))
	assert.Equal(t, models.RecommendationManualReview, e.Recommend(94, signals))
}

func TestEngine_ConfigurableThresholds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Thresholds.AutoMatchScore = 80
	e, err := NewEngine(cfg)
	require.NoError(t, err)

	r := e.Score(Input{CandidateName: "강남구", RegistryName: "강남구", CandidateRegion: "11", RegistryRegion: "11"})
	assert.Equal(t, 80, r.Score)
	assert.Equal(t, models.RecommendationAutoMatch, r.Recommendation)
}

func TestEngine_Deterministic(t *testing.T) {
	e := newTestEngine(t)
	in := Input{CandidateName: "서울특별시 강남구", RegistryName: "서울특별시 강남구청", CandidateRegion: "11", RegistryRegion: "11"}

	first := e.Score(in)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, e.Score(in))
	}
}

func TestEngine_Bounds(t *testing.T) {
	e := newTestEngine(t)
	names := []string{"", "강남구", "서울특별시 강남구", "Gangnam-gu", "x"}
	hashes := []string{"", testHash, "ffff"}
	regions := []string{"", "11", "26"}

	for _, a := range names {
		for _, b := range names {
			for _, h := range hashes {
				for _, rg := range regions {
					r := e.Score(Input{
						CandidateName: a, RegistryName: b,
						CandidateAddressHash: h, RegistryAddressHash: testHash,
						CandidateRegion: rg, RegistryRegion: "11",
					})
					assert.GreaterOrEqual(t, r.Score, 0)
					assert.LessOrEqual(t, r.Score, 100)
					for _, s := range r.Signals {
						assert.GreaterOrEqual(t, s.Value, 0)
						assert.LessOrEqual(t, s.Value, 100)
					}
				}
			}
		}
	}
}

func TestEngine_Monotonic(t *testing.T) {
	e := newTestEngine(t)
	rank := map[models.Recommendation]int{
		models.RecommendationReject:       0,
		models.RecommendationManualReview: 1,
		models.RecommendationAutoMatch:    2,
	}

	for idx := 0; idx < 4; idx++ {
		base := []int{100, 90, 0, 100}
		prevScore, prevTier := -1, -1
		for v := 0; v <= 100; v += 5 {
			base[idx] = v
			signals := make([]models.MatchSignal, 4)
			w := e.Config().Weights
			for i, weight := range []float64{w.TextMatch, w.NameSimilarity, w.AddressMatch, w.RegionCodeMatch} {
				signals[i] = models.MatchSignal{Value: base[i], Weight: weight}
			}
			score := combine(signals)
			tier := rank[e.Recommend(score, signals)]

			assert.GreaterOrEqual(t, score, prevScore, "signal %d value %d", idx, v)
			assert.GreaterOrEqual(t, tier, prevTier, "signal %d value %d", idx, v)
			if tier == rank[models.RecommendationAutoMatch] {
				assert.GreaterOrEqual(t, score, e.Config().Thresholds.ManualReviewScore)
			}
			prevScore, prevTier = score, tier
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.Thresholds.ManualReviewScore = 99
	assert.Error(t, bad.Validate())

	zero := DefaultConfig()
	zero.Weights = Weights{}
	assert.Error(t, zero.Validate())

	_, err := NewEngine(zero)
	assert.Error(t, err)
}

func TestEngine_NameSimilarityKeepsCase(t *testing.T) {
	e := newTestEngine(t)

	r := e.Score(Input{CandidateName: "Seoul Clinic", RegistryName: "seoul clinic"})
	// 2 edits over 12 runes
	assert.Equal(t, 83, signalValues(r)[models.SignalNameSimilarity])

	r = e.Score(Input{CandidateName: "Seoul Clinic", RegistryName: "Seoul Clinic"})
	assert.Equal(t, 100, signalValues(r)[models.SignalNameSimilarity])
}
