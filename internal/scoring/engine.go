package scoring

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/institution-matcher/app/models"
	"github.com/institution-matcher/internal/normalizer"
	"github.com/xrash/smetrics"
)

// Weights trọng số của từng signal
type Weights struct {
	TextMatch       float64 `yaml:"text_match" json:"text_match"`
	NameSimilarity  float64 `yaml:"name_similarity" json:"name_similarity"`
	AddressMatch    float64 `yaml:"address_match" json:"address_match"`
	RegionCodeMatch float64 `yaml:"region_code_match" json:"region_code_match"`
}

// Thresholds ngưỡng phân tầng recommendation
type Thresholds struct {
	AutoMatchScore       int `yaml:"auto_match_score" json:"auto_match_score"`
	AutoMatchMinSignals  int `yaml:"auto_match_min_signals" json:"auto_match_min_signals"`
	AutoMatchSignalFloor int `yaml:"auto_match_signal_floor" json:"auto_match_signal_floor"`
	ManualReviewScore    int `yaml:"manual_review_score" json:"manual_review_score"`
}

// Config cấu hình của score engine
type Config struct {
	Weights    Weights    `yaml:"weights" json:"weights"`
	Thresholds Thresholds `yaml:"thresholds" json:"thresholds"`
}

// DefaultConfig returns the production weights and tier thresholds.
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			TextMatch:       0.40,
			NameSimilarity:  0.25,
			AddressMatch:    0.20,
			RegionCodeMatch: 0.15,
		},
		Thresholds: Thresholds{
			AutoMatchScore:       95,
			AutoMatchMinSignals:  3,
			AutoMatchSignalFloor: 80,
			ManualReviewScore:    70,
		},
	}
}

// Validate kiểm tra cấu hình hợp lệ
func (c Config) Validate() error {
	w := c.Weights
	for name, v := range map[string]float64{
		models.SignalTextMatch:       w.TextMatch,
		models.SignalNameSimilarity:  w.NameSimilarity,
		models.SignalAddressMatch:    w.AddressMatch,
		models.SignalRegionCodeMatch: w.RegionCodeMatch,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("weight %s out of range [0,1]: %v", name, v)
		}
	}
	if w.TextMatch+w.NameSimilarity+w.AddressMatch+w.RegionCodeMatch <= 0 {
		return errors.New("weights must not all be zero")
	}

	t := c.Thresholds
	if t.AutoMatchScore < 0 || t.AutoMatchScore > 100 || t.ManualReviewScore < 0 || t.ManualReviewScore > 100 {
		return errors.New("score thresholds must be within [0,100]")
	}
	if t.ManualReviewScore > t.AutoMatchScore {
		return fmt.Errorf("manual_review_score %d above auto_match_score %d", t.ManualReviewScore, t.AutoMatchScore)
	}
	if t.AutoMatchMinSignals < 0 || t.AutoMatchMinSignals > 4 {
		return fmt.Errorf("auto_match_min_signals out of range [0,4]: %d", t.AutoMatchMinSignals)
	}
	if t.AutoMatchSignalFloor < 0 || t.AutoMatchSignalFloor > 100 {
		return fmt.Errorf("auto_match_signal_floor out of range [0,100]: %d", t.AutoMatchSignalFloor)
	}
	return nil
}

// Input is one normalized candidate/registry pair. Empty strings mean absent.
type Input struct {
	CandidateName        string
	RegistryName         string
	CandidateAddressHash string
	RegistryAddressHash  string
	CandidateRegion      string
	RegistryRegion       string
}

// Result kết quả chấm điểm
type Result struct {
	Score          int                   `json:"score"`
	Signals        []models.MatchSignal  `json:"signals"`
	Recommendation models.Recommendation `json:"recommendation"`
}

// Engine computes the four match signals and the recommendation tier.
// It is stateless and safe for concurrent use.
type Engine struct {
	cfg Config
}

// NewEngine tạo mới Engine
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scoring config: %w", err)
	}
	return &Engine{cfg: cfg}, nil
}

// Config trả về cấu hình đang dùng
func (e *Engine) Config() Config {
	return e.cfg
}

// Score chấm điểm một cặp ứng viên / registry
func (e *Engine) Score(in Input) Result {
	w := e.cfg.Weights
	signals := []models.MatchSignal{
		newSignal(models.SignalTextMatch, w.TextMatch, textMatch(in.CandidateName, in.RegistryName)),
		newSignal(models.SignalNameSimilarity, w.NameSimilarity, nameSimilarity(in.CandidateName, in.RegistryName)),
		newSignal(models.SignalAddressMatch, w.AddressMatch, presentAndEqual(in.CandidateAddressHash, in.RegistryAddressHash, "hash")),
		newSignal(models.SignalRegionCodeMatch, w.RegionCodeMatch, presentAndEqual(in.CandidateRegion, in.RegistryRegion, "region")),
	}

	score := combine(signals)
	return Result{
		Score:          score,
		Signals:        signals,
		Recommendation: e.Recommend(score, signals),
	}
}

// Recommend applies the tiers in order: auto_match, manual_review, reject.
func (e *Engine) Recommend(score int, signals []models.MatchSignal) models.Recommendation {
	t := e.cfg.Thresholds

	strong := 0
	for _, s := range signals {
		if s.Value >= t.AutoMatchSignalFloor {
			strong++
		}
	}

	switch {
	case score >= t.AutoMatchScore && strong >= t.AutoMatchMinSignals:
		return models.RecommendationAutoMatch
	case score >= t.ManualReviewScore:
		return models.RecommendationManualReview
	default:
		return models.RecommendationReject
	}
}

type signalValue struct {
	value  int
	detail map[string]interface{}
}

func newSignal(name string, weight float64, sv signalValue) models.MatchSignal {
	v := clamp(sv.value)
	return models.MatchSignal{
		Name:         name,
		Value:        v,
		Weight:       weight,
		Contribution: float64(v) * weight,
		Detail:       sv.detail,
	}
}

// combine = round(100 × Σ((value/100)×weight) / Σ(weight))
func combine(signals []models.MatchSignal) int {
	var sum, total float64
	for _, s := range signals {
		sum += float64(s.Value) / 100 * s.Weight
		total += s.Weight
	}
	if total <= 0 {
		return 0
	}
	return clamp(int(math.Round(100 * sum / total)))
}

func textMatch(a, b string) signalValue {
	a, b = strings.ToLower(strings.TrimSpace(a)), strings.ToLower(strings.TrimSpace(b))
	switch {
	case a == "" || b == "":
		return signalValue{0, map[string]interface{}{"mode": "missing"}}
	case a == b:
		return signalValue{100, map[string]interface{}{"mode": "exact"}}
	case strings.Contains(a, b) || strings.Contains(b, a):
		return signalValue{80, map[string]interface{}{"mode": "contains"}}
	default:
		return signalValue{0, map[string]interface{}{"mode": "none"}}
	}
}

// nameSimilarity compares the names as given; case is not folded.
// Jaro-Winkler is recorded next to the value for tuning only.
func nameSimilarity(a, b string) signalValue {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return signalValue{0, map[string]interface{}{"mode": "missing"}}
	}
	return signalValue{
		value: normalizer.Similarity(a, b),
		detail: map[string]interface{}{
			"jaro_winkler": math.Round(smetrics.JaroWinkler(a, b, 0.7, 4)*1000) / 1000,
		},
	}
}

func presentAndEqual(candidate, registry, kind string) signalValue {
	candidate, registry = strings.TrimSpace(candidate), strings.TrimSpace(registry)
	detail := map[string]interface{}{
		"candidate_" + kind + "_present": candidate != "",
		"registry_" + kind + "_present":  registry != "",
	}
	if candidate != "" && registry != "" && candidate == registry {
		return signalValue{100, detail}
	}
	return signalValue{0, detail}
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
