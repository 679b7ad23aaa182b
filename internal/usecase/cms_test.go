package usecase

import (
	"math/rand"
	"testing"
	"time"

	"SigFuse/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScorer(t *testing.T) *Scorer {
	t.Helper()
	s, err := NewScorer(0.3, 0.5, 0.2, 60, -60)
	require.NoError(t, err)
	return s
}

func snapshotAt(ts time.Time) *models.AggregatedData {
	return &models.AggregatedData{
		SentimentScore: 0.6,
		TechnicalSignals: models.TechnicalSignals{
			RSISignal:  models.TechnicalOversold,
			MACDSignal: models.TechnicalBullishX,
			BBSignal:   models.TechnicalNeutral,
		},
		Regime: models.MarketRegime{
			RegimeType:    models.RegimeTrendingUp,
			Confidence:    0.8,
			Volatility:    0.12,
			TrendStrength: 0.7,
			Timestamp:     ts,
		},
		Timestamp: ts,
	}
}

func TestScorerRejectsBadConfig(t *testing.T) {
	_, err := NewScorer(0, 0, 0, 60, -60)
	assert.Error(t, err)

	_, err = NewScorer(0.3, 0.5, 0.2, -60, 60)
	assert.Error(t, err)
}

func TestScorerRenormalizesWeights(t *testing.T) {
	s, err := NewScorer(3, 5, 2, 60, -60)
	require.NoError(t, err)

	w := s.Weights()
	assert.InDelta(t, 0.3, w["sentiment"], 1e-9)
	assert.InDelta(t, 0.5, w["technical"], 1e-9)
	assert.InDelta(t, 0.2, w["regime"], 1e-9)
}

func TestComputeCMSBullishScenario(t *testing.T) {
	s := newTestScorer(t)
	data := snapshotAt(time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC))

	cms := s.ComputeCMS(data)

	// 100 * (0.3*0.6 + 0.5*(2/3) + 0.2*0.8) = 67.333...
	assert.InDelta(t, 67.33, cms.Score, 0.01)
	assert.InDelta(t, 60.0, cms.SentimentComponent, 1e-9)
	assert.InDelta(t, 66.67, cms.TechnicalComponent, 0.01)
	assert.InDelta(t, 80.0, cms.RegimeComponent, 1e-9)

	signal := s.GenerateSignal(data)
	assert.Equal(t, models.SignalBuy, signal.SignalType)
}

func TestGenerateSignalThresholds(t *testing.T) {
	s := newTestScorer(t)
	base := snapshotAt(time.Now())

	bearish := *base
	bearish.SentimentScore = -0.9
	bearish.TechnicalSignals = models.TechnicalSignals{
		RSISignal:  models.TechnicalOverbought,
		MACDSignal: models.TechnicalBearishX,
		BBSignal:   models.TechnicalUpperBreach,
	}
	bearish.Regime = models.MarketRegime{RegimeType: models.RegimeTrendingDown, Confidence: 0.9}
	assert.Equal(t, models.SignalSell, s.GenerateSignal(&bearish).SignalType)

	flat := *base
	flat.SentimentScore = 0
	flat.TechnicalSignals = models.TechnicalSignals{
		RSISignal:  models.TechnicalNeutral,
		MACDSignal: models.TechnicalNeutral,
		BBSignal:   models.TechnicalNeutral,
	}
	flat.Regime = models.MarketRegime{RegimeType: models.RegimeRanging, Confidence: 0.5}
	assert.Equal(t, models.SignalHold, s.GenerateSignal(&flat).SignalType)
}

func TestNormalizeTechnical(t *testing.T) {
	cases := []struct {
		name    string
		signals models.TechnicalSignals
		want    float64
	}{
		{
			name: "all bullish",
			signals: models.TechnicalSignals{
				RSISignal:  models.TechnicalOversold,
				MACDSignal: models.TechnicalBullishX,
				BBSignal:   models.TechnicalLowerBreach,
			},
			want: 1.0,
		},
		{
			name: "all bearish",
			signals: models.TechnicalSignals{
				RSISignal:  models.TechnicalOverbought,
				MACDSignal: models.TechnicalBearishX,
				BBSignal:   models.TechnicalUpperBreach,
			},
			want: -1.0,
		},
		{
			name: "mixed averages",
			signals: models.TechnicalSignals{
				RSISignal:  models.TechnicalOversold,
				MACDSignal: models.TechnicalBullishX,
				BBSignal:   models.TechnicalNeutral,
			},
			want: 2.0 / 3.0,
		},
		{
			name:    "no recognized states",
			signals: models.TechnicalSignals{RSISignal: "bogus", MACDSignal: "bogus", BBSignal: "bogus"},
			want:    0,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, normalizeTechnical(tc.signals), 1e-9)
		})
	}
}

func TestNormalizeRegime(t *testing.T) {
	assert.InDelta(t, 0.8, normalizeRegime(models.MarketRegime{
		RegimeType: models.RegimeTrendingUp, Confidence: 0.8,
	}), 1e-9)
	assert.InDelta(t, -0.3, normalizeRegime(models.MarketRegime{
		RegimeType: models.RegimeVolatile, Confidence: 1.0,
	}), 1e-9)
	assert.InDelta(t, 0.1, normalizeRegime(models.MarketRegime{
		RegimeType: models.RegimeCalm, Confidence: 0.5,
	}), 1e-9)
	// Confidence outside [0, 1] is clamped.
	assert.InDelta(t, 1.0, normalizeRegime(models.MarketRegime{
		RegimeType: models.RegimeTrendingUp, Confidence: 3.0,
	}), 1e-9)
}

func TestCMSAlwaysWithinBounds(t *testing.T) {
	s := newTestScorer(t)
	rng := rand.New(rand.NewSource(7))

	states := []models.TechnicalSignalType{
		models.TechnicalOverbought, models.TechnicalOversold,
		models.TechnicalBullishX, models.TechnicalBearishX,
		models.TechnicalUpperBreach, models.TechnicalLowerBreach,
		models.TechnicalNeutral,
	}
	regimes := []models.RegimeType{
		models.RegimeTrendingUp, models.RegimeTrendingDown,
		models.RegimeRanging, models.RegimeVolatile, models.RegimeCalm,
	}

	for _, rsi := range states {
		for _, macd := range states {
			for _, bb := range states {
				for _, rt := range regimes {
					data := &models.AggregatedData{
						SentimentScore:   rng.Float64()*2 - 1,
						TechnicalSignals: models.TechnicalSignals{RSISignal: rsi, MACDSignal: macd, BBSignal: bb},
						Regime:           models.MarketRegime{RegimeType: rt, Confidence: rng.Float64()},
						Timestamp:        time.Now(),
					}
					cms := s.ComputeCMS(data)
					require.GreaterOrEqual(t, cms.Score, -100.0)
					require.LessOrEqual(t, cms.Score, 100.0)
				}
			}
		}
	}

	// Out-of-range sentiment is clamped, never propagated.
	data := snapshotAt(time.Now())
	data.SentimentScore = 42
	cms := s.ComputeCMS(data)
	assert.LessOrEqual(t, cms.Score, 100.0)
	assert.InDelta(t, 100.0, cms.SentimentComponent, 1e-9)
}

func TestGenerateSignalIsDeterministic(t *testing.T) {
	s := newTestScorer(t)
	ts := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	data := snapshotAt(ts)
	data.Events = []models.Event{
		{ID: "e1", EventType: models.EventEarnings, Severity: 0.9, Timestamp: ts},
		{ID: "e2", EventType: models.EventMerger, Severity: 0.3, Timestamp: ts},
	}

	first := s.GenerateSignal(data)
	second := s.GenerateSignal(data)

	assert.Equal(t, first.SignalType, second.SignalType)
	assert.Equal(t, first.CMS, second.CMS)
	assert.Equal(t, first.Confidence, second.Confidence)
	assert.Equal(t, first.Explanation, second.Explanation)
}

func TestSignalConfidence(t *testing.T) {
	cms := models.CompositeMarketScore{Score: 67.33}
	regime := models.MarketRegime{Confidence: 0.8}
	// (0.6733 + 0.8) / 2
	assert.InDelta(t, 0.7367, signalConfidence(cms, regime), 0.001)

	assert.InDelta(t, 1.0, signalConfidence(
		models.CompositeMarketScore{Score: -100},
		models.MarketRegime{Confidence: 1.0},
	), 1e-9)
}

func TestExplanationCallsOutHighSeverityEvents(t *testing.T) {
	s := newTestScorer(t)
	ts := time.Now()
	data := snapshotAt(ts)
	data.Events = []models.Event{
		{ID: "e1", EventType: models.EventBankruptcy, Severity: 0.95, Timestamp: ts},
		{ID: "e2", EventType: models.EventRegulatory, Severity: 0.7, Timestamp: ts},
		{ID: "e3", EventType: models.EventProductLaunch, Severity: 0.2, Timestamp: ts},
	}

	signal := s.GenerateSignal(data)

	assert.Contains(t, signal.Explanation.EventDetails, "2 high-severity event(s)")
	assert.Contains(t, signal.Explanation.EventDetails, "bankruptcy")
	assert.Contains(t, signal.Explanation.EventDetails, "regulatory")
	assert.Contains(t, signal.Explanation.Summary, "BUY signal generated")

	data.Events = nil
	assert.Equal(t, "No significant market events detected recently",
		s.GenerateSignal(data).Explanation.EventDetails)

	data.Events = []models.Event{{ID: "e4", EventType: models.EventMerger, Severity: 0.4}}
	assert.Equal(t, "Detected 1 low-to-moderate severity event(s)",
		s.GenerateSignal(data).Explanation.EventDetails)
}
