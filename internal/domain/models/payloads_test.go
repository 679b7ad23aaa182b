package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvent(t *testing.T) {
	raw := []byte(`{"id":"evt-1","article_id":"art-9","event_type":"earnings","severity":0.8,"keywords":["q3","beat"],"timestamp":"2026-08-30T12:00:00Z"}`)

	ev, err := ParseEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, "evt-1", ev.ID)
	assert.Equal(t, "art-9", ev.ArticleID)
	assert.Equal(t, EventEarnings, ev.EventType)
	assert.Equal(t, 0.8, ev.Severity)
	assert.Equal(t, []string{"q3", "beat"}, ev.Keywords)
	assert.Equal(t, time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC), ev.Timestamp)
}

func TestParseEventGeneratesMissingID(t *testing.T) {
	raw := []byte(`{"event_type":"merger","severity":0.5}`)

	ev, err := ParseEvent(raw)
	require.NoError(t, err)
	assert.NotEmpty(t, ev.ID)
}

func TestParseEventRejectsUnknownType(t *testing.T) {
	raw := []byte(`{"event_type":"alien_invasion","severity":1.0}`)

	_, err := ParseEvent(raw)
	assert.ErrorContains(t, err, "unknown event type")
}

func TestParseTechnicalSignals(t *testing.T) {
	raw := []byte(`{"rsi_signal":"oversold","macd_signal":"bullish_cross","bb_signal":"neutral"}`)

	ts, err := ParseTechnicalSignals(raw)
	require.NoError(t, err)
	assert.Equal(t, TechnicalOversold, ts.RSISignal)
	assert.Equal(t, TechnicalBullishX, ts.MACDSignal)
	assert.Equal(t, TechnicalNeutral, ts.BBSignal)
}

func TestParseTechnicalSignalsRejectsUnknownState(t *testing.T) {
	raw := []byte(`{"rsi_signal":"oversold","macd_signal":"sideways","bb_signal":"neutral"}`)

	_, err := ParseTechnicalSignals(raw)
	assert.ErrorContains(t, err, "unknown technical signal")
}

func TestParseRegime(t *testing.T) {
	raw := []byte(`{"regime_type":"trending_up","confidence":0.8,"volatility":0.02,"trend_strength":0.6,"timestamp":"2026-08-30T12:00:00Z"}`)

	r, err := ParseRegime(raw)
	require.NoError(t, err)
	assert.Equal(t, RegimeTrendingUp, r.RegimeType)
	assert.Equal(t, 0.8, r.Confidence)
	assert.Equal(t, 0.02, r.Volatility)
	assert.Equal(t, 0.6, r.TrendStrength)
}

func TestParseRegimeRejectsUnknownType(t *testing.T) {
	raw := []byte(`{"regime_type":"sideways","confidence":0.8}`)

	_, err := ParseRegime(raw)
	assert.ErrorContains(t, err, "unknown regime type")
}

func TestParseTimestampAcceptsZonelessISO(t *testing.T) {
	got := ParseTimestamp("2026-08-30T12:34:56.789012")
	assert.Equal(t, 2026, got.Year())
	assert.Equal(t, 34, got.Minute())
}

func TestParseTimestampFallsBackToNow(t *testing.T) {
	before := time.Now().UTC()
	got := ParseTimestamp("not-a-timestamp")
	after := time.Now().UTC()

	assert.False(t, got.Before(before))
	assert.False(t, got.After(after))
}

func TestSignalPayloadRoundTrip(t *testing.T) {
	ts := time.Date(2026, 8, 30, 15, 0, 0, 0, time.UTC)
	original := &TradingSignal{
		SignalType: SignalBuy,
		CMS: CompositeMarketScore{
			Score:              67.33,
			SentimentComponent: 60,
			TechnicalComponent: 66.67,
			RegimeComponent:    80,
			Weights:            map[string]float64{"sentiment": 0.3, "technical": 0.5, "regime": 0.2},
			Timestamp:          ts,
		},
		Confidence: 0.74,
		Explanation: Explanation{
			Summary:          "BUY signal generated",
			SentimentDetails: "News sentiment is positive with a score of 0.60",
			ComponentScores:  map[string]float64{"sentiment": 60},
		},
		Timestamp: ts,
	}

	got := NewSignalPayload(original).TradingSignal()
	assert.Equal(t, original.SignalType, got.SignalType)
	assert.Equal(t, original.CMS.Score, got.CMS.Score)
	assert.Equal(t, original.CMS.Weights, got.CMS.Weights)
	assert.Equal(t, original.Confidence, got.Confidence)
	assert.Equal(t, original.Explanation.Summary, got.Explanation.Summary)
	assert.Equal(t, original.Timestamp, got.Timestamp)
}
