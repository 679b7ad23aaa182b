package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Wire payloads for the pub/sub channels. All payloads are flat JSON;
// unknown fields are ignored for forward compatibility.

// SentimentPayload arrives on the sentiment channel.
type SentimentPayload struct {
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
	Timestamp  string  `json:"timestamp"`
}

// EventPayload arrives on the events channel.
type EventPayload struct {
	ID        string   `json:"id"`
	ArticleID string   `json:"article_id"`
	EventType string   `json:"event_type"`
	Severity  float64  `json:"severity"`
	Keywords  []string `json:"keywords"`
	Timestamp string   `json:"timestamp"`
}

// IndicatorsPayload arrives on the indicators channel.
type IndicatorsPayload struct {
	RSISignal  string `json:"rsi_signal"`
	MACDSignal string `json:"macd_signal"`
	BBSignal   string `json:"bb_signal"`
	Timestamp  string `json:"timestamp"`
}

// RegimePayload arrives on the regime channel.
type RegimePayload struct {
	RegimeType    string  `json:"regime_type"`
	Confidence    float64 `json:"confidence"`
	Volatility    float64 `json:"volatility"`
	TrendStrength float64 `json:"trend_strength"`
	Timestamp     string  `json:"timestamp"`
}

// SignalPayload is published on the signals channel and must round-trip
// every TradingSignal field.
type SignalPayload struct {
	SignalType         string             `json:"signal_type"`
	CMSScore           float64            `json:"cms_score"`
	SentimentComponent float64            `json:"sentiment_component"`
	TechnicalComponent float64            `json:"technical_component"`
	RegimeComponent    float64            `json:"regime_component"`
	Confidence         float64            `json:"confidence"`
	Weights            map[string]float64 `json:"weights"`
	Explanation        ExplanationPayload `json:"explanation"`
	Timestamp          time.Time          `json:"timestamp"`
}

type ExplanationPayload struct {
	Summary          string             `json:"summary"`
	SentimentDetails string             `json:"sentiment_details"`
	TechnicalDetails string             `json:"technical_details"`
	RegimeDetails    string             `json:"regime_details"`
	EventDetails     string             `json:"event_details"`
	ComponentScores  map[string]float64 `json:"component_scores"`
}

// NewSignalPayload flattens a TradingSignal for the wire.
func NewSignalPayload(s *TradingSignal) SignalPayload {
	return SignalPayload{
		SignalType:         string(s.SignalType),
		CMSScore:           s.CMS.Score,
		SentimentComponent: s.CMS.SentimentComponent,
		TechnicalComponent: s.CMS.TechnicalComponent,
		RegimeComponent:    s.CMS.RegimeComponent,
		Confidence:         s.Confidence,
		Weights:            s.CMS.Weights,
		Explanation: ExplanationPayload{
			Summary:          s.Explanation.Summary,
			SentimentDetails: s.Explanation.SentimentDetails,
			TechnicalDetails: s.Explanation.TechnicalDetails,
			RegimeDetails:    s.Explanation.RegimeDetails,
			EventDetails:     s.Explanation.EventDetails,
			ComponentScores:  s.Explanation.ComponentScores,
		},
		Timestamp: s.Timestamp,
	}
}

// TradingSignal reconstructs the domain record from the wire form.
func (p SignalPayload) TradingSignal() *TradingSignal {
	return &TradingSignal{
		SignalType: TradingSignalType(p.SignalType),
		CMS: CompositeMarketScore{
			Score:              p.CMSScore,
			SentimentComponent: p.SentimentComponent,
			TechnicalComponent: p.TechnicalComponent,
			RegimeComponent:    p.RegimeComponent,
			Weights:            p.Weights,
			Timestamp:          p.Timestamp,
		},
		Confidence: p.Confidence,
		Explanation: Explanation{
			Summary:          p.Explanation.Summary,
			SentimentDetails: p.Explanation.SentimentDetails,
			TechnicalDetails: p.Explanation.TechnicalDetails,
			RegimeDetails:    p.Explanation.RegimeDetails,
			EventDetails:     p.Explanation.EventDetails,
			ComponentScores:  p.Explanation.ComponentScores,
		},
		Timestamp: p.Timestamp,
	}
}

// ParseEvent converts a wire payload into a domain Event. Unknown event
// types are rejected; a missing id gets a generated one so downstream
// bookkeeping never keys on the empty string.
func ParseEvent(raw []byte) (Event, error) {
	var p EventPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	et := EventType(p.EventType)
	switch et {
	case EventEarnings, EventMerger, EventAcquisition, EventBankruptcy,
		EventRegulatory, EventProductLaunch, EventLeadershipChange:
	default:
		return Event{}, fmt.Errorf("unknown event type %q", p.EventType)
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return Event{
		ID:        p.ID,
		ArticleID: p.ArticleID,
		EventType: et,
		Severity:  p.Severity,
		Keywords:  p.Keywords,
		Timestamp: ParseTimestamp(p.Timestamp),
	}, nil
}

// ParseTechnicalSignals converts an indicators payload. Each sub-signal must
// be a known state.
func ParseTechnicalSignals(raw []byte) (TechnicalSignals, error) {
	var p IndicatorsPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return TechnicalSignals{}, fmt.Errorf("decode indicators: %w", err)
	}
	ts := TechnicalSignals{
		RSISignal:  TechnicalSignalType(p.RSISignal),
		MACDSignal: TechnicalSignalType(p.MACDSignal),
		BBSignal:   TechnicalSignalType(p.BBSignal),
	}
	for _, s := range []TechnicalSignalType{ts.RSISignal, ts.MACDSignal, ts.BBSignal} {
		switch s {
		case TechnicalOverbought, TechnicalOversold, TechnicalBullishX,
			TechnicalBearishX, TechnicalUpperBreach, TechnicalLowerBreach,
			TechnicalNeutral:
		default:
			return TechnicalSignals{}, fmt.Errorf("unknown technical signal %q", s)
		}
	}
	return ts, nil
}

// ParseRegime converts a regime payload.
func ParseRegime(raw []byte) (MarketRegime, error) {
	var p RegimePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return MarketRegime{}, fmt.Errorf("decode regime: %w", err)
	}
	rt := RegimeType(p.RegimeType)
	switch rt {
	case RegimeTrendingUp, RegimeTrendingDown, RegimeRanging, RegimeVolatile, RegimeCalm:
	default:
		return MarketRegime{}, fmt.Errorf("unknown regime type %q", p.RegimeType)
	}
	return MarketRegime{
		RegimeType:    rt,
		Confidence:    p.Confidence,
		Volatility:    p.Volatility,
		TrendStrength: p.TrendStrength,
		Timestamp:     ParseTimestamp(p.Timestamp),
	}, nil
}

// timestampLayouts covers RFC 3339 plus the zone-less ISO form some
// upstream producers emit.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// ParseTimestamp parses a producer timestamp leniently; an empty or
// unparsable value falls back to now, favoring signal availability over
// strict validation.
func ParseTimestamp(s string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Now().UTC()
}
