package models

import "time"

// TechnicalSignalType is the discrete state an indicator reports.
type TechnicalSignalType string

const (
	TechnicalOverbought  TechnicalSignalType = "overbought"
	TechnicalOversold    TechnicalSignalType = "oversold"
	TechnicalBullishX    TechnicalSignalType = "bullish_cross"
	TechnicalBearishX    TechnicalSignalType = "bearish_cross"
	TechnicalUpperBreach TechnicalSignalType = "upper_breach"
	TechnicalLowerBreach TechnicalSignalType = "lower_breach"
	TechnicalNeutral     TechnicalSignalType = "neutral"
)

// RegimeType classifies the current market condition.
type RegimeType string

const (
	RegimeTrendingUp   RegimeType = "trending_up"
	RegimeTrendingDown RegimeType = "trending_down"
	RegimeRanging      RegimeType = "ranging"
	RegimeVolatile     RegimeType = "volatile"
	RegimeCalm         RegimeType = "calm"
)

// EventType categorizes a detected market event.
type EventType string

const (
	EventEarnings         EventType = "earnings"
	EventMerger           EventType = "merger"
	EventAcquisition      EventType = "acquisition"
	EventBankruptcy       EventType = "bankruptcy"
	EventRegulatory       EventType = "regulatory"
	EventProductLaunch    EventType = "product_launch"
	EventLeadershipChange EventType = "leadership_change"
)

// TradingSignalType is the decision this system emits.
type TradingSignalType string

const (
	SignalBuy  TradingSignalType = "buy"
	SignalSell TradingSignalType = "sell"
	SignalHold TradingSignalType = "hold"
)

// Event is a discrete market event from the event detector.
type Event struct {
	ID        string
	ArticleID string
	EventType EventType
	Severity  float64 // 0.0 to 1.0
	Keywords  []string
	Timestamp time.Time
}

// TechnicalSignals is the triplet of indicator states from the
// technical-indicator engine.
type TechnicalSignals struct {
	RSISignal  TechnicalSignalType
	MACDSignal TechnicalSignalType
	BBSignal   TechnicalSignalType
}

// MarketRegime is a classification from the regime detector.
type MarketRegime struct {
	RegimeType    RegimeType
	Confidence    float64 // 0.0 to 1.0
	Volatility    float64
	TrendStrength float64
	Timestamp     time.Time
}

// AggregatedData is a consistent snapshot of everything the aggregator
// knows, taken under a single lock acquisition.
type AggregatedData struct {
	SentimentScore   float64 // -1.0 to +1.0
	TechnicalSignals TechnicalSignals
	Regime           MarketRegime
	Events           []Event
	Timestamp        time.Time
}

// CompositeMarketScore is the weighted fusion result. Components are
// scaled to [-100, 100] alongside the final score. Immutable once built.
type CompositeMarketScore struct {
	Score              float64 // -100 to +100
	SentimentComponent float64
	TechnicalComponent float64
	RegimeComponent    float64
	Weights            map[string]float64
	Timestamp          time.Time
}

// Explanation is the deterministic audit breakdown attached to a signal.
type Explanation struct {
	Summary          string
	SentimentDetails string
	TechnicalDetails string
	RegimeDetails    string
	EventDetails     string
	ComponentScores  map[string]float64
}

// TradingSignal is one emitted decision. Immutable; one per decision cycle.
type TradingSignal struct {
	SignalType  TradingSignalType
	CMS         CompositeMarketScore
	Confidence  float64 // 0.0 to 1.0
	Explanation Explanation
	Timestamp   time.Time
}
