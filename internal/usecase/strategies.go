package usecase

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"SigFuse/internal/domain/models"
)

// Alternative scoring strategies. The canonical decision path is the
// Scorer; these are clearly labeled alternatives kept behind a common
// interface so operators can compare them offline. Neither feeds the
// aggregator's emit path.

// StrategyInputs is the superset of inputs the alternative strategies
// consume. Callers fill what they have; each strategy documents which
// fields it reads.
type StrategyInputs struct {
	SentimentIndex   float64 // [-1, 1]
	VolatilityIndex  float64 // [0, 1]
	TrendStrength    float64 // [-1, 1]
	EventShockFactor float64 // [0, 1]
	EMA20            float64
	EMA50            float64
	CMSScore         float64 // [-100, 100]
	NegativeEvents   []string
	Timestamp        time.Time
}

// Decision is a strategy verdict. Rejected decisions carry a reason and
// are ordinary values, not errors; an error return is reserved for inputs
// outside their declared domain.
type Decision struct {
	SignalType    models.TradingSignalType
	Score         float64
	Confidence    float64
	Explanation   string
	Contributions map[string]float64
	Rejected      bool
	Reason        string
}

// Strategy scores a set of inputs into a decision.
type Strategy interface {
	Name() string
	Evaluate(in StrategyInputs) (Decision, error)
}

// CMSEngineStrategy is the alternative weighting
// 0.4*sentiment - 0.3*volatility + 0.2*trend + 0.1*eventShock with
// symmetric +-50 thresholds. The event term amplifies the sentiment
// direction. Input ranges are validated strictly, unlike the canonical
// scorer's clamping.
type CMSEngineStrategy struct {
	BuyThreshold  float64
	SellThreshold float64
}

const (
	cmsEngineSentimentWeight  = 0.4
	cmsEngineVolatilityWeight = -0.3
	cmsEngineTrendWeight      = 0.2
	cmsEngineEventWeight      = 0.1
)

func NewCMSEngineStrategy() *CMSEngineStrategy {
	return &CMSEngineStrategy{BuyThreshold: 50, SellThreshold: -50}
}

func (s *CMSEngineStrategy) Name() string { return "cms_engine" }

// Evaluate reads SentimentIndex, VolatilityIndex, TrendStrength and
// EventShockFactor.
func (s *CMSEngineStrategy) Evaluate(in StrategyInputs) (Decision, error) {
	if err := s.validate(in); err != nil {
		return Decision{}, err
	}

	sentiment := cmsEngineSentimentWeight * in.SentimentIndex * 100
	volatility := cmsEngineVolatilityWeight * in.VolatilityIndex * 100
	trend := cmsEngineTrendWeight * in.TrendStrength * 100

	// Event shock pushes in the sentiment direction.
	event := cmsEngineEventWeight * in.EventShockFactor * 100
	if in.SentimentIndex < 0 {
		event = -event
	}

	score := clamp(sentiment+volatility+trend+event, -100, 100)

	var signalType models.TradingSignalType
	switch {
	case score > s.BuyThreshold:
		signalType = models.SignalBuy
	case score < s.SellThreshold:
		signalType = models.SignalSell
	default:
		signalType = models.SignalHold
	}

	contributions := map[string]float64{
		"sentiment":  sentiment,
		"volatility": volatility,
		"trend":      trend,
		"event":      event,
	}

	return Decision{
		SignalType:    signalType,
		Score:         score,
		Confidence:    s.confidence(in, score),
		Explanation:   s.explain(score, signalType, contributions),
		Contributions: contributions,
	}, nil
}

func (s *CMSEngineStrategy) validate(in StrategyInputs) error {
	if in.SentimentIndex < -1 || in.SentimentIndex > 1 {
		return fmt.Errorf("sentiment index must be in [-1, 1], got %v", in.SentimentIndex)
	}
	if in.VolatilityIndex < 0 || in.VolatilityIndex > 1 {
		return fmt.Errorf("volatility index must be in [0, 1], got %v", in.VolatilityIndex)
	}
	if in.TrendStrength < -1 || in.TrendStrength > 1 {
		return fmt.Errorf("trend strength must be in [-1, 1], got %v", in.TrendStrength)
	}
	if in.EventShockFactor < 0 || in.EventShockFactor > 1 {
		return fmt.Errorf("event shock factor must be in [0, 1], got %v", in.EventShockFactor)
	}
	return nil
}

// confidence blends signal strength (50%), component agreement (30%) and a
// volatility penalty (20%).
func (s *CMSEngineStrategy) confidence(in StrategyInputs, score float64) float64 {
	strength := abs(score) / 100

	eventDir := in.EventShockFactor
	if in.SentimentIndex < 0 {
		eventDir = -eventDir
	}
	components := []float64{in.SentimentIndex, -in.VolatilityIndex, in.TrendStrength, eventDir}
	mean := 0.0
	for _, c := range components {
		mean += c
	}
	mean /= float64(len(components))
	variance := 0.0
	for _, c := range components {
		variance += (c - mean) * (c - mean)
	}
	variance /= float64(len(components))
	agreement := math.Max(0, 1-math.Sqrt(variance))

	penalty := 1 - in.VolatilityIndex

	return clamp(strength*0.5+agreement*0.3+penalty*0.2, 0, 1)
}

func (s *CMSEngineStrategy) explain(score float64, st models.TradingSignalType, contributions map[string]float64) string {
	keys := make([]string, 0, len(contributions))
	for k := range contributions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	dominant := keys[0]
	for _, k := range keys {
		if abs(contributions[k]) > abs(contributions[dominant]) {
			dominant = k
		}
	}
	return fmt.Sprintf(
		"%s signal generated with CMS of %.2f. Sentiment contributes %+.2f, volatility %+.2f, trend %+.2f, events %+.2f. Dominant factor: %s.",
		strings.ToUpper(string(st)), score,
		contributions["sentiment"], contributions["volatility"],
		contributions["trend"], contributions["event"], dominant)
}

// RuleBasedStrategy gates a decision on hard conditions instead of a
// weighted score: trend (EMA20 vs EMA50), sentiment and CMS thresholds,
// and the absence of negative events on the buy side. When no gate set is
// fully met the decision comes back Rejected with the failing reasons.
type RuleBasedStrategy struct {
	BuySentimentThreshold  float64
	BuyCMSThreshold        float64
	SellSentimentThreshold float64
	SellCMSThreshold       float64
}

func NewRuleBasedStrategy() *RuleBasedStrategy {
	return &RuleBasedStrategy{
		BuySentimentThreshold:  0.2,
		BuyCMSThreshold:        0.3,
		SellSentimentThreshold: -0.3,
		SellCMSThreshold:       -0.3,
	}
}

func (s *RuleBasedStrategy) Name() string { return "rule_based" }

// Evaluate reads EMA20, EMA50, SentimentIndex, CMSScore and NegativeEvents.
func (s *RuleBasedStrategy) Evaluate(in StrategyInputs) (Decision, error) {
	if in.EMA50 == 0 {
		return Decision{}, fmt.Errorf("ema50 must be non-zero")
	}

	var reasons []string

	trendBullish := in.EMA20 > in.EMA50
	trendBearish := in.EMA20 < in.EMA50
	if trendBullish {
		reasons = append(reasons, fmt.Sprintf("bullish trend: EMA20 (%.2f) > EMA50 (%.2f)", in.EMA20, in.EMA50))
	} else {
		reasons = append(reasons, fmt.Sprintf("no bullish trend: EMA20 (%.2f) <= EMA50 (%.2f)", in.EMA20, in.EMA50))
	}

	buyMet := trendBullish &&
		in.SentimentIndex > s.BuySentimentThreshold &&
		in.CMSScore > s.BuyCMSThreshold &&
		len(in.NegativeEvents) == 0
	sellMet := trendBearish &&
		in.SentimentIndex < s.SellSentimentThreshold &&
		in.CMSScore < s.SellCMSThreshold

	switch {
	case buyMet:
		return Decision{
			SignalType:  models.SignalBuy,
			Score:       in.CMSScore,
			Confidence:  s.buyConfidence(in),
			Explanation: fmt.Sprintf("all BUY gates met (sentiment %.3f, CMS %.2f)", in.SentimentIndex, in.CMSScore),
		}, nil
	case sellMet:
		return Decision{
			SignalType:  models.SignalSell,
			Score:       in.CMSScore,
			Confidence:  clamp(abs(in.SentimentIndex), 0, 1),
			Explanation: fmt.Sprintf("all SELL gates met (sentiment %.3f, CMS %.2f)", in.SentimentIndex, in.CMSScore),
		}, nil
	}

	if in.SentimentIndex <= s.BuySentimentThreshold {
		reasons = append(reasons, fmt.Sprintf("insufficient sentiment: %.3f <= %.3f", in.SentimentIndex, s.BuySentimentThreshold))
	}
	if in.CMSScore <= s.BuyCMSThreshold {
		reasons = append(reasons, fmt.Sprintf("insufficient CMS: %.2f <= %.2f", in.CMSScore, s.BuyCMSThreshold))
	}
	if len(in.NegativeEvents) > 0 {
		reasons = append(reasons, fmt.Sprintf("negative events present: %s", strings.Join(in.NegativeEvents, ", ")))
	}

	return Decision{
		SignalType:  models.SignalHold,
		Score:       in.CMSScore,
		Explanation: "conditions not met for BUY or SELL",
		Rejected:    true,
		Reason:      strings.Join(reasons, "; "),
	}, nil
}

func (s *RuleBasedStrategy) buyConfidence(in StrategyInputs) float64 {
	sentimentStrength := math.Min(in.SentimentIndex, 1)
	cmsStrength := math.Min(in.CMSScore/100, 1)
	trendStrength := math.Min((in.EMA20-in.EMA50)/in.EMA50/0.1, 1)
	return clamp(sentimentStrength*0.4+cmsStrength*0.3+trendStrength*0.3, 0, 1)
}
