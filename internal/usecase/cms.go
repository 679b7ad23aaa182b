package usecase

import (
	"fmt"
	"strings"

	"SigFuse/internal/domain/models"
)

// regimeBaseScores maps each regime category onto [-1, 1] before
// confidence weighting. Volatile leans bearish, calm leans bullish.
var regimeBaseScores = map[models.RegimeType]float64{
	models.RegimeTrendingUp:   1.0,
	models.RegimeTrendingDown: -1.0,
	models.RegimeRanging:      0.0,
	models.RegimeVolatile:     -0.3,
	models.RegimeCalm:         0.2,
}

// highSeverityThreshold marks events worth calling out in explanations.
const highSeverityThreshold = 0.7

// Scorer computes the Composite Market Score and turns it into a trading
// decision. It holds only immutable configuration, so every method is a
// pure function of its inputs.
type Scorer struct {
	weightSentiment float64
	weightTechnical float64
	weightRegime    float64
	buyThreshold    float64
	sellThreshold   float64
}

// NewScorer builds a scorer. Weights are renormalized to sum to 1.0 when
// they do not already.
func NewScorer(wSentiment, wTechnical, wRegime, buyThreshold, sellThreshold float64) (*Scorer, error) {
	total := wSentiment + wTechnical + wRegime
	if total <= 0 {
		return nil, fmt.Errorf("cms weights must have a positive sum, got %v", total)
	}
	if buyThreshold <= sellThreshold {
		return nil, fmt.Errorf("buy threshold %v must exceed sell threshold %v", buyThreshold, sellThreshold)
	}
	return &Scorer{
		weightSentiment: wSentiment / total,
		weightTechnical: wTechnical / total,
		weightRegime:    wRegime / total,
		buyThreshold:    buyThreshold,
		sellThreshold:   sellThreshold,
	}, nil
}

// Weights returns the normalized component weights.
func (s *Scorer) Weights() map[string]float64 {
	return map[string]float64{
		"sentiment": s.weightSentiment,
		"technical": s.weightTechnical,
		"regime":    s.weightRegime,
	}
}

// ComputeCMS fuses the snapshot into a score in [-100, 100].
func (s *Scorer) ComputeCMS(data *models.AggregatedData) models.CompositeMarketScore {
	sentiment := clamp(data.SentimentScore, -1, 1)
	technical := normalizeTechnical(data.TechnicalSignals)
	regime := normalizeRegime(data.Regime)

	score := 100 * (s.weightSentiment*sentiment +
		s.weightTechnical*technical +
		s.weightRegime*regime)
	score = clamp(score, -100, 100)

	return models.CompositeMarketScore{
		Score:              score,
		SentimentComponent: sentiment * 100,
		TechnicalComponent: technical * 100,
		RegimeComponent:    regime * 100,
		Weights:            s.Weights(),
		Timestamp:          data.Timestamp,
	}
}

// GenerateSignal computes the CMS, applies the decision thresholds and
// builds the explanation. Pure: identical snapshots yield identical
// signals.
func (s *Scorer) GenerateSignal(data *models.AggregatedData) *models.TradingSignal {
	cms := s.ComputeCMS(data)

	var signalType models.TradingSignalType
	switch {
	case cms.Score > s.buyThreshold:
		signalType = models.SignalBuy
	case cms.Score < s.sellThreshold:
		signalType = models.SignalSell
	default:
		signalType = models.SignalHold
	}

	return &models.TradingSignal{
		SignalType:  signalType,
		CMS:         cms,
		Confidence:  signalConfidence(cms, data.Regime),
		Explanation: buildExplanation(data, cms, signalType),
		Timestamp:   data.Timestamp,
	}
}

// normalizeTechnical maps the indicator triplet to [-1, 1]: each sub-signal
// contributes +1 (bullish), -1 (bearish) or 0, and the three are averaged.
// Cross-family states (a bollinger state on the RSI slot, say) are ignored
// rather than rejected.
func normalizeTechnical(t models.TechnicalSignals) float64 {
	score, count := 0.0, 0

	switch t.RSISignal {
	case models.TechnicalOversold:
		score, count = score+1, count+1
	case models.TechnicalOverbought:
		score, count = score-1, count+1
	case models.TechnicalNeutral:
		count++
	}

	switch t.MACDSignal {
	case models.TechnicalBullishX:
		score, count = score+1, count+1
	case models.TechnicalBearishX:
		score, count = score-1, count+1
	case models.TechnicalNeutral:
		count++
	}

	switch t.BBSignal {
	case models.TechnicalLowerBreach:
		score, count = score+1, count+1
	case models.TechnicalUpperBreach:
		score, count = score-1, count+1
	case models.TechnicalNeutral:
		count++
	}

	if count == 0 {
		return 0
	}
	return score / float64(count)
}

// normalizeRegime maps the regime to [-1, 1]: fixed base score per
// category, weighted by classifier confidence.
func normalizeRegime(r models.MarketRegime) float64 {
	return regimeBaseScores[r.RegimeType] * clamp(r.Confidence, 0, 1)
}

// signalConfidence averages signal strength with the regime classifier's
// own confidence.
func signalConfidence(cms models.CompositeMarketScore, regime models.MarketRegime) float64 {
	strength := abs(cms.Score) / 100
	return clamp((strength+regime.Confidence)/2, 0, 1)
}

func buildExplanation(data *models.AggregatedData, cms models.CompositeMarketScore, st models.TradingSignalType) models.Explanation {
	summary := fmt.Sprintf(
		"%s signal generated with CMS of %.2f. Sentiment: %.2f, Technical: %.2f, Regime: %.2f",
		strings.ToUpper(string(st)), cms.Score,
		cms.SentimentComponent, cms.TechnicalComponent, cms.RegimeComponent)

	return models.Explanation{
		Summary:          summary,
		SentimentDetails: explainSentiment(data.SentimentScore),
		TechnicalDetails: explainTechnical(data.TechnicalSignals),
		RegimeDetails:    explainRegime(data.Regime),
		EventDetails:     explainEvents(data.Events),
		ComponentScores: map[string]float64{
			"sentiment": cms.SentimentComponent,
			"technical": cms.TechnicalComponent,
			"regime":    cms.RegimeComponent,
			"cms":       cms.Score,
		},
	}
}

func explainSentiment(score float64) string {
	var tone string
	switch {
	case score > 0.5:
		tone = "strongly positive"
	case score > 0.2:
		tone = "moderately positive"
	case score > -0.2:
		tone = "neutral"
	case score > -0.5:
		tone = "moderately negative"
	default:
		tone = "strongly negative"
	}
	return fmt.Sprintf("News sentiment is %s with a score of %.2f", tone, score)
}

func explainTechnical(t models.TechnicalSignals) string {
	details := make([]string, 0, 3)

	switch t.RSISignal {
	case models.TechnicalOversold:
		details = append(details, "RSI indicates oversold conditions (potential buy)")
	case models.TechnicalOverbought:
		details = append(details, "RSI indicates overbought conditions (potential sell)")
	default:
		details = append(details, "RSI is in neutral territory")
	}

	switch t.MACDSignal {
	case models.TechnicalBullishX:
		details = append(details, "MACD crossed above signal line (bullish)")
	case models.TechnicalBearishX:
		details = append(details, "MACD crossed below signal line (bearish)")
	default:
		details = append(details, "MACD shows no clear crossover")
	}

	switch t.BBSignal {
	case models.TechnicalLowerBreach:
		details = append(details, "Price breached lower Bollinger Band (oversold)")
	case models.TechnicalUpperBreach:
		details = append(details, "Price breached upper Bollinger Band (overbought)")
	default:
		details = append(details, "Price is within Bollinger Bands")
	}

	return strings.Join(details, ". ")
}

var regimeDescriptions = map[models.RegimeType]string{
	models.RegimeTrendingUp:   "upward trending",
	models.RegimeTrendingDown: "downward trending",
	models.RegimeRanging:      "range-bound",
	models.RegimeVolatile:     "highly volatile",
	models.RegimeCalm:         "calm with low volatility",
}

func explainRegime(r models.MarketRegime) string {
	desc, ok := regimeDescriptions[r.RegimeType]
	if !ok {
		desc = "unknown"
	}
	return fmt.Sprintf(
		"Market is %s with %.1f%% confidence. Volatility: %.2f, Trend strength: %.2f",
		desc, r.Confidence*100, r.Volatility, r.TrendStrength)
}

func explainEvents(events []models.Event) string {
	if len(events) == 0 {
		return "No significant market events detected recently"
	}

	var highSeverity []string
	for _, e := range events {
		if e.Severity >= highSeverityThreshold {
			highSeverity = append(highSeverity, string(e.EventType))
		}
	}
	if len(highSeverity) > 0 {
		return fmt.Sprintf("Detected %d high-severity event(s): %s",
			len(highSeverity), strings.Join(highSeverity, ", "))
	}
	return fmt.Sprintf("Detected %d low-to-moderate severity event(s)", len(events))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
