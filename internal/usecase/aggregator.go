package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"SigFuse/internal/domain/models"
	domrepo "SigFuse/internal/domain/repository"
	"SigFuse/pkg/bus"
	"SigFuse/pkg/logger"
)

// AggregatorConfig carries the fusion parameters.
type AggregatorConfig struct {
	WeightSentiment float64
	WeightTechnical float64
	WeightRegime    float64
	BuyThreshold    float64
	SellThreshold   float64
	MaxEvents       int
}

// Aggregator fuses the four input streams into trading signals. One mutex
// guards all four state slices; signal generation snapshots them under a
// single lock acquisition and computes outside the lock. Publish and
// persistence are best-effort and never gate the computation.
type Aggregator struct {
	log     *logger.Logger
	pub     *bus.Publisher
	sub     *bus.Subscriber
	scorer  *Scorer
	store   domrepo.SignalStore // nil disables persistence
	sink    domrepo.SignalSink  // nil disables the audit mirror
	metrics domrepo.Metrics

	maxEvents int
	nowFn     func() time.Time

	mu              sync.Mutex
	latestSentiment *float64
	latestTechnical *models.TechnicalSignals
	latestRegime    *models.MarketRegime
	recentEvents    []models.Event

	started bool
}

// NewAggregator creates an aggregator. store and sink may be nil.
func NewAggregator(
	cfg AggregatorConfig,
	log *logger.Logger,
	pub *bus.Publisher,
	sub *bus.Subscriber,
	store domrepo.SignalStore,
	sink domrepo.SignalSink,
	metrics domrepo.Metrics,
) (*Aggregator, error) {
	scorer, err := NewScorer(cfg.WeightSentiment, cfg.WeightTechnical, cfg.WeightRegime,
		cfg.BuyThreshold, cfg.SellThreshold)
	if err != nil {
		return nil, fmt.Errorf("aggregator scorer: %w", err)
	}
	maxEvents := cfg.MaxEvents
	if maxEvents <= 0 {
		maxEvents = 10
	}
	w := scorer.Weights()
	log.Info("signal aggregator initialized",
		logger.Float64("weight_sentiment", w["sentiment"]),
		logger.Float64("weight_technical", w["technical"]),
		logger.Float64("weight_regime", w["regime"]),
		logger.Float64("buy_threshold", cfg.BuyThreshold),
		logger.Float64("sell_threshold", cfg.SellThreshold))
	return &Aggregator{
		log:       log,
		pub:       pub,
		sub:       sub,
		scorer:    scorer,
		store:     store,
		sink:      sink,
		metrics:   metrics,
		maxEvents: maxEvents,
		nowFn:     time.Now,
	}, nil
}

// Start subscribes the aggregator to the four input channels.
func (a *Aggregator) Start(ctx context.Context) error {
	if err := a.sub.Subscribe(ctx, bus.InputChannels(), a.handleMessage); err != nil {
		return fmt.Errorf("aggregator subscribe: %w", err)
	}
	a.started = true
	a.log.Info("aggregator subscribed", logger.Strings("channels", bus.InputChannels()))
	return nil
}

// Listen runs the underlying dispatch loop until Stop or ctx cancellation.
func (a *Aggregator) Listen(ctx context.Context) error {
	if !a.started {
		return fmt.Errorf("aggregator not started")
	}
	return a.sub.Listen(ctx)
}

// Stop terminates the dispatch loop and releases the subscription.
// Idempotent; buffered outbound signals stay queued for a later replay.
func (a *Aggregator) Stop() error {
	return a.sub.Close()
}

func (a *Aggregator) handleMessage(ctx context.Context, channel string, payload []byte) error {
	a.metrics.RecordInput(channel)

	var err error
	switch channel {
	case bus.ChannelSentiment:
		err = a.handleSentiment(payload)
	case bus.ChannelEvents:
		err = a.handleEvent(payload)
	case bus.ChannelIndicators:
		err = a.handleIndicators(payload)
	case bus.ChannelRegime:
		err = a.handleRegime(payload)
	default:
		return fmt.Errorf("unexpected channel %q", channel)
	}
	if err != nil {
		a.metrics.RecordError("parse_" + channel)
		return err
	}

	a.tryGenerateSignal(ctx)
	return nil
}

func (a *Aggregator) handleSentiment(payload []byte) error {
	var p models.SentimentPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode sentiment: %w", err)
	}
	a.mu.Lock()
	a.latestSentiment = &p.Score
	a.mu.Unlock()
	a.log.Debug("updated sentiment", logger.Float64("score", p.Score))
	return nil
}

func (a *Aggregator) handleEvent(payload []byte) error {
	event, err := models.ParseEvent(payload)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.recentEvents = append(a.recentEvents, event)
	if len(a.recentEvents) > a.maxEvents {
		a.recentEvents = a.recentEvents[len(a.recentEvents)-a.maxEvents:]
	}
	a.mu.Unlock()
	a.log.Debug("added event",
		logger.String("event_type", string(event.EventType)),
		logger.Float64("severity", event.Severity))
	return nil
}

func (a *Aggregator) handleIndicators(payload []byte) error {
	ts, err := models.ParseTechnicalSignals(payload)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.latestTechnical = &ts
	a.mu.Unlock()
	a.log.Debug("updated technical signals",
		logger.String("rsi", string(ts.RSISignal)),
		logger.String("macd", string(ts.MACDSignal)),
		logger.String("bb", string(ts.BBSignal)))
	return nil
}

func (a *Aggregator) handleRegime(payload []byte) error {
	regime, err := models.ParseRegime(payload)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.latestRegime = &regime
	a.mu.Unlock()
	a.log.Debug("updated regime", logger.String("regime_type", string(regime.RegimeType)))
	return nil
}

// tryGenerateSignal emits a signal when all required slices are present.
// Repeated identical signals for unchanged state are expected; downstream
// consumers treat them as idempotent.
func (a *Aggregator) tryGenerateSignal(ctx context.Context) {
	data := a.AggregateData()
	if data == nil {
		return
	}

	start := a.nowFn()
	signal := a.scorer.GenerateSignal(data)
	a.metrics.RecordLatency("generate_signal", a.nowFn().Sub(start).Seconds())
	a.metrics.RecordSignal(string(signal.SignalType))
	a.metrics.RecordCMS(signal.CMS.Score)

	a.emit(ctx, signal)

	a.log.Info("signal generated",
		logger.String("signal_type", string(signal.SignalType)),
		logger.Float64("cms", signal.CMS.Score),
		logger.Float64("confidence", signal.Confidence))
}

// emit publishes and persists best-effort: a transport failure degrades to
// buffering inside the publisher and a store failure is only logged.
func (a *Aggregator) emit(ctx context.Context, signal *models.TradingSignal) {
	if !a.pub.Publish(ctx, bus.ChannelSignals, models.NewSignalPayload(signal)) {
		a.metrics.RecordError("publish_signal")
	}

	if a.store != nil {
		if err := a.store.Store(ctx, signal); err != nil {
			a.metrics.RecordError("store_signal")
			a.log.Error("failed to store signal", logger.Error(err))
		}
	}
	if a.sink != nil {
		if err := a.sink.Emit(ctx, signal); err != nil {
			a.metrics.RecordError("audit_signal")
			a.log.Error("failed to mirror signal", logger.Error(err))
		}
	}
}

// AggregateData returns a consistent snapshot of the aggregator state, or
// nil while any required slice is still missing. Events are optional.
func (a *Aggregator) AggregateData() *models.AggregatedData {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch {
	case a.latestSentiment == nil:
		a.metrics.RecordIncomplete("sentiment")
		return nil
	case a.latestTechnical == nil:
		a.metrics.RecordIncomplete("technical")
		return nil
	case a.latestRegime == nil:
		a.metrics.RecordIncomplete("regime")
		return nil
	}

	events := make([]models.Event, len(a.recentEvents))
	copy(events, a.recentEvents)

	return &models.AggregatedData{
		SentimentScore:   *a.latestSentiment,
		TechnicalSignals: *a.latestTechnical,
		Regime:           *a.latestRegime,
		Events:           events,
		Timestamp:        a.nowFn(),
	}
}

// InputsReady reports per-stream readiness without touching the
// incomplete-state metrics, for the status endpoint.
func (a *Aggregator) InputsReady() map[string]bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return map[string]bool{
		bus.ChannelSentiment:  a.latestSentiment != nil,
		bus.ChannelIndicators: a.latestTechnical != nil,
		bus.ChannelRegime:     a.latestRegime != nil,
		bus.ChannelEvents:     len(a.recentEvents) > 0,
	}
}

// GenerateSignal computes a signal from the given snapshot without
// touching aggregator state.
func (a *Aggregator) GenerateSignal(data *models.AggregatedData) *models.TradingSignal {
	return a.scorer.GenerateSignal(data)
}
