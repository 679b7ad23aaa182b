package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"SigFuse/internal/domain/models"
	domrepo "SigFuse/internal/domain/repository"
	"SigFuse/pkg/bus"
	"SigFuse/pkg/logger"
	"SigFuse/pkg/resilience"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSender struct {
	mu   sync.Mutex
	sent []bus.Delivery
}

func (c *captureSender) Send(_ context.Context, channel string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, bus.Delivery{Channel: channel, Payload: append([]byte(nil), payload...)})
	return nil
}

func (c *captureSender) signals() []bus.Delivery {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]bus.Delivery, len(c.sent))
	copy(out, c.sent)
	return out
}

type stubReceiver struct{}

func (stubReceiver) Subscribe(context.Context, ...string) error   { return nil }
func (stubReceiver) Unsubscribe(context.Context, ...string) error { return nil }
func (stubReceiver) Receive(context.Context, time.Duration) (*bus.Delivery, error) {
	return nil, nil
}
func (stubReceiver) Close() error { return nil }

type memoryStore struct {
	mu      sync.Mutex
	signals []*models.TradingSignal
	err     error
}

func (m *memoryStore) Init(context.Context) error { return nil }
func (m *memoryStore) Store(_ context.Context, s *models.TradingSignal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.signals = append(m.signals, s)
	return nil
}
func (m *memoryStore) Recent(_ context.Context, limit int) ([]*models.TradingSignal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit > len(m.signals) {
		limit = len(m.signals)
	}
	out := make([]*models.TradingSignal, limit)
	copy(out, m.signals[len(m.signals)-limit:])
	return out, nil
}
func (m *memoryStore) Health(context.Context) error { return nil }
func (m *memoryStore) Close() error                 { return nil }

type nopMetrics struct{}

func (nopMetrics) RecordSignal(string)           {}
func (nopMetrics) RecordCMS(float64)             {}
func (nopMetrics) RecordInput(string)            {}
func (nopMetrics) RecordIncomplete(string)       {}
func (nopMetrics) RecordError(string)            {}
func (nopMetrics) RecordLatency(string, float64) {}

func newTestAggregator(t *testing.T, sender bus.Sender, store *memoryStore) *Aggregator {
	t.Helper()
	buf, err := resilience.NewQueue[bus.BufferedMessage](100)
	require.NoError(t, err)
	pub := bus.NewPublisher(logger.Nop(), sender,
		resilience.NewBreaker("test", resilience.WithFailureThreshold(1000)),
		buf, 5*time.Minute)
	sub := bus.NewSubscriber(logger.Nop(), stubReceiver{}, 10*time.Millisecond)

	var sigStore domrepo.SignalStore
	if store != nil {
		sigStore = store
	}
	agg, err := NewAggregator(AggregatorConfig{
		WeightSentiment: 0.3,
		WeightTechnical: 0.5,
		WeightRegime:    0.2,
		BuyThreshold:    60,
		SellThreshold:   -60,
		MaxEvents:       10,
	}, logger.Nop(), pub, sub, sigStore, nil, nopMetrics{})
	require.NoError(t, err)
	require.NoError(t, agg.Start(context.Background()))
	return agg
}

func sentimentMsg(score float64) []byte {
	b, _ := json.Marshal(models.SentimentPayload{Score: score, Confidence: 0.9, Timestamp: "2026-02-01T10:00:00Z"})
	return b
}

func indicatorsMsg(rsi, macd, bb string) []byte {
	b, _ := json.Marshal(models.IndicatorsPayload{RSISignal: rsi, MACDSignal: macd, BBSignal: bb, Timestamp: "2026-02-01T10:00:00Z"})
	return b
}

func regimeMsg(rt string, confidence float64) []byte {
	b, _ := json.Marshal(models.RegimePayload{RegimeType: rt, Confidence: confidence, Volatility: 0.1, TrendStrength: 0.5, Timestamp: "2026-02-01T10:00:00Z"})
	return b
}

func eventMsg(id, et string, severity float64) []byte {
	b, _ := json.Marshal(models.EventPayload{ID: id, ArticleID: "a1", EventType: et, Severity: severity, Keywords: []string{"k"}, Timestamp: "2026-02-01T10:00:00Z"})
	return b
}

func TestAggregatorIncompleteStateProducesNoSignal(t *testing.T) {
	sender := &captureSender{}
	agg := newTestAggregator(t, sender, nil)

	ctx := context.Background()
	require.NoError(t, agg.handleMessage(ctx, bus.ChannelSentiment, sentimentMsg(0.6)))

	assert.Nil(t, agg.AggregateData())
	assert.Empty(t, sender.signals())
}

func TestAggregatorEmitsOnceStateComplete(t *testing.T) {
	sender := &captureSender{}
	store := &memoryStore{}
	agg := newTestAggregator(t, sender, store)

	ctx := context.Background()
	require.NoError(t, agg.handleMessage(ctx, bus.ChannelSentiment, sentimentMsg(0.6)))
	require.NoError(t, agg.handleMessage(ctx, bus.ChannelIndicators, indicatorsMsg("oversold", "bullish_cross", "neutral")))
	assert.Empty(t, sender.signals())

	require.NoError(t, agg.handleMessage(ctx, bus.ChannelRegime, regimeMsg("trending_up", 0.8)))

	sent := sender.signals()
	require.Len(t, sent, 1)
	assert.Equal(t, bus.ChannelSignals, sent[0].Channel)

	var payload models.SignalPayload
	require.NoError(t, json.Unmarshal(sent[0].Payload, &payload))
	assert.Equal(t, "buy", payload.SignalType)
	assert.InDelta(t, 67.33, payload.CMSScore, 0.01)

	require.Len(t, store.signals, 1)
	assert.Equal(t, models.SignalBuy, store.signals[0].SignalType)
}

func TestAggregatorRegeneratesOnEveryUpdate(t *testing.T) {
	sender := &captureSender{}
	agg := newTestAggregator(t, sender, nil)

	ctx := context.Background()
	require.NoError(t, agg.handleMessage(ctx, bus.ChannelSentiment, sentimentMsg(0.6)))
	require.NoError(t, agg.handleMessage(ctx, bus.ChannelIndicators, indicatorsMsg("oversold", "bullish_cross", "neutral")))
	require.NoError(t, agg.handleMessage(ctx, bus.ChannelRegime, regimeMsg("trending_up", 0.8)))
	require.NoError(t, agg.handleMessage(ctx, bus.ChannelSentiment, sentimentMsg(0.6)))

	// Identical state emits an identical signal; dedup is downstream.
	require.Len(t, sender.signals(), 2)
}

func TestAggregatorEventRingEvictsOldest(t *testing.T) {
	agg := newTestAggregator(t, &captureSender{}, nil)

	ctx := context.Background()
	for i := 0; i < 12; i++ {
		require.NoError(t, agg.handleMessage(ctx, bus.ChannelEvents, eventMsg(
			string(rune('a'+i)), "earnings", 0.5)))
	}

	agg.mu.Lock()
	defer agg.mu.Unlock()
	require.Len(t, agg.recentEvents, 10)
	assert.Equal(t, "c", agg.recentEvents[0].ID)
	assert.Equal(t, "l", agg.recentEvents[9].ID)
}

func TestAggregatorRejectsBadPayloads(t *testing.T) {
	agg := newTestAggregator(t, &captureSender{}, nil)

	ctx := context.Background()
	assert.Error(t, agg.handleMessage(ctx, bus.ChannelRegime, []byte(`{"regime_type":"sideways"}`)))
	assert.Error(t, agg.handleMessage(ctx, bus.ChannelIndicators, []byte(`{"rsi_signal":"wat","macd_signal":"neutral","bb_signal":"neutral"}`)))
	assert.Error(t, agg.handleMessage(ctx, bus.ChannelEvents, []byte(`{"event_type":"meteor"}`)))
	assert.Error(t, agg.handleMessage(ctx, "mystery", []byte(`{}`)))

	assert.Nil(t, agg.AggregateData())
}

func TestAggregatorStoreFailureDoesNotBlockSignal(t *testing.T) {
	sender := &captureSender{}
	store := &memoryStore{err: errors.New("clickhouse down")}
	agg := newTestAggregator(t, sender, store)

	ctx := context.Background()
	require.NoError(t, agg.handleMessage(ctx, bus.ChannelSentiment, sentimentMsg(0.6)))
	require.NoError(t, agg.handleMessage(ctx, bus.ChannelIndicators, indicatorsMsg("oversold", "bullish_cross", "neutral")))
	require.NoError(t, agg.handleMessage(ctx, bus.ChannelRegime, regimeMsg("trending_up", 0.8)))

	assert.Len(t, sender.signals(), 1)
	assert.Empty(t, store.signals)
}

func TestAggregatorSnapshotIsConsistentUnderConcurrentWrites(t *testing.T) {
	agg := newTestAggregator(t, &captureSender{}, nil)
	ctx := context.Background()

	require.NoError(t, agg.handleMessage(ctx, bus.ChannelSentiment, sentimentMsg(0.5)))
	require.NoError(t, agg.handleMessage(ctx, bus.ChannelIndicators, indicatorsMsg("neutral", "neutral", "neutral")))
	require.NoError(t, agg.handleMessage(ctx, bus.ChannelRegime, regimeMsg("ranging", 0.5)))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = agg.handleMessage(ctx, bus.ChannelSentiment, sentimentMsg(0.5))
				_ = agg.handleMessage(ctx, bus.ChannelRegime, regimeMsg("ranging", 0.5))
			}
		}()
	}
	for i := 0; i < 100; i++ {
		data := agg.AggregateData()
		require.NotNil(t, data)
		require.Equal(t, 0.5, data.SentimentScore)
		require.Equal(t, models.RegimeRanging, data.Regime.RegimeType)
	}
	wg.Wait()
}

func TestAggregatorLifecycle(t *testing.T) {
	agg := newTestAggregator(t, &captureSender{}, nil)

	done := make(chan error, 1)
	go func() { done <- agg.Listen(context.Background()) }()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, agg.Stop())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("listen did not stop")
	}

	// Stop is idempotent.
	assert.NoError(t, agg.Stop())
}
