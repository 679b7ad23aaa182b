package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"SigFuse/internal/domain/models"
	domrepo "SigFuse/internal/domain/repository"
	"SigFuse/internal/usecase"
	"SigFuse/pkg/bus"
	"SigFuse/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type okSender struct{}

func (okSender) Send(context.Context, string, []byte) error { return nil }

type idleReceiver struct{}

func (idleReceiver) Subscribe(context.Context, ...string) error   { return nil }
func (idleReceiver) Unsubscribe(context.Context, ...string) error { return nil }
func (idleReceiver) Receive(_ context.Context, timeout time.Duration) (*bus.Delivery, error) {
	time.Sleep(timeout)
	return nil, nil
}
func (idleReceiver) Close() error { return nil }

type recordingStore struct {
	signals   []*models.TradingSignal
	lastLimit int
}

func (s *recordingStore) Init(context.Context) error { return nil }
func (s *recordingStore) Store(context.Context, *models.TradingSignal) error {
	return nil
}
func (s *recordingStore) Recent(_ context.Context, limit int) ([]*models.TradingSignal, error) {
	s.lastLimit = limit
	return s.signals, nil
}
func (s *recordingStore) Health(context.Context) error { return nil }
func (s *recordingStore) Close() error                 { return nil }

type quietMetrics struct{}

func (quietMetrics) RecordSignal(string)           {}
func (quietMetrics) RecordCMS(float64)             {}
func (quietMetrics) RecordInput(string)            {}
func (quietMetrics) RecordIncomplete(string)       {}
func (quietMetrics) RecordError(string)            {}
func (quietMetrics) RecordLatency(string, float64) {}

func newTestHandler(t *testing.T, store *recordingStore) (*SignalsHandler, *echo.Echo) {
	t.Helper()

	client, err := bus.NewClient(bus.Config{}, logger.Nop(),
		bus.WithSender(okSender{}),
		bus.WithDialFunc(func(context.Context) error { return nil }))
	require.NoError(t, err)

	sub := bus.NewSubscriber(logger.Nop(), idleReceiver{}, time.Millisecond)
	agg, err := usecase.NewAggregator(usecase.AggregatorConfig{
		WeightSentiment: 0.3,
		WeightTechnical: 0.5,
		WeightRegime:    0.2,
		BuyThreshold:    60,
		SellThreshold:   -60,
	}, logger.Nop(), client.Publisher(), sub, nil, nil, quietMetrics{})
	require.NoError(t, err)

	var sigStore domrepo.SignalStore
	if store != nil {
		sigStore = store
	}

	h := NewSignalsHandler(logger.Nop(), agg, client, sigStore, nil)
	e := echo.New()
	h.RegisterRoutes(e)
	return h, e
}

func doGET(e *echo.Echo, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestStatusReportsChannelCatalog(t *testing.T) {
	_, e := newTestHandler(t, nil)

	rec := doGET(e, "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			Channels []string        `json:"channels"`
			Inputs   map[string]bool `json:"inputs"`
			Store    string          `json:"store"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.Equal(t, []string{"sentiment", "events", "indicators", "regime", "signals"}, body.Data.Channels)
	assert.Equal(t, "disabled", body.Data.Store)
	for ch, ready := range body.Data.Inputs {
		assert.False(t, ready, "channel %s should not be ready", ch)
	}
}

func TestRecentRejectsOutOfRangeLimit(t *testing.T) {
	_, e := newTestHandler(t, &recordingStore{})

	for _, target := range []string{
		"/api/signals/recent?limit=5000",
		"/api/signals/recent?limit=-1",
	} {
		rec := doGET(e, target)

		var body struct {
			Status int `json:"status"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, http.StatusBadRequest, body.Status, "target %s", target)
	}
}

func TestRecentAppliesDefaultLimit(t *testing.T) {
	store := &recordingStore{}
	_, e := newTestHandler(t, store)

	rec := doGET(e, "/api/signals/recent")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 100, store.lastLimit)
}

func TestRecentReturnsStoredSignals(t *testing.T) {
	ts := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	store := &recordingStore{signals: []*models.TradingSignal{
		{SignalType: models.SignalBuy, Confidence: 0.7, Timestamp: ts},
		{SignalType: models.SignalHold, Confidence: 0.4, Timestamp: ts},
	}}
	_, e := newTestHandler(t, store)

	rec := doGET(e, "/api/signals/recent?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, store.lastLimit)

	var body struct {
		Data []models.SignalPayload `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 2)
	assert.Equal(t, "buy", body.Data[0].SignalType)
	assert.Equal(t, "hold", body.Data[1].SignalType)
}
