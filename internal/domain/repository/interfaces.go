package repository

import (
	"context"

	"SigFuse/internal/domain/models"
)

// SignalStore is the append-only log of emitted trading signals.
type SignalStore interface {
	Init(ctx context.Context) error // ensure tables, health checks
	Store(ctx context.Context, s *models.TradingSignal) error
	Recent(ctx context.Context, limit int) ([]*models.TradingSignal, error)
	Health(ctx context.Context) error
	Close() error
}

// SignalSink mirrors emitted signals to an external audit stream.
type SignalSink interface {
	Emit(ctx context.Context, s *models.TradingSignal) error
	Close() error
}

// Metrics records domain-level observability events.
type Metrics interface {
	RecordSignal(signalType string)
	RecordCMS(score float64)
	RecordInput(channel string)
	RecordIncomplete(missing string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
