package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"SigFuse/internal/domain/models"
	domrepo "SigFuse/internal/domain/repository"

	"github.com/google/uuid"
)

// schemaStatements create the append-only signal log. Idempotent.
func schemaStatements(table string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id String,
			ts DateTime64(3, 'UTC'),
			signal_type LowCardinality(String),
			cms_score Float64,
			sentiment_component Float64,
			technical_component Float64,
			regime_component Float64,
			confidence Float64,
			weights String,
			explanation String
		) ENGINE = MergeTree()
		ORDER BY ts`, table),
	}
}

// ClickHouseSignalStore persists emitted trading signals as an append-only
// log keyed by timestamp.
type ClickHouseSignalStore struct {
	db    *sql.DB
	table string
}

// NewClickHouseSignalStore creates the store over an existing pool.
func NewClickHouseSignalStore(db *sql.DB, table string) domrepo.SignalStore {
	if table == "" {
		table = "signals"
	}
	return &ClickHouseSignalStore{db: db, table: table}
}

func (s *ClickHouseSignalStore) Init(ctx context.Context) error {
	for _, stmt := range schemaStatements(s.table) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init signal schema: %w", err)
		}
	}
	return nil
}

func (s *ClickHouseSignalStore) Store(ctx context.Context, sig *models.TradingSignal) error {
	weights, err := json.Marshal(sig.CMS.Weights)
	if err != nil {
		return fmt.Errorf("marshal weights: %w", err)
	}
	explanation, err := json.Marshal(sig.Explanation)
	if err != nil {
		return fmt.Errorf("marshal explanation: %w", err)
	}

	q := fmt.Sprintf(`INSERT INTO %s
		(id, ts, signal_type, cms_score, sentiment_component, technical_component, regime_component, confidence, weights, explanation)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table)
	_, err = s.db.ExecContext(ctx, q,
		uuid.NewString(),
		sig.Timestamp,
		string(sig.SignalType),
		sig.CMS.Score,
		sig.CMS.SentimentComponent,
		sig.CMS.TechnicalComponent,
		sig.CMS.RegimeComponent,
		sig.Confidence,
		string(weights),
		string(explanation),
	)
	if err != nil {
		return fmt.Errorf("insert signal: %w", err)
	}
	return nil
}

func (s *ClickHouseSignalStore) Recent(ctx context.Context, limit int) ([]*models.TradingSignal, error) {
	if limit <= 0 {
		limit = 100
	}

	q := fmt.Sprintf(`SELECT ts, signal_type, cms_score, sentiment_component, technical_component, regime_component, confidence, weights, explanation
		FROM %s ORDER BY ts DESC LIMIT ?`, s.table)
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	var signals []*models.TradingSignal
	for rows.Next() {
		var (
			ts                           time.Time
			signalType                   string
			score, sent, tech, regime    float64
			confidence                   float64
			weightsJSON, explanationJSON string
		)
		if err := rows.Scan(&ts, &signalType, &score, &sent, &tech, &regime, &confidence, &weightsJSON, &explanationJSON); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}

		var weights map[string]float64
		if err := json.Unmarshal([]byte(weightsJSON), &weights); err != nil {
			return nil, fmt.Errorf("decode weights: %w", err)
		}
		var explanation models.Explanation
		if err := json.Unmarshal([]byte(explanationJSON), &explanation); err != nil {
			return nil, fmt.Errorf("decode explanation: %w", err)
		}

		signals = append(signals, &models.TradingSignal{
			SignalType: models.TradingSignalType(signalType),
			CMS: models.CompositeMarketScore{
				Score:              score,
				SentimentComponent: sent,
				TechnicalComponent: tech,
				RegimeComponent:    regime,
				Weights:            weights,
				Timestamp:          ts,
			},
			Confidence:  confidence,
			Explanation: explanation,
			Timestamp:   ts,
		})
	}
	return signals, rows.Err()
}

func (s *ClickHouseSignalStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseSignalStore) Close() error {
	return nil // pool is owned by pkg/clickhouse
}
