package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"StratEq/internal/domain/models"
	pkgch "StratEq/pkg/clickhouse"
	applogger "StratEq/pkg/logger"
)

// Series names for the global gauges in market_features. Every other series
// name is interpreted as an actor's trailing return.
const (
	seriesStress = "VIX"
	seriesGold   = "Gold"
)

// CHFeatureStore implements FeatureStore backed by ClickHouse. The ingestion
// pipeline writes one (date, series, value) row per market series per day;
// this side only reads.
type CHFeatureStore struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHFeatureStore(ch *pkgch.Client, l *applogger.Logger) *CHFeatureStore {
	return &CHFeatureStore{db: ch.DB(), l: l}
}

// SchemaStatements returns the idempotent DDL for the feature table.
func SchemaStatements(database string) []string {
	return []string{
		fmt.Sprintf(`CREATE DATABASE IF NOT EXISTS %s`, database),
		fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s.market_features (
            d     Date,
            name  String,
            value Float64
        ) ENGINE = ReplacingMergeTree
        ORDER BY (d, name)
    `, database),
	}
}

// Features returns the feature vector for one date. A date with no rows, or
// without the stress gauge, wraps models.ErrDataUnavailable.
func (s *CHFeatureStore) Features(ctx context.Context, date time.Time) (*models.MarketFeatures, error) {
	const q = `
        SELECT name, value
        FROM market_features
        WHERE d = ?
    `
	rows, err := s.db.QueryContext(ctx, q, date.Format("2006-01-02"))
	if err != nil {
		s.l.Error("clickhouse features query error",
			applogger.String("date", date.Format("2006-01-02")),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("query features: %w", err)
	}
	defer rows.Close()

	features := &models.MarketFeatures{
		Date:    date,
		Returns: make(map[string]float64),
	}
	var hasStress bool
	for rows.Next() {
		var name string
		var value float64
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("scan feature row: %w", err)
		}
		switch name {
		case seriesStress:
			features.Stress = value
			hasStress = true
		case seriesGold:
			features.Gold = value
		default:
			features.Returns[name] = value
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("feature rows: %w", err)
	}

	if len(features.Returns) == 0 || !hasStress {
		return nil, models.DataUnavailableError(date)
	}
	return features, nil
}

func (s *CHFeatureStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the ClickHouse client owns the pool.
func (s *CHFeatureStore) Close() error { return nil }
