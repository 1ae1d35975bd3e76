package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"screener-alerts/internal/alert"
	"screener-alerts/internal/market"
)

const (
	createAlertHistorySQL = `CREATE TABLE IF NOT EXISTS alert_history (
        id          BIGSERIAL PRIMARY KEY,
        market      TEXT        NOT NULL,
        alert_date  DATE        NOT NULL,
        symbol      TEXT        NOT NULL,
        record      JSONB       NOT NULL,
        created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
        UNIQUE (market, alert_date, symbol)
    );`

	createSchedulerStateSQL = `CREATE TABLE IF NOT EXISTS scheduler_state (
        market     TEXT        PRIMARY KEY,
        state      JSONB       NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
    );`

	insertRecordSQL = `INSERT INTO alert_history (market, alert_date, symbol, record)
    VALUES ($1, $2, $3, $4)
    ON CONFLICT (market, alert_date, symbol) DO NOTHING;`

	selectDaySQL = `SELECT record FROM alert_history
    WHERE market = $1 AND alert_date = $2
    ORDER BY id;`

	selectRangeSQL = `SELECT record FROM alert_history
    WHERE market = $1 AND alert_date >= $2 AND alert_date <= $3
    ORDER BY alert_date, id;`

	selectForUpdateSQL = `SELECT record FROM alert_history
    WHERE market = $1 AND alert_date = $2 AND symbol = $3
    FOR UPDATE;`

	updateRecordSQL = `UPDATE alert_history SET record = $4
    WHERE market = $1 AND alert_date = $2 AND symbol = $3;`

	getStateSQL = `SELECT state FROM scheduler_state WHERE market = $1;`

	setStateSQL = `INSERT INTO scheduler_state (market, state, updated_at)
    VALUES ($1, $2, now())
    ON CONFLICT (market) DO UPDATE SET state = EXCLUDED.state, updated_at = now();`

	deleteOldSQL = `DELETE FROM alert_history WHERE market = $1 AND alert_date < $2;`
)

// PostgresConfig encapsulates connectivity for the postgres backend.
type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// NewPool configures a PostgreSQL connection pool from runtime settings.
func NewPool(ctx context.Context, cfg PostgresConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("storage.postgres.dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse storage dsn: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	return pool, nil
}

// PostgresStore persists records as JSONB rows keyed by
// (market, alert_date, symbol). The unique constraint plus
// ON CONFLICT DO NOTHING gives the conditional write Save requires, so
// two overlapping saves cannot both insert.
type PostgresStore struct {
	pool   *pgxpool.Pool
	window int
}

// NewPostgresStore wires a pgx pool into a store and ensures the schema.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool, trackingWindow int) (*PostgresStore, error) {
	s := &PostgresStore{pool: pool, window: trackingWindow}
	for _, stmt := range []string{createAlertHistorySQL, createSchedulerStateSQL} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return nil, fmt.Errorf("%w: ensure schema: %v", ErrStorageUnavailable, err)
		}
	}
	return s, nil
}

// Close releases the underlying pool resources.
func (s *PostgresStore) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// Save inserts the alert's record unless the key already exists.
func (s *PostgresStore) Save(ctx context.Context, a alert.Alert) (bool, error) {
	record := NewRecord(a)
	payload, err := json.Marshal(record)
	if err != nil {
		return false, fmt.Errorf("%w: encode record: %v", ErrStorageUnavailable, err)
	}

	tag, err := s.pool.Exec(ctx, insertRecordSQL, a.Market.String(), a.Date, a.Symbol, payload)
	if err != nil {
		return false, fmt.Errorf("%w: insert record: %v", ErrStorageUnavailable, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Load returns the day's records in insertion order.
func (s *PostgresStore) Load(ctx context.Context, m market.Market, date time.Time) ([]Record, error) {
	return s.queryRecords(ctx, selectDaySQL, m.String(), dayStart(date))
}

// LoadRange returns records with evaluation dates inside [start, end].
func (s *PostgresStore) LoadRange(ctx context.Context, m market.Market, start, end time.Time) ([]Record, error) {
	return s.queryRecords(ctx, selectRangeSQL, m.String(), dayStart(start), dayStart(end))
}

func (s *PostgresStore) queryRecords(ctx context.Context, sql string, args ...any) ([]Record, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query records: %v", ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("%w: scan record: %v", ErrStorageUnavailable, err)
		}
		var rec Record
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, fmt.Errorf("%w: decode record: %v", ErrStorageUnavailable, err)
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("%w: iterate records: %v", ErrStorageUnavailable, rows.Err())
	}
	return records, nil
}

// UpdateTracking applies a price sample inside a row-locked transaction
// so concurrent updates to one record cannot interleave.
func (s *PostgresStore) UpdateTracking(ctx context.Context, key Key, offset int, price decimal.Decimal) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin tracking update: %v", ErrStorageUnavailable, err)
	}
	defer tx.Rollback(ctx)

	var payload []byte
	err = tx.QueryRow(ctx, selectForUpdateSQL, key.Market.String(), dayStart(key.Date), key.Symbol).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrRecordNotFound, key)
		}
		return fmt.Errorf("%w: lock record: %v", ErrStorageUnavailable, err)
	}

	var rec Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return fmt.Errorf("%w: decode record: %v", ErrStorageUnavailable, err)
	}
	if err := rec.ApplySample(offset, s.window, price); err != nil {
		return err
	}

	updated, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: encode record: %v", ErrStorageUnavailable, err)
	}
	if _, err := tx.Exec(ctx, updateRecordSQL, key.Market.String(), dayStart(key.Date), key.Symbol, updated); err != nil {
		return fmt.Errorf("%w: update record: %v", ErrStorageUnavailable, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit tracking update: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// GetSchedulerState loads the market's persisted scheduler state.
func (s *PostgresStore) GetSchedulerState(ctx context.Context, m market.Market) (SchedulerState, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, getStateSQL, m.String()).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SchedulerState{SchemaVersion: SchemaVersion}, nil
		}
		return SchedulerState{}, fmt.Errorf("%w: query scheduler state: %v", ErrStorageUnavailable, err)
	}

	var state SchedulerState
	if err := json.Unmarshal(payload, &state); err != nil {
		return SchedulerState{}, fmt.Errorf("%w: decode scheduler state: %v", ErrStorageUnavailable, err)
	}
	return state, nil
}

// SetSchedulerState persists the market's scheduler state.
func (s *PostgresStore) SetSchedulerState(ctx context.Context, m market.Market, state SchedulerState) error {
	state.SchemaVersion = SchemaVersion
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("%w: encode scheduler state: %v", ErrStorageUnavailable, err)
	}
	if _, err := s.pool.Exec(ctx, setStateSQL, m.String(), payload); err != nil {
		return fmt.Errorf("%w: upsert scheduler state: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// ClearOld deletes records older than the cutoff date.
func (s *PostgresStore) ClearOld(ctx context.Context, m market.Market, olderThan time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, deleteOldSQL, m.String(), dayStart(olderThan))
	if err != nil {
		return 0, fmt.Errorf("%w: delete old records: %v", ErrStorageUnavailable, err)
	}
	return int(tag.RowsAffected()), nil
}

var _ Store = (*PostgresStore)(nil)
