package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"PriceKeeper/internal/model"
)

// PostgresStore persists price records to PostgreSQL. Concurrent writers for
// the same (symbol, data_date) are serialised by ON CONFLICT.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPostgresStore connects to url, verifies the connection and ensures the schema.
func NewPostgresStore(ctx context.Context, url string, maxConns int32, opts ...Option) (*PostgresStore, error) {
	o := buildOptions(opts)

	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if maxConns > 0 {
		poolConfig.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &PostgresStore{pool: pool, now: o.now}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().
		Str("host", poolConfig.ConnConfig.Host).
		Str("database", poolConfig.ConnConfig.Database).
		Msg("postgres store opened")
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS stock_data (
			id         BIGSERIAL   PRIMARY KEY,
			symbol     VARCHAR(20) NOT NULL,
			price      NUMERIC     NOT NULL,
			volume     BIGINT,
			data_date  DATE        NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (symbol, data_date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_stock_data_date ON stock_data(data_date)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

// price is selected as text and parsed so NUMERIC precision survives intact.
const pgColumns = `id, symbol, price::text, volume, data_date, created_at, updated_at`

func scanPgRecord(row pgx.Row) (*model.PriceRecord, error) {
	var (
		rec   model.PriceRecord
		price string
	)
	if err := row.Scan(&rec.ID, &rec.Symbol, &price, &rec.Volume, &rec.Date, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	p, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("decode price %q: %w", price, err)
	}
	rec.Price = p
	rec.Date = model.Day(rec.Date)
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return &rec, nil
}

func (s *PostgresStore) queryOne(ctx context.Context, op, symbol, query string, args ...any) (*model.PriceRecord, error) {
	rec, err := scanPgRecord(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, model.StorageFailure(op, symbol, err)
	}
	return rec, nil
}

func (s *PostgresStore) Latest(ctx context.Context, symbol string) (*model.PriceRecord, error) {
	symbol = model.NormalizeSymbol(symbol)
	return s.queryOne(ctx, "latest", symbol,
		`SELECT `+pgColumns+` FROM stock_data WHERE symbol = $1 ORDER BY data_date DESC LIMIT 1`,
		symbol)
}

func (s *PostgresStore) ByDate(ctx context.Context, symbol, date string) (*model.PriceRecord, error) {
	d, err := model.ParseDate(date)
	if err != nil {
		return nil, err
	}
	symbol = model.NormalizeSymbol(symbol)
	return s.queryOne(ctx, "get by date", symbol,
		`SELECT `+pgColumns+` FROM stock_data WHERE symbol = $1 AND data_date = $2`,
		symbol, d)
}

func (s *PostgresStore) Range(ctx context.Context, symbol, start, end string) ([]model.PriceRecord, error) {
	from, to, err := parseRange(start, end)
	if err != nil {
		return nil, err
	}
	symbol = model.NormalizeSymbol(symbol)

	rows, err := s.pool.Query(ctx,
		`SELECT `+pgColumns+` FROM stock_data
		 WHERE symbol = $1 AND data_date >= $2 AND data_date <= $3
		 ORDER BY data_date ASC`,
		symbol, from, to)
	if err != nil {
		return nil, model.StorageFailure("range", symbol, err)
	}
	defer rows.Close()

	records := []model.PriceRecord{}
	for rows.Next() {
		rec, err := scanPgRecord(rows)
		if err != nil {
			return nil, model.StorageFailure("range", symbol, err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, model.StorageFailure("range", symbol, err)
	}
	return records, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, symbol string, price decimal.Decimal, volume *int64, date string) (*model.PriceRecord, error) {
	d, err := model.ParseDate(date)
	if err != nil {
		return nil, err
	}
	symbol = model.NormalizeSymbol(symbol)
	now := s.now().UTC()

	rec, err := scanPgRecord(s.pool.QueryRow(ctx,
		`INSERT INTO stock_data (symbol, price, volume, data_date, created_at, updated_at)
		 VALUES ($1, $2::numeric, $3, $4, $5, $5)
		 ON CONFLICT (symbol, data_date) DO UPDATE SET
			price      = EXCLUDED.price,
			volume     = EXCLUDED.volume,
			updated_at = EXCLUDED.updated_at
		 RETURNING `+pgColumns,
		symbol, price.String(), volume, d, now))
	if err != nil {
		return nil, model.StorageFailure("upsert", symbol, err)
	}
	return rec, nil
}

func (s *PostgresStore) HasDataOn(ctx context.Context, symbol, date string) (bool, error) {
	d, err := model.ParseDate(date)
	if err != nil {
		return false, err
	}
	symbol = model.NormalizeSymbol(symbol)

	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM stock_data WHERE symbol = $1 AND data_date = $2)`,
		symbol, d).Scan(&exists); err != nil {
		return false, model.StorageFailure("has data", symbol, err)
	}
	return exists, nil
}

func (s *PostgresStore) DistinctSymbols(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT symbol FROM stock_data ORDER BY symbol`)
	if err != nil {
		return nil, model.StorageFailure("distinct symbols", "", err)
	}
	symbols, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, model.StorageFailure("distinct symbols", "", err)
	}
	if symbols == nil {
		symbols = []string{}
	}
	return symbols, nil
}

func (s *PostgresStore) LatestDate(ctx context.Context, symbol string) (time.Time, bool, error) {
	symbol = model.NormalizeSymbol(symbol)

	var d time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT data_date FROM stock_data WHERE symbol = $1 ORDER BY data_date DESC LIMIT 1`,
		symbol).Scan(&d)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, model.StorageFailure("latest date", symbol, err)
	}
	return model.Day(d), true, nil
}

func (s *PostgresStore) DeleteOlderThan(ctx context.Context, days int) (int64, error) {
	var (
		tag pgconn.CommandTag
		err error
	)
	if days <= 0 {
		tag, err = s.pool.Exec(ctx, `DELETE FROM stock_data`)
	} else {
		tag, err = s.pool.Exec(ctx, `DELETE FROM stock_data WHERE data_date < $1`, retentionCutoff(s.now(), days))
	}
	if err != nil {
		return 0, model.StorageFailure("delete", "", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) MissingDates(ctx context.Context, symbol, start, end string) ([]string, error) {
	from, to, err := parseRange(start, end)
	if err != nil {
		return nil, err
	}
	symbol = model.NormalizeSymbol(symbol)

	rows, err := s.pool.Query(ctx,
		`SELECT data_date FROM stock_data WHERE symbol = $1 AND data_date >= $2 AND data_date <= $3`,
		symbol, from, to)
	if err != nil {
		return nil, model.StorageFailure("missing dates", symbol, err)
	}
	dates, err := pgx.CollectRows(rows, pgx.RowTo[time.Time])
	if err != nil {
		return nil, model.StorageFailure("missing dates", symbol, err)
	}

	present := make(map[string]bool, len(dates))
	for _, d := range dates {
		present[model.FormatDate(d)] = true
	}
	return missingDates(from, to, present), nil
}

func (s *PostgresStore) Close() error {
	log.Info().Msg("closing postgres store")
	s.pool.Close()
	return nil
}
