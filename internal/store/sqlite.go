package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"PriceKeeper/internal/model"
)

// SQLiteStore persists price records to a SQLite database. Prices are stored
// as decimal text so no binary floating point is involved.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) the SQLite database and runs migrations.
func NewSQLiteStore(dbPath string, opts ...Option) (*SQLiteStore, error) {
	o := buildOptions(opts)

	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	// busy_timeout applies per connection, so it goes in the DSN.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, now: o.now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite store opened")
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS stock_data (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol     TEXT    NOT NULL,
			price      TEXT    NOT NULL,
			volume     INTEGER,
			data_date  TEXT    NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			UNIQUE (symbol, data_date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_stock_data_date ON stock_data(data_date)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

const sqliteColumns = `id, symbol, price, volume, data_date, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRecord(row rowScanner) (*model.PriceRecord, error) {
	var (
		rec                  model.PriceRecord
		price, date          string
		volume               sql.NullInt64
		createdAt, updatedAt int64
	)
	if err := row.Scan(&rec.ID, &rec.Symbol, &price, &volume, &date, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	p, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("decode price %q: %w", price, err)
	}
	d, err := time.Parse(model.DateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("decode date %q: %w", date, err)
	}
	rec.Price = p
	rec.Date = d
	if volume.Valid {
		v := volume.Int64
		rec.Volume = &v
	}
	rec.CreatedAt = time.Unix(0, createdAt).UTC()
	rec.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return &rec, nil
}

func (s *SQLiteStore) queryOne(ctx context.Context, op, symbol, query string, args ...any) (*model.PriceRecord, error) {
	rec, err := scanSQLiteRecord(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, model.StorageFailure(op, symbol, err)
	}
	return rec, nil
}

func (s *SQLiteStore) Latest(ctx context.Context, symbol string) (*model.PriceRecord, error) {
	symbol = model.NormalizeSymbol(symbol)
	return s.queryOne(ctx, "latest", symbol,
		`SELECT `+sqliteColumns+` FROM stock_data WHERE symbol = ? ORDER BY data_date DESC LIMIT 1`,
		symbol)
}

func (s *SQLiteStore) ByDate(ctx context.Context, symbol, date string) (*model.PriceRecord, error) {
	d, err := model.ParseDate(date)
	if err != nil {
		return nil, err
	}
	symbol = model.NormalizeSymbol(symbol)
	return s.queryOne(ctx, "get by date", symbol,
		`SELECT `+sqliteColumns+` FROM stock_data WHERE symbol = ? AND data_date = ?`,
		symbol, model.FormatDate(d))
}

func (s *SQLiteStore) Range(ctx context.Context, symbol, start, end string) ([]model.PriceRecord, error) {
	from, to, err := parseRange(start, end)
	if err != nil {
		return nil, err
	}
	symbol = model.NormalizeSymbol(symbol)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteColumns+` FROM stock_data
		 WHERE symbol = ? AND data_date >= ? AND data_date <= ?
		 ORDER BY data_date ASC`,
		symbol, model.FormatDate(from), model.FormatDate(to))
	if err != nil {
		return nil, model.StorageFailure("range", symbol, err)
	}
	defer rows.Close()

	records := []model.PriceRecord{}
	for rows.Next() {
		rec, err := scanSQLiteRecord(rows)
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

func (s *SQLiteStore) Upsert(ctx context.Context, symbol string, price decimal.Decimal, volume *int64, date string) (*model.PriceRecord, error) {
	d, err := model.ParseDate(date)
	if err != nil {
		return nil, err
	}
	symbol = model.NormalizeSymbol(symbol)

	var vol sql.NullInt64
	if volume != nil {
		vol = sql.NullInt64{Int64: *volume, Valid: true}
	}
	now := s.now().UnixNano()

	rec, err := scanSQLiteRecord(s.db.QueryRowContext(ctx,
		`INSERT INTO stock_data (symbol, price, volume, data_date, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (symbol, data_date) DO UPDATE SET
			price      = excluded.price,
			volume     = excluded.volume,
			updated_at = excluded.updated_at
		 RETURNING `+sqliteColumns,
		symbol, price.String(), vol, model.FormatDate(d), now, now))
	if err != nil {
		return nil, model.StorageFailure("upsert", symbol, err)
	}
	return rec, nil
}

func (s *SQLiteStore) HasDataOn(ctx context.Context, symbol, date string) (bool, error) {
	d, err := model.ParseDate(date)
	if err != nil {
		return false, err
	}
	symbol = model.NormalizeSymbol(symbol)

	var count int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM stock_data WHERE symbol = ? AND data_date = ?`,
		symbol, model.FormatDate(d)).Scan(&count); err != nil {
		return false, model.StorageFailure("has data", symbol, err)
	}
	return count > 0, nil
}

func (s *SQLiteStore) DistinctSymbols(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT symbol FROM stock_data ORDER BY symbol`)
	if err != nil {
		return nil, model.StorageFailure("distinct symbols", "", err)
	}
	defer rows.Close()

	symbols := []string{}
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, model.StorageFailure("distinct symbols", "", err)
		}
		symbols = append(symbols, sym)
	}
	if err := rows.Err(); err != nil {
		return nil, model.StorageFailure("distinct symbols", "", err)
	}
	return symbols, nil
}

func (s *SQLiteStore) LatestDate(ctx context.Context, symbol string) (time.Time, bool, error) {
	symbol = model.NormalizeSymbol(symbol)

	var date string
	err := s.db.QueryRowContext(ctx,
		`SELECT data_date FROM stock_data WHERE symbol = ? ORDER BY data_date DESC LIMIT 1`,
		symbol).Scan(&date)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, model.StorageFailure("latest date", symbol, err)
	}
	d, err := time.Parse(model.DateLayout, date)
	if err != nil {
		return time.Time{}, false, model.StorageFailure("latest date", symbol, err)
	}
	return d, true, nil
}

func (s *SQLiteStore) DeleteOlderThan(ctx context.Context, days int) (int64, error) {
	var (
		res sql.Result
		err error
	)
	if days <= 0 {
		res, err = s.db.ExecContext(ctx, `DELETE FROM stock_data`)
	} else {
		cutoff := retentionCutoff(s.now(), days)
		res, err = s.db.ExecContext(ctx, `DELETE FROM stock_data WHERE data_date < ?`, model.FormatDate(cutoff))
	}
	if err != nil {
		return 0, model.StorageFailure("delete", "", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, model.StorageFailure("delete", "", err)
	}
	return n, nil
}

func (s *SQLiteStore) MissingDates(ctx context.Context, symbol, start, end string) ([]string, error) {
	from, to, err := parseRange(start, end)
	if err != nil {
		return nil, err
	}
	symbol = model.NormalizeSymbol(symbol)

	rows, err := s.db.QueryContext(ctx,
		`SELECT data_date FROM stock_data WHERE symbol = ? AND data_date >= ? AND data_date <= ?`,
		symbol, model.FormatDate(from), model.FormatDate(to))
	if err != nil {
		return nil, model.StorageFailure("missing dates", symbol, err)
	}
	defer rows.Close()

	present := make(map[string]bool)
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, model.StorageFailure("missing dates", symbol, err)
		}
		present[d] = true
	}
	if err := rows.Err(); err != nil {
		return nil, model.StorageFailure("missing dates", symbol, err)
	}
	return missingDates(from, to, present), nil
}

func (s *SQLiteStore) Close() error {
	log.Info().Msg("closing sqlite store")
	return s.db.Close()
}
