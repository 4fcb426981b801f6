package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"quotewatch/internal/application/port"
	"quotewatch/internal/domain/model"
)

type Repo struct {
	db *sql.DB
}

func New(dsn string) (*Repo, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	r := &Repo{db: db}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS stocks (
  symbol TEXT PRIMARY KEY,
  data JSONB NOT NULL,
  is_user_selected BOOLEAN NOT NULL DEFAULT FALSE,
  is_default BOOLEAN NOT NULL DEFAULT FALSE,
  created_at BIGINT NOT NULL,
  updated_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_stocks_selected ON stocks(is_user_selected);

CREATE TABLE IF NOT EXISTS user_symbols (
  symbol TEXT PRIMARY KEY,
  position INTEGER NOT NULL,
  created_at BIGINT NOT NULL
);
`)
	return err
}

const selectStock = `SELECT symbol, data, is_user_selected, is_default, created_at, updated_at FROM stocks`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (model.StockRecord, error) {
	var (
		rec    model.StockRecord
		symbol string
		data   []byte
	)
	if err := row.Scan(&symbol, &data, &rec.Stock.IsUserFavorite, &rec.IsDefault, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return rec, err
	}
	fav := rec.Stock.IsUserFavorite
	if err := json.Unmarshal(data, &rec.Stock); err != nil {
		return rec, fmt.Errorf("decode stock %s: %w", symbol, err)
	}
	rec.Stock.Symbol = symbol
	rec.Stock.IsUserFavorite = fav
	return rec, nil
}

func (r *Repo) Get(ctx context.Context, symbol string) (*model.StockRecord, error) {
	rec, err := scanRecord(r.db.QueryRowContext(ctx, selectStock+` WHERE symbol=$1`, symbol))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *Repo) Put(ctx context.Context, rec model.StockRecord) error {
	data, err := json.Marshal(rec.Stock)
	if err != nil {
		return err
	}
	if rec.CreatedAt == 0 {
		rec.CreatedAt = time.Now().UnixMilli()
	}
	if rec.UpdatedAt == 0 {
		rec.UpdatedAt = rec.CreatedAt
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO stocks(symbol, data, is_user_selected, is_default, created_at, updated_at)
		VALUES($1, $2, $3, $4, $5, $6)
		ON CONFLICT(symbol) DO UPDATE SET
		data=EXCLUDED.data, is_user_selected=EXCLUDED.is_user_selected,
		is_default=EXCLUDED.is_default, updated_at=EXCLUDED.updated_at
	`, rec.Stock.Symbol, string(data), rec.Stock.IsUserFavorite, rec.IsDefault, rec.CreatedAt, rec.UpdatedAt)
	return err
}

func (r *Repo) Delete(ctx context.Context, symbol string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM stocks WHERE symbol=$1`, symbol)
	return err
}

func (r *Repo) ListAll(ctx context.Context) ([]model.StockRecord, error) {
	return r.list(ctx, selectStock+` ORDER BY symbol`)
}

func (r *Repo) ListFavorites(ctx context.Context) ([]model.StockRecord, error) {
	return r.list(ctx, selectStock+` WHERE is_user_selected ORDER BY symbol`)
}

func (r *Repo) list(ctx context.Context, query string) ([]model.StockRecord, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.StockRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *Repo) UpsertQuote(ctx context.Context, s model.Stock, ts int64) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO stocks(symbol, data, created_at, updated_at)
		VALUES($1, $2, $3, $3)
		ON CONFLICT(symbol) DO UPDATE SET
		data=EXCLUDED.data, updated_at=EXCLUDED.updated_at
	`, s.Symbol, string(data), ts)
	return err
}

func (r *Repo) MarkFavorite(ctx context.Context, symbol string, favorite bool, ts int64) error {
	data, err := json.Marshal(model.Stock{Symbol: symbol})
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO stocks(symbol, data, is_user_selected, created_at, updated_at)
		VALUES($1, $2, $3, $4, $4)
		ON CONFLICT(symbol) DO UPDATE SET
		is_user_selected=EXCLUDED.is_user_selected, updated_at=EXCLUDED.updated_at
	`, symbol, string(data), favorite, ts)
	return err
}

func (r *Repo) Read(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT symbol FROM user_symbols ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repo) Write(ctx context.Context, symbols []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_symbols`); err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	for i, s := range symbols {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO user_symbols(symbol, position, created_at) VALUES($1, $2, $3) ON CONFLICT(symbol) DO NOTHING`,
			s, i, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

var (
	_ port.RecordStore     = (*Repo)(nil)
	_ port.PreferenceStore = (*Repo)(nil)
)
