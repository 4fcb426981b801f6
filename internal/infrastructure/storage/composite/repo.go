package composite

import (
	"context"

	"quotewatch/internal/application/port"
	"quotewatch/internal/domain/model"
)

// Repo 写入扇出到所有 store（返回第一个错误），读取走第一个 store
type Repo struct {
	repos []port.RecordStore
}

func New(repos ...port.RecordStore) *Repo {
	// nil repos are allowed; filter in constructor for safety
	out := make([]port.RecordStore, 0, len(repos))
	for _, r := range repos {
		if r != nil {
			out = append(out, r)
		}
	}
	return &Repo{repos: out}
}

func (r *Repo) Len() int { return len(r.repos) }

func (r *Repo) each(fn func(port.RecordStore) error) error {
	var firstErr error
	for _, repo := range r.repos {
		if err := fn(repo); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Repo) Get(ctx context.Context, symbol string) (*model.StockRecord, error) {
	if len(r.repos) == 0 {
		return nil, nil
	}
	return r.repos[0].Get(ctx, symbol)
}

func (r *Repo) ListAll(ctx context.Context) ([]model.StockRecord, error) {
	if len(r.repos) == 0 {
		return nil, nil
	}
	return r.repos[0].ListAll(ctx)
}

func (r *Repo) ListFavorites(ctx context.Context) ([]model.StockRecord, error) {
	if len(r.repos) == 0 {
		return nil, nil
	}
	return r.repos[0].ListFavorites(ctx)
}

func (r *Repo) Put(ctx context.Context, rec model.StockRecord) error {
	return r.each(func(s port.RecordStore) error { return s.Put(ctx, rec) })
}

func (r *Repo) Delete(ctx context.Context, symbol string) error {
	return r.each(func(s port.RecordStore) error { return s.Delete(ctx, symbol) })
}

func (r *Repo) UpsertQuote(ctx context.Context, st model.Stock, ts int64) error {
	return r.each(func(s port.RecordStore) error { return s.UpsertQuote(ctx, st, ts) })
}

func (r *Repo) MarkFavorite(ctx context.Context, symbol string, favorite bool, ts int64) error {
	return r.each(func(s port.RecordStore) error { return s.MarkFavorite(ctx, symbol, favorite, ts) })
}

func (r *Repo) Close() error {
	return r.each(func(s port.RecordStore) error { return s.Close() })
}

var _ port.RecordStore = (*Repo)(nil)
