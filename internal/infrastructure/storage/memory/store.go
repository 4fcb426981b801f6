package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"quotewatch/internal/application/port"
	"quotewatch/internal/domain/model"
)

// Store 内存实现的 RecordStore + PreferenceStore，未启用任何持久化时使用
type Store struct {
	mu    sync.RWMutex
	recs  map[string]model.StockRecord
	prefs []string
}

func New() *Store {
	return &Store{recs: make(map[string]model.StockRecord)}
}

func (s *Store) Get(ctx context.Context, symbol string) (*model.StockRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.recs[symbol]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (s *Store) Put(ctx context.Context, rec model.StockRecord) error {
	if rec.CreatedAt == 0 {
		rec.CreatedAt = time.Now().UnixMilli()
	}
	if rec.UpdatedAt == 0 {
		rec.UpdatedAt = rec.CreatedAt
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.recs[rec.Stock.Symbol]; ok {
		rec.CreatedAt = old.CreatedAt
	}
	s.recs[rec.Stock.Symbol] = rec
	return nil
}

func (s *Store) Delete(ctx context.Context, symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.recs, symbol)
	return nil
}

func (s *Store) ListAll(ctx context.Context) ([]model.StockRecord, error) {
	return s.list(func(model.StockRecord) bool { return true }), nil
}

func (s *Store) ListFavorites(ctx context.Context) ([]model.StockRecord, error) {
	return s.list(func(r model.StockRecord) bool { return r.Stock.IsUserFavorite }), nil
}

func (s *Store) list(keep func(model.StockRecord) bool) []model.StockRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.StockRecord, 0, len(s.recs))
	for _, r := range s.recs {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Stock.Symbol < out[j].Stock.Symbol })
	return out
}

func (s *Store) UpsertQuote(ctx context.Context, st model.Stock, ts int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.recs[st.Symbol]
	if !ok {
		old.CreatedAt = ts
	}
	st.IsUserFavorite = old.Stock.IsUserFavorite
	s.recs[st.Symbol] = model.StockRecord{Stock: st, IsDefault: old.IsDefault, CreatedAt: old.CreatedAt, UpdatedAt: ts}
	return nil
}

func (s *Store) MarkFavorite(ctx context.Context, symbol string, favorite bool, ts int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.recs[symbol]
	if !ok {
		r = model.StockRecord{Stock: model.Stock{Symbol: symbol}, CreatedAt: ts}
	}
	r.Stock.IsUserFavorite = favorite
	r.UpdatedAt = ts
	s.recs[symbol] = r
	return nil
}

func (s *Store) Read(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.prefs...), nil
}

func (s *Store) Write(ctx context.Context, symbols []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs = append([]string(nil), symbols...)
	return nil
}

func (s *Store) Close() error { return nil }

var (
	_ port.RecordStore     = (*Store)(nil)
	_ port.PreferenceStore = (*Store)(nil)
)
