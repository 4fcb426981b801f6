package service

import (
	"context"
	"errors"
	"sort"
	"sync"

	"quotewatch/internal/application/port"
	"quotewatch/internal/domain/model"
)

type mockRecords struct {
	mu      sync.Mutex
	recs    map[string]model.StockRecord
	failPut bool
	upserts int
}

func newMockRecords() *mockRecords {
	return &mockRecords{recs: make(map[string]model.StockRecord)}
}

func (m *mockRecords) Get(ctx context.Context, symbol string) (*model.StockRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recs[symbol]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *mockRecords) Put(ctx context.Context, rec model.StockRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[rec.Stock.Symbol] = rec
	return nil
}

func (m *mockRecords) Delete(ctx context.Context, symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.recs, symbol)
	return nil
}

func (m *mockRecords) ListAll(ctx context.Context) ([]model.StockRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.StockRecord, 0, len(m.recs))
	for _, r := range m.recs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Stock.Symbol < out[j].Stock.Symbol })
	return out, nil
}

func (m *mockRecords) ListFavorites(ctx context.Context) ([]model.StockRecord, error) {
	all, _ := m.ListAll(ctx)
	var out []model.StockRecord
	for _, r := range all {
		if r.Stock.IsUserFavorite {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockRecords) UpsertQuote(ctx context.Context, s model.Stock, ts int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPut {
		return errors.New("disk full")
	}
	m.upserts++
	old, ok := m.recs[s.Symbol]
	if ok {
		s.IsUserFavorite = old.Stock.IsUserFavorite
	} else {
		old.CreatedAt = ts
	}
	m.recs[s.Symbol] = model.StockRecord{Stock: s, IsDefault: old.IsDefault, CreatedAt: old.CreatedAt, UpdatedAt: ts}
	return nil
}

func (m *mockRecords) MarkFavorite(ctx context.Context, symbol string, favorite bool, ts int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recs[symbol]
	if !ok {
		r = model.StockRecord{Stock: model.Stock{Symbol: symbol}, CreatedAt: ts}
	}
	r.Stock.IsUserFavorite = favorite
	r.UpdatedAt = ts
	m.recs[symbol] = r
	return nil
}

func (m *mockRecords) Close() error { return nil }

type mockPrefs struct {
	syms     []string
	failRead bool
}

func (m *mockPrefs) Read(ctx context.Context) ([]string, error) {
	if m.failRead {
		return nil, errors.New("read failed")
	}
	return append([]string(nil), m.syms...), nil
}

func (m *mockPrefs) Write(ctx context.Context, symbols []string) error {
	m.syms = append([]string(nil), symbols...)
	return nil
}

type mockView struct{ favs []string }

func (m *mockView) SetFavorites(symbols []string) { m.favs = symbols }

type mockLive struct{ list []model.Stock }

func (m *mockLive) CurrentList() []model.Stock { return m.list }

func (m *mockLive) Get(symbol string) (model.Stock, bool) {
	for _, s := range m.list {
		if s.Symbol == symbol {
			return s, true
		}
	}
	return model.Stock{}, false
}

type mockQuoteClient struct {
	results map[string]port.Result[model.QuoteResponse]
}

func (m *mockQuoteClient) GetQuote(ctx context.Context, symbol string) port.Result[model.QuoteResponse] {
	if r, ok := m.results[symbol]; ok {
		return r
	}
	return port.Empty[model.QuoteResponse]()
}

func (m *mockQuoteClient) GetTrades(ctx context.Context, symbol, date string, limit int) port.Result[model.TradesResponse] {
	return port.Success(model.TradesResponse{Symbol: symbol, Date: date})
}

type mockCache struct {
	mu        sync.Mutex
	cached    int
	published int
	states    []string
}

func (m *mockCache) CacheQuotes(ctx context.Context, stocks []model.Stock) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cached += len(stocks)
	return nil
}

func (m *mockCache) PublishQuotes(ctx context.Context, stocks []model.Stock) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published++
	return nil
}

func (m *mockCache) RecordState(ctx context.Context, state, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = append(m.states, state)
	return nil
}

var (
	_ port.RecordStore     = (*mockRecords)(nil)
	_ port.PreferenceStore = (*mockPrefs)(nil)
	_ port.QuoteClient     = (*mockQuoteClient)(nil)
	_ port.QuoteCache      = (*mockCache)(nil)
)
