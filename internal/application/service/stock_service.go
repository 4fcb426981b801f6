package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"quotewatch/internal/application/port"
	"quotewatch/internal/domain/model"
	dsvc "quotewatch/internal/domain/service"
)

// LiveQuotes 实时行情表
type LiveQuotes interface {
	CurrentList() []model.Stock
	Get(symbol string) (model.Stock, bool)
}

// StockService 本地股票列表查询（记录表 + 实时行情表）
type StockService struct {
	records port.RecordStore
	live    LiveQuotes // 可为 nil
}

func NewStockService(records port.RecordStore, live LiveQuotes) *StockService {
	return &StockService{records: records, live: live}
}

// All 合并后的全部股票：实时行情覆盖本地记录，按代号排序
func (s *StockService) All(ctx context.Context) ([]model.Stock, error) {
	recs, err := s.records.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list stocks: %v", port.ErrPersistence, err)
	}

	bySym := make(map[string]model.Stock, len(recs))
	for _, r := range recs {
		bySym[r.Stock.Symbol] = r.Stock
	}
	if s.live != nil {
		for _, q := range s.live.CurrentList() {
			if old, ok := bySym[q.Symbol]; ok && old.IsUserFavorite {
				q.IsUserFavorite = true
			}
			bySym[q.Symbol] = q
		}
	}

	out := make([]model.Stock, 0, len(bySym))
	for _, v := range bySym {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

// Get 单个代号：实时行情优先，其次本地记录；都没有时返回 (nil, nil)
func (s *StockService) Get(ctx context.Context, symbol string) (*model.Stock, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	rec, err := s.records.Get(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", port.ErrPersistence, symbol, err)
	}
	if s.live != nil {
		if q, ok := s.live.Get(symbol); ok {
			if rec != nil && rec.Stock.IsUserFavorite {
				q.IsUserFavorite = true
			}
			return &q, nil
		}
	}
	if rec == nil {
		return nil, nil
	}
	st := rec.Stock
	return &st, nil
}

// UserStocks 自选股，过滤空代号，按价格降序
func (s *StockService) UserStocks(ctx context.Context) ([]model.Stock, error) {
	all, err := s.All(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]model.Stock, 0, len(all))
	for _, st := range all {
		if !st.IsUserFavorite || strings.TrimSpace(st.Symbol) == "" {
			continue
		}
		out = append(out, st)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Price > out[j].Price })
	return out, nil
}

// HotStocks 量大且涨幅大的股票，按评分降序
func (s *StockService) HotStocks(ctx context.Context) ([]model.Stock, error) {
	all, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	var out []model.Stock
	for _, st := range all {
		if dsvc.IsHotStock(st) {
			out = append(out, st)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return dsvc.StockScore(out[i]) > dsvc.StockScore(out[j]) })
	return out, nil
}

// Interesting 自选或热门，按评分降序
func (s *StockService) Interesting(ctx context.Context) ([]model.Stock, error) {
	all, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	out := dsvc.FilterUserInterested(all)
	sort.SliceStable(out, func(i, j int) bool { return dsvc.StockScore(out[i]) > dsvc.StockScore(out[j]) })
	return out, nil
}
