package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"quotewatch/internal/application/port"
	"quotewatch/internal/domain/model"
	"quotewatch/internal/domain/quote"
)

// 批量查询的整体状态
const (
	BatchSuccess = "success"
	BatchError   = "error"
)

const defaultFetchWorkers = 4

// QuoteItem 单个代号的查询结果
type QuoteItem struct {
	Symbol string
	Result port.Result[model.QuoteResponse]
	Stock  *model.Stock // 仅 Success 时有值
}

// BatchResult 批量查询结果：部分失败不影响其他代号
type BatchResult struct {
	Status string
	Items  []QuoteItem
}

// Stocks 成功项
func (b BatchResult) Stocks() []model.Stock {
	out := make([]model.Stock, 0, len(b.Items))
	for _, it := range b.Items {
		if it.Stock != nil {
			out = append(out, *it.Stock)
		}
	}
	return out
}

// QuoteService REST 行情查询，成功的结果写入本地记录
type QuoteService struct {
	client  port.QuoteClient
	records port.RecordStore // 可为 nil
	workers int
}

func NewQuoteService(client port.QuoteClient, records port.RecordStore) *QuoteService {
	return &QuoteService{client: client, records: records, workers: defaultFetchWorkers}
}

// Fetch 单个代号
func (s *QuoteService) Fetch(ctx context.Context, symbol string) QuoteItem {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	res := s.client.GetQuote(ctx, symbol)
	item := QuoteItem{Symbol: symbol, Result: res}

	switch res.Kind {
	case port.ResultSuccess:
		st := quote.FromRestQuote(res.Data)
		if st.Symbol == "" {
			st.Symbol = symbol
		}
		item.Stock = &st
		s.persist(ctx, st)
	case port.ResultEmpty:
		log.Debug().Str("symbol", symbol).Msg("quote empty")
	default:
		log.Warn().Str("symbol", symbol).Str("kind", res.Kind.String()).
			Int("code", res.Code).Str("message", res.Message).Msg("quote fetch failed")
	}
	return item
}

// FetchBatch 并发查询，结果顺序与输入一致；任一失败整体状态为 error
func (s *QuoteService) FetchBatch(ctx context.Context, symbols []string) BatchResult {
	items := make([]QuoteItem, len(symbols))

	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	for i, sym := range symbols {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, sym string) {
			defer wg.Done()
			defer func() { <-sem }()
			items[i] = s.Fetch(ctx, sym)
		}(i, sym)
	}
	wg.Wait()

	status := BatchSuccess
	for _, it := range items {
		if it.Result.Kind == port.ResultFailure || it.Result.Kind == port.ResultException {
			status = BatchError
			break
		}
	}
	return BatchResult{Status: status, Items: items}
}

// Trades 当日成交明细
func (s *QuoteService) Trades(ctx context.Context, symbol, date string, limit int) port.Result[model.TradesResponse] {
	return s.client.GetTrades(ctx, strings.ToUpper(strings.TrimSpace(symbol)), date, limit)
}

func (s *QuoteService) persist(ctx context.Context, st model.Stock) {
	if s.records == nil {
		return
	}
	if err := s.records.UpsertQuote(ctx, st, time.Now().UnixMilli()); err != nil {
		log.Warn().Err(err).Str("symbol", st.Symbol).Msg("persist quote failed")
	}
}
