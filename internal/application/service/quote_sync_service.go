package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"quotewatch/internal/application/port"
	"quotewatch/internal/application/usecase/watch"
	"quotewatch/internal/domain/model"
)

// QuoteSyncService 把实时行情表与连接状态同步到本地记录和缓存
// 存储失败只记日志，不影响行情流
type QuoteSyncService struct {
	m       *watch.Manager
	records port.RecordStore // 可为 nil
	cache   port.QuoteCache  // 可为 nil
	timeout time.Duration
}

func NewQuoteSyncService(m *watch.Manager, records port.RecordStore, cache port.QuoteCache) *QuoteSyncService {
	return &QuoteSyncService{m: m, records: records, cache: cache, timeout: 5 * time.Second}
}

func (s *QuoteSyncService) Run(ctx context.Context) error {
	quotes, stopQuotes := s.m.WatchQuotes()
	defer stopQuotes()
	states, stopStates := s.m.WatchState()
	defer stopStates()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case list, ok := <-quotes:
			if !ok {
				return nil
			}
			if err := s.SyncQuotes(ctx, list); err != nil {
				log.Warn().Err(err).Int("count", len(list)).Msg("quote sync failed")
			}

		case sc, ok := <-states:
			if !ok {
				return nil
			}
			if s.cache == nil {
				continue
			}
			cctx, cancel := context.WithTimeout(ctx, s.timeout)
			if err := s.cache.RecordState(cctx, sc.State.String(), sc.Message); err != nil {
				log.Warn().Err(err).Str("state", sc.State.String()).Msg("record state failed")
			}
			cancel()
		}
	}
}

// SyncQuotes 写入一批行情，返回第一个错误（包装为 ErrPersistence）
func (s *QuoteSyncService) SyncQuotes(ctx context.Context, list []model.Stock) error {
	if len(list) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%w: %v", port.ErrPersistence, err)
		}
	}

	if s.records != nil {
		ts := time.Now().UnixMilli()
		for _, st := range list {
			keep(s.records.UpsertQuote(ctx, st, ts))
		}
	}
	if s.cache != nil {
		keep(s.cache.CacheQuotes(ctx, list))
		keep(s.cache.PublishQuotes(ctx, list))
	}
	return firstErr
}
