package port

import (
	"context"

	"quotewatch/internal/domain/model"
)

// MaxFavorites 自选股上限
const MaxFavorites = 10

// RecordStore 本地股票记录，按 symbol 存取，last-write-wins
type RecordStore interface {
	// Get 不存在时返回 (nil, nil)
	Get(ctx context.Context, symbol string) (*model.StockRecord, error)
	Put(ctx context.Context, rec model.StockRecord) error
	Delete(ctx context.Context, symbol string) error
	ListAll(ctx context.Context) ([]model.StockRecord, error)
	ListFavorites(ctx context.Context) ([]model.StockRecord, error)

	// UpsertQuote 写入行情字段，保留已有的自选标记
	UpsertQuote(ctx context.Context, s model.Stock, ts int64) error
	// MarkFavorite 设置自选标记；记录不存在时建立一条空行情记录
	MarkFavorite(ctx context.Context, symbol string, favorite bool, ts int64) error

	Close() error
}

// PreferenceStore 自选股代号集合（上限由调用方检查）
type PreferenceStore interface {
	Read(ctx context.Context) ([]string, error)
	Write(ctx context.Context, symbols []string) error
}

// QuoteCache 最新报价缓存与广播（Redis）
type QuoteCache interface {
	CacheQuotes(ctx context.Context, stocks []model.Stock) error
	PublishQuotes(ctx context.Context, stocks []model.Stock) error
	RecordState(ctx context.Context, state, message string) error
}
