package quote

import (
	"time"

	"quotewatch/internal/domain/model"
)

// TimeLayout aggregate / snapshot 时间显示格式 (HH:mm:ss)
const TimeLayout = "15:04:05"

// Location 时间戳格式化所用时区
var Location = time.Local

var knownNames = map[string]string{
	"2330": "台積電",
	"2317": "鴻海",
	"2454": "聯發科",
}

// DisplayName 返回股票中文名称，未知代号直接用代号
func DisplayName(symbol string) string {
	if n, ok := knownNames[symbol]; ok {
		return n
	}
	return symbol
}

// FormatMicros formats a unix-microsecond timestamp as HH:mm:ss.
func FormatMicros(us int64) string {
	if us <= 0 {
		return ""
	}
	return time.UnixMicro(us).In(Location).Format(TimeLayout)
}

// FromTrade 成交 -> Stock。成交不带涨跌信息，change 字段为 0，由 reconciler 决定是否保留旧值
func FromTrade(t model.TradeData) model.Stock {
	return model.Stock{
		Symbol:         t.Symbol,
		Name:           strPtr(t.Symbol),
		Price:          t.Price,
		Volume:         t.Volume,
		LastUpdateTime: t.Time,
	}
}

// FromAggregate 聚合 -> Stock
func FromAggregate(a model.AggregateData) model.Stock {
	name := a.Name
	if name == "" {
		name = a.Symbol
	}
	return model.Stock{
		Symbol:         a.Symbol,
		Name:           strPtr(name),
		Price:          a.LastPrice,
		Change:         a.Change,
		ChangePercent:  a.ChangePercent,
		Volume:         a.Total.TradeVolume,
		LastUpdateTime: FormatMicros(a.LastUpdated),
	}
}

// FromSnapshot 快照 -> Stock，成交量取本笔 size
func FromSnapshot(s model.SnapshotData) model.Stock {
	return model.Stock{
		Symbol:         s.Symbol,
		Name:           strPtr(s.Symbol),
		Price:          s.Price,
		Volume:         s.Size,
		LastUpdateTime: FormatMicros(s.Time),
	}
}

// FromRestQuote REST quote -> Stock
// price: lastPrice > closePrice > referencePrice; volume: total.tradeVolume or 0
func FromRestQuote(q model.QuoteResponse) model.Stock {
	price := q.ReferencePrice
	switch {
	case q.LastPrice != nil:
		price = *q.LastPrice
	case q.ClosePrice != nil:
		price = *q.ClosePrice
	}

	var volume int64
	if q.Total != nil {
		volume = q.Total.TradeVolume
	}

	var updated string
	if q.LastUpdated != nil {
		updated = FormatMicros(*q.LastUpdated)
	}

	name := q.Name
	if name == "" {
		name = q.Symbol
	}
	return model.Stock{
		Symbol:         q.Symbol,
		Name:           strPtr(name),
		Price:          price,
		Change:         q.Change,
		ChangePercent:  q.ChangePercent,
		Volume:         volume,
		LastUpdateTime: updated,
	}
}

func strPtr(s string) *string { return &s }
