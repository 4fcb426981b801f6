package port

import (
	"time"

	"quotewatch/internal/domain/model"
)

type Sink interface {
	// 整表输出（自选 + 订阅行情）
	WriteQuotes(ts time.Time, stocks []model.Stock) error
	// 连接状态变化
	WriteStatus(ts time.Time, status string) error
}
