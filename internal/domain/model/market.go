package model

// ========== Streaming Payloads ==========

// TradeData 逐笔成交
type TradeData struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	Volume int64   `json:"volume"`
	Time   string  `json:"time"`
	Side   string  `json:"side,omitempty"`
}

// CandleData K 线
type CandleData struct {
	Symbol string  `json:"symbol"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
	Time   string  `json:"time"`
}

// BookLevel 五档中的一档
type BookLevel struct {
	Price  float64 `json:"price"`
	Volume int64   `json:"volume"`
}

// BookData 最佳五档
type BookData struct {
	Symbol string      `json:"symbol"`
	Bids   []BookLevel `json:"bids"`
	Asks   []BookLevel `json:"asks"`
	Time   string      `json:"time"`
}

// TotalData 累计成交统计
type TotalData struct {
	TradeValue       int64 `json:"tradeValue"`
	TradeVolume      int64 `json:"tradeVolume"`
	TradeVolumeAtBid int64 `json:"tradeVolumeAtBid"`
	TradeVolumeAtAsk int64 `json:"tradeVolumeAtAsk"`
	Transaction      int64 `json:"transaction"`
	Time             int64 `json:"time"`
}

// LastTradeData 最近一笔成交（aggregate / quote 中内嵌）
type LastTradeData struct {
	Bid    *float64 `json:"bid,omitempty"`
	Ask    *float64 `json:"ask,omitempty"`
	Price  float64  `json:"price"`
	Size   int64    `json:"size"`
	Time   int64    `json:"time"`
	Serial *int64   `json:"serial,omitempty"`
}

// AggregateData 聚合行情
type AggregateData struct {
	Date           string         `json:"date"`
	Type           string         `json:"type"`
	Exchange       string         `json:"exchange"`
	Market         string         `json:"market"`
	Symbol         string         `json:"symbol"`
	Name           string         `json:"name"`
	ReferencePrice *float64       `json:"referencePrice,omitempty"`
	PreviousClose  *float64       `json:"previousClose,omitempty"`
	OpenPrice      *float64       `json:"openPrice,omitempty"`
	HighPrice      *float64       `json:"highPrice,omitempty"`
	LowPrice       *float64       `json:"lowPrice,omitempty"`
	ClosePrice     *float64       `json:"closePrice,omitempty"`
	AvgPrice       *float64       `json:"avgPrice,omitempty"`
	Change         float64        `json:"change"`
	ChangePercent  float64        `json:"changePercent"`
	Amplitude      *float64       `json:"amplitude,omitempty"`
	LastPrice      float64        `json:"lastPrice"`
	LastSize       *int64         `json:"lastSize,omitempty"`
	Bids           []BookLevel    `json:"bids,omitempty"`
	Asks           []BookLevel    `json:"asks,omitempty"`
	Total          TotalData      `json:"total"`
	LastTrade      *LastTradeData `json:"lastTrade,omitempty"`
	IsLimitUpPrice *bool          `json:"isLimitUpPrice,omitempty"`
	IsLimitDown    *bool          `json:"isLimitDownPrice,omitempty"`
	IsTrial        *bool          `json:"isTrial,omitempty"`
	IsContinuous   *bool          `json:"isContinuous,omitempty"`
	IsOpen         *bool          `json:"isOpen,omitempty"`
	IsClose        *bool          `json:"isClose,omitempty"`
	Serial         *int64         `json:"serial,omitempty"`
	LastUpdated    int64          `json:"lastUpdated"` // unix us
}

// IndexData 指数
type IndexData struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
	Time          string  `json:"time"`
}

// SnapshotData 快照（初始数据）
type SnapshotData struct {
	Symbol       string  `json:"symbol"`
	Type         string  `json:"type"`
	Exchange     string  `json:"exchange"`
	Market       string  `json:"market"`
	Price        float64 `json:"price"`
	Size         int64   `json:"size"`
	Bid          float64 `json:"bid"`
	Ask          float64 `json:"ask"`
	Volume       int64   `json:"volume"`
	IsContinuous bool    `json:"isContinuous"`
	Time         int64   `json:"time"` // unix us
	Serial       int64   `json:"serial"`
}

// ========== REST Payloads ==========

// QuoteLevel 报价档位（REST 使用 size 而不是 volume）
type QuoteLevel struct {
	Price float64 `json:"price"`
	Size  int64   `json:"size"`
}

// QuoteResponse intraday/quote/{symbol} 的回应
type QuoteResponse struct {
	Date           string         `json:"date"`
	Type           string         `json:"type"`
	Exchange       string         `json:"exchange"`
	Market         string         `json:"market"`
	Symbol         string         `json:"symbol"`
	Name           string         `json:"name"`
	ReferencePrice float64        `json:"referencePrice"`
	PreviousClose  float64        `json:"previousClose"`
	OpenPrice      *float64       `json:"openPrice,omitempty"`
	HighPrice      *float64       `json:"highPrice,omitempty"`
	LowPrice       *float64       `json:"lowPrice,omitempty"`
	ClosePrice     *float64       `json:"closePrice,omitempty"`
	AvgPrice       *float64       `json:"avgPrice,omitempty"`
	Change         float64        `json:"change"`
	ChangePercent  float64        `json:"changePercent"`
	LastPrice      *float64       `json:"lastPrice,omitempty"`
	LastSize       *int64         `json:"lastSize,omitempty"`
	Bids           []QuoteLevel   `json:"bids,omitempty"`
	Asks           []QuoteLevel   `json:"asks,omitempty"`
	Total          *TotalData     `json:"total,omitempty"`
	LastTrade      *LastTradeData `json:"lastTrade,omitempty"`
	IsContinuous   *bool          `json:"isContinuous,omitempty"`
	IsOpen         *bool          `json:"isOpen,omitempty"`
	IsClose        *bool          `json:"isClose,omitempty"`
	LastUpdated    *int64         `json:"lastUpdated,omitempty"`
	Serial         *int64         `json:"serial,omitempty"`
}

// HistoricalTrade intraday/trades 中的一笔
type HistoricalTrade struct {
	Time   string  `json:"time"`
	Price  float64 `json:"price"`
	Size   int64   `json:"size"`
	Serial int64   `json:"serial"`
}

// TradesResponse intraday/trades/{symbol} 的回应
type TradesResponse struct {
	Date   string            `json:"date"`
	Symbol string            `json:"symbol"`
	Data   []HistoricalTrade `json:"data"`
}
