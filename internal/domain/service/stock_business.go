package service

import (
	"github.com/shopspring/decimal"

	"quotewatch/internal/domain/model"
)

// 热门股阈值
const (
	HotVolume        int64 = 1_000_000
	HotChangePercent       = 5.0
)

var (
	pct5   = decimal.NewFromInt(5)
	pct2   = decimal.NewFromInt(2)
	pctNeg = decimal.NewFromInt(-2)
)

// roundPct 涨跌幅按两位小数比较，避免浮点误差落在阈值边界
func roundPct(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}

// IsHotStock 成交量 > 1,000,000 且涨幅 > 5%
func IsHotStock(s model.Stock) bool {
	return s.Volume > HotVolume && roundPct(s.ChangePercent).GreaterThan(pct5)
}

// StockScore 股票评分 (0..100)：成交量、涨跌幅、用户自选三项加总
func StockScore(s model.Stock) int {
	score := 0

	switch {
	case s.Volume > 5_000_000:
		score += 30
	case s.Volume > 1_000_000:
		score += 20
	case s.Volume > 100_000:
		score += 10
	}

	cp := roundPct(s.ChangePercent)
	switch {
	case cp.GreaterThan(pct5):
		score += 20
	case cp.GreaterThan(pct2):
		score += 15
	case cp.IsPositive():
		score += 10
	case cp.GreaterThan(pctNeg):
		score += 5
	}

	if s.IsUserFavorite {
		score += 25
	}

	if score > 100 {
		return 100
	}
	return score
}

// FilterUserInterested 保留用户自选或热门的股票，保持原顺序
func FilterUserInterested(stocks []model.Stock) []model.Stock {
	out := make([]model.Stock, 0, len(stocks))
	for _, s := range stocks {
		if s.IsUserFavorite || IsHotStock(s) {
			out = append(out, s)
		}
	}
	return out
}
