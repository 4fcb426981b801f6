package model

// Stock 统一报价记录（watchlist 中的一行）
// 所有行情来源（trade / aggregate / snapshot / REST quote）最终都转换成这个结构
type Stock struct {
	Symbol         string  `json:"symbol"`
	Name           *string `json:"name,omitempty"`
	Price          float64 `json:"price"`
	Change         float64 `json:"change"`
	ChangePercent  float64 `json:"changePercent"`
	Volume         int64   `json:"volume"`
	LastUpdateTime string  `json:"lastUpdateTime"`
	IsUserFavorite bool    `json:"isUserFavorite"`
}

// DisplayName returns the name when present, otherwise the symbol.
func (s Stock) DisplayName() string {
	if s.Name != nil && *s.Name != "" {
		return *s.Name
	}
	return s.Symbol
}

// StockRecord 本地存储的记录（对应 stocks 表的一行）
type StockRecord struct {
	Stock     Stock `json:"stock"` // Stock.IsUserFavorite 即 is_user_selected
	IsDefault bool  `json:"isDefault"`
	CreatedAt int64 `json:"createdAt"` // unix ms
	UpdatedAt int64 `json:"updatedAt"` // unix ms
}
