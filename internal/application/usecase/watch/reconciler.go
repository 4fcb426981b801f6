package watch

import (
	"sort"
	"strings"
	"sync"

	"quotewatch/internal/domain/model"
	"quotewatch/internal/domain/quote"
)

// symView 一个代号的两份局部视图
type symView struct {
	trade     *model.Stock // 最近成交
	aggregate *model.Stock // 最近 aggregate / snapshot
}

// Reconciler 每个代号的最新行情表：合并成交与聚合两份视图，每次更新同步重新发布整表
// 发布在持锁时进行，订阅者看到的顺序与 apply 顺序一致
type Reconciler struct {
	mu        sync.Mutex
	syms      map[string]*symView
	favorites map[string]struct{}

	out *Bus[[]model.Stock]
}

func NewReconciler() *Reconciler {
	return &Reconciler{
		syms:      make(map[string]*symView),
		favorites: make(map[string]struct{}),
		out:       NewBus[[]model.Stock]("quotes", 1),
	}
}

// ApplyTrade 成交只更新 trade 视图
func (r *Reconciler) ApplyTrade(t model.TradeData) {
	if strings.TrimSpace(t.Symbol) == "" {
		return
	}
	s := quote.FromTrade(t)
	r.mu.Lock()
	r.view(t.Symbol).trade = &s
	r.out.Publish(r.listLocked())
	r.mu.Unlock()
}

// ApplyAggregate aggregate 是 change / changePercent 的唯一来源
func (r *Reconciler) ApplyAggregate(a model.AggregateData) {
	if strings.TrimSpace(a.Symbol) == "" {
		return
	}
	s := quote.FromAggregate(a)
	r.mu.Lock()
	r.view(a.Symbol).aggregate = &s
	r.out.Publish(r.listLocked())
	r.mu.Unlock()
}

// ApplySnapshot 快照覆盖 aggregate 视图的价量，沿用已知的涨跌
func (r *Reconciler) ApplySnapshot(sn model.SnapshotData) {
	if strings.TrimSpace(sn.Symbol) == "" {
		return
	}
	s := quote.FromSnapshot(sn)
	r.mu.Lock()
	v := r.view(sn.Symbol)
	if v.aggregate != nil {
		s.Change = v.aggregate.Change
		s.ChangePercent = v.aggregate.ChangePercent
		if v.aggregate.Name != nil {
			s.Name = v.aggregate.Name
		}
	}
	v.aggregate = &s
	r.out.Publish(r.listLocked())
	r.mu.Unlock()
}

// SetFavorites 更新自选集合（只影响 IsUserFavorite 标记）并重新发布
func (r *Reconciler) SetFavorites(symbols []string) {
	r.mu.Lock()
	r.favorites = make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		r.favorites[s] = struct{}{}
	}
	r.out.Publish(r.listLocked())
	r.mu.Unlock()
}

// CurrentList 合并后的整表，按代号升序
func (r *Reconciler) CurrentList() []model.Stock {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listLocked()
}

// Get 单个代号的合并结果
func (r *Reconciler) Get(symbol string) (model.Stock, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.syms[symbol]
	if !ok {
		return model.Stock{}, false
	}
	return r.merge(symbol, v), true
}

// Watch 订阅整表更新，先收到当前表
func (r *Reconciler) Watch() (<-chan []model.Stock, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.out.SubscribeWith(r.listLocked())
}

// Clear 清空行情表
func (r *Reconciler) Clear() {
	r.mu.Lock()
	r.syms = make(map[string]*symView)
	r.out.Publish(r.listLocked())
	r.mu.Unlock()
}

func (r *Reconciler) view(symbol string) *symView {
	v := r.syms[symbol]
	if v == nil {
		v = &symView{}
		r.syms[symbol] = v
	}
	return v
}

func (r *Reconciler) listLocked() []model.Stock {
	out := make([]model.Stock, 0, len(r.syms))
	for sym, v := range r.syms {
		out = append(out, r.merge(sym, v))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// merge 价格：成交 > 聚合 > 0；涨跌只取聚合；量与时间：成交 > 聚合
func (r *Reconciler) merge(symbol string, v *symView) model.Stock {
	s := model.Stock{Symbol: symbol}

	name := quote.DisplayName(symbol)
	if name == symbol && v.aggregate != nil && v.aggregate.Name != nil && *v.aggregate.Name != "" {
		name = *v.aggregate.Name
	}
	s.Name = &name

	switch {
	case v.trade != nil:
		s.Price = v.trade.Price
		s.Volume = v.trade.Volume
		s.LastUpdateTime = v.trade.LastUpdateTime
	case v.aggregate != nil:
		s.Price = v.aggregate.Price
		s.Volume = v.aggregate.Volume
		s.LastUpdateTime = v.aggregate.LastUpdateTime
	}
	if v.aggregate != nil {
		s.Change = v.aggregate.Change
		s.ChangePercent = v.aggregate.ChangePercent
	}

	_, s.IsUserFavorite = r.favorites[symbol]
	return s
}
