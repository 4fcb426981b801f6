package subscription

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"quotewatch/internal/application/port"
)

// Key 订阅的复合键 (channel, symbol)
type Key struct {
	Channel string
	Symbol  string
}

func (k Key) String() string { return k.Channel + "_" + k.Symbol }

// Record 一条已确认的订阅
type Record struct {
	Key      Key
	ServerID string
}

// Registry (channel, symbol) -> 服务端订阅 id
// 只由 Connection Manager 的事件处理路径修改
type Registry struct {
	mu      sync.RWMutex
	byKey   map[Key]string
	pending map[Key]int // 同一 key 可能有多个在途请求
}

func NewRegistry() *Registry {
	return &Registry{
		byKey:   make(map[Key]string),
		pending: make(map[Key]int),
	}
}

// MarkPending 记录已发出、尚未确认的订阅请求
func (r *Registry) MarkPending(channel string, symbols ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range symbols {
		r.pending[Key{channel, s}]++
	}
}

// Record 写入/覆盖一条订阅
func (r *Registry) Record(channel, symbol, serverID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := Key{channel, symbol}
	r.byKey[k] = serverID
	r.donePendingLocked(k)
}

// Resolve 查询 id
func (r *Registry) Resolve(channel, symbol string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byKey[Key{channel, symbol}]
	return id, ok
}

// RemoveByCompositeKey 删除并返回 id
// 在途请求保留：其回执到达后仍会被记录，之后可以退订
func (r *Registry) RemoveByCompositeKey(channel, symbol string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := Key{channel, symbol}
	id, ok := r.byKey[k]
	delete(r.byKey, k)
	return id, ok
}

// Pending 某个 key 尚未确认的请求数
func (r *Registry) Pending(channel, symbol string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pending[Key{channel, symbol}]
}

// RemoveByID 按服务端 id 删除（unsubscribed 回执）
func (r *Registry) RemoveByID(serverID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, id := range r.byKey {
		if id == serverID {
			delete(r.byKey, k)
			return true
		}
	}
	return false
}

// AllIDs 所有服务端 id，排序后返回
func (r *Registry) AllIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.byKey))
	for _, id := range r.byKey {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Records 当前订阅快照，按 channel/symbol 排序
func (r *Registry) Records() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Record, 0, len(r.byKey))
	for k, id := range r.byKey {
		out = append(out, Record{Key: k, ServerID: id})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.Channel != out[j].Key.Channel {
			return out[i].Key.Channel < out[j].Key.Channel
		}
		return out[i].Key.Symbol < out[j].Key.Symbol
	})
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byKey)
}

// Clear 断线 / 错误后清空（id 在新连接上无意义）
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byKey = make(map[Key]string)
	r.pending = make(map[Key]int)
}

func (r *Registry) donePendingLocked(k Key) {
	if n := r.pending[k]; n > 1 {
		r.pending[k] = n - 1
	} else {
		delete(r.pending, k)
	}
}

// AckResult 一次 subscribed 回执的处理结果
type AckResult struct {
	Recorded int
	Replaced []string // 被新 id 取代的旧 id，需要退订
}

// ApplyAck 处理 subscribed 回执：格式完整且对应已发请求的记录写入，其余跳过并记日志
// 同一 key 已有不同 id 时新 id 生效，旧 id 放入 Replaced
func (r *Registry) ApplyAck(ack port.Ack) AckResult {
	var res AckResult
	if ack == nil {
		return res
	}
	for _, rec := range ack.Records() {
		if !rec.Valid() {
			log.Warn().
				Str("id", rec.ID).
				Str("channel", rec.Channel).
				Str("symbol", rec.Symbol).
				Msg("malformed subscription ack skipped")
			continue
		}
		old, err := r.applyOne(rec)
		if err != nil {
			log.Warn().Err(err).Msg("subscription ack skipped")
			continue
		}
		if old != "" {
			res.Replaced = append(res.Replaced, old)
		}
		res.Recorded++
	}
	return res
}

// applyOne 返回被取代的旧 id（没有则为空）
func (r *Registry) applyOne(rec port.AckRecord) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := Key{rec.Channel, rec.Symbol}
	if r.pending[k] == 0 {
		return "", fmt.Errorf("%w: %s id=%s", port.ErrAckMismatch, k, rec.ID)
	}
	r.donePendingLocked(k)
	old := r.byKey[k]
	r.byKey[k] = rec.ID
	if old == rec.ID {
		old = ""
	}
	return old, nil
}

// ApplyUnsubscribeAck 处理 unsubscribed 回执，返回删除条数
func (r *Registry) ApplyUnsubscribeAck(ack port.Ack) int {
	if ack == nil {
		return 0
	}
	removed := 0
	for _, rec := range ack.Records() {
		if rec.ID == "" {
			continue
		}
		if r.RemoveByID(rec.ID) {
			removed++
		}
	}
	return removed
}
