package watch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"quotewatch/internal/application/port"
	"quotewatch/internal/application/subscription"
	"quotewatch/internal/domain/model"
)

// ErrNotReady 未认证时发出订阅类请求
var ErrNotReady = errors.New("connection not authenticated")

const (
	DefaultChannel = "aggregates"
	eventBusBuffer = 1024
	prefReadTimeout = 5 * time.Second
)

// DefaultSymbols 没有自选时的默认订阅
var DefaultSymbols = []string{"2330", "2317", "2454"}

type ManagerDeps struct {
	Session     port.Session
	Registry    *subscription.Registry
	Reconciler  *Reconciler
	Preferences port.PreferenceStore // 可为 nil

	DefaultChannel string
	DefaultSymbols []string
	MaxDefault     int
}

// Manager 组合 Session 与 Registry，驱动连接状态机并广播所有事件
//
// 所有状态（state / registry / hasAutoSubscribed）只在持有 mu 时修改，
// 事件按到达顺序逐个处理
type Manager struct {
	deps ManagerDeps

	mu                sync.Mutex
	state             StateChange
	hasAutoSubscribed bool
	autoSymbols       []string // connect 时读取，首次认证后订阅
	gen               uint64 // 每次 connect / 断开 +1，旧事件循环的残留事件被忽略

	events *Bus[port.Event]
	states *Bus[StateChange]
}

func NewManager(deps ManagerDeps) *Manager {
	if deps.Registry == nil {
		deps.Registry = subscription.NewRegistry()
	}
	if deps.Reconciler == nil {
		deps.Reconciler = NewReconciler()
	}
	if strings.TrimSpace(deps.DefaultChannel) == "" {
		deps.DefaultChannel = DefaultChannel
	}
	if len(deps.DefaultSymbols) == 0 {
		deps.DefaultSymbols = DefaultSymbols
	}
	if deps.MaxDefault <= 0 {
		deps.MaxDefault = port.MaxFavorites
	}
	return &Manager{
		deps:   deps,
		state:  StateChange{State: Disconnected, At: time.Now()},
		events: NewBus[port.Event]("events", eventBusBuffer),
		states: NewBus[StateChange]("state", 16),
	}
}

// ========== Lifecycle ==========

// Connect 打开 session 并开始处理事件；已在连接中则直接返回
func (m *Manager) Connect(ctx context.Context) error {
	if m.State().State.Live() {
		return nil
	}
	// 偏好存储可能较慢，不在锁内读取
	auto := m.loadDefaultSymbols(ctx)

	m.mu.Lock()
	if m.state.State.Live() {
		m.mu.Unlock()
		return nil
	}
	m.autoSymbols = auto
	m.gen++
	gen := m.gen
	m.setStateLocked(Connecting, "")
	m.mu.Unlock()

	events, err := m.deps.Session.Open(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen {
		// disconnect 发生在拨号期间
		if err == nil {
			_ = m.deps.Session.Close()
		}
		return context.Canceled
	}
	if err != nil {
		ev := port.ErrorEvent{Message: err.Error(), Err: err}
		m.enterErrorLocked(err.Error())
		m.events.Publish(ev)
		return err
	}

	go m.loop(gen, events)
	return nil
}

// Disconnect 主动断开：清空订阅并关闭 session
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.gen++
	m.resetLocked()
	m.setStateLocked(Disconnected, "")
	m.mu.Unlock()

	if err := m.deps.Session.Close(); err != nil {
		log.Warn().Err(err).Msg("session close failed")
	}
}

// Close 断开并关闭所有广播
func (m *Manager) Close() {
	m.Disconnect()
	m.events.Close()
	m.states.Close()
}

func (m *Manager) loop(gen uint64, events <-chan port.Event) {
	for ev := range events {
		m.handle(gen, ev)
	}
	log.Debug().Uint64("gen", gen).Msg("event loop finished")
}

// ========== Observation ==========

// Events 订阅所有解码事件（广播语义）
func (m *Manager) Events() (<-chan port.Event, func()) {
	return m.events.Subscribe()
}

// WatchState 订阅状态变化，先收到当前状态
func (m *Manager) WatchState() (<-chan StateChange, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states.SubscribeWith(m.state)
}

// BusStats 广播通道的订阅数与丢弃数
type BusStats struct {
	EventSubscribers int   `json:"eventSubscribers"`
	EventsDropped    int64 `json:"eventsDropped"`
	StateSubscribers int   `json:"stateSubscribers"`
	StatesDropped    int64 `json:"statesDropped"`
}

func (m *Manager) Stats() BusStats {
	return BusStats{
		EventSubscribers: m.events.Subscribers(),
		EventsDropped:    m.events.Dropped(),
		StateSubscribers: m.states.Subscribers(),
		StatesDropped:    m.states.Dropped(),
	}
}

func (m *Manager) State() StateChange {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) StatusText() string {
	return m.State().StatusText()
}

// Subscriptions 当前已确认的订阅
func (m *Manager) Subscriptions() []subscription.Record {
	return m.deps.Registry.Records()
}

func (m *Manager) Reconciler() *Reconciler {
	return m.deps.Reconciler
}

// Quotes 当前合并后的行情表
func (m *Manager) Quotes() []model.Stock {
	return m.deps.Reconciler.CurrentList()
}

// WatchQuotes 订阅行情表更新，先收到当前表
func (m *Manager) WatchQuotes() (<-chan []model.Stock, func()) {
	return m.deps.Reconciler.Watch()
}

// ========== Commands ==========

// Subscribe 订阅单个代号
func (m *Manager) Subscribe(channel, symbol string) error {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return errors.New("symbol is empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.readyLocked(); err != nil {
		return err
	}
	m.dropStaleLocked(channel, symbol)
	m.deps.Registry.MarkPending(channel, symbol)
	return m.deps.Session.Send(port.SubscribeMessage{Channel: channel, Symbol: symbol})
}

// SubscribeMany 批量订阅：先退订已有的旧 id，再一次性发送订阅
func (m *Manager) SubscribeMany(channel string, symbols []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.readyLocked(); err != nil {
		return err
	}
	return m.subscribeManyLocked(channel, symbols)
}

// Unsubscribe 按 (channel, symbol) 退订
func (m *Manager) Unsubscribe(channel, symbol string) error {
	symbol = normalizeSymbol(symbol)
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.readyLocked(); err != nil {
		return err
	}
	id, ok := m.deps.Registry.RemoveByCompositeKey(channel, symbol)
	if !ok {
		log.Debug().Str("channel", channel).Str("symbol", symbol).Msg("unsubscribe: not subscribed")
		return nil
	}
	return m.deps.Session.Send(port.UnsubscribeMessage{ID: id})
}

// UnsubscribeAll 退订所有已知 id 并清空 registry
func (m *Manager) UnsubscribeAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.readyLocked(); err != nil {
		return err
	}
	ids := m.deps.Registry.AllIDs()
	m.deps.Registry.Clear()
	if len(ids) == 0 {
		return nil
	}
	return m.deps.Session.Send(port.UnsubscribeMessage{IDs: ids})
}

// ListSubscriptions 请求服务端回传订阅列表（结果以 SubscriptionsEvent 广播）
func (m *Manager) ListSubscriptions() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.readyLocked(); err != nil {
		return err
	}
	return m.deps.Session.Send(port.SubscriptionsMessage{})
}

// SendHeartbeat 手动 ping
func (m *Manager) SendHeartbeat() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.state.State.Live() {
		return ErrNotReady
	}
	return m.deps.Session.Send(port.PingMessage{State: "heartbeat"})
}

func (m *Manager) readyLocked() error {
	if s := m.state.State; s != Authenticated && s != Subscribed {
		return fmt.Errorf("%w (state=%s)", ErrNotReady, s)
	}
	return nil
}

func (m *Manager) subscribeManyLocked(channel string, symbols []string) error {
	syms := uniqueSymbols(symbols)
	if len(syms) == 0 {
		return nil
	}
	for _, s := range syms {
		m.dropStaleLocked(channel, s)
	}
	m.deps.Registry.MarkPending(channel, syms...)
	return m.deps.Session.Send(port.SubscribeMessage{Channel: channel, Symbols: syms})
}

// dropStaleLocked 已有订阅时先退订旧 id，失败只记日志
func (m *Manager) dropStaleLocked(channel, symbol string) {
	id, ok := m.deps.Registry.RemoveByCompositeKey(channel, symbol)
	if !ok {
		return
	}
	if err := m.deps.Session.Send(port.UnsubscribeMessage{ID: id}); err != nil {
		log.Warn().Err(err).Str("channel", channel).Str("symbol", symbol).Str("id", id).Msg("stale unsubscribe failed")
	}
}

// ========== Event handling ==========

type eventHandler func(m *Manager, ev port.Event)

// handlers 每个事件类型必须有一项（测试检查完整性）
var handlers = map[port.EventKind]eventHandler{
	port.KindAuthenticated: (*Manager).onAuthenticated,
	port.KindError:         (*Manager).onError,
	port.KindSubscribed:    (*Manager).onSubscribed,
	port.KindUnsubscribed:  (*Manager).onUnsubscribed,
	port.KindSubscriptions: (*Manager).onSubscriptions,
	port.KindTrade:         (*Manager).onTrade,
	port.KindAggregate:     (*Manager).onAggregate,
	port.KindSnapshot:      (*Manager).onSnapshot,
	port.KindHeartbeat:     broadcastOnly,
	port.KindPong:          broadcastOnly,
	port.KindCandle:        broadcastOnly,
	port.KindBook:          broadcastOnly,
	port.KindIndex:         broadcastOnly,
}

func broadcastOnly(*Manager, port.Event) {}

func (m *Manager) handle(gen uint64, ev port.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return
	}
	if h, ok := handlers[ev.Kind()]; ok {
		h(m, ev)
	} else {
		log.Error().Str("kind", string(ev.Kind())).Msg("unhandled event kind")
	}
	m.events.Publish(ev)
}

func (m *Manager) onAuthenticated(ev port.Event) {
	if m.state.State == Connecting {
		m.setStateLocked(Authenticated, "")
	}
	if m.hasAutoSubscribed || !m.state.State.Live() {
		return
	}
	m.hasAutoSubscribed = true

	syms := m.autoSymbols
	log.Info().Str("channel", m.deps.DefaultChannel).Strs("symbols", syms).Msg("auto subscribe")
	if err := m.subscribeManyLocked(m.deps.DefaultChannel, syms); err != nil {
		log.Warn().Err(err).Msg("auto subscribe failed")
	}
}

func (m *Manager) onError(ev port.Event) {
	e := ev.(port.ErrorEvent)
	switch {
	case errors.Is(e.Err, port.ErrTransportFailure):
		log.Error().Str("message", e.Message).Msg("transport failure")
		m.failLocked(e.Message)
	case m.state.State == Connecting:
		log.Error().Str("message", e.Message).Msg("authentication failed")
		m.failLocked(fmt.Errorf("%w: %s", port.ErrAuthentication, e.Message).Error())
	default:
		log.Warn().Str("message", e.Message).Msg("protocol error")
	}
}

func (m *Manager) onSubscribed(ev port.Event) {
	res := m.deps.Registry.ApplyAck(ev.(port.SubscribedEvent).Ack)
	if len(res.Replaced) > 0 {
		m.unsubscribeReplacedLocked(res.Replaced)
	}
	if res.Recorded > 0 && m.state.State == Authenticated {
		m.setStateLocked(Subscribed, "")
	}
}

// unsubscribeReplacedLocked 同一 key 的两个请求先后确认时，退订被取代的 id
func (m *Manager) unsubscribeReplacedLocked(ids []string) {
	msg := port.UnsubscribeMessage{IDs: ids}
	if len(ids) == 1 {
		msg = port.UnsubscribeMessage{ID: ids[0]}
	}
	if err := m.deps.Session.Send(msg); err != nil {
		log.Warn().Err(err).Strs("ids", ids).Msg("replaced unsubscribe failed")
	}
}

func (m *Manager) onUnsubscribed(ev port.Event) {
	m.deps.Registry.ApplyUnsubscribeAck(ev.(port.UnsubscribedEvent).Ack)
}

func (m *Manager) onSubscriptions(ev port.Event) {
	log.Debug().Int("count", len(ev.(port.SubscriptionsEvent).Records)).Msg("server subscriptions")
}

func (m *Manager) onTrade(ev port.Event) {
	m.deps.Reconciler.ApplyTrade(ev.(port.TradeEvent).Data)
}

func (m *Manager) onAggregate(ev port.Event) {
	m.deps.Reconciler.ApplyAggregate(ev.(port.AggregateEvent).Data)
}

func (m *Manager) onSnapshot(ev port.Event) {
	m.deps.Reconciler.ApplySnapshot(ev.(port.SnapshotEvent).Data)
}

// ========== State helpers ==========

func (m *Manager) setStateLocked(s ConnectionState, msg string) {
	if m.state.State == s && m.state.Message == msg {
		return
	}
	m.state = StateChange{State: s, Message: msg, At: time.Now()}
	log.Info().Str("state", s.String()).Str("message", msg).Msg("connection state")
	m.states.Publish(m.state)
}

func (m *Manager) resetLocked() {
	m.deps.Registry.Clear()
	m.hasAutoSubscribed = false
}

func (m *Manager) enterErrorLocked(msg string) {
	m.gen++
	m.resetLocked()
	m.setStateLocked(Error, msg)
}

// failLocked 进入 Error 并释放 session（传输失败时 session 已自行关闭）
func (m *Manager) failLocked(msg string) {
	m.enterErrorLocked(msg)
	if err := m.deps.Session.Close(); err != nil {
		log.Warn().Err(err).Msg("session close failed")
	}
}

// loadDefaultSymbols 自选优先，否则默认代号；读取失败回退默认
func (m *Manager) loadDefaultSymbols(ctx context.Context) []string {
	var favs []string
	if m.deps.Preferences != nil {
		ctx, cancel := context.WithTimeout(ctx, prefReadTimeout)
		defer cancel()
		var err error
		if favs, err = m.deps.Preferences.Read(ctx); err != nil {
			log.Warn().Err(err).Msg("read favorites failed, using defaults")
		}
	}
	syms := uniqueSymbols(favs)
	if len(syms) == 0 {
		syms = uniqueSymbols(m.deps.DefaultSymbols)
	}
	if len(syms) > m.deps.MaxDefault {
		syms = syms[:m.deps.MaxDefault]
	}
	return syms
}

func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func uniqueSymbols(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = normalizeSymbol(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
