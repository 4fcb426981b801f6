package port

import (
	"errors"

	"quotewatch/internal/domain/model"
)

// 错误分类
var (
	ErrTransportFailure = errors.New("transport failure")
	ErrProtocol         = errors.New("protocol error")
	ErrAuthentication   = errors.New("authentication failure")
	ErrAckMismatch      = errors.New("subscription ack mismatch")
	ErrPersistence      = errors.New("persistence failure")
	ErrUpstreamQuote    = errors.New("upstream quote failure")
)

// EventKind 解码后事件的标签
type EventKind string

const (
	KindAuthenticated EventKind = "authenticated"
	KindError         EventKind = "error"
	KindHeartbeat     EventKind = "heartbeat"
	KindPong          EventKind = "pong"
	KindSubscribed    EventKind = "subscribed"
	KindUnsubscribed  EventKind = "unsubscribed"
	KindSubscriptions EventKind = "subscriptions"
	KindTrade         EventKind = "trade"
	KindCandle        EventKind = "candle"
	KindBook          EventKind = "book"
	KindAggregate     EventKind = "aggregate"
	KindIndex         EventKind = "index"
	KindSnapshot      EventKind = "snapshot"
)

// AllEventKinds lists every variant of Event.
var AllEventKinds = []EventKind{
	KindAuthenticated, KindError, KindHeartbeat, KindPong,
	KindSubscribed, KindUnsubscribed, KindSubscriptions,
	KindTrade, KindCandle, KindBook, KindAggregate, KindIndex, KindSnapshot,
}

// Event 解码后的入站事件（封闭的 tagged union，只有本包的类型实现）
type Event interface {
	Kind() EventKind
	sealed()
}

type AuthenticatedEvent struct {
	Message string
}

// ErrorEvent 协议错误或传输错误；Err 可用 errors.Is 判断分类
type ErrorEvent struct {
	Message string
	Err     error
}

type HeartbeatEvent struct {
	Time int64
}

type PongEvent struct {
	Time  int64
	State string
}

type SubscribedEvent struct {
	Ack Ack
}

type UnsubscribedEvent struct {
	Ack Ack
}

// SubscriptionsEvent 当前订阅列表
type SubscriptionsEvent struct {
	Records []AckRecord
}

type TradeEvent struct{ Data model.TradeData }
type CandleEvent struct{ Data model.CandleData }
type BookEvent struct{ Data model.BookData }
type AggregateEvent struct{ Data model.AggregateData }
type IndexEvent struct{ Data model.IndexData }
type SnapshotEvent struct{ Data model.SnapshotData }

func (AuthenticatedEvent) Kind() EventKind { return KindAuthenticated }
func (ErrorEvent) Kind() EventKind         { return KindError }
func (HeartbeatEvent) Kind() EventKind     { return KindHeartbeat }
func (PongEvent) Kind() EventKind          { return KindPong }
func (SubscribedEvent) Kind() EventKind    { return KindSubscribed }
func (UnsubscribedEvent) Kind() EventKind  { return KindUnsubscribed }
func (SubscriptionsEvent) Kind() EventKind { return KindSubscriptions }
func (TradeEvent) Kind() EventKind         { return KindTrade }
func (CandleEvent) Kind() EventKind        { return KindCandle }
func (BookEvent) Kind() EventKind          { return KindBook }
func (AggregateEvent) Kind() EventKind     { return KindAggregate }
func (IndexEvent) Kind() EventKind         { return KindIndex }
func (SnapshotEvent) Kind() EventKind      { return KindSnapshot }

func (AuthenticatedEvent) sealed() {}
func (ErrorEvent) sealed()         {}
func (HeartbeatEvent) sealed()     {}
func (PongEvent) sealed()          {}
func (SubscribedEvent) sealed()    {}
func (UnsubscribedEvent) sealed()  {}
func (SubscriptionsEvent) sealed() {}
func (TradeEvent) sealed()         {}
func (CandleEvent) sealed()        {}
func (BookEvent) sealed()          {}
func (AggregateEvent) sealed()     {}
func (IndexEvent) sealed()         {}
func (SnapshotEvent) sealed()      {}

// ========== Ack ==========

// AckRecord subscribed / unsubscribed 回执中的一条
type AckRecord struct {
	ID      string `json:"id"`
	Channel string `json:"channel"`
	Symbol  string `json:"symbol"`
}

// Valid reports whether id, channel and symbol are all present.
func (r AckRecord) Valid() bool {
	return r.ID != "" && r.Channel != "" && r.Symbol != ""
}

// Ack 回执 data 可能是单个对象也可能是数组，解码时决定具体类型
type Ack interface {
	Records() []AckRecord
	sealedAck()
}

type SingleAck struct {
	Item AckRecord
}

type ManyAck struct {
	Items []AckRecord
}

func (a SingleAck) Records() []AckRecord { return []AckRecord{a.Item} }
func (a ManyAck) Records() []AckRecord   { return a.Items }

func (SingleAck) sealedAck() {}
func (ManyAck) sealedAck()   {}
