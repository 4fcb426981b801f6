package port

// ControlMessage 出站控制消息
type ControlMessage interface {
	EventName() string
}

type AuthMessage struct {
	APIKey string
}

// SubscribeMessage 批量订阅用 Symbols；单个订阅用 Symbol
type SubscribeMessage struct {
	Channel        string
	Symbols        []string
	Symbol         string
	IntradayOddLot bool
}

// UnsubscribeMessage 批量用 IDs；单个用 ID
type UnsubscribeMessage struct {
	IDs []string
	ID  string
}

type PingMessage struct {
	State string
}

// SubscriptionsMessage 查询当前订阅
type SubscriptionsMessage struct{}

func (AuthMessage) EventName() string          { return "auth" }
func (SubscribeMessage) EventName() string     { return "subscribe" }
func (UnsubscribeMessage) EventName() string   { return "unsubscribe" }
func (PingMessage) EventName() string          { return "ping" }
func (SubscriptionsMessage) EventName() string { return "subscriptions" }
