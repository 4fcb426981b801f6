package port

import "context"

// Session 单条 websocket 连接
type Session interface {
	// Open 建立连接并返回事件流；已打开时返回同一条流
	Open(ctx context.Context) (<-chan Event, error)
	Send(msg ControlMessage) error
	Close() error
}

// Reachability 网络是否可用（只推送变化）
type Reachability interface {
	Watch(ctx context.Context) <-chan bool
}
