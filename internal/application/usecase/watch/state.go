package watch

import "time"

// ConnectionState 连接状态机
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Authenticated
	Subscribed
	Error
)

func (s ConnectionState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Authenticated:
		return "authenticated"
	case Subscribed:
		return "subscribed"
	case Error:
		return "error"
	default:
		return "disconnected"
	}
}

// Live reports whether a session is (being) established.
func (s ConnectionState) Live() bool {
	return s == Connecting || s == Authenticated || s == Subscribed
}

// StateChange 一次状态迁移
type StateChange struct {
	State   ConnectionState
	Message string // Error 时的错误信息
	At      time.Time
}

// StatusText 给使用者看的连接状态
func (c StateChange) StatusText() string {
	switch c.State {
	case Connecting:
		return "連線中..."
	case Authenticated:
		return "已認證"
	case Subscribed:
		return "已訂閱"
	case Error:
		return "錯誤: " + c.Message
	default:
		return "未連線"
	}
}
