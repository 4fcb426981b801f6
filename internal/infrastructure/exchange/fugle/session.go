package fugle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"quotewatch/internal/application/port"
)

// 默认连接参数
const (
	DefaultWsURL          = "wss://api.fugle.tw/marketdata/v1.0/stock/streaming"
	DefaultPingInterval   = 60 * time.Second
	DefaultConnectTimeout = 10 * time.Second
	DefaultReadTimeout    = 30 * time.Second
	DefaultWriteTimeout   = 30 * time.Second

	AutoPingState  = "auto_ping"
	HeartbeatState = "heartbeat"

	eventBuffer = 256
)

// ErrSessionClosed 连接未打开时发送
var ErrSessionClosed = errors.New("session closed")

// SessionState 连接生命周期
type SessionState int32

const (
	SessionClosed SessionState = iota
	SessionOpening
	SessionOpen
	SessionClosing
)

func (s SessionState) String() string {
	switch s {
	case SessionOpening:
		return "opening"
	case SessionOpen:
		return "open"
	case SessionClosing:
		return "closing"
	default:
		return "closed"
	}
}

type SessionConfig struct {
	URL            string
	APIKey         string
	PingInterval   time.Duration
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	Dialer         *websocket.Dialer // nil -> websocket.DefaultDialer
}

// Session 单条 Fugle streaming 连接：open -> auth -> 定时 ping -> close
// 不做自动重连，重连策略由上层决定
type Session struct {
	cfg SessionConfig

	mu    sync.Mutex
	state SessionState
	link  *link
}

// link 一次成功拨号对应的连接资源
type link struct {
	id      string
	conn    *websocket.Conn
	events  chan port.Event
	writeMu sync.Mutex

	closing  atomic.Bool
	stop     chan struct{} // 停止 keep-alive / 读循环投递
	finished chan struct{} // teardown 完成
	once     sync.Once
}

func NewSession(cfg SessionConfig) *Session {
	if strings.TrimSpace(cfg.URL) == "" {
		cfg.URL = DefaultWsURL
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultPingInterval
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	return &Session{cfg: cfg}
}

// State 当前生命周期状态
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Open 拨号并认证。已打开时直接返回同一条事件流
func (s *Session) Open(ctx context.Context) (<-chan port.Event, error) {
	s.mu.Lock()
	for s.link != nil && s.link.closing.Load() {
		fin := s.link.finished
		s.mu.Unlock()
		<-fin
		s.mu.Lock()
	}
	defer s.mu.Unlock()

	if s.link != nil {
		return s.link.events, nil
	}

	s.state = SessionOpening
	log.Info().Str("url", s.cfg.URL).Msg("ws connecting")

	cctx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	conn, _, err := s.cfg.Dialer.DialContext(cctx, s.cfg.URL, nil)
	cancel()
	if err != nil {
		s.state = SessionClosed
		return nil, fmt.Errorf("%w: dial %s: %v", port.ErrTransportFailure, s.cfg.URL, err)
	}

	l := &link{
		id:       uuid.NewString(),
		conn:     conn,
		events:   make(chan port.Event, eventBuffer),
		stop:     make(chan struct{}),
		finished: make(chan struct{}),
	}

	if err := s.write(l, port.AuthMessage{APIKey: s.cfg.APIKey}); err != nil {
		_ = conn.Close()
		s.state = SessionClosed
		return nil, err
	}

	s.link = l
	s.state = SessionOpen

	go s.readLoop(l)
	go s.keepAlive(l)

	log.Info().Str("session", l.id).Msg("ws connected, auth sent")
	return l.events, nil
}

// Send 发送控制消息
func (s *Session) Send(msg port.ControlMessage) error {
	s.mu.Lock()
	l := s.link
	s.mu.Unlock()
	if l == nil || l.closing.Load() {
		return ErrSessionClosed
	}
	return s.write(l, msg)
}

// Close 以 1000 正常关闭，停止 keep-alive 并释放连接
func (s *Session) Close() error {
	s.mu.Lock()
	l := s.link
	if l == nil {
		s.mu.Unlock()
		return nil
	}
	s.state = SessionClosing
	s.mu.Unlock()

	if !l.closing.CompareAndSwap(false, true) {
		<-l.finished
		return nil
	}
	close(l.stop)

	l.writeMu.Lock()
	_ = l.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client closing"),
		time.Now().Add(time.Second),
	)
	l.writeMu.Unlock()
	err := l.conn.Close()

	<-l.finished
	log.Info().Str("session", l.id).Msg("ws closed")
	return err
}

func (s *Session) write(l *link, msg port.ControlMessage) error {
	b, err := Encode(msg)
	if err != nil {
		return err
	}
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	_ = l.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	if err := l.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		return fmt.Errorf("%w: write %s: %v", port.ErrTransportFailure, msg.EventName(), err)
	}
	return nil
}

// idleTimeout 读超时：至少覆盖一个 ping 周期
func (s *Session) idleTimeout() time.Duration {
	return s.cfg.PingInterval + s.cfg.ReadTimeout
}

func (s *Session) readLoop(l *link) {
	defer s.teardown(l)

	_ = l.conn.SetReadDeadline(time.Now().Add(s.idleTimeout()))
	l.conn.SetPongHandler(func(string) error {
		_ = l.conn.SetReadDeadline(time.Now().Add(s.idleTimeout()))
		return nil
	})

	for {
		_, b, err := l.conn.ReadMessage()
		if err != nil {
			if l.closing.Load() {
				return
			}
			log.Warn().Str("session", l.id).Err(err).Msg("ws read failed")
			ev := port.ErrorEvent{
				Message: err.Error(),
				Err:     fmt.Errorf("%w: %v", port.ErrTransportFailure, err),
			}
			select {
			case l.events <- ev:
			case <-l.stop:
			}
			return
		}
		_ = l.conn.SetReadDeadline(time.Now().Add(s.idleTimeout()))

		select {
		case l.events <- Decode(b):
		case <-l.stop:
			return
		}
	}
}

func (s *Session) keepAlive(l *link) {
	t := time.NewTicker(s.cfg.PingInterval)
	defer t.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-t.C:
			if err := s.write(l, port.PingMessage{State: AutoPingState}); err != nil {
				log.Warn().Str("session", l.id).Err(err).Msg("auto ping failed")
			}
		}
	}
}

// teardown 只执行一次：停止 keep-alive，关闭连接，清空句柄，关闭事件流
func (s *Session) teardown(l *link) {
	l.once.Do(func() {
		if l.closing.CompareAndSwap(false, true) {
			close(l.stop)
		}
		_ = l.conn.Close()

		s.mu.Lock()
		if s.link == l {
			s.link = nil
			s.state = SessionClosed
		}
		s.mu.Unlock()

		close(l.events)
		close(l.finished)
	})
}

var _ port.Session = (*Session)(nil)
