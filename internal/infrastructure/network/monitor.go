package network

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"quotewatch/internal/application/port"
)

const (
	DefaultProbeAddr    = "api.fugle.tw:443"
	DefaultProbeEvery   = 10 * time.Second
	DefaultProbeTimeout = 3 * time.Second
)

// ProbeFunc 一次可达性探测
type ProbeFunc func(ctx context.Context) bool

// Monitor 定时 TCP 拨号探测网络是否可用，只推送变化
type Monitor struct {
	every time.Duration
	probe ProbeFunc
}

func NewMonitor(addr string, every time.Duration) *Monitor {
	if strings.TrimSpace(addr) == "" {
		addr = DefaultProbeAddr
	}
	return NewMonitorWithProbe(every, TCPProbe(addr, DefaultProbeTimeout))
}

func NewMonitorWithProbe(every time.Duration, probe ProbeFunc) *Monitor {
	if every <= 0 {
		every = DefaultProbeEvery
	}
	return &Monitor{every: every, probe: probe}
}

// TCPProbe 能建立 TCP 连接即视为可达
func TCPProbe(addr string, timeout time.Duration) ProbeFunc {
	d := net.Dialer{Timeout: timeout}
	return func(ctx context.Context) bool {
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}
}

// Watch 首次探测结果立即推送，之后只在状态变化时推送；ctx 结束时关闭 channel
func (m *Monitor) Watch(ctx context.Context) <-chan bool {
	out := make(chan bool, 1)
	go func() {
		defer close(out)
		t := time.NewTicker(m.every)
		defer t.Stop()

		var (
			last  bool
			known bool
		)
		for {
			up := m.probe(ctx)
			if !known || up != last {
				log.Info().Bool("reachable", up).Msg("network state")
				select {
				case out <- up:
				case <-ctx.Done():
					return
				}
				last, known = up, true
			}

			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
		}
	}()
	return out
}

var _ port.Reachability = (*Monitor)(nil)
