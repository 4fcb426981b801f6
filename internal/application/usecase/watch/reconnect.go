package watch

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"quotewatch/internal/application/port"
)

// RetryConfig 连接重试配置（指数退避）
type RetryConfig struct {
	MaxRetries   int           // 最大重试次数，0 表示只尝试一次
	InitialDelay time.Duration // 初始延迟
	MaxDelay     time.Duration // 最大延迟
	Multiplier   float64
}

// DefaultRetryConfig 默认重试配置
var DefaultRetryConfig = RetryConfig{
	MaxRetries:   5,
	InitialDelay: 1 * time.Second,
	MaxDelay:     30 * time.Second,
	Multiplier:   2,
}

// Delay 第 attempt 次重试前的等待时间（attempt 从 1 开始）
func (c RetryConfig) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	d := c.InitialDelay
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * c.Multiplier)
		if d >= c.MaxDelay {
			return c.MaxDelay
		}
	}
	if d > c.MaxDelay {
		return c.MaxDelay
	}
	return d
}

// Reconnector 在 Manager 之上的重连策略：连接失败或进入 Error 后按退避重试
type Reconnector struct {
	m   *Manager
	cfg RetryConfig
}

func NewReconnector(m *Manager, cfg RetryConfig) *Reconnector {
	if cfg.Multiplier < 1 {
		cfg.Multiplier = DefaultRetryConfig.Multiplier
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = DefaultRetryConfig.InitialDelay
	}
	if cfg.MaxDelay < cfg.InitialDelay {
		cfg.MaxDelay = cfg.InitialDelay
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Reconnector{m: m, cfg: cfg}
}

// Connect 带重试的连接
func (r *Reconnector) Connect(ctx context.Context) error {
	var lastErr error
	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.cfg.Delay(attempt)
			log.Info().
				Int("attempt", attempt).
				Int64("delay_ms", delay.Milliseconds()).
				Msg("retrying connection")
			if err := sleepCtx(ctx, delay); err != nil {
				return err
			}
		}

		if err := r.m.Connect(ctx); err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		return nil
	}
	return fmt.Errorf("connect failed after %d retries: %w", r.cfg.MaxRetries, lastErr)
}

// Run 连接并保持：进入 Error 后重连，认证成功后重置重试计数
// 重试耗尽时返回错误；ctx 取消时断开并返回 ctx.Err()
func (r *Reconnector) Run(ctx context.Context) error {
	states, cancel := r.m.WatchState()
	defer cancel()
	<-states // 当前状态

	if err := r.Connect(ctx); err != nil {
		return err
	}

	failures := 0
	for {
		select {
		case <-ctx.Done():
			r.m.Disconnect()
			return ctx.Err()

		case sc, ok := <-states:
			if !ok {
				return nil
			}
			switch sc.State {
			case Authenticated, Subscribed:
				failures = 0
			case Error:
				if r.m.State().State != Error {
					continue // 过期的状态通知
				}
				failures++
				if failures > r.cfg.MaxRetries {
					return fmt.Errorf("giving up after %d failures: %s", failures-1, sc.Message)
				}
				delay := r.cfg.Delay(failures)
				log.Warn().Str("error", sc.Message).Int("attempt", failures).
					Int64("delay_ms", delay.Milliseconds()).Msg("connection lost, reconnecting")
				if err := sleepCtx(ctx, delay); err != nil {
					r.m.Disconnect()
					return err
				}
				if err := r.m.Connect(ctx); err != nil {
					// 失败会再次发布 Error，下一轮继续退避
					log.Warn().Err(err).Msg("reconnect failed")
				}
			}
		}
	}
}

// RunWithReachability 网络可用时保持连接，网络不可用时断开
func (r *Reconnector) RunWithReachability(ctx context.Context, reach port.Reachability) error {
	if reach == nil {
		return r.Run(ctx)
	}
	updates := reach.Watch(ctx)

	var (
		runCancel context.CancelFunc
		done      chan error
	)
	stop := func() {
		if runCancel == nil {
			return
		}
		runCancel()
		<-done
		runCancel, done = nil, nil
	}
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-done:
			runCancel()
			runCancel, done = nil, nil
			if err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("connection loop stopped")
			}

		case up, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			if up && runCancel == nil {
				log.Info().Msg("network available, connecting")
				rctx, c := context.WithCancel(ctx)
				ch := make(chan error, 1)
				runCancel, done = c, ch
				go func() { ch <- r.Run(rctx) }()
			} else if !up {
				log.Warn().Msg("network unavailable, disconnecting")
				stop()
				r.m.Disconnect()
			}
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
