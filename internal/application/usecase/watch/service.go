package watch

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"quotewatch/internal/application/port"
)

type ServiceDeps struct {
	Manager      *Manager
	Retry        RetryConfig
	Reachability port.Reachability // 可为 nil
	Sink         port.Sink
	StatusEvery  time.Duration // 定时输出整表，<=0 关闭
}

// Service 前台 watch：保持连接，把行情表与连接状态推给 Sink
type Service struct {
	deps ServiceDeps
	rc   *Reconnector
}

func NewService(deps ServiceDeps) *Service {
	return &Service{
		deps: deps,
		rc:   NewReconnector(deps.Manager, deps.Retry),
	}
}

func (s *Service) Run(ctx context.Context) error {
	if s.deps.Manager == nil || s.deps.Sink == nil {
		return errors.New("watch service: manager and sink are required")
	}

	quotes, cancelQuotes := s.deps.Manager.WatchQuotes()
	defer cancelQuotes()
	states, cancelStates := s.deps.Manager.WatchState()
	defer cancelStates()

	runErr := make(chan error, 1)
	go func() { runErr <- s.rc.RunWithReachability(ctx, s.deps.Reachability) }()

	var tick <-chan time.Time
	if s.deps.StatusEvery > 0 {
		t := time.NewTicker(s.deps.StatusEvery)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-ctx.Done():
			<-runErr
			return ctx.Err()

		case err := <-runErr:
			return err

		case now := <-tick:
			_ = s.deps.Sink.WriteStatus(now, s.deps.Manager.StatusText())
			_ = s.deps.Sink.WriteQuotes(now, s.deps.Manager.Quotes())

		case sc, ok := <-states:
			if !ok {
				return nil
			}
			if err := s.deps.Sink.WriteStatus(sc.At, sc.StatusText()); err != nil {
				log.Warn().Err(err).Msg("write status failed")
			}

		case list, ok := <-quotes:
			if !ok {
				return nil
			}
			if err := s.deps.Sink.WriteQuotes(time.Now(), list); err != nil {
				log.Warn().Err(err).Msg("write quotes failed")
			}
		}
	}
}
