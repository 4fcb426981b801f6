package watch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quotewatch/internal/application/port"
)

func TestRetryDelayBackoff(t *testing.T) {
	cfg := DefaultRetryConfig
	assert.Equal(t, time.Duration(0), cfg.Delay(0))
	assert.Equal(t, 1*time.Second, cfg.Delay(1))
	assert.Equal(t, 2*time.Second, cfg.Delay(2))
	assert.Equal(t, 4*time.Second, cfg.Delay(3))
	assert.Equal(t, 16*time.Second, cfg.Delay(5))
	assert.Equal(t, 30*time.Second, cfg.Delay(6))
	assert.Equal(t, 30*time.Second, cfg.Delay(50))
}

func fastRetry(n int) RetryConfig {
	return RetryConfig{MaxRetries: n, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
}

func TestReconnectorConnectGivesUp(t *testing.T) {
	sess := newFakeSession()
	sess.setOpenErr(fmt.Errorf("%w: refused", port.ErrTransportFailure))
	m := NewManager(ManagerDeps{Session: sess})
	defer m.Close()

	err := NewReconnector(m, fastRetry(2)).Connect(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, port.ErrTransportFailure)
	assert.Equal(t, Error, m.State().State)
}

func TestReconnectorConnectStopsOnCancel(t *testing.T) {
	sess := newFakeSession()
	sess.setOpenErr(errors.New("refused"))
	m := NewManager(ManagerDeps{Session: sess})
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewReconnector(m, RetryConfig{MaxRetries: 3, InitialDelay: time.Hour, MaxDelay: time.Hour}).Connect(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReconnectorRunReconnectsAfterTransportError(t *testing.T) {
	sess := newFakeSession()
	m := NewManager(ManagerDeps{Session: sess})
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewReconnector(m, fastRetry(3)).Run(ctx) }()

	require.Eventually(t, func() bool { return sess.openCount() == 1 }, waitFor, time.Millisecond)
	require.True(t, sess.push(port.AuthenticatedEvent{}))
	require.Eventually(t, func() bool { return m.State().State == Authenticated }, waitFor, time.Millisecond)

	require.True(t, sess.push(port.ErrorEvent{Message: "reset", Err: port.ErrTransportFailure}))
	require.Eventually(t, func() bool { return sess.openCount() == 2 }, waitFor, time.Millisecond)
	assert.Equal(t, Connecting, m.State().State)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(waitFor):
		t.Fatal("run did not stop")
	}
	assert.Equal(t, Disconnected, m.State().State)
}

type fakeReach struct{ ch chan bool }

func (f *fakeReach) Watch(ctx context.Context) <-chan bool { return f.ch }

func TestRunWithReachability(t *testing.T) {
	sess := newFakeSession()
	m := NewManager(ManagerDeps{Session: sess})
	defer m.Close()

	reach := &fakeReach{ch: make(chan bool)}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewReconnector(m, fastRetry(1)).RunWithReachability(ctx, reach) }()

	reach.ch <- true
	require.Eventually(t, func() bool { return m.State().State == Connecting }, waitFor, time.Millisecond)

	reach.ch <- false
	require.Eventually(t, func() bool { return m.State().State == Disconnected }, waitFor, time.Millisecond)

	reach.ch <- true
	require.Eventually(t, func() bool { return sess.openCount() == 2 }, waitFor, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(waitFor):
		t.Fatal("did not stop")
	}
}
