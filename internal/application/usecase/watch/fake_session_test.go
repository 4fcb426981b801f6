package watch

import (
	"context"
	"sync"

	"quotewatch/internal/application/port"
)

// fakeSession 内存 Session：记录发出的控制消息，测试通过 push 注入事件
type fakeSession struct {
	mu      sync.Mutex
	events  chan port.Event
	sent    []port.ControlMessage
	opens   int
	closes  int
	openErr error
}

func newFakeSession() *fakeSession { return &fakeSession{} }

func (f *fakeSession) Open(ctx context.Context) (<-chan port.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	if f.events == nil {
		f.events = make(chan port.Event, 64)
		f.opens++
	}
	return f.events, nil
}

func (f *fakeSession) Send(msg port.ControlMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.events == nil {
		return context.Canceled
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.events != nil {
		close(f.events)
		f.events = nil
		f.closes++
	}
	return nil
}

// push 投递到当前连接；未打开时丢弃
func (f *fakeSession) push(ev port.Event) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.events == nil {
		return false
	}
	f.events <- ev
	return true
}

func (f *fakeSession) setOpenErr(err error) {
	f.mu.Lock()
	f.openErr = err
	f.mu.Unlock()
}

func (f *fakeSession) messages() []port.ControlMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]port.ControlMessage(nil), f.sent...)
}

func (f *fakeSession) subscribes() []port.SubscribeMessage {
	var out []port.SubscribeMessage
	for _, m := range f.messages() {
		if s, ok := m.(port.SubscribeMessage); ok {
			out = append(out, s)
		}
	}
	return out
}

func (f *fakeSession) unsubscribes() []port.UnsubscribeMessage {
	var out []port.UnsubscribeMessage
	for _, m := range f.messages() {
		if u, ok := m.(port.UnsubscribeMessage); ok {
			out = append(out, u)
		}
	}
	return out
}

func (f *fakeSession) openCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens
}

// fakePrefs 固定的自选列表
type fakePrefs struct {
	mu    sync.Mutex
	syms  []string
	err   error
	reads int
	gate  chan struct{} // 非 nil 时 Read 阻塞到关闭
}

func (p *fakePrefs) Read(ctx context.Context) ([]string, error) {
	p.mu.Lock()
	p.reads++
	gate := p.gate
	p.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.syms...), p.err
}

func (p *fakePrefs) readCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reads
}

func (p *fakePrefs) Write(ctx context.Context, symbols []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.syms = append([]string(nil), symbols...)
	return nil
}
