package watch

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// Bus 多订阅者广播：每个订阅者一个缓冲 channel，Publish 从不阻塞
// 订阅者缓冲满时丢弃其最旧的一条，再放入新值
type Bus[T any] struct {
	name   string
	buffer int

	mu      sync.RWMutex
	subs    map[uint64]chan T
	nextID  uint64
	closed  bool
	dropped atomic.Int64
}

func NewBus[T any](name string, buffer int) *Bus[T] {
	if buffer <= 0 {
		buffer = 1
	}
	return &Bus[T]{
		name:   name,
		buffer: buffer,
		subs:   make(map[uint64]chan T),
	}
}

// Subscribe 返回订阅 channel 与取消函数
func (b *Bus[T]) Subscribe() (<-chan T, func()) {
	return b.subscribe(nil)
}

// SubscribeWith 订阅并先放入一个初始值
func (b *Bus[T]) SubscribeWith(initial T) (<-chan T, func()) {
	return b.subscribe(&initial)
}

func (b *Bus[T]) subscribe(initial *T) (<-chan T, func()) {
	ch := make(chan T, b.buffer)
	if initial != nil {
		ch <- *initial
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
	return ch, cancel
}

// Publish 投递给所有订阅者
func (b *Bus[T]) Publish(v T) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- v:
			continue
		default:
		}
		// slow subscriber: drop oldest
		select {
		case <-ch:
			if n := b.dropped.Add(1); n%1000 == 1 {
				log.Warn().Str("bus", b.name).Int64("dropped", n).Msg("slow subscriber, dropping oldest")
			}
		default:
		}
		select {
		case ch <- v:
		default:
		}
	}
}

// Dropped 累计丢弃条数
func (b *Bus[T]) Dropped() int64 { return b.dropped.Load() }

// Subscribers 当前订阅者数量
func (b *Bus[T]) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close 关闭所有订阅 channel
func (b *Bus[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
