// internal/pkg/eventbus/bus.go
package eventbus

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
)

// Handler 处理一条消息。返回的错误会被汇总后交给 Publish 的调用方。
type Handler[T any] func(ctx context.Context, msg T) error

// Bus 是进程内的类型化发布/订阅总线。
// 订阅按注册顺序投递。Unsubscribe 之后不再开始新的投递，
// 正在进行的 Publish 中尚未投递给该订阅的消息也会跳过。
type Bus[T any] struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[uint64]*entry[T]
}

type entry[T any] struct {
	handle Handler[T]
	closed atomic.Bool
}

// New 创建一个空总线。
func New[T any]() *Bus[T] {
	return &Bus[T]{handlers: make(map[uint64]*entry[T])}
}

// Subscription 代表一次订阅，可多次调用 Unsubscribe。
type Subscription struct {
	once   sync.Once
	cancel func()
}

// Unsubscribe 取消订阅，幂等。
func (s *Subscription) Unsubscribe() {
	s.once.Do(s.cancel)
}

// Subscribe 注册处理器。
func (b *Bus[T]) Subscribe(h Handler[T]) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	e := &entry[T]{handle: h}
	b.handlers[id] = e

	return &Subscription{cancel: func() {
		e.closed.Store(true)
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers, id)
	}}
}

// Publish 把每条消息依次投递给当前所有订阅者。
// 投递发生在锁外，处理器内部可以安全地订阅或退订。
func (b *Bus[T]) Publish(ctx context.Context, msgs ...T) error {
	entries := b.snapshot()

	var errs error
	for _, msg := range msgs {
		for _, e := range entries {
			if err := ctx.Err(); err != nil {
				return errors.Join(errs, err)
			}
			if e.closed.Load() {
				continue
			}
			if err := e.handle(ctx, msg); err != nil {
				errs = errors.Join(errs, err)
			}
		}
	}
	return errs
}

// Len 返回当前订阅者数量。
func (b *Bus[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}

func (b *Bus[T]) snapshot() []*entry[T] {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ids := make([]uint64, 0, len(b.handlers))
	for id := range b.handlers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]*entry[T], len(ids))
	for i, id := range ids {
		out[i] = b.handlers[id]
	}
	return out
}
