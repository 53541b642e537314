package application

import (
	"context"
	"fmt"
	"sync"

	"github.com/wyfcoding/storefront/internal/cart/domain"
	"github.com/wyfcoding/storefront/pkg/logger"
)

// 尽力而为事件的缓冲容量，满时丢弃新事件
const bestEffortBuffer = 256

type subscriber struct {
	name       string
	handler    domain.EventHandler
	bestEffort bool
}

type queuedEvent struct {
	ctx   context.Context
	event domain.CartChangedEvent
}

// EventBus 进程内事件总线。
// 必需订阅者在 Publish 中按注册顺序同步执行，任一失败即中止发布；
// 尽力而为的订阅者只在必需订阅者全部成功后，由后台 goroutine 异步执行，其错误仅记录日志。
type EventBus struct {
	mu          sync.RWMutex
	subscribers []subscriber
	closed      bool

	startOnce sync.Once
	queue     chan queuedEvent
	done      chan struct{}
}

// NewEventBus 创建事件总线
func NewEventBus() *EventBus {
	return &EventBus{
		queue: make(chan queuedEvent, bestEffortBuffer),
		done:  make(chan struct{}),
	}
}

// Subscribe 注册必需订阅者
func (b *EventBus) Subscribe(name string, handler domain.EventHandler) {
	b.add(subscriber{name: name, handler: handler})
}

// SubscribeBestEffort 注册尽力而为的订阅者，首次注册时启动后台投递 goroutine
func (b *EventBus) SubscribeBestEffort(name string, handler domain.EventHandler) {
	b.add(subscriber{name: name, handler: handler, bestEffort: true})
	b.startOnce.Do(func() { go b.drain() })
}

func (b *EventBus) add(s subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, s)
}

// Publish 分发购物车变更事件，只等待必需订阅者
func (b *EventBus) Publish(ctx context.Context, event domain.CartChangedEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	hasBestEffort := false
	for _, s := range b.subscribers {
		if s.bestEffort {
			hasBestEffort = true
			continue
		}
		if err := s.handler(ctx, event); err != nil {
			return fmt.Errorf("subscriber %s: %w", s.name, err)
		}
	}

	if !hasBestEffort || b.closed {
		return nil
	}
	// 请求结束后 ctx 会被取消，异步投递不能沿用它的取消信号
	select {
	case b.queue <- queuedEvent{ctx: context.WithoutCancel(ctx), event: event}:
	default:
		logger.Warn(ctx, "best-effort queue full, event dropped",
			"action", event.Action,
			"product_id", event.ProductID,
		)
	}
	return nil
}

// Close 停止接收新事件，等待已排队事件投递完成
func (b *EventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.queue)
	b.mu.Unlock()

	started := true
	b.startOnce.Do(func() { started = false })
	if started {
		<-b.done
	}
	return nil
}

func (b *EventBus) drain() {
	defer close(b.done)
	for q := range b.queue {
		b.mu.RLock()
		subs := make([]subscriber, 0, len(b.subscribers))
		for _, s := range b.subscribers {
			if s.bestEffort {
				subs = append(subs, s)
			}
		}
		b.mu.RUnlock()

		for _, s := range subs {
			if err := s.handler(q.ctx, q.event); err != nil {
				logger.Warn(q.ctx, "best-effort subscriber failed",
					"subscriber", s.name,
					"action", q.event.Action,
					"error", err,
				)
			}
		}
	}
}

// PersistCart 返回将变更后的购物车写入持久化存储的订阅者
func PersistCart(store domain.PersistentStore) domain.EventHandler {
	return func(ctx context.Context, event domain.CartChangedEvent) error {
		raw, err := event.Cart.Marshal()
		if err != nil {
			return err
		}
		return store.Set(ctx, event.Key, raw)
	}
}
