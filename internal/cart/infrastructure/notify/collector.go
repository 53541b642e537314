package notify

import (
	"context"
	"sync"

	"github.com/wyfcoding/storefront/internal/cart/domain"
)

type collectorKey struct{}

// Collector 收集单次请求内产生的提示，HTTP 层据此把提示返回给前端
type Collector struct {
	mu      sync.Mutex
	notices []Notice
}

// WithCollector 在 context 上挂载新的 Collector
func WithCollector(ctx context.Context) (context.Context, *Collector) {
	c := &Collector{}
	return context.WithValue(ctx, collectorKey{}, c), c
}

// Notices 返回已收集的提示
func (c *Collector) Notices() []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Notice, len(c.notices))
	copy(out, c.notices)
	return out
}

func (c *Collector) add(level, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notices = append(c.notices, Notice{Level: level, Message: message})
}

// ContextNotifier 将提示写入 context 中的 Collector；没有 Collector 时忽略
type ContextNotifier struct{}

var _ domain.Notifier = ContextNotifier{}

// Success 收集成功提示
func (ContextNotifier) Success(ctx context.Context, message string) {
	if c, ok := ctx.Value(collectorKey{}).(*Collector); ok {
		c.add(LevelSuccess, message)
	}
}

// Error 收集失败提示
func (ContextNotifier) Error(ctx context.Context, message string) {
	if c, ok := ctx.Value(collectorKey{}).(*Collector); ok {
		c.add(LevelError, message)
	}
}
