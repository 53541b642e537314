// Package messaging 将购物车变更事件转发到 Kafka
package messaging

import (
	"context"
	"fmt"

	"github.com/wyfcoding/storefront/internal/cart/domain"
)

// Sender 发送 JSON 消息的生产者，由 pkg/mq.KafkaProducer 实现
type Sender interface {
	SendMessage(ctx context.Context, topic string, key string, value any) error
}

// CartEventPublisher 以存储键为消息 key 发布 CartChangedEvent
type CartEventPublisher struct {
	sender Sender
	topic  string
}

// NewCartEventPublisher 创建发布者
func NewCartEventPublisher(sender Sender, topic string) *CartEventPublisher {
	return &CartEventPublisher{sender: sender, topic: topic}
}

// Handle 作为事件总线订阅者使用
func (p *CartEventPublisher) Handle(ctx context.Context, event domain.CartChangedEvent) error {
	if err := p.sender.SendMessage(ctx, p.topic, event.Key, event); err != nil {
		return fmt.Errorf("publish %s to %s: %w", event.Action, p.topic, err)
	}
	return nil
}
