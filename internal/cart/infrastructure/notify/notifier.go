// Package notify 实现面向终端用户的提示通道
package notify

import (
	"context"
	"time"

	"github.com/wyfcoding/storefront/internal/cart/domain"
	"github.com/wyfcoding/storefront/pkg/logger"
)

// 提示级别
const (
	LevelSuccess = "success"
	LevelError   = "error"
)

// Notice 一条提示
type Notice struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// LogNotifier 将提示写入日志
type LogNotifier struct{}

var _ domain.Notifier = LogNotifier{}

// Success 记录成功提示
func (LogNotifier) Success(ctx context.Context, message string) {
	logger.Info(ctx, "cart notice", "level", LevelSuccess, "message", message)
}

// Error 记录失败提示
func (LogNotifier) Error(ctx context.Context, message string) {
	logger.Warn(ctx, "cart notice", "level", LevelError, "message", message)
}

// Sender 发送 JSON 消息的生产者，由 pkg/mq.KafkaProducer 实现
type Sender interface {
	SendMessage(ctx context.Context, topic string, key string, value any) error
}

// KafkaNotice 发送到 Kafka 的提示格式，由下游推送服务投递给前端
type KafkaNotice struct {
	Notice
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// KafkaNotifier 将提示推送到消息队列；发送失败只记录日志
type KafkaNotifier struct {
	sender Sender
	topic  string
	key    string
}

var _ domain.Notifier = (*KafkaNotifier)(nil)

// NewKafkaNotifier 创建 Kafka 提示通道，key 通常为购物车存储键
func NewKafkaNotifier(sender Sender, topic, key string) *KafkaNotifier {
	return &KafkaNotifier{sender: sender, topic: topic, key: key}
}

// Success 推送成功提示
func (n *KafkaNotifier) Success(ctx context.Context, message string) {
	n.send(ctx, LevelSuccess, message)
}

// Error 推送失败提示
func (n *KafkaNotifier) Error(ctx context.Context, message string) {
	n.send(ctx, LevelError, message)
}

func (n *KafkaNotifier) send(ctx context.Context, level, message string) {
	notice := KafkaNotice{
		Notice:    Notice{Level: level, Message: message},
		RequestID: logger.RequestID(ctx),
		Timestamp: time.Now(),
	}
	if err := n.sender.SendMessage(ctx, n.topic, n.key, notice); err != nil {
		logger.Warn(ctx, "failed to publish cart notice", "topic", n.topic, "error", err)
	}
}

// Counter 按级别统计提示数量
type Counter interface {
	IncNotice(level string)
}

type countingNotifier struct {
	counter Counter
}

// Counting 返回只做计数的 Notifier，通常与其它通道一起放入 Multi
func Counting(counter Counter) domain.Notifier {
	return countingNotifier{counter: counter}
}

func (n countingNotifier) Success(context.Context, string) { n.counter.IncNotice(LevelSuccess) }

func (n countingNotifier) Error(context.Context, string) { n.counter.IncNotice(LevelError) }

// Multi 将提示分发给多个通道
type Multi []domain.Notifier

// Success 分发成功提示
func (m Multi) Success(ctx context.Context, message string) {
	for _, n := range m {
		n.Success(ctx, message)
	}
}

// Error 分发失败提示
func (m Multi) Error(ctx context.Context, message string) {
	for _, n := range m {
		n.Error(ctx, message)
	}
}
