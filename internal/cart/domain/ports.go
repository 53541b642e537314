package domain

import "context"

// PersistentStore 持久化键值存储，保存序列化后的购物车。
// 键不存在时 ok 返回 false。
type PersistentStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}

// StockService 商品与库存查询服务
type StockService interface {
	Product(ctx context.Context, productID int) (Product, error)
	Stock(ctx context.Context, productID int) (StockRecord, error)
}

// Notifier 面向终端用户的提示，发出即忘
type Notifier interface {
	Success(ctx context.Context, message string)
	Error(ctx context.Context, message string)
}

// EventHandler 处理购物车变更事件；返回错误时变更不会生效
type EventHandler func(ctx context.Context, event CartChangedEvent) error

// EventPublisher 购物车变更事件发布者
type EventPublisher interface {
	Publish(ctx context.Context, event CartChangedEvent) error
}
