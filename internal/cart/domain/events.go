package domain

import "time"

// CartAction 触发变更的操作类型
type CartAction string

const (
	ActionItemAdded     CartAction = "item_added"
	ActionItemIncreased CartAction = "item_increased"
	ActionItemRemoved   CartAction = "item_removed"
	ActionAmountUpdated CartAction = "amount_updated"
)

// CartChangedEvent 购物车变更事件，携带变更后的完整购物车
type CartChangedEvent struct {
	Key       string     `json:"key"`
	Action    CartAction `json:"action"`
	ProductID int        `json:"product_id"`
	Cart      Cart       `json:"cart"`
	Timestamp time.Time  `json:"timestamp"`
}
