package application

import (
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/storefront/internal/cart/domain"
)

// CartSummary 购物车概要，供页面头部与结算页展示
type CartSummary struct {
	Items     domain.Cart     `json:"items"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"item_count"`
}

// Summary 返回当前购物车及其总金额、件数
func (m *CartManager) Summary() CartSummary {
	cart := m.Cart()
	return CartSummary{
		Items:     cart,
		Total:     cart.Total(),
		ItemCount: cart.ItemCount(),
	}
}
