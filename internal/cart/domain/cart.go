package domain

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Product 购物车中的商品条目，Amount 为当前加入购物车的数量
type Product struct {
	ID     int             `json:"id"`
	Title  string          `json:"title"`
	Price  decimal.Decimal `json:"price"`
	Image  string          `json:"image"`
	Amount int             `json:"amount"`
}

// Subtotal 单个条目的小计
func (p Product) Subtotal() decimal.Decimal {
	return p.Price.Mul(decimal.NewFromInt(int64(p.Amount)))
}

// StockRecord 库存服务返回的可售数量，只在单次操作内有效，不做缓存
type StockRecord struct {
	ID     int `json:"id"`
	Amount int `json:"amount"`
}

// Cart 有序的商品列表，ID 唯一，保持插入顺序。
// 所有修改方法都返回新的 Cart，不修改接收者。
type Cart []Product

// Find 根据商品 ID 查找条目
func (c Cart) Find(productID int) (Product, bool) {
	if i := c.index(productID); i >= 0 {
		return c[i], true
	}
	return Product{}, false
}

// Contains 判断商品是否已在购物车中
func (c Cart) Contains(productID int) bool {
	return c.index(productID) >= 0
}

func (c Cart) index(productID int) int {
	for i := range c {
		if c[i].ID == productID {
			return i
		}
	}
	return -1
}

// Clone 返回独立副本
func (c Cart) Clone() Cart {
	if c == nil {
		return Cart{}
	}
	out := make(Cart, len(c))
	copy(out, c)
	return out
}

// Append 在末尾追加新商品；商品已存在时原样返回
func (c Cart) Append(p Product) Cart {
	if c.Contains(p.ID) {
		return c.Clone()
	}
	out := make(Cart, 0, len(c)+1)
	out = append(out, c...)
	return append(out, p)
}

// WithAmount 设置指定商品的数量
func (c Cart) WithAmount(productID, amount int) Cart {
	out := c.Clone()
	if i := out.index(productID); i >= 0 {
		out[i].Amount = amount
	}
	return out
}

// Without 移除指定商品
func (c Cart) Without(productID int) Cart {
	out := make(Cart, 0, len(c))
	for _, p := range c {
		if p.ID != productID {
			out = append(out, p)
		}
	}
	return out
}

// Total 购物车总金额
func (c Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, p := range c {
		total = total.Add(p.Subtotal())
	}
	return total
}

// ItemCount 购物车商品件数（数量之和）
func (c Cart) ItemCount() int {
	n := 0
	for _, p := range c {
		n += p.Amount
	}
	return n
}

// Marshal 序列化为持久化格式（JSON 数组）
func (c Cart) Marshal() (string, error) {
	if c == nil {
		c = Cart{}
	}
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal cart: %w", err)
	}
	return string(data), nil
}

// UnmarshalCart 从持久化格式还原购物车
func UnmarshalCart(raw string) (Cart, error) {
	var c Cart
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, fmt.Errorf("unmarshal cart: %w", err)
	}
	if c == nil {
		c = Cart{}
	}
	return c, nil
}
