package domain

import "errors"

var (
	// ErrStockUnavailable 请求数量超过可售库存
	ErrStockUnavailable = errors.New("requested quantity out of stock")
	// ErrProductNotFound 操作的商品不在购物车中
	ErrProductNotFound = errors.New("product not found in cart")
	// ErrTransport 库存服务网络或解析失败
	ErrTransport = errors.New("stock service transport failure")
)

// 面向用户的提示文案
const (
	NoticeProductAdded   = "Product added to cart"
	NoticeProductRemoved = "Product removed from cart"
	NoticeOutOfStock     = "Requested quantity out of stock"
	NoticeAddFailed      = "Error adding product"
	NoticeRemoveFailed   = "Error removing product"
	NoticeUpdateFailed   = "Error changing product quantity"
)
