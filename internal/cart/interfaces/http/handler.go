// Package http 购物车 HTTP 接口
package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/storefront/internal/cart/application"
	"github.com/wyfcoding/storefront/internal/cart/domain"
	"github.com/wyfcoding/storefront/internal/cart/infrastructure/notify"
)

// CartService 处理器依赖的购物车操作
type CartService interface {
	AddProduct(ctx context.Context, productID int) error
	RemoveProduct(ctx context.Context, productID int) error
	UpdateProductAmount(ctx context.Context, req application.UpdateProductAmount) error
	Summary() application.CartSummary
}

type Handler struct {
	service CartService
}

func NewHandler(service CartService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	g := r.Group("/cart")
	{
		g.GET("", h.GetCart)
		g.POST("/items", h.AddItem)
		g.DELETE("/items/:id", h.RemoveItem)
		g.PUT("/items/:id", h.UpdateAmount)
	}
}

// MutationResponse 修改类接口的响应体
type MutationResponse struct {
	Items     domain.Cart     `json:"items"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"item_count"`
	Notices   []notify.Notice `json:"notices"`
	Error     string          `json:"error,omitempty"`
}

func (h *Handler) GetCart(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Summary())
}

type AddItemReq struct {
	ProductID int `json:"product_id" binding:"required,min=1"`
}

func (h *Handler) AddItem(c *gin.Context) {
	var req AddItemReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, collector := notify.WithCollector(c.Request.Context())
	err := h.service.AddProduct(ctx, req.ProductID)
	h.respond(c, collector, err)
}

func (h *Handler) RemoveItem(c *gin.Context) {
	id, ok := productID(c)
	if !ok {
		return
	}

	ctx, collector := notify.WithCollector(c.Request.Context())
	err := h.service.RemoveProduct(ctx, id)
	h.respond(c, collector, err)
}

type UpdateAmountReq struct {
	Amount *int `json:"amount" binding:"required"`
}

func (h *Handler) UpdateAmount(c *gin.Context) {
	id, ok := productID(c)
	if !ok {
		return
	}
	var req UpdateAmountReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, collector := notify.WithCollector(c.Request.Context())
	err := h.service.UpdateProductAmount(ctx, application.UpdateProductAmount{ProductID: id, Amount: *req.Amount})
	h.respond(c, collector, err)
}

func (h *Handler) respond(c *gin.Context, collector *notify.Collector, err error) {
	summary := h.service.Summary()
	resp := MutationResponse{
		Items:     summary.Items,
		Total:     summary.Total,
		ItemCount: summary.ItemCount,
		Notices:   collector.Notices(),
	}
	if err != nil {
		resp.Error = err.Error()
	}
	c.JSON(statusFor(err), resp)
}

func productID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return 0, false
	}
	return id, true
}

func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, domain.ErrStockUnavailable):
		return http.StatusConflict
	case errors.Is(err, domain.ErrProductNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrTransport),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
