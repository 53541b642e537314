// Package stock 通过 HTTP 访问商品与库存服务
package stock

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/wyfcoding/storefront/internal/cart/domain"
	"github.com/wyfcoding/storefront/pkg/logger"
)

// Observer 接收每次请求的结果与耗时
type Observer interface {
	ObserveStockRequest(endpoint, outcome string, elapsed time.Duration)
}

// Config 客户端配置
type Config struct {
	BaseURL string
	// 客户端级别的兜底超时；单次调用的截止时间由调用方 context 控制
	Timeout  time.Duration
	Observer Observer
}

// Client 库存服务 HTTP 客户端
//
//	GET /products/{id} -> Product
//	GET /stock/{id}    -> StockRecord
type Client struct {
	http     *resty.Client
	observer Observer
}

var _ domain.StockService = (*Client)(nil)

// NewClient 创建客户端
func NewClient(cfg Config) *Client {
	c := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Accept", "application/json")
	if cfg.Timeout > 0 {
		c.SetTimeout(cfg.Timeout)
	}
	return &Client{http: c, observer: cfg.Observer}
}

// Product 查询商品信息
func (c *Client) Product(ctx context.Context, productID int) (domain.Product, error) {
	var p domain.Product
	if err := c.get(ctx, "products", productID, &p); err != nil {
		return domain.Product{}, err
	}
	return p, nil
}

// Stock 查询可售库存
func (c *Client) Stock(ctx context.Context, productID int) (domain.StockRecord, error) {
	var s domain.StockRecord
	if err := c.get(ctx, "stock", productID, &s); err != nil {
		return domain.StockRecord{}, err
	}
	return s, nil
}

func (c *Client) get(ctx context.Context, endpoint string, productID int, dest any) (err error) {
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		if c.observer != nil {
			c.observer.ObserveStockRequest(endpoint, outcome, time.Since(start))
		}
	}()

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", strconv.Itoa(productID)).
		Get("/" + endpoint + "/{id}")
	if err != nil {
		return fmt.Errorf("%w: GET /%s/%d: %w", domain.ErrTransport, endpoint, productID, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: GET /%s/%d: status %d", domain.ErrTransport, endpoint, productID, resp.StatusCode())
	}
	if err := json.Unmarshal(resp.Body(), dest); err != nil {
		return fmt.Errorf("%w: decode /%s/%d: %w", domain.ErrTransport, endpoint, productID, err)
	}

	logger.Debug(ctx, "stock service responded",
		"endpoint", endpoint,
		"product_id", productID,
		"status", resp.StatusCode(),
	)
	return nil
}
