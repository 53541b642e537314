package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wyfcoding/storefront/internal/cart/domain"
	"github.com/wyfcoding/storefront/pkg/logger"
	"golang.org/x/sync/errgroup"
)

const defaultStockTimeout = 5 * time.Second

// 操作名称，用于日志与指标
const (
	OpAddProduct    = "add_product"
	OpRemoveProduct = "remove_product"
	OpUpdateAmount  = "update_amount"
)

// 操作结果分类
const (
	OutcomeOK          = "ok"
	OutcomeNoop        = "noop"
	OutcomeOutOfStock  = "out_of_stock"
	OutcomeNotFound    = "not_found"
	OutcomeTransport   = "transport_error"
	OutcomeStoreFailed = "error"
)

// Observer 接收每次操作的结果与耗时
type Observer interface {
	ObserveOperation(op, outcome string, elapsed time.Duration)
}

// Options 购物车管理器选项
type Options struct {
	// 持久化键名
	StorageKey string
	// 库存服务单次请求的超时时间
	StockTimeout time.Duration
	// 删除成功时发出成功提示；为 false 时保持历史行为，删除后总是提示失败
	RemoveNotifiesSuccess bool
	Observer              Observer
}

// UpdateProductAmount 修改数量请求
type UpdateProductAmount struct {
	ProductID int `json:"product_id"`
	Amount    int `json:"amount"`
}

// CartManager 购物车状态管理器。
// 每个操作在 mu 内完成“读取-校验库存-计算-持久化-提交内存”，
// 持久化通过发布 CartChangedEvent 完成，发布失败时内存状态保持不变。
// stateMu 只保护 cart 字段的替换与读取，读操作不会等待库存请求。
type CartManager struct {
	mu      sync.Mutex
	stateMu sync.RWMutex
	cart    domain.Cart

	key                   string
	stock                 domain.StockService
	notifier              domain.Notifier
	publisher             domain.EventPublisher
	stockTimeout          time.Duration
	removeNotifiesSuccess bool
	observer              Observer
}

// NewCartManager 从持久化存储加载购物车并创建管理器。
// 键不存在时以空购物车开始；存储内容无法解析时返回错误。
// publisher 为 nil 时直接写入 store。
func NewCartManager(
	ctx context.Context,
	store domain.PersistentStore,
	stock domain.StockService,
	notifier domain.Notifier,
	publisher domain.EventPublisher,
	opts Options,
) (*CartManager, error) {
	if opts.StorageKey == "" {
		return nil, errors.New("storage key is required")
	}
	if opts.StockTimeout <= 0 {
		opts.StockTimeout = defaultStockTimeout
	}

	cart, err := loadCart(ctx, store, opts.StorageKey)
	if err != nil {
		return nil, err
	}
	if publisher == nil {
		bus := NewEventBus()
		bus.Subscribe("persistence", PersistCart(store))
		publisher = bus
	}

	logger.Info(ctx, "cart loaded", "key", opts.StorageKey, "items", len(cart))
	return &CartManager{
		cart:                  cart,
		key:                   opts.StorageKey,
		stock:                 stock,
		notifier:              notifier,
		publisher:             publisher,
		stockTimeout:          opts.StockTimeout,
		removeNotifiesSuccess: opts.RemoveNotifiesSuccess,
		observer:              opts.Observer,
	}, nil
}

func loadCart(ctx context.Context, store domain.PersistentStore, key string) (domain.Cart, error) {
	raw, ok, err := store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load cart %q: %w", key, err)
	}
	if !ok || raw == "" {
		return domain.Cart{}, nil
	}
	cart, err := domain.UnmarshalCart(raw)
	if err != nil {
		return nil, fmt.Errorf("load cart %q: %w", key, err)
	}
	return cart, nil
}

// Cart 返回当前购物车的只读副本
func (m *CartManager) Cart() domain.Cart {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.cart.Clone()
}

// AddProduct 将商品加入购物车或将已有条目数量加一
func (m *CartManager) AddProduct(ctx context.Context, productID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := time.Now()
	err := m.addProduct(ctx, productID)
	m.finish(ctx, OpAddProduct, productID, err, start)

	switch {
	case err == nil:
		m.notifier.Success(ctx, domain.NoticeProductAdded)
	case errors.Is(err, domain.ErrStockUnavailable):
		m.notifier.Error(ctx, domain.NoticeOutOfStock)
	default:
		m.notifier.Error(ctx, domain.NoticeAddFailed)
	}
	return err
}

func (m *CartManager) addProduct(ctx context.Context, productID int) error {
	existing, ok := m.cart.Find(productID)
	if !ok {
		product, stock, err := m.fetchProductAndStock(ctx, productID)
		if err != nil {
			return err
		}
		if stock.Amount <= 0 {
			return domain.ErrStockUnavailable
		}
		product.ID = productID
		product.Amount = 1
		return m.commit(ctx, m.cart.Append(product), domain.ActionItemAdded, productID)
	}

	stock, err := m.fetchStock(ctx, productID)
	if err != nil {
		return err
	}
	if existing.Amount >= stock.Amount {
		return domain.ErrStockUnavailable
	}
	return m.commit(ctx, m.cart.WithAmount(productID, existing.Amount+1), domain.ActionItemIncreased, productID)
}

// RemoveProduct 从购物车移除商品
func (m *CartManager) RemoveProduct(ctx context.Context, productID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := time.Now()
	var err error
	if m.cart.Contains(productID) {
		err = m.commit(ctx, m.cart.Without(productID), domain.ActionItemRemoved, productID)
	} else {
		err = domain.ErrProductNotFound
	}
	m.finish(ctx, OpRemoveProduct, productID, err, start)

	if err == nil && m.removeNotifiesSuccess {
		m.notifier.Success(ctx, domain.NoticeProductRemoved)
	} else {
		// 历史行为：即使删除成功也提示失败
		m.notifier.Error(ctx, domain.NoticeRemoveFailed)
	}
	return err
}

// UpdateProductAmount 将已有条目数量设置为指定值。数量小于 1 时不做任何处理。
func (m *CartManager) UpdateProductAmount(ctx context.Context, req UpdateProductAmount) error {
	if req.Amount < 1 {
		m.observe(OpUpdateAmount, OutcomeNoop, 0)
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	start := time.Now()
	err := m.updateAmount(ctx, req)
	m.finish(ctx, OpUpdateAmount, req.ProductID, err, start)

	switch {
	case err == nil:
	case errors.Is(err, domain.ErrStockUnavailable):
		m.notifier.Error(ctx, domain.NoticeOutOfStock)
	default:
		m.notifier.Error(ctx, domain.NoticeUpdateFailed)
	}
	return err
}

func (m *CartManager) updateAmount(ctx context.Context, req UpdateProductAmount) error {
	if !m.cart.Contains(req.ProductID) {
		return domain.ErrProductNotFound
	}
	stock, err := m.fetchStock(ctx, req.ProductID)
	if err != nil {
		return err
	}
	if req.Amount > stock.Amount {
		return domain.ErrStockUnavailable
	}
	return m.commit(ctx, m.cart.WithAmount(req.ProductID, req.Amount), domain.ActionAmountUpdated, req.ProductID)
}

// commit 发布变更事件（持久化），成功后再替换内存中的购物车
func (m *CartManager) commit(ctx context.Context, next domain.Cart, action domain.CartAction, productID int) error {
	event := domain.CartChangedEvent{
		Key:       m.key,
		Action:    action,
		ProductID: productID,
		Cart:      next.Clone(),
		Timestamp: time.Now(),
	}
	if err := m.publisher.Publish(ctx, event); err != nil {
		return fmt.Errorf("persist cart: %w", err)
	}

	m.stateMu.Lock()
	m.cart = next
	m.stateMu.Unlock()
	return nil
}

func (m *CartManager) fetchStock(ctx context.Context, productID int) (domain.StockRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, m.stockTimeout)
	defer cancel()
	return m.stock.Stock(ctx, productID)
}

// fetchProductAndStock 并发请求商品信息与库存，共用同一个截止时间
func (m *CartManager) fetchProductAndStock(ctx context.Context, productID int) (domain.Product, domain.StockRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, m.stockTimeout)
	defer cancel()

	var (
		product domain.Product
		stock   domain.StockRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		product, err = m.stock.Product(gctx, productID)
		return err
	})
	g.Go(func() error {
		var err error
		stock, err = m.stock.Stock(gctx, productID)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.Product{}, domain.StockRecord{}, err
	}
	return product, stock, nil
}

func (m *CartManager) finish(ctx context.Context, op string, productID int, err error, start time.Time) {
	outcome := classify(err)
	m.observe(op, outcome, time.Since(start))

	if err != nil {
		logger.Warn(ctx, "cart operation failed",
			"op", op,
			"product_id", productID,
			"outcome", outcome,
			"error", err,
		)
		return
	}
	logger.Debug(ctx, "cart operation succeeded", "op", op, "product_id", productID, "items", len(m.cart))
}

func (m *CartManager) observe(op, outcome string, elapsed time.Duration) {
	if m.observer != nil {
		m.observer.ObserveOperation(op, outcome, elapsed)
	}
}

func classify(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, domain.ErrStockUnavailable):
		return OutcomeOutOfStock
	case errors.Is(err, domain.ErrProductNotFound):
		return OutcomeNotFound
	case errors.Is(err, domain.ErrTransport),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return OutcomeTransport
	default:
		return OutcomeStoreFailed
	}
}
