package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/storefront/internal/cart/domain"
	"github.com/wyfcoding/storefront/internal/cart/infrastructure/persistence/memory"
)

const testKey = "@RocketShoes:cart"

type fakeStock struct {
	mu           sync.Mutex
	products     map[int]domain.Product
	stock        map[int]int
	productErr   error
	stockErr     error
	block        bool
	productCalls int
	stockCalls   int
}

func newFakeStock() *fakeStock {
	return &fakeStock{products: map[int]domain.Product{}, stock: map[int]int{}}
}

func (f *fakeStock) with(id, available int) *fakeStock {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products[id] = domain.Product{
		ID:    id,
		Title: fmt.Sprintf("Tênis %d", id),
		Price: decimal.NewFromInt(int64(100 + id)),
		Image: fmt.Sprintf("https://cdn.example.com/%d.jpg", id),
	}
	f.stock[id] = available
	return f
}

func (f *fakeStock) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.productCalls + f.stockCalls
}

func (f *fakeStock) Product(ctx context.Context, id int) (domain.Product, error) {
	f.mu.Lock()
	f.productCalls++
	p, ok := f.products[id]
	err, block := f.productErr, f.block
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return domain.Product{}, ctx.Err()
	}
	if err != nil {
		return domain.Product{}, err
	}
	if !ok {
		return domain.Product{}, fmt.Errorf("%w: status 404", domain.ErrTransport)
	}
	return p, nil
}

func (f *fakeStock) Stock(ctx context.Context, id int) (domain.StockRecord, error) {
	f.mu.Lock()
	f.stockCalls++
	amount, ok := f.stock[id]
	err, block := f.stockErr, f.block
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return domain.StockRecord{}, ctx.Err()
	}
	if err != nil {
		return domain.StockRecord{}, err
	}
	if !ok {
		return domain.StockRecord{}, fmt.Errorf("%w: status 404", domain.ErrTransport)
	}
	return domain.StockRecord{ID: id, Amount: amount}, nil
}

type notice struct {
	level   string
	message string
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []notice
}

func (n *recordingNotifier) Success(_ context.Context, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice{"success", message})
}

func (n *recordingNotifier) Error(_ context.Context, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice{"error", message})
}

func (n *recordingNotifier) all() []notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notice(nil), n.notices...)
}

// failingStore 在 failSet 为 true 时拒绝写入
type failingStore struct {
	*memory.Store
	failSet bool
	getErr  error
}

func (s *failingStore) Get(ctx context.Context, key string) (string, bool, error) {
	if s.getErr != nil {
		return "", false, s.getErr
	}
	return s.Store.Get(ctx, key)
}

func (s *failingStore) Set(ctx context.Context, key, value string) error {
	if s.failSet {
		return errors.New("disk full")
	}
	return s.Store.Set(ctx, key, value)
}

type harness struct {
	manager  *CartManager
	store    domain.PersistentStore
	stock    *fakeStock
	notifier *recordingNotifier
}

func newHarness(t *testing.T, store domain.PersistentStore, stock *fakeStock, opts Options) *harness {
	t.Helper()
	if opts.StorageKey == "" {
		opts.StorageKey = testKey
	}
	bus := NewEventBus()
	bus.Subscribe("persistence", PersistCart(store))

	n := &recordingNotifier{}
	m, err := NewCartManager(context.Background(), store, stock, n, bus, opts)
	require.NoError(t, err)
	return &harness{manager: m, store: store, stock: stock, notifier: n}
}

// seed 直接写入存储，模拟之前会话留下的购物车
func seed(t *testing.T, store domain.PersistentStore, cart domain.Cart) {
	t.Helper()
	raw, err := cart.Marshal()
	require.NoError(t, err)
	require.NoError(t, store.Set(context.Background(), testKey, raw))
}

func stored(t *testing.T, store domain.PersistentStore) domain.Cart {
	t.Helper()
	raw, ok, err := store.Get(context.Background(), testKey)
	require.NoError(t, err)
	if !ok {
		return nil
	}
	c, err := domain.UnmarshalCart(raw)
	require.NoError(t, err)
	return c
}

func item(id, amount int) domain.Product {
	return domain.Product{
		ID:     id,
		Title:  fmt.Sprintf("Tênis %d", id),
		Price:  decimal.NewFromInt(int64(100 + id)),
		Image:  fmt.Sprintf("https://cdn.example.com/%d.jpg", id),
		Amount: amount,
	}
}

// amounts 以 id->amount 形式描述购物车，忽略价格表示差异
func amounts(c domain.Cart) [][2]int {
	out := make([][2]int, 0, len(c))
	for _, p := range c {
		out = append(out, [2]int{p.ID, p.Amount})
	}
	return out
}
