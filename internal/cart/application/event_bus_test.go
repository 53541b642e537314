package application

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/storefront/internal/cart/domain"
	"github.com/wyfcoding/storefront/internal/cart/infrastructure/persistence/memory"
)

func TestEventBusOrdering(t *testing.T) {
	bus := NewEventBus()
	var seen []string
	record := func(name string) domain.EventHandler {
		return func(context.Context, domain.CartChangedEvent) error {
			seen = append(seen, name)
			return nil
		}
	}
	bus.SubscribeBestEffort("kafka", record("kafka"))
	bus.Subscribe("persistence", record("persistence"))
	bus.Subscribe("audit", record("audit"))

	require.NoError(t, bus.Publish(context.Background(), domain.CartChangedEvent{Key: testKey}))
	require.NoError(t, bus.Close())
	assert.Equal(t, []string{"persistence", "audit", "kafka"}, seen)
}

func TestEventBusRequiredFailureAborts(t *testing.T) {
	bus := NewEventBus()
	bestEffortCalled := false
	bus.Subscribe("persistence", func(context.Context, domain.CartChangedEvent) error {
		return errors.New("write failed")
	})
	bus.SubscribeBestEffort("kafka", func(context.Context, domain.CartChangedEvent) error {
		bestEffortCalled = true
		return nil
	})

	err := bus.Publish(context.Background(), domain.CartChangedEvent{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subscriber persistence")
	require.NoError(t, bus.Close())
	assert.False(t, bestEffortCalled)
}

func TestEventBusBestEffortErrorsIgnored(t *testing.T) {
	bus := NewEventBus()
	bus.SubscribeBestEffort("kafka", func(context.Context, domain.CartChangedEvent) error {
		return errors.New("broker down")
	})

	assert.NoError(t, bus.Publish(context.Background(), domain.CartChangedEvent{}))
	assert.NoError(t, bus.Close())
}

func TestEventBusBestEffortDoesNotBlockPublish(t *testing.T) {
	bus := NewEventBus()
	var delivered atomic.Int32
	bus.SubscribeBestEffort("kafka", func(context.Context, domain.CartChangedEvent) error {
		time.Sleep(300 * time.Millisecond)
		delivered.Add(1)
		return nil
	})

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, bus.Publish(context.Background(), domain.CartChangedEvent{}))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	// Close 等待队列中的事件全部投递
	require.NoError(t, bus.Close())
	assert.Equal(t, int32(3), delivered.Load())
}

func TestEventBusBestEffortContextOutlivesRequest(t *testing.T) {
	bus := NewEventBus()
	var ctxErr error
	bus.SubscribeBestEffort("kafka", func(ctx context.Context, _ domain.CartChangedEvent) error {
		ctxErr = ctx.Err()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, bus.Publish(ctx, domain.CartChangedEvent{}))
	cancel()

	require.NoError(t, bus.Close())
	assert.NoError(t, ctxErr)
}

func TestEventBusCloseIdempotent(t *testing.T) {
	bus := NewEventBus()
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	// 关闭后发布只执行必需订阅者
	called := false
	bus.Subscribe("persistence", func(context.Context, domain.CartChangedEvent) error {
		called = true
		return nil
	})
	bus.SubscribeBestEffort("kafka", func(context.Context, domain.CartChangedEvent) error {
		t.Error("best-effort subscriber must not run after Close")
		return nil
	})
	require.NoError(t, bus.Publish(context.Background(), domain.CartChangedEvent{}))
	assert.True(t, called)
}

func TestPersistCart(t *testing.T) {
	store := memory.NewStore()
	handler := PersistCart(store)

	err := handler(context.Background(), domain.CartChangedEvent{
		Key:    testKey,
		Action: domain.ActionItemAdded,
		Cart:   domain.Cart{item(1, 2)},
	})
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{1, 2}}, amounts(stored(t, store)))

	require.NoError(t, handler(context.Background(), domain.CartChangedEvent{Key: testKey}))
	assert.Equal(t, "[]", mustRaw(t, store))
}
