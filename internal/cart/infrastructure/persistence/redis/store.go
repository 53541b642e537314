// Package redis 基于 Redis 的购物车持久化实现
package redis

import (
	"context"
	"fmt"

	"github.com/wyfcoding/storefront/internal/cart/domain"
	"github.com/wyfcoding/storefront/pkg/cache"
)

// Store 将序列化后的购物车保存为 Redis 字符串，不设置过期时间
type Store struct {
	cache *cache.RedisCache
}

var _ domain.PersistentStore = (*Store)(nil)

// NewStore 创建 Redis 存储
func NewStore(c *cache.RedisCache) *Store {
	return &Store{cache: c}
}

// Get 读取购物车
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, ok, nil
}

// Set 保存购物车
func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := s.cache.Set(ctx, key, value, 0); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Ping 检查 Redis 连通性
func (s *Store) Ping(ctx context.Context) error {
	return s.cache.Ping(ctx)
}
