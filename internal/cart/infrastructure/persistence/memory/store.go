// Package memory 提供进程内的购物车持久化实现，用于本地开发与测试
package memory

import (
	"context"
	"sync"

	"github.com/wyfcoding/storefront/internal/cart/domain"
)

// Store 基于 map 的键值存储
type Store struct {
	mu   sync.RWMutex
	data map[string]string
}

var _ domain.PersistentStore = (*Store)(nil)

// NewStore 创建内存存储
func NewStore() *Store {
	return &Store{data: make(map[string]string)}
}

// Get 读取键值
func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok, nil
}

// Set 写入键值
func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

// Ping 内存存储始终可用
func (s *Store) Ping(context.Context) error { return nil }
