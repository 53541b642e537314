// Package mysql 基于 GORM/MySQL 的购物车持久化实现
package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wyfcoding/storefront/internal/cart/domain"
	"github.com/wyfcoding/storefront/pkg/db"
	"gorm.io/gorm"
)

// CartEntryModel 对应 cart_entries 表，每个持久化键一行
type CartEntryModel struct {
	Key       string    `gorm:"column:storage_key;type:varchar(191);primaryKey"`
	Value     string    `gorm:"column:value;type:longtext;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName 指定表名
func (CartEntryModel) TableName() string { return "cart_entries" }

// Store MySQL 键值存储
type Store struct {
	db *db.DB
}

var _ domain.PersistentStore = (*Store)(nil)

// NewStore 创建 MySQL 存储
func NewStore(d *db.DB) *Store {
	return &Store{db: d}
}

// Migrate 自动建表
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&CartEntryModel{})
}

// Get 读取购物车
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var m CartEntryModel
	err := s.db.WithContext(ctx).Where("storage_key = ?", key).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query cart entry %s: %w", key, err)
	}
	return m.Value, true, nil
}

// Set 写入或覆盖购物车
func (s *Store) Set(ctx context.Context, key, value string) error {
	m := &CartEntryModel{Key: key, Value: value, UpdatedAt: time.Now()}
	if err := s.db.Upsert(ctx, m, []string{"storage_key"}, []string{"value", "updated_at"}); err != nil {
		return fmt.Errorf("upsert cart entry %s: %w", key, err)
	}
	return nil
}

// Ping 检查数据库连通性
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
