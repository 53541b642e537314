package mysql

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/storefront/pkg/db"
	gormmysql "gorm.io/driver/mysql"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	d, err := db.Open(gormmysql.New(gormmysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), db.Config{})
	require.NoError(t, err)
	return NewStore(d), mock
}

func TestStoreGetFound(t *testing.T) {
	s, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"storage_key", "value", "updated_at"}).
		AddRow("@RocketShoes:cart", `[{"id":1,"amount":2}]`, time.Now())
	mock.ExpectQuery("SELECT \\* FROM `cart_entries` WHERE storage_key = \\?").
		WillReturnRows(rows)

	v, ok, err := s.Get(context.Background(), "@RocketShoes:cart")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"id":1,"amount":2}]`, v)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreGetMissing(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT \\* FROM `cart_entries`").
		WillReturnRows(sqlmock.NewRows([]string{"storage_key", "value", "updated_at"}))

	_, ok, err := s.Get(context.Background(), "@RocketShoes:cart")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreGetError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT \\* FROM `cart_entries`").WillReturnError(errors.New("connection reset"))

	_, _, err := s.Get(context.Background(), "@RocketShoes:cart")
	assert.ErrorContains(t, err, "connection reset")
}

func TestStoreSetUpserts(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO `cart_entries`.*ON DUPLICATE KEY UPDATE").
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, s.Set(context.Background(), "@RocketShoes:cart", `[]`))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreSetError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO `cart_entries`").WillReturnError(errors.New("deadlock"))

	err := s.Set(context.Background(), "@RocketShoes:cart", `[]`)
	assert.ErrorContains(t, err, "deadlock")
}
