package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestPerSecond(t *testing.T) {
	assert.Equal(t, Limit{Rate: 10, Period: time.Second, Burst: 20}, PerSecond(10, 20))
	assert.Equal(t, Limit{Rate: 10, Period: time.Second, Burst: 10}, PerSecond(10, 0))
}

func TestAllowReportsBackendFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	l := NewRedisRateLimiter(rdb)
	res, err := l.Allow(context.Background(), "127.0.0.1", PerSecond(1, 1))
	assert.Nil(t, res)
	assert.ErrorContains(t, err, `rate limit check for "127.0.0.1" failed`)
}
