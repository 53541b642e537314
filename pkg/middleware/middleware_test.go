package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/storefront/pkg/config"
	"github.com/wyfcoding/storefront/pkg/logger"
	"github.com/wyfcoding/storefront/pkg/ratelimit"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type recordedRequest struct {
	method string
	path   string
	status int
}

type fakeRecorder struct {
	requests []recordedRequest
}

func (r *fakeRecorder) RecordHTTPRequest(method, path string, statusCode int, _ time.Duration) {
	r.requests = append(r.requests, recordedRequest{method, path, statusCode})
}

type fakeLimiter struct {
	result *ratelimit.Result
	err    error
	keys   []string
	limits []ratelimit.Limit
}

func (l *fakeLimiter) Allow(_ context.Context, key string, limit ratelimit.Limit) (*ratelimit.Result, error) {
	l.keys = append(l.keys, key)
	l.limits = append(l.limits, limit)
	return l.result, l.err
}

func TestLoggingMiddlewarePropagatesRequestID(t *testing.T) {
	r := gin.New()
	r.Use(GinLoggingMiddleware())
	var fromCtx string
	r.GET("/ping", func(c *gin.Context) {
		fromCtx = logger.RequestID(c.Request.Context())
		c.String(http.StatusOK, "pong")
	})

	t.Run("incoming header", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set(RequestIDHeader, "req-42")
		r.ServeHTTP(w, req)

		assert.Equal(t, "req-42", w.Header().Get(RequestIDHeader))
		assert.Equal(t, "req-42", fromCtx)
	})

	t.Run("generated", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

		id := w.Header().Get(RequestIDHeader)
		assert.Len(t, id, 36)
		assert.Equal(t, id, fromCtx)
	})
}

func TestRecoveryMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(GinLoggingMiddleware(), GinRecoveryMiddleware())
	r.GET("/boom", func(*gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set(RequestIDHeader, "req-7")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Internal server error","request_id":"req-7"}`, w.Body.String())
}

func TestMetricsMiddlewareUsesRouteTemplate(t *testing.T) {
	rec := &fakeRecorder{}
	r := gin.New()
	r.Use(GinMetricsMiddleware(rec))
	r.DELETE("/items/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/items/12", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	assert.Equal(t, []recordedRequest{
		{http.MethodDelete, "/items/:id", http.StatusOK},
		{http.MethodGet, "unmatched", http.StatusNotFound},
	}, rec.requests)
}

func TestCORSPreflight(t *testing.T) {
	r := gin.New()
	r.Use(GinCORSMiddleware())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/x", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func newLimitedRouter(l ratelimit.RateLimiter, cfg config.RateLimitConfig) *gin.Engine {
	r := gin.New()
	r.Use(RateLimitMiddleware(l, cfg))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestRateLimitMiddleware(t *testing.T) {
	cfg := config.RateLimitConfig{Enabled: true, QPS: 5, Burst: 10}

	t.Run("allowed", func(t *testing.T) {
		l := &fakeLimiter{result: &ratelimit.Result{Allowed: true, Remaining: 9, ResetAfter: time.Second}}
		w := httptest.NewRecorder()
		newLimitedRouter(l, cfg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "10", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "9", w.Header().Get("X-RateLimit-Remaining"))
		require.Len(t, l.limits, 1)
		assert.Equal(t, ratelimit.PerSecond(5, 10), l.limits[0])
	})

	t.Run("rejected", func(t *testing.T) {
		l := &fakeLimiter{result: &ratelimit.Result{Allowed: false, RetryAfter: 2 * time.Second}}
		w := httptest.NewRecorder()
		newLimitedRouter(l, cfg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "2", w.Header().Get("Retry-After"))
	})

	t.Run("backend failure fails open", func(t *testing.T) {
		l := &fakeLimiter{err: errors.New("redis down")}
		w := httptest.NewRecorder()
		newLimitedRouter(l, cfg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("disabled", func(t *testing.T) {
		l := &fakeLimiter{}
		w := httptest.NewRecorder()
		newLimitedRouter(l, config.RateLimitConfig{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, l.keys)
	})
}

func TestGRPCInterceptors(t *testing.T) {
	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

	t.Run("request id from metadata", func(t *testing.T) {
		ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-request-id", "grpc-1"))
		var got string
		_, err := GRPCLoggingInterceptor()(ctx, nil, info, func(ctx context.Context, _ any) (any, error) {
			got = logger.RequestID(ctx)
			return "ok", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "grpc-1", got)
	})

	t.Run("panic becomes internal", func(t *testing.T) {
		resp, err := GRPCRecoveryInterceptor()(context.Background(), nil, info, func(context.Context, any) (any, error) {
			panic("boom")
		})
		assert.Nil(t, resp)
		assert.Equal(t, codes.Internal, status.Code(err))
	})
}
