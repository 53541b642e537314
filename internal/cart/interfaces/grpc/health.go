// Package grpc 提供标准 grpc.health.v1 健康检查服务
package grpc

import (
	"context"
	"sync"
	"time"

	"github.com/wyfcoding/storefront/pkg/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Pinger 可探测的依赖
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthServer 根据存储探测结果维护服务状态
type HealthServer struct {
	service  string
	pinger   Pinger
	interval time.Duration
	server   *health.Server

	stopOnce sync.Once
	stop     chan struct{}
}

// NewHealthServer 创建健康检查服务并注册到 s。
// service 为空字符串时表示整体状态。
func NewHealthServer(s *grpc.Server, service string, pinger Pinger, interval time.Duration) *HealthServer {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	hs := &HealthServer{
		service:  service,
		pinger:   pinger,
		interval: interval,
		server:   health.NewServer(),
		stop:     make(chan struct{}),
	}
	hs.server.SetServingStatus(service, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(s, hs.server)
	return hs
}

// Check 执行一次探测并更新状态
func (h *HealthServer) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, h.interval)
	defer cancel()

	st := healthpb.HealthCheckResponse_SERVING
	if err := h.pinger.Ping(ctx); err != nil {
		logger.Warn(ctx, "health pinger failed", "service", h.service, "error", err)
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.server.SetServingStatus(h.service, st)
	return st
}

// Run 周期性探测，直到 ctx 结束或调用 Shutdown
func (h *HealthServer) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stop:
			return
		case <-ticker.C:
			h.Check(ctx)
		}
	}
}

// Shutdown 将所有服务标记为 NOT_SERVING 并停止探测
func (h *HealthServer) Shutdown() {
	h.stopOnce.Do(func() {
		close(h.stop)
		h.server.Shutdown()
	})
}
