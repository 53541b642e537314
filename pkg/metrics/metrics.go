// Package metrics 提供 Prometheus 指标，覆盖 HTTP 请求、购物车操作、库存服务调用与用户提示
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wyfcoding/storefront/pkg/logger"
)

const namespace = "storefront"

// Metrics 指标集合
type Metrics struct {
	registry *prometheus.Registry

	// HTTP 请求计数
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTP 请求耗时
	HTTPRequestDuration *prometheus.HistogramVec

	// 购物车操作计数，按操作与结果分类
	CartOperationsTotal *prometheus.CounterVec
	// 购物车操作耗时
	CartOperationDuration *prometheus.HistogramVec

	// 库存服务请求计数
	StockRequestsTotal *prometheus.CounterVec
	// 库存服务请求耗时
	StockRequestDuration *prometheus.HistogramVec

	// 用户提示计数
	NoticesTotal *prometheus.CounterVec
}

// New 创建指标实例
func New(serviceName string) *Metrics {
	return &Metrics{
		registry: prometheus.NewRegistry(),

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),

		CartOperationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "cart_operations_total",
			Help:      "Total cart operations by outcome",
		}, []string{"operation", "outcome"}),
		CartOperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "cart_operation_duration_seconds",
			Help:      "Cart operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),

		StockRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "stock_requests_total",
			Help:      "Total requests to the stock service",
		}, []string{"endpoint", "outcome"}),
		StockRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "stock_request_duration_seconds",
			Help:      "Stock service request duration in seconds",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"endpoint"}),

		NoticesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "notices_total",
			Help:      "Total user notices by level",
		}, []string{"level"}),
	}
}

// Register 注册所有指标，同时注册 Go 运行时与进程指标
func (m *Metrics) Register() error {
	metrics := []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.CartOperationsTotal,
		m.CartOperationDuration,
		m.StockRequestsTotal,
		m.StockRequestDuration,
		m.NoticesTotal,
	}

	for _, metric := range metrics {
		if err := m.registry.Register(metric); err != nil {
			logger.Error(context.Background(), "Failed to register metric", "error", err)
			return err
		}
	}

	logger.Info(context.Background(), "Metrics registered successfully")
	return nil
}

// Handler 返回 /metrics 的 HTTP 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest 记录 HTTP 请求
func (m *Metrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// ObserveOperation 记录购物车操作
func (m *Metrics) ObserveOperation(op, outcome string, elapsed time.Duration) {
	m.CartOperationsTotal.WithLabelValues(op, outcome).Inc()
	m.CartOperationDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObserveStockRequest 记录库存服务调用
func (m *Metrics) ObserveStockRequest(endpoint, outcome string, elapsed time.Duration) {
	m.StockRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
	m.StockRequestDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// IncNotice 记录一次用户提示
func (m *Metrics) IncNotice(level string) {
	m.NoticesTotal.WithLabelValues(level).Inc()
}
