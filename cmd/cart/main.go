package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/storefront/internal/cart/application"
	"github.com/wyfcoding/storefront/internal/cart/domain"
	"github.com/wyfcoding/storefront/internal/cart/infrastructure/messaging"
	"github.com/wyfcoding/storefront/internal/cart/infrastructure/notify"
	"github.com/wyfcoding/storefront/internal/cart/infrastructure/persistence/memory"
	"github.com/wyfcoding/storefront/internal/cart/infrastructure/persistence/mysql"
	redisstore "github.com/wyfcoding/storefront/internal/cart/infrastructure/persistence/redis"
	"github.com/wyfcoding/storefront/internal/cart/infrastructure/stock"
	grpcserver "github.com/wyfcoding/storefront/internal/cart/interfaces/grpc"
	httpserver "github.com/wyfcoding/storefront/internal/cart/interfaces/http"
	"github.com/wyfcoding/storefront/pkg/cache"
	"github.com/wyfcoding/storefront/pkg/config"
	"github.com/wyfcoding/storefront/pkg/db"
	"github.com/wyfcoding/storefront/pkg/logger"
	"github.com/wyfcoding/storefront/pkg/metrics"
	"github.com/wyfcoding/storefront/pkg/middleware"
	"github.com/wyfcoding/storefront/pkg/mq"
	"github.com/wyfcoding/storefront/pkg/ratelimit"
	"github.com/wyfcoding/storefront/pkg/tracing"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

var configPath = flag.String("config", "configs/cart/config.toml", "config file path")

// store 带探活能力的持久化存储
type store interface {
	domain.PersistentStore
	Ping(ctx context.Context) error
}

func main() {
	flag.Parse()

	// 1. 初始化配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	if err := logger.Init(logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		Output:     cfg.Logger.Output,
		FilePath:   cfg.Logger.FilePath,
		MaxSize:    cfg.Logger.MaxSize,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAge:     cfg.Logger.MaxAge,
		Compress:   cfg.Logger.Compress,
		WithCaller: cfg.Logger.WithCaller,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Error(ctx, "server exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info(ctx, "server stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	var closers []func() error
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn(ctx, "failed to release resource", "error", err)
			}
		}
	}()

	// 3. 初始化链路追踪与指标
	if cfg.Tracing.Enabled {
		shutdown, err := tracing.Init(ctx, tracing.Config{
			ServiceName: cfg.ServiceName,
			Version:     cfg.Version,
			Endpoint:    cfg.Tracing.Endpoint,
			SampleRatio: cfg.Tracing.SampleRatio,
		})
		if err != nil {
			return err
		}
		closers = append(closers, func() error {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return shutdown(shutdownCtx)
		})
	}

	m := metrics.New(cfg.ServiceName)
	if err := m.Register(); err != nil {
		return err
	}

	// 4. 初始化基础设施
	var redisCache *cache.RedisCache
	if cfg.Storage.Driver == "redis" || cfg.RateLimit.Enabled {
		rc, err := cache.New(ctx, cache.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			MaxPoolSize:  cfg.Redis.MaxPoolSize,
			ConnTimeout:  cfg.Redis.ConnTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			return err
		}
		redisCache = rc
		closers = append(closers, rc.Close)
	}

	cartStore, closeStore, err := newStore(ctx, cfg, redisCache)
	if err != nil {
		return err
	}
	closers = append(closers, closeStore)

	var producer *mq.KafkaProducer
	if len(cfg.Kafka.Brokers) > 0 {
		producer = mq.NewProducer(mq.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			MaxRetries:   cfg.Kafka.MaxRetries,
			RetryBackoff: cfg.Kafka.RetryBackoff,
		})
		closers = append(closers, producer.Close)
	}

	// 5. 事件总线：持久化为必需订阅者，Kafka 转发为尽力而为（异步）
	bus := application.NewEventBus()
	closers = append(closers, bus.Close)
	bus.Subscribe("persistence", application.PersistCart(cartStore))
	if producer != nil && cfg.Kafka.CartTopic != "" {
		bus.SubscribeBestEffort("kafka", messaging.NewCartEventPublisher(producer, cfg.Kafka.CartTopic).Handle)
	}

	// 6. 初始化应用服务
	notifiers := notify.Multi{notify.ContextNotifier{}, notify.Counting(m)}
	if cfg.Notifier.Driver == "kafka" {
		notifiers = append(notifiers, notify.NewKafkaNotifier(producer, cfg.Notifier.Topic, cfg.Cart.StorageKey))
	} else {
		notifiers = append(notifiers, notify.LogNotifier{})
	}

	stockClient := stock.NewClient(stock.Config{
		BaseURL:  cfg.Stock.BaseURL,
		Timeout:  cfg.Stock.Timeout(),
		Observer: m,
	})

	manager, err := application.NewCartManager(ctx, cartStore, stockClient, notifiers, bus, application.Options{
		StorageKey:            cfg.Cart.StorageKey,
		StockTimeout:          cfg.Stock.Timeout(),
		RemoveNotifiesSuccess: cfg.Cart.RemoveNotifiesSuccess,
		Observer:              m,
	})
	if err != nil {
		return err
	}

	// 7. 初始化接口层
	router := newRouter(cfg, m, manager, cartStore, redisCache)
	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	// 8. 启动服务
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info(gctx, "HTTP server starting", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	var (
		grpcSrv *grpc.Server
		health  *grpcserver.HealthServer
	)
	if cfg.GRPC.Enabled {
		grpcSrv = grpc.NewServer(
			grpc.StatsHandler(otelgrpc.NewServerHandler()),
			grpc.ChainUnaryInterceptor(
				middleware.GRPCRecoveryInterceptor(),
				middleware.GRPCLoggingInterceptor(),
			),
		)
		health = grpcserver.NewHealthServer(grpcSrv, cfg.ServiceName, cartStore, 10*time.Second)

		g.Go(func() error {
			lis, err := net.Listen("tcp", cfg.GRPC.Addr())
			if err != nil {
				return err
			}
			logger.Info(gctx, "gRPC server starting", "addr", cfg.GRPC.Addr())
			return grpcSrv.Serve(lis)
		})
		g.Go(func() error {
			health.Run(gctx)
			return nil
		})
	}

	// 9. 优雅关闭
	g.Go(func() error {
		<-gctx.Done()
		logger.Info(ctx, "shutting down servers...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if grpcSrv != nil {
			health.Shutdown()
			grpcSrv.GracefulStop()
		}
		return httpSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newStore(ctx context.Context, cfg *config.Config, redisCache *cache.RedisCache) (store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Storage.Driver {
	case "redis":
		return redisstore.NewStore(redisCache), noop, nil
	case "mysql":
		database, err := db.Init(ctx, db.Config{
			DSN:                cfg.Database.DSN,
			MaxOpenConns:       cfg.Database.MaxOpenConns,
			MaxIdleConns:       cfg.Database.MaxIdleConns,
			ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
			LogEnabled:         cfg.Database.LogEnabled,
			SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
		})
		if err != nil {
			return nil, nil, err
		}
		s := mysql.NewStore(database)
		if err := s.Migrate(ctx); err != nil {
			_ = database.Close()
			return nil, nil, fmt.Errorf("failed to migrate cart_entries: %w", err)
		}
		return s, database.Close, nil
	default:
		logger.Warn(ctx, "using in-memory cart storage; cart is lost on restart")
		return memory.NewStore(), noop, nil
	}
}

func newRouter(
	cfg *config.Config,
	m *metrics.Metrics,
	manager *application.CartManager,
	pinger httpserver.Pinger,
	redisCache *cache.RedisCache,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	if cfg.Environment == "dev" {
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()
	r.Use(
		otelgin.Middleware(cfg.ServiceName),
		middleware.GinLoggingMiddleware(),
		middleware.GinRecoveryMiddleware(),
		middleware.GinCORSMiddleware(),
		middleware.GinMetricsMiddleware(m),
	)

	r.GET("/healthz", httpserver.HealthCheck(pinger))
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(m.Handler()))
	}

	api := r.Group("/api/v1")
	if cfg.RateLimit.Enabled && redisCache != nil {
		limiter := ratelimit.NewRedisRateLimiter(redisCache.Client())
		api.Use(middleware.RateLimitMiddleware(limiter, cfg.RateLimit))
	}
	httpserver.NewHandler(manager).RegisterRoutes(api)
	return r
}
