package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kryzelc/poybash-furniture-sub001/internal/config"
	"github.com/kryzelc/poybash-furniture-sub001/internal/event"
	handler "github.com/kryzelc/poybash-furniture-sub001/internal/handler/http"
	"github.com/kryzelc/poybash-furniture-sub001/internal/repository"
	"github.com/kryzelc/poybash-furniture-sub001/internal/repository/memory"
	"github.com/kryzelc/poybash-furniture-sub001/internal/repository/postgres"
	"github.com/kryzelc/poybash-furniture-sub001/internal/repository/redis"
	"github.com/kryzelc/poybash-furniture-sub001/internal/service"
	"github.com/kryzelc/poybash-furniture-sub001/migrations"
	"github.com/kryzelc/poybash-furniture-sub001/pkg/database"
	"github.com/kryzelc/poybash-furniture-sub001/pkg/health"
	pkgkafka "github.com/kryzelc/poybash-furniture-sub001/pkg/kafka"
	"github.com/kryzelc/poybash-furniture-sub001/pkg/tracing"
)

const serviceName = "furniture-core"

// stores groups the repositories selected by STORE_DRIVER.
type stores struct {
	stocks   repository.StockRepository
	products repository.ProductRepository
	taxonomy repository.TaxonomyRepository
	orders   repository.OrderRepository
	carts    repository.CartRepository
	tx       repository.Transactor
}

func memoryStores() stores {
	return stores{
		stocks:   memory.NewStockRepository(),
		products: memory.NewProductRepository(),
		taxonomy: memory.NewTaxonomyRepository(),
		orders:   memory.NewOrderRepository(),
		carts:    memory.NewCartRepository(),
		tx:       memory.NewTransactor(),
	}
}

// App wires together all dependencies and runs the furniture core service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *goredis.Client
	producer       *pkgkafka.Producer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	a := &App{cfg: cfg, logger: logger, tracerShutdown: tracerShutdown}
	healthHandler := health.NewHandler()

	var st stores
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		st = memoryStores()
		logger.Warn("using in-memory store, data is lost on restart")
	default:
		st, err = a.connectStores(ctx, healthHandler)
		if err != nil {
			a.closeStores()
			return nil, err
		}
	}

	// Kafka producer with connection validation and retry. Publishing is
	// best effort, so an unreachable broker only degrades the service.
	var publisher event.Publisher = event.NopPublisher{}
	if cfg.EventsEnabled {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		if err := pingKafkaWithRetry(ctx, a.producer, logger); err != nil {
			logger.Warn("kafka producer ping failed after retries, continuing in degraded mode",
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
		}
		publisher = a.producer
		producer := a.producer
		healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
			return producer.Ping(ctx)
		})
	}

	// Build the dependency graph.
	eventProducer := event.NewProducer(publisher, logger, cfg.LowStockThreshold)
	ledger := service.NewLedger(st.stocks, eventProducer, logger)
	taxonomy := service.NewTaxonomyService(st.taxonomy, logger)
	catalog := service.NewCatalogService(st.products, taxonomy, ledger, logger)
	planner := service.NewAllocationPlanner(ledger, logger)

	router := handler.NewRouter(handler.Services{
		Taxonomy: taxonomy,
		Catalog:  catalog,
		Ledger:   ledger,
		Carts:    service.NewCartService(st.carts, catalog, ledger, logger),
		Orders:   service.NewOrderService(st.orders, st.carts, catalog, planner, ledger, st.tx, eventProducer, logger),
		Refunds:  service.NewRefundService(st.orders, eventProducer, logger),
	}, healthHandler, logger, handler.RouterConfig{
		JWTSecret:         cfg.JWTSecret,
		AllowedOrigins:    cfg.CORSAllowedOrigins,
		PprofAllowedCIDRs: cfg.PprofAllowedCIDRs,
		RateLimitRPS:      cfg.RateLimitRPS,
		RateLimitBurst:    cfg.RateLimitBurst,
	})

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

// connectStores opens PostgreSQL and Redis, runs migrations and registers
// both as critical readiness checks.
func (a *App) connectStores(ctx context.Context, healthHandler *health.Handler) (stores, error) {
	cfg := a.cfg

	pool, err := database.NewPostgresPool(ctx, &database.PostgresConfig{
		Host:            cfg.PostgresHost,
		Port:            cfg.PostgresPort,
		User:            cfg.PostgresUser,
		Password:        cfg.PostgresPass,
		DBName:          cfg.PostgresDB,
		SSLMode:         cfg.PostgresSSL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: time.Duration(cfg.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(cfg.DBMaxConnIdleTimeMins) * time.Minute,
	}, a.logger)
	if err != nil {
		return stores{}, fmt.Errorf("connect to postgres: %w", err)
	}
	a.pool = pool
	a.logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, serviceName); err != nil {
		a.logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
	}

	if err := database.RunMigrations(ctx, pool, migrations.FS, a.logger); err != nil {
		return stores{}, fmt.Errorf("run migrations: %w", err)
	}
	a.logger.Info("database migrations completed")

	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, a.logger)
	}

	client, err := database.NewRedisClient(ctx, database.RedisConfig{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return stores{}, fmt.Errorf("connect to redis: %w", err)
	}
	a.redis = client
	a.logger.Info("connected to Redis", slog.String("host", cfg.RedisHost), slog.Int("port", cfg.RedisPort))

	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.RegisterCritical("redis", func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})

	return stores{
		stocks:   postgres.NewStockRepository(pool),
		products: postgres.NewProductRepository(pool),
		taxonomy: postgres.NewTaxonomyRepository(pool),
		orders:   postgres.NewOrderRepository(pool),
		carts:    redis.NewCartRepository(client, time.Duration(cfg.CartTTLHours)*time.Hour),
		tx:       postgres.NewTransactor(pool),
	}, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
			slog.String("store_driver", a.cfg.StoreDriver),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Tracer (flush pending spans from drained requests)
// 3. Kafka producer
// 4. Redis client and PostgreSQL pool
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// 1. Drain in-flight HTTP requests (5s budget).
	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 2. Flush pending spans after HTTP drain so in-flight request spans are captured.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 3. Close Kafka producer.
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 4. Close stores.
	if err := a.closeStores(); err != nil {
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

func (a *App) closeStores() error {
	var err error
	if a.redis != nil {
		if cerr := a.redis.Close(); cerr != nil {
			a.logger.Error("redis close error", slog.String("error", cerr.Error()))
			err = cerr
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	return err
}

// pingKafkaWithRetry attempts to ping the Kafka producer with exponential
// backoff (3 attempts, 1s/2s/4s with ±25% jitter).
func pingKafkaWithRetry(ctx context.Context, producer *pkgkafka.Producer, logger *slog.Logger) error {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if lastErr = producer.Ping(ctx); lastErr == nil {
			return nil
		}
		if attempt < 2 {
			base := time.Duration(1<<uint(attempt)) * time.Second
			jitter := time.Duration(float64(base) * 0.25 * (2*rand.Float64() - 1)) // #nosec G404 -- non-cryptographic jitter for retry backoff
			wait := base + jitter
			logger.Warn("kafka producer ping failed, retrying",
				slog.Int("attempt", attempt+1),
				slog.Int("max_attempts", 3),
				slog.Duration("backoff", wait),
				slog.String("error", lastErr.Error()),
			)
			select {
			case <-ctx.Done():
				return fmt.Errorf("kafka ping: context canceled during retry: %w", ctx.Err())
			case <-time.After(wait):
			}
		}
	}
	return fmt.Errorf("kafka producer ping failed after 3 attempts: %w", lastErr)
}
