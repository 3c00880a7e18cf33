// Package app wires the storefront together: configuration, database,
// cache, broker, domain services, HTTP surface, and graceful shutdown.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/docebrew/cupcakeria/internal/domain/auth"
	"github.com/docebrew/cupcakeria/internal/domain/cart"
	"github.com/docebrew/cupcakeria/internal/domain/coupon"
	"github.com/docebrew/cupcakeria/internal/domain/order"
	"github.com/docebrew/cupcakeria/internal/domain/product"
	"github.com/docebrew/cupcakeria/internal/domain/shipping"
	"github.com/docebrew/cupcakeria/internal/events"
	"github.com/docebrew/cupcakeria/internal/handler"
	"github.com/docebrew/cupcakeria/internal/repository"
	"github.com/docebrew/cupcakeria/pkg/health"
	"github.com/docebrew/cupcakeria/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	// Catalog repository, optionally behind the Redis read-through cache.
	var products product.Repository = repository.NewProductRepository(pool)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return errors.Wrap(err, "parse redis URL")
		}
		rdb := redis.NewClient(opts)
		defer func() {
			_ = rdb.Close()
		}()

		products = repository.NewCachedProductRepository(products, rdb, cfg.CacheTTL, lg)
		healthSvc.AddReadinessCheck("redis", 5*time.Second, health.RedisCheck(rdb))
		lg.Info("Catalog cache enabled", zap.Duration("ttl", cfg.CacheTTL))
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Order event publisher, optional.
	var publisher order.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		producer := events.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, lg)
		defer func() {
			if err := producer.Close(); err != nil {
				lg.Warn("close kafka producer", zap.Error(err))
			}
		}()
		publisher = producer
		lg.Info("Order events enabled", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}

	// Repositories and domain services.
	cartRepo := repository.NewCartRepository(pool)
	couponRepo := repository.NewCouponRepository(pool)
	apikeyRepo := repository.NewAPIKeyRepository(pool)
	orderStore := repository.NewOrderStore(pool)

	cartSvc := cart.NewService(cartRepo, products)
	couponEngine := coupon.NewEngine(couponRepo)
	calculator := shipping.NewCalculator(shipping.DefaultConfig())
	orderSvc := order.NewService(cartSvc, couponEngine, calculator, orderStore, publisher, lg)
	verifier := auth.NewVerifier(apikeyRepo, []byte(cfg.APIKeyPepper))

	// HTTP surface: gin routes under /api, probes beside them.
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	api := handler.NewServer(products, cartSvc, couponEngine, calculator, orderSvc, verifier, lg)
	api.Routes(engine)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/", engine)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins: cfg.CORS.Origins,
				AllowHeaders: []string{"Content-Type", "Authorization", "X-API-Key"},
				MaxAge:       86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("cupcakeria-api", m),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
