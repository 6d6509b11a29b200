package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	// Domain
	"github.com/uniedit/paygate/internal/domain/payment"

	// Inbound adapters (HTTP handlers)
	paymenthttp "github.com/uniedit/paygate/internal/adapter/inbound/http/payment"

	// Outbound adapters
	"github.com/uniedit/paygate/internal/adapter/outbound/identity"
	"github.com/uniedit/paygate/internal/adapter/outbound/memory"
	"github.com/uniedit/paygate/internal/adapter/outbound/postgres"
	redisadapter "github.com/uniedit/paygate/internal/adapter/outbound/redis"
	"github.com/uniedit/paygate/internal/port/outbound"

	// Shared infrastructure
	"github.com/uniedit/paygate/internal/infra/config"
	"github.com/uniedit/paygate/internal/model"
	sharedcache "github.com/uniedit/paygate/internal/shared/cache"
	"github.com/uniedit/paygate/internal/shared/database"
	"github.com/uniedit/paygate/internal/shared/logger"
	"github.com/uniedit/paygate/internal/utils/metrics"
	"github.com/uniedit/paygate/internal/utils/middleware"
)

// App wires configuration, adapters and the payment domain into an HTTP router.
type App struct {
	config *config.Config
	db     *gorm.DB
	redis  *goredis.Client
	router *gin.Engine
	logger *zap.Logger

	registry *prometheus.Registry
	metrics  *metrics.Metrics

	store       outbound.SessionStorePort
	eventLog    outbound.WebhookEventLogPort
	rateLimiter outbound.RateLimiterPort
	identity    outbound.IdentityVerifierPort
	notifier    *notifierSet

	paymentDomain payment.PaymentDomain
}

// Option customizes App construction.
type Option func(*App)

// WithLogger replaces the logger built from configuration.
func WithLogger(l *zap.Logger) Option {
	return func(a *App) { a.logger = l }
}

// New creates a new application instance.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	app := &App{config: cfg}
	for _, opt := range opts {
		opt(app)
	}
	if app.logger == nil {
		app.logger = logger.New(&logger.Config{
			Level:  cfg.Log.Level,
			Format: cfg.Log.Format,
		})
	}

	if err := app.initInfrastructure(); err != nil {
		app.closeInfrastructure()
		return nil, fmt.Errorf("init infrastructure: %w", err)
	}

	if err := app.initDomain(); err != nil {
		app.closeInfrastructure()
		return nil, fmt.Errorf("init domain: %w", err)
	}

	app.router = app.setupRouter()
	app.registerRoutes()

	return app, nil
}

// initInfrastructure opens the configured stores and side services.
func (a *App) initInfrastructure() error {
	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.New("paygate", a.registry)

	// Redis is required by the redis store and optional otherwise
	if a.config.Redis.Address != "" {
		client, err := sharedcache.NewRedisClient(&a.config.Redis)
		switch {
		case err == nil:
			a.redis = client
		case a.config.Store.Driver == config.StoreRedis:
			return fmt.Errorf("init redis: %w", err)
		default:
			a.logger.Warn("Redis connection failed, continuing without it", zap.Error(err))
		}
	}

	switch a.config.Store.Driver {
	case config.StorePostgres:
		db, err := database.New(&a.config.Database)
		if err != nil {
			return fmt.Errorf("init database: %w", err)
		}
		a.db = db
		a.store = postgres.NewSessionStoreAdapter(db)
		a.eventLog = postgres.NewWebhookEventAdapter(db)
	case config.StoreRedis:
		a.store = redisadapter.NewSessionStore(a.redis, a.config.Store.SessionTTL)
	default:
		a.logger.Warn("Using in-memory session store; sessions are lost on restart")
		a.store = memory.NewSessionStore()
	}

	if a.config.RateLimit.Enabled {
		if a.redis != nil {
			a.rateLimiter = redisadapter.NewRateLimiter(a.redis)
		} else {
			a.rateLimiter = memory.NewRateLimiter()
		}
	}

	if a.config.Auth.JWTSecret != "" {
		a.identity = identity.NewJWTVerifier(identity.JWTConfig{
			Secret: a.config.Auth.JWTSecret,
			Issuer: a.config.Auth.Issuer,
		})
	}

	return nil
}

// initDomain builds providers, notifiers and the payment domain.
func (a *App) initDomain() error {
	registry := buildProviderRegistry(a.config, a.logger)

	notifier, err := buildNotifier(&a.config.Notifier, a.logger)
	if err != nil {
		return fmt.Errorf("init notifier: %w", err)
	}
	a.notifier = notifier

	a.paymentDomain = payment.NewPaymentDomain(
		registry,
		a.store,
		notifier,
		a.eventLog,
		a.metrics,
		payment.Options{
			FallbackEnabled: a.config.Payment.FallbackEnabled(),
			ProviderTimeout: a.config.Payment.ProviderTimeout,
		},
		a.logger.Named("payment"),
	)

	a.logger.Info("Payment domain initialized",
		zap.String("store", a.config.Store.Driver),
		zap.Bool("fallback", a.config.Payment.FallbackEnabled()),
		zap.Strings("providers", providerNames(registry.List())),
		zap.Strings("notifiers", a.config.Notifier.Channels),
	)
	return nil
}

// setupRouter creates and configures the Gin router.
func (a *App) setupRouter() *gin.Engine {
	if a.config.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Apply global middleware
	r.Use(middleware.Recovery(a.logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging(a.logger))
	r.Use(middleware.Metrics(a.metrics))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig()))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, model.HealthResponse{Status: "ok", Store: a.config.Store.Driver})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))

	return r
}

// registerRoutes registers all HTTP routes.
func (a *App) registerRoutes() {
	v1 := a.router.Group("/api/v1")

	var createMiddleware []gin.HandlerFunc
	if a.identity != nil {
		createMiddleware = append(createMiddleware, middleware.Auth(a.identity, !a.config.Auth.Required))
	}
	if a.rateLimiter != nil {
		createMiddleware = append(createMiddleware, middleware.RateLimitByUser(
			a.rateLimiter, a.config.RateLimit.Limit, a.config.RateLimit.Window, a.logger))
	}
	if a.redis != nil {
		createMiddleware = append(createMiddleware, middleware.Idempotency(a.redis, middleware.IdempotencyConfig{
			TTL:    a.config.RateLimit.IdempotencyTTL,
			Logger: a.logger,
		}))
	}

	paymenthttp.NewSessionHandler(a.paymentDomain).RegisterRoutes(v1, createMiddleware...)
	paymenthttp.NewWebhookHandler(a.paymentDomain, a.config.Server.MaxWebhookBytes).RegisterRoutes(v1)
}

// Router returns the HTTP router.
func (a *App) Router() *gin.Engine {
	return a.router
}

// PaymentDomain returns the payment orchestration service.
func (a *App) PaymentDomain() payment.PaymentDomain {
	return a.paymentDomain
}

// Stop drains queued notifications and releases resources.
func (a *App) Stop(ctx context.Context) error {
	var errs []error
	if a.notifier != nil {
		if err := a.notifier.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close notifier: %w", err))
		}
	}
	a.closeInfrastructure()
	_ = a.logger.Sync()
	return errors.Join(errs...)
}

func (a *App) closeInfrastructure() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
		a.redis = nil
	}
	if a.db != nil {
		if err := database.Close(a.db); err != nil {
			a.logger.Warn("close database", zap.Error(err))
		}
		a.db = nil
	}
}

func providerNames(providers []model.Provider) []string {
	out := make([]string, len(providers))
	for i, p := range providers {
		out[i] = string(p)
	}
	return out
}
