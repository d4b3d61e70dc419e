package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/consultcrm/libs/auth"
	"github.com/md-rashed-zaman/consultcrm/libs/config"
	"github.com/md-rashed-zaman/consultcrm/libs/db"
	"github.com/md-rashed-zaman/consultcrm/libs/email"
	"github.com/md-rashed-zaman/consultcrm/libs/grpcx"
	"github.com/md-rashed-zaman/consultcrm/libs/httpx"
	"github.com/md-rashed-zaman/consultcrm/libs/kafkax"
	"github.com/md-rashed-zaman/consultcrm/libs/metrics"
	otelx "github.com/md-rashed-zaman/consultcrm/libs/otel"
	"github.com/md-rashed-zaman/consultcrm/libs/runtime"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/booking"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/calendar"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/handlers"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/live"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/outbox"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/payments"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/plans"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func mustInt(logger *slog.Logger, key string, fallback int) int {
	v, err := config.Int(key, fallback)
	if err != nil {
		logger.Error("config error", "err", err)
		panic(err)
	}
	return v
}

func main() {
	service := config.String("SERVICE_NAME", "crm-service")
	logger := runtime.NewLogger(service)
	runtime.LoadDotEnv(logger)

	port, err := config.Port("HTTP_PORT", "8080")
	if err != nil {
		panic(err)
	}

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	loc, err := config.Location("BUSINESS_TIMEZONE", "Europe/Madrid")
	if err != nil {
		logger.Error("config error", "err", err)
		panic(err)
	}
	bookingCfg := booking.Config{
		Location:        loc,
		StartHour:       mustInt(logger, "BUSINESS_START_HOUR", 9),
		EndHour:         mustInt(logger, "BUSINESS_END_HOUR", 18),
		IntervalMinutes: mustInt(logger, "SLOT_INTERVAL_MINUTES", 30),
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL, db.Options{
		MaxConns: int32(mustInt(logger, "DB_MAX_CONNS", 10)),
	})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	if err := plans.SeedDefaults(ctx, storage.NewPlanRepository(pool), logger); err != nil {
		logger.Error("plan seeding failed", "err", err)
	}

	jwtSecret, err := config.RequiredString("JWT_SECRET")
	if err != nil {
		panic(err)
	}
	tokenTTL, err := config.Duration("JWT_TTL", 24*time.Hour)
	if err != nil {
		panic(err)
	}
	issuer, err := auth.NewIssuer(jwtSecret, config.String("JWT_ISSUER", "consultcrm"), tokenTTL)
	if err != nil {
		panic(err)
	}

	brokers := config.String("KAFKA_BROKERS", "")
	eventMetrics := metrics.NewEventMetrics(prometheus.DefaultRegisterer)
	publisher := outbox.NewPublisher(pool, outbox.NewRepository(), logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
		Metrics:   eventMetrics,
	})
	go publisher.Run(ctx)

	health := grpcx.NewHealthServer(logger)
	health.SetServing(service, true)
	go func() {
		if err := health.Run(ctx, ":"+config.String("GRPC_PORT", "9090")); err != nil {
			logger.Error("grpc health server error", "err", err)
		}
	}()

	origins := config.List("CORS_ALLOWED_ORIGINS", nil)
	hub := live.NewHub(logger)

	deps := booking.Deps{
		Live:    hub,
		Metrics: metrics.NewBookingMetrics(prometheus.DefaultRegisterer),
	}
	checkout, err := payments.NewStripeCheckout(payments.StripeConfig{
		SecretKey:  config.String("STRIPE_SECRET_KEY", ""),
		SuccessURL: config.String("STRIPE_SUCCESS_URL", ""),
		CancelURL:  config.String("STRIPE_CANCEL_URL", ""),
	})
	switch {
	case errors.Is(err, payments.ErrNotConfigured):
		logger.Warn("stripe not configured; paid plans are stored with payment pending")
	case err != nil:
		logger.Error("stripe checkout config error", "err", err)
		panic(err)
	default:
		deps.Checkout = checkout
	}
	svc := booking.NewService(pool, logger, bookingCfg, deps)

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
		{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	}

	limitPerMinute := mustInt(logger, "RATE_LIMIT_PER_MINUTE", 60)
	var rateLimit httpx.Middleware
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       mustInt(logger, "REDIS_DB", 0),
		})
		defer func() { _ = rdb.Close() }()
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
		rl := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "crm:rl"))
		rateLimit = rl.Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true))
		logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute, "redis_addr", addr)
	} else {
		rateLimit = httpx.NewRateLimiter(limitPerMinute, time.Minute).Middleware()
		logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
	}

	requestTimeout, err := config.Duration("REQUEST_TIMEOUT", 15*time.Second)
	if err != nil {
		panic(err)
	}
	api := handlers.NewRouter(handlers.RouterConfig{
		Issuer: issuer,
		Public: handlers.NewPublicHandler(svc, storage.NewPlanRepository(pool), logger),
		Auth: handlers.NewAuthHandler(pool, issuer, handlers.AuthConfig{
			AppURL:      config.String("APP_URL", "http://localhost:5173"),
			AdminEmails: config.List("ADMIN_EMAILS", nil),
		}, logger),
		Admin: handlers.NewAdminHandler(pool, svc, handlers.AdminDeps{
			Mailer:   email.FromEnv(logger),
			Live:     hub,
			Exporter: calendar.NewExporter(loc, config.String("ICS_CALENDAR_NAME", "Consultas"), config.String("ICS_DOMAIN", "consultcrm.local")),
		}, logger),
		Webhook:        handlers.NewWebhookHandler(payments.NewWebhook(config.String("STRIPE_WEBHOOK_SECRET", ""), 0), svc, logger),
		Live:           live.NewHandler(hub, origins),
		RateLimit:      rateLimit,
		RequestTimeout: requestTimeout,
	})

	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/api/", api)

	httpHandler := httpx.Chain(mux,
		httpx.WithCORS(httpx.DefaultCORSPolicy(origins)),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithBodyLimit(int64(mustInt(logger, "REQUEST_BODY_LIMIT_BYTES", 1<<20))),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, service)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	runtime.RunHTTPServer(ctx, srv, logger)
}
