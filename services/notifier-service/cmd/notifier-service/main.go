package main

import (
	"context"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/consultcrm/libs/config"
	"github.com/md-rashed-zaman/consultcrm/libs/db"
	"github.com/md-rashed-zaman/consultcrm/libs/email"
	"github.com/md-rashed-zaman/consultcrm/libs/events"
	"github.com/md-rashed-zaman/consultcrm/libs/grpcx"
	"github.com/md-rashed-zaman/consultcrm/libs/httpx"
	"github.com/md-rashed-zaman/consultcrm/libs/kafkax"
	"github.com/md-rashed-zaman/consultcrm/libs/metrics"
	otelx "github.com/md-rashed-zaman/consultcrm/libs/otel"
	"github.com/md-rashed-zaman/consultcrm/libs/runtime"
	"github.com/md-rashed-zaman/consultcrm/services/notifier-service/internal/consumer"
	"github.com/md-rashed-zaman/consultcrm/services/notifier-service/internal/followups"
	"github.com/md-rashed-zaman/consultcrm/services/notifier-service/internal/inbox"
	"github.com/md-rashed-zaman/consultcrm/services/notifier-service/internal/notify"
	"github.com/md-rashed-zaman/consultcrm/services/notifier-service/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "notifier-service")
	logger := runtime.NewLogger(service)
	runtime.LoadDotEnv(logger)

	port, err := config.Port("HTTP_PORT", "8085")
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
		panic(err)
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL, db.Options{MaxConns: 5})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	eventMetrics := metrics.NewEventMetrics(prometheus.DefaultRegisterer)
	mailer := email.FromEnv(logger)
	store := storage.NewRepository()
	adminEmail := config.String("ADMIN_EMAIL", "")
	brokers := config.String("KAFKA_BROKERS", "")

	maxAttempts, err := config.Int("NOTIFY_MAX_ATTEMPTS", 5)
	if err != nil {
		panic(err)
	}
	notifier := notify.New(store, mailer, eventMetrics, logger, adminEmail)
	eventConsumer := consumer.New(pool, inbox.NewRepository(), logger, eventMetrics, consumer.Config{
		Brokers:     brokers,
		GroupID:     config.String("KAFKA_GROUP_ID", "notifier-service"),
		Topics:      config.List("KAFKA_TOPICS", events.NotifierTopics),
		MaxAttempts: maxAttempts,
	}, notifier.Handle)
	go eventConsumer.Run(ctx)

	sweeper := followups.NewSweeper(pool, store, mailer, eventMetrics, logger, followups.Config{
		Schedule:   config.String("FOLLOWUP_CRON", followups.DefaultSchedule),
		Location:   loc,
		AdminEmail: adminEmail,
	})
	if err := sweeper.Start(ctx); err != nil {
		logger.Error("follow-up scheduler failed", "err", err)
		panic(err)
	}

	health := grpcx.NewHealthServer(logger)
	health.SetServing(service, true)
	go func() {
		if err := health.Run(ctx, ":"+config.String("GRPC_PORT", "9095")); err != nil {
			logger.Error("grpc health server error", "err", err)
		}
	}()

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	mux.Handle("/metrics", metrics.Handler())
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "notifier")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	runtime.RunHTTPServer(ctx, srv, logger)
}
