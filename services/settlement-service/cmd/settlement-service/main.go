package main

import (
	"context"
	"net/http"
	"time"

	"github.com/khanakart/khanakart/libs/config"
	"github.com/khanakart/khanakart/libs/db"
	"github.com/khanakart/khanakart/libs/httpx"
	"github.com/khanakart/khanakart/libs/inbox"
	"github.com/khanakart/khanakart/libs/kafkax"
	otelx "github.com/khanakart/khanakart/libs/otel"
	"github.com/khanakart/khanakart/libs/outbox"
	"github.com/khanakart/khanakart/libs/runtime"
	"github.com/khanakart/khanakart/services/settlement-service/internal/events"
	"github.com/khanakart/khanakart/services/settlement-service/internal/handlers"
	"github.com/khanakart/khanakart/services/settlement-service/internal/storage"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "settlement-service")
	port, err := config.Port("PORT", "8084")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

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

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	repo := storage.NewRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	applier := events.NewApplier(pool, repo, outboxRepo, logger)
	inboxRepo := inbox.NewRepository(pool)
	brokers := config.String("KAFKA_BROKERS", "")
	groupID := config.String("KAFKA_GROUP_ID", "settlement-service")

	deliveredConsumer := kafkax.NewConsumer(logger, inboxRepo, kafkax.ConsumerConfig{
		Brokers: brokers,
		GroupID: groupID,
		Topic:   events.OrderDeliveredTopic,
	}, func(ctx context.Context, msg kafka.Message) error {
		return applier.ApplyOrderDelivered(ctx, msg.Value)
	})
	go deliveredConsumer.Run(ctx)

	ruleConsumer := kafkax.NewConsumer(logger, inboxRepo, kafkax.ConsumerConfig{
		Brokers: brokers,
		GroupID: groupID,
		Topic:   events.CommissionRuleUpdatedTopic,
	}, func(ctx context.Context, msg kafka.Message) error {
		rule, err := events.DecodeRuleUpdated(msg.Value)
		if err != nil {
			logger.Error("invalid rule update", "err", err, "topic", msg.Topic)
			return nil
		}
		return repo.UpsertRuleCache(ctx, rule)
	})
	go ruleConsumer.Run(ctx)

	h := handlers.New(repo, outboxRepo, logger, handlers.Config{
		StripeSecretKey:               config.String("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret:           config.String("STRIPE_WEBHOOK_SECRET", ""),
		StripeWebhookToleranceSeconds: config.Int("STRIPE_WEBHOOK_TOLERANCE_SECONDS", 300),
		CheckoutSuccessURL:            config.String("CHECKOUT_SUCCESS_URL", ""),
		CheckoutCancelURL:             config.String("CHECKOUT_CANCEL_URL", ""),
		Currency:                      config.String("CHECKOUT_CURRENCY", "inr"),
	})

	mux := runtime.NewBaseMux(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	mux.HandleFunc("/api/v1/referrals", h.CreateReferral)
	mux.HandleFunc("/api/v1/referrals/payout", h.ReferralPayout)
	mux.HandleFunc("/api/v1/wallet", h.GetWallet)
	mux.HandleFunc("/api/v1/ledger", h.ListLedger)
	mux.HandleFunc("/api/v1/checkout", h.Checkout)
	mux.HandleFunc("/api/v1/public/webhooks/stripe", h.StripeWebhook)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "settlement")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
