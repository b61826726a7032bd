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
	"github.com/khanakart/khanakart/services/ordering-service/internal/dispatch"
	"github.com/khanakart/khanakart/services/ordering-service/internal/events"
	"github.com/khanakart/khanakart/services/ordering-service/internal/handlers"
	"github.com/khanakart/khanakart/services/ordering-service/internal/slotsource"
	"github.com/khanakart/khanakart/services/ordering-service/internal/storage"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "ordering-service")
	port, err := config.Port("PORT", "8082")
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

	orderRepo := storage.NewOrderRepository(pool)
	slotRepo := storage.NewSlotSnapshotRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	dispatchRepo := dispatch.NewRepository()

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	acceptCutoff := time.Duration(config.Int("ORDER_ACCEPT_CUTOFF_SECONDS", 120)) * time.Second
	dispatchWorker := dispatch.NewWorker(pool, dispatchRepo, orderRepo, outboxRepo, logger, dispatch.WorkerConfig{
		Interval:  time.Duration(config.Int("DISPATCH_POLL_SECONDS", 5)) * time.Second,
		BatchSize: config.Int("DISPATCH_BATCH_SIZE", 50),
		Backoff:   time.Duration(config.Int("DISPATCH_BACKOFF_SECONDS", 30)) * time.Second,
	})
	go dispatchWorker.Run(ctx)

	inboxRepo := inbox.NewRepository(pool)
	slotConsumer := kafkax.NewConsumer(logger, inboxRepo, kafkax.ConsumerConfig{
		Brokers: config.String("KAFKA_BROKERS", ""),
		GroupID: config.String("KAFKA_GROUP_ID", "ordering-service"),
		Topic:   config.String("KAFKA_CONSUME_TOPIC", events.SlotUpdatedTopic),
	}, func(ctx context.Context, msg kafka.Message) error {
		snap, err := events.DecodeSlotUpdated(msg.Value)
		if err != nil {
			logger.Error("invalid slot update", "err", err, "topic", msg.Topic)
			return nil
		}
		return slotRepo.Upsert(ctx, snap)
	})
	go slotConsumer.Run(ctx)

	slotSource := slotsource.NewCatalogProvider(logger, config.String("CATALOG_GRPC_ADDR", ""))
	orderHandler := handlers.NewOrderHandler(orderRepo, slotRepo, slotSource, outboxRepo, dispatchRepo, logger, acceptCutoff)
	slotHandler := handlers.NewSlotHandler(slotRepo, logger)

	mux := runtime.NewBaseMux(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.HandleFunc("/api/v1/public/slots", slotHandler.List)
	mux.HandleFunc("/api/v1/public/orders", orderHandler.Create)
	mux.HandleFunc("/api/v1/orders", orderHandler.ListMine)
	mux.HandleFunc("/api/v1/orders/status", orderHandler.ChangeStatus)
	mux.HandleFunc("/api/v1/kitchen/orders", orderHandler.ListKitchen)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "ordering")
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
