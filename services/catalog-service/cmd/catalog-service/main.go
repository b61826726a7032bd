package main

import (
	"context"
	"net/http"
	"time"

	"github.com/khanakart/khanakart/libs/config"
	"github.com/khanakart/khanakart/libs/db"
	"github.com/khanakart/khanakart/libs/httpx"
	"github.com/khanakart/khanakart/libs/kafkax"
	otelx "github.com/khanakart/khanakart/libs/otel"
	"github.com/khanakart/khanakart/libs/outbox"
	"github.com/khanakart/khanakart/libs/runtime"
	"github.com/khanakart/khanakart/services/catalog-service/internal/handlers"
	"github.com/khanakart/khanakart/services/catalog-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "catalog-service")
	port, err := config.Port("PORT", "8081")
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

	if err := startGrpcServer(ctx, logger, pool, repo); err != nil {
		logger.Error("grpc server init failed", "err", err)
	}

	h := handlers.New(repo, outboxRepo, logger)

	mux := runtime.NewBaseMux(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.HandleFunc("/api/v1/kitchens", h.CreateKitchen)
	mux.HandleFunc("/api/v1/public/kitchens", h.ListKitchens)
	mux.HandleFunc("/api/v1/slots", h.SaveSlot)
	mux.HandleFunc("/api/v1/slots/list", h.ListSlots)
	mux.HandleFunc("/api/v1/items", h.CreateItem)
	mux.HandleFunc("/api/v1/public/items", h.ListItems)
	mux.HandleFunc("/api/v1/commission-rules", h.SaveCommissionRule)
	mux.HandleFunc("/api/v1/commission-rules/list", h.ListCommissionRules)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "catalog")
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
