package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/khanakart/khanakart/libs/config"
	"github.com/khanakart/khanakart/libs/db"
	"github.com/khanakart/khanakart/libs/httpx"
	"github.com/khanakart/khanakart/libs/inbox"
	"github.com/khanakart/khanakart/libs/kafkax"
	otelx "github.com/khanakart/khanakart/libs/otel"
	"github.com/khanakart/khanakart/libs/outbox"
	"github.com/khanakart/khanakart/libs/runtime"
	"github.com/khanakart/khanakart/services/notification-service/internal/email"
	"github.com/khanakart/khanakart/services/notification-service/internal/sms"
	"github.com/khanakart/khanakart/services/notification-service/internal/storage"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type orderPlacedPayload struct {
	OrderID       string `json:"order_id"`
	CustomerID    string `json:"customer_id"`
	KitchenID     string `json:"kitchen_id"`
	SlotID        string `json:"slot_id"`
	TotalAmount   int64  `json:"total_amount"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone"`
	PlacedAt      string `json:"placed_at"`
}

func writeOutboxSent(ctx context.Context, pool *db.Pool, outboxRepo *outbox.Repository, payload orderPlacedPayload, channel, providerID string) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if strings.TrimSpace(providerID) == "" {
		providerID = "unknown"
	}
	eventPayload, err := json.Marshal(map[string]any{
		"order_id":    payload.OrderID,
		"customer_id": payload.CustomerID,
		"channel":     channel,
		"provider_id": providerID,
		"sent_at":     time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	if err := outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "notification",
		AggregateID:   payload.OrderID,
		EventType:     "notification.sent.v1",
		Payload:       eventPayload,
	}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func writeOutboxFailed(ctx context.Context, pool *db.Pool, outboxRepo *outbox.Repository, payload orderPlacedPayload, channel, reason string) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	eventPayload, err := json.Marshal(map[string]any{
		"order_id":     payload.OrderID,
		"customer_id":  payload.CustomerID,
		"channel":      channel,
		"error_reason": reason,
		"failed_at":    time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	if err := outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "notification",
		AggregateID:   payload.OrderID,
		EventType:     "notification.failed.v1",
		Payload:       eventPayload,
	}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func main() {
	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8085")
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

	inboxRepo := inbox.NewRepository(pool)
	notificationsRepo := storage.NewRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	smtpHost := config.String("SMTP_HOST", "mailpit")
	smtpPort := config.String("SMTP_PORT", "1025")
	smtpFrom := config.String("SMTP_FROM", "no-reply@khanakart.local")
	emailSender := email.NewSMTPSender(smtpHost, smtpPort, smtpFrom)
	emailProviderID := "smtp"

	smsProvider := strings.ToLower(config.String("SMS_PROVIDER", "noop"))
	var smsSender sms.Sender
	switch smsProvider {
	case "webhook":
		smsSender = sms.NewWebhookSender(config.String("SMS_WEBHOOK_URL", ""), config.String("SMS_WEBHOOK_TOKEN", ""))
	default:
		smsSender = sms.NewNoopSender()
	}

	record := func(ctx context.Context, payload orderPlacedPayload, channel, recipient, status string) {
		if err := notificationsRepo.Insert(ctx, storage.Notification{
			OrderID:   payload.OrderID,
			UserID:    payload.CustomerID,
			Channel:   channel,
			Recipient: recipient,
			Payload: map[string]any{
				"kitchen_id":   payload.KitchenID,
				"slot_id":      payload.SlotID,
				"total_amount": payload.TotalAmount,
				"placed_at":    payload.PlacedAt,
			},
			Status: status,
		}); err != nil {
			logger.Error("failed to record notification", "err", err, "order_id", payload.OrderID)
		}
	}

	eventConsumer := kafkax.NewConsumer(logger, inboxRepo, kafkax.ConsumerConfig{
		Brokers: config.String("KAFKA_BROKERS", ""),
		GroupID: config.String("KAFKA_GROUP_ID", "notification-service"),
		Topic:   config.String("KAFKA_CONSUME_TOPIC", "ordering.order.placed.v1"),
	}, func(ctx context.Context, msg kafka.Message) error {
		var payload orderPlacedPayload
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error("invalid order placed payload", "err", err)
			return nil
		}
		if payload.OrderID == "" || payload.CustomerID == "" {
			logger.Error("missing order placed fields")
			return nil
		}

		if recipient := strings.TrimSpace(payload.CustomerEmail); recipient != "" {
			confirmation := email.Confirmation{OrderID: payload.OrderID, TotalAmount: payload.TotalAmount}
			if err := emailSender.Send(recipient, confirmation.Subject(), confirmation.Body()); err != nil {
				logger.Error("email send failed", "err", err, "order_id", payload.OrderID)
				record(ctx, payload, "email", recipient, "failed")
				if err := writeOutboxFailed(ctx, pool, outboxRepo, payload, "email", "smtp send failed"); err != nil {
					return err
				}
			} else {
				record(ctx, payload, "email", recipient, "sent")
				if err := writeOutboxSent(ctx, pool, outboxRepo, payload, "email", emailProviderID); err != nil {
					return err
				}
			}
		}

		if recipient := strings.TrimSpace(payload.CustomerPhone); recipient != "" {
			if err := smsSender.Send(ctx, recipient, sms.ConfirmationBody(payload.OrderID)); err != nil {
				logger.Error("sms send failed", "err", err, "order_id", payload.OrderID)
				record(ctx, payload, "sms", recipient, "failed")
				if err := writeOutboxFailed(ctx, pool, outboxRepo, payload, "sms", "sms send failed"); err != nil {
					return err
				}
			} else {
				record(ctx, payload, "sms", recipient, "sent")
				if err := writeOutboxSent(ctx, pool, outboxRepo, payload, "sms", smsSender.ProviderID()); err != nil {
					return err
				}
			}
		}
		return nil
	})
	go eventConsumer.Run(ctx)

	mux := runtime.NewBaseMux(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "notification")
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
