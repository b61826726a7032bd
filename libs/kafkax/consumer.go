package kafkax

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Handler func(ctx context.Context, msg kafka.Message) error

// Dedup records a consumed event id once; the second sighting returns false.
// Forget releases a recorded id so a redelivery can retry it. Backed by each
// service's inbox table.
type Dedup interface {
	Record(ctx context.Context, eventID string, eventType string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

// Consumer is a group consumer with inbox deduplication and trace
// propagation. A handler error releases the inbox record again, so the event
// stays eligible for redelivery; only a handled event stays deduplicated.
type Consumer struct {
	reader  *kafka.Reader
	logger  *slog.Logger
	dedup   Dedup
	handler Handler
}

type ConsumerConfig struct {
	Brokers string
	GroupID string
	Topic   string
}

func NewConsumer(logger *slog.Logger, dedup Dedup, cfg ConsumerConfig, handler Handler) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  SplitBrokers(cfg.Brokers),
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Consumer{
		reader:  reader,
		logger:  logger,
		dedup:   dedup,
		handler: handler,
	}
}

// process applies the dedup-then-handle sequence for one message. The inbox
// record is taken before the handler to fence out concurrent consumers, and
// released again when the handler fails.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) error {
	meta := ExtractEventMeta(msg)

	first, err := c.dedup.Record(ctx, meta.EventID, meta.EventType)
	if err != nil {
		return err
	}
	if !first {
		c.logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
		return nil
	}

	if err := c.handler(ctx, msg); err != nil {
		if forgetErr := c.dedup.Forget(ctx, meta.EventID); forgetErr != nil {
			c.logger.Error("inbox release failed", "event_id", meta.EventID, "err", forgetErr)
		}
		return err
	}
	return nil
}

func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "err", err)
			time.Sleep(1 * time.Second)
			continue
		}

		ctxMsg := ExtractTraceContext(ctx, msg)
		ctxSpan, span := otel.Tracer("kafka").Start(ctxMsg, "kafka.consume",
			trace.WithAttributes(
				attribute.String("messaging.system", "kafka"),
				attribute.String("messaging.destination", msg.Topic),
			),
		)

		if err := c.process(ctxSpan, msg); err != nil {
			c.logger.Error("event processing failed", "err", err, "topic", msg.Topic)
			span.RecordError(err)
		}
		span.End()
	}
}
