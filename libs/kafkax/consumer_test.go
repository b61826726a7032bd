package kafkax

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/segmentio/kafka-go"
)

type fakeDedup struct {
	recorded map[string]string
}

func newFakeDedup() *fakeDedup {
	return &fakeDedup{recorded: map[string]string{}}
}

func (d *fakeDedup) Record(_ context.Context, eventID, eventType string) (bool, error) {
	if _, ok := d.recorded[eventID]; ok {
		return false, nil
	}
	d.recorded[eventID] = eventType
	return true, nil
}

func (d *fakeDedup) Forget(_ context.Context, eventID string) error {
	delete(d.recorded, eventID)
	return nil
}

func testMessage(id string) kafka.Message {
	return kafka.Message{
		Topic: "ordering.order.delivered.v1",
		Key:   []byte("ord-1"),
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(id)},
			{Key: "event_type", Value: []byte("ordering.order.delivered.v1")},
		},
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProcessRunsHandlerOnce(t *testing.T) {
	dedup := newFakeDedup()
	calls := 0
	c := &Consumer{
		logger: quietLogger(),
		dedup:  dedup,
		handler: func(ctx context.Context, msg kafka.Message) error {
			calls++
			return nil
		},
	}

	msg := testMessage("evt-1")
	if err := c.process(context.Background(), msg); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := c.process(context.Background(), msg); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if calls != 1 {
		t.Fatalf("handler ran %d times, want 1", calls)
	}
}

func TestProcessReleasesInboxOnHandlerError(t *testing.T) {
	dedup := newFakeDedup()
	calls := 0
	c := &Consumer{
		logger: quietLogger(),
		dedup:  dedup,
		handler: func(ctx context.Context, msg kafka.Message) error {
			calls++
			if calls == 1 {
				return errors.New("downstream unavailable")
			}
			return nil
		},
	}

	msg := testMessage("evt-2")
	if err := c.process(context.Background(), msg); err == nil {
		t.Fatal("want handler error surfaced")
	}
	if _, ok := dedup.recorded["evt-2"]; ok {
		t.Fatal("failed event must not stay recorded")
	}

	// The redelivery is not a duplicate and must reach the handler.
	if err := c.process(context.Background(), msg); err != nil {
		t.Fatalf("redelivery after failure: %v", err)
	}
	if calls != 2 {
		t.Fatalf("handler ran %d times, want 2", calls)
	}
	if dedup.recorded["evt-2"] == "" {
		t.Fatal("handled event must stay recorded")
	}
}
