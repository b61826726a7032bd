// Package outbox implements the transactional outbox shared by every
// service: domain events are inserted in the same database transaction as
// the state change and later shipped to Kafka by a publisher goroutine.
// The Kafka topic name equals EventType (one event type per topic).
package outbox

// Event is the envelope written to the outbox table.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}
