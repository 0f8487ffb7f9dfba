package messaging

import (
	"context"
	"time"
)

// Queue represents an abstract message queue for any payload type.
type Queue[T any] interface {
	// Publish adds a new message with payload to the queue
	Publish(ctx context.Context, t *T) error

	// Consume retrieves a single message from the queue
	Consume(ctx context.Context) (Message[T], error)
}

// Message represents a message retrieved from a queue.
type Message[T any] interface {
	// T returns the payload of this message
	T() *T

	// Ack acknowledges successful processing of this message
	Ack() error

	// Nack indicates failure in processing this message
	Nack(err error) error
}

// Delayed is implemented by payloads that must not be delivered before a
// given time; a zero time means deliver immediately. Queue implementations
// honor it so that suspended work never occupies a worker.
type Delayed interface {
	DeliverAfter() time.Time
}

// DeliverAfter extracts the delayed-delivery time of a payload, if any.
func DeliverAfter[T any](t *T) time.Time {
	if t == nil {
		return time.Time{}
	}
	if delayed, ok := any(*t).(Delayed); ok {
		return delayed.DeliverAfter()
	}
	return time.Time{}
}
