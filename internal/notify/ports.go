// Package notify delivers book change events to in-process listeners.
package notify

//go:generate mockgen -source=ports.go -destination=mock_ports_test.go -package=notify

import (
	"context"

	"github.com/segmentio/kafka-go"

	"bookinventory/internal/book"
)

// Listener reacts to a committed book change. Returned errors are logged by
// the Dispatcher and never reach the caller that triggered the change.
type Listener interface {
	Notify(ctx context.Context, e book.Event) error
}

// MessageWriter is the subset of *kafka.Writer used by KafkaListener.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}
