package notify

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"bookinventory/internal/book"
)

// ListenerFunc adapts a plain function to Listener.
type ListenerFunc func(ctx context.Context, e book.Event) error

func (f ListenerFunc) Notify(ctx context.Context, e book.Event) error {
	return f(ctx, e)
}

// Dispatcher fans an event out to every registered listener, one after the
// other in registration order. It implements book.Publisher.
type Dispatcher struct {
	mu        sync.RWMutex
	listeners []Listener
	logger    *zap.Logger
}

func NewDispatcher(logger *zap.Logger, listeners ...Listener) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		listeners: listeners,
		logger:    logger.Named("notify"),
	}
}

func (d *Dispatcher) Register(listeners ...Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, listeners...)
}

// Publish delivers e to each listener. A failing or panicking listener is
// logged and skipped; the remaining listeners still run.
func (d *Dispatcher) Publish(ctx context.Context, e book.Event) {
	d.mu.RLock()
	listeners := make([]Listener, len(d.listeners))
	copy(listeners, d.listeners)
	d.mu.RUnlock()

	for i, l := range listeners {
		if err := d.deliver(ctx, l, e); err != nil {
			d.logger.Error("listener failed",
				zap.Int("listener", i),
				zap.String("listener_type", fmt.Sprintf("%T", l)),
				zap.String("event", e.Name()),
				zap.String("event_id", e.Metadata().ID),
				zap.Int64("book_id", e.Subject().ID),
				zap.Error(err),
			)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, l Listener, e book.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panicked: %v", r)
		}
	}()
	return l.Notify(ctx, e)
}

var _ book.Publisher = (*Dispatcher)(nil)
