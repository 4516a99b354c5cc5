package notify

import (
	"context"

	"go.uber.org/zap"

	"bookinventory/internal/book"
)

// LogListener writes one structured line per event.
type LogListener struct {
	logger *zap.Logger
}

func NewLogListener(logger *zap.Logger) *LogListener {
	return &LogListener{logger: logger.Named("events")}
}

func (l *LogListener) Notify(_ context.Context, e book.Event) error {
	b := e.Subject()
	fields := []zap.Field{
		zap.String("event", e.Name()),
		zap.String("event_id", e.Metadata().ID),
		zap.Time("occurred_at", e.Metadata().OccurredAt),
		zap.Int64("book_id", b.ID),
		zap.String("title", b.Title),
	}

	switch ev := e.(type) {
	case book.Created:
		l.logger.Info("book created", append(fields, zap.String("isbn", b.ISBN))...)
	case book.TitleChanged:
		l.logger.Info("book title changed", fields...)
	case book.InventoryChanged:
		l.logger.Info("book inventory changed", append(fields,
			zap.Int("old_quantity", ev.OldQuantity),
			zap.Int("new_quantity", ev.NewQuantity),
		)...)
	default:
		l.logger.Info("book event", fields...)
	}
	return nil
}
