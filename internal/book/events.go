package book

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventCreated          = "book.created"
	EventTitleChanged     = "book.title_changed"
	EventInventoryChanged = "book.inventory_changed"
)

// Event is a transient fact about a committed state change.
type Event interface {
	Name() string
	Metadata() EventMeta
	Subject() Book
}

// EventMeta identifies a single emitted event.
type EventMeta struct {
	ID         string    `json:"event_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

func newEventMeta() EventMeta {
	return EventMeta{
		ID:         uuid.NewString(),
		OccurredAt: time.Now().UTC(),
	}
}

// Created is emitted once a new book has been persisted.
type Created struct {
	EventMeta
	Book Book `json:"book"`
}

func (e Created) Name() string        { return EventCreated }
func (e Created) Metadata() EventMeta { return e.EventMeta }
func (e Created) Subject() Book       { return e.Book }

// TitleChanged is emitted when an update replaced the title with a different, non-empty one.
type TitleChanged struct {
	EventMeta
	Book Book `json:"book"`
}

func (e TitleChanged) Name() string        { return EventTitleChanged }
func (e TitleChanged) Metadata() EventMeta { return e.EventMeta }
func (e TitleChanged) Subject() Book       { return e.Book }

// InventoryChanged is emitted whenever the stored quantity moved.
type InventoryChanged struct {
	EventMeta
	Book        Book `json:"book"`
	OldQuantity int  `json:"old_quantity"`
	NewQuantity int  `json:"new_quantity"`
}

func (e InventoryChanged) Name() string        { return EventInventoryChanged }
func (e InventoryChanged) Metadata() EventMeta { return e.EventMeta }
func (e InventoryChanged) Subject() Book       { return e.Book }
