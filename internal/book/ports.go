package book

//go:generate mockgen -source=ports.go -destination=mock_ports_test.go -package=book

import (
	"context"
	"errors"
)

// ErrUniqueViolation is the storage-level signal that a save collided with an
// existing ISBN. The service translates it into ErrDuplicateISBN.
var ErrUniqueViolation = errors.New("unique constraint violation")

// Repository defines the contract for book data storage.
// Lookups return nil, nil when nothing matches.
type Repository interface {
	FindByID(ctx context.Context, id int64) (*Book, error)
	FindByIDForUpdate(ctx context.Context, id int64) (*Book, error)
	FindByISBN(ctx context.Context, isbn string) (*Book, error)
	FindAll(ctx context.Context) ([]Book, error)
	Search(ctx context.Context, c SearchCriteria) ([]Book, error)
	Save(ctx context.Context, b *Book) error
	DeleteByID(ctx context.Context, id int64) error
	ExistsByID(ctx context.Context, id int64) (bool, error)
}

// Store is a Repository that can also run a unit of work atomically.
// The repo handed to fn is bound to the transaction.
type Store interface {
	Repository
	WithinTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error
}

// Publisher receives change notifications after a successful write.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) {}
