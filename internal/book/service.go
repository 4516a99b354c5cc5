package book

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "bookinventory/book"

// Service provides book-related business logic: uniqueness of the ISBN,
// stock arithmetic and change notifications.
type Service struct {
	store     Store
	publisher Publisher
	logger    *zap.Logger
	tracer    trace.Tracer
}

// NewService creates a new book service. A nil publisher drops notifications
// and a nil logger disables logging.
func NewService(store Store, publisher Publisher, logger *zap.Logger) *Service {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     store,
		publisher: publisher,
		logger:    logger.Named("book"),
		tracer:    otel.Tracer(tracerName),
	}
}

// CreateBook persists a new book and emits a Created notification.
func (s *Service) CreateBook(ctx context.Context, in CreateInput) (Book, error) {
	ctx, span := s.tracer.Start(ctx, "book.CreateBook", trace.WithAttributes(attribute.String("book.isbn", in.ISBN)))
	defer span.End()

	if in.Quantity < 0 || in.Quantity > MaxQuantity {
		return Book{}, recordErr(span, fmt.Errorf("%w: quantity must be between 0 and %d", ErrInvalidArgument, MaxQuantity))
	}

	created := Book{
		Title:    in.Title,
		Author:   in.Author,
		Genre:    in.Genre,
		ISBN:     in.ISBN,
		Price:    in.Price,
		Quantity: in.Quantity,
	}

	err := s.store.WithinTx(ctx, func(ctx context.Context, repo Repository) error {
		existing, err := repo.FindByISBN(ctx, in.ISBN)
		if err != nil {
			return err
		}
		if existing != nil {
			s.logger.Warn("isbn already taken", zap.String("isbn", in.ISBN), zap.Int64("book_id", existing.ID))
			return fmt.Errorf("%w: %s", ErrDuplicateISBN, in.ISBN)
		}
		return repo.Save(ctx, &created)
	})
	if err != nil {
		if errors.Is(err, ErrUniqueViolation) {
			// Another transaction inserted the same ISBN between our lookup and insert.
			s.logger.Error("isbn collision during concurrent creation", zap.String("isbn", in.ISBN), zap.Error(err))
			err = fmt.Errorf("%w: %s (concurrent creation)", ErrDuplicateISBN, in.ISBN)
		}
		return Book{}, recordErr(span, err)
	}

	s.logger.Info("book created", zap.Int64("book_id", created.ID), zap.String("title", created.Title), zap.String("isbn", created.ISBN))
	s.publisher.Publish(ctx, Created{EventMeta: newEventMeta(), Book: created})
	return created, nil
}

// GetAllBooks returns every stored book in storage order.
func (s *Service) GetAllBooks(ctx context.Context) ([]Book, error) {
	ctx, span := s.tracer.Start(ctx, "book.GetAllBooks")
	defer span.End()

	s.logger.Debug("fetching all books")
	books, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, recordErr(span, err)
	}
	return books, nil
}

// GetBookByID returns the book or nil when it does not exist.
func (s *Service) GetBookByID(ctx context.Context, id int64) (*Book, error) {
	ctx, span := s.tracer.Start(ctx, "book.GetBookByID", trace.WithAttributes(attribute.Int64("book.id", id)))
	defer span.End()

	s.logger.Debug("fetching book by id", zap.Int64("book_id", id))
	b, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, recordErr(span, err)
	}
	return b, nil
}

// GetBookByIDOrErr is like GetBookByID but fails with ErrNotFound on absence.
func (s *Service) GetBookByIDOrErr(ctx context.Context, id int64) (Book, error) {
	b, err := s.GetBookByID(ctx, id)
	if err != nil {
		return Book{}, err
	}
	if b == nil {
		s.logger.Warn("book not found", zap.Int64("book_id", id))
		return Book{}, notFound(id)
	}
	return *b, nil
}

// FindByISBN returns the book with the given ISBN or nil.
func (s *Service) FindByISBN(ctx context.Context, isbn string) (*Book, error) {
	ctx, span := s.tracer.Start(ctx, "book.FindByISBN", trace.WithAttributes(attribute.String("book.isbn", isbn)))
	defer span.End()

	s.logger.Debug("fetching book by isbn", zap.String("isbn", isbn))
	b, err := s.store.FindByISBN(ctx, isbn)
	if err != nil {
		return nil, recordErr(span, err)
	}
	return b, nil
}

// UpdateBook applies the present fields of ch to the book. A missing book
// fails with ErrNotFound before ch is checked. It emits TitleChanged and/or
// InventoryChanged depending on what actually moved.
func (s *Service) UpdateBook(ctx context.Context, id int64, ch Changes) (Book, error) {
	ctx, span := s.tracer.Start(ctx, "book.UpdateBook", trace.WithAttributes(attribute.Int64("book.id", id)))
	defer span.End()

	var before, after Book
	err := s.store.WithinTx(ctx, func(ctx context.Context, repo Repository) error {
		current, err := s.lockExisting(ctx, repo, id)
		if err != nil {
			return err
		}
		if err := ch.validate(); err != nil {
			return err
		}
		before = *current
		after = before
		ch.apply(&after)
		return translateSaveErr(repo.Save(ctx, &after), after.ISBN)
	})
	if err != nil {
		return Book{}, recordErr(span, err)
	}

	s.logger.Info("book updated", zap.Int64("book_id", id), zap.String("title", after.Title))

	if after.Title != "" && after.Title != before.Title {
		s.publisher.Publish(ctx, TitleChanged{EventMeta: newEventMeta(), Book: after})
	}
	if after.Quantity != before.Quantity {
		s.publisher.Publish(ctx, InventoryChanged{
			EventMeta:   newEventMeta(),
			Book:        after,
			OldQuantity: before.Quantity,
			NewQuantity: after.Quantity,
		})
	}
	return after, nil
}

// UpdateInventory adds delta to the stock level. A result below zero or above
// MaxQuantity fails with ErrInvalidArgument and leaves the stored record untouched.
func (s *Service) UpdateInventory(ctx context.Context, id int64, delta int) (Book, error) {
	ctx, span := s.tracer.Start(ctx, "book.UpdateInventory", trace.WithAttributes(
		attribute.Int64("book.id", id),
		attribute.Int("inventory.delta", delta),
	))
	defer span.End()

	var updated Book
	var oldQuantity int
	err := s.store.WithinTx(ctx, func(ctx context.Context, repo Repository) error {
		current, err := s.lockExisting(ctx, repo, id)
		if err != nil {
			return err
		}
		oldQuantity = current.Quantity
		if delta > MaxQuantity-oldQuantity {
			s.logger.Warn("inventory would exceed the maximum",
				zap.Int64("book_id", id), zap.Int("quantity", oldQuantity), zap.Int("delta", delta))
			return fmt.Errorf("%w: inventory level cannot exceed %d for book id %d", ErrInvalidArgument, MaxQuantity, id)
		}
		newQuantity := oldQuantity + delta
		if newQuantity < 0 {
			s.logger.Warn("inventory would go negative",
				zap.Int64("book_id", id), zap.Int("quantity", oldQuantity), zap.Int("delta", delta))
			return fmt.Errorf("%w: inventory level cannot go below zero for book id %d", ErrInvalidArgument, id)
		}
		updated = *current
		updated.Quantity = newQuantity
		return translateSaveErr(repo.Save(ctx, &updated), updated.ISBN)
	})
	if err != nil {
		return Book{}, recordErr(span, err)
	}

	s.logger.Info("inventory updated",
		zap.Int64("book_id", id), zap.Int("old_quantity", oldQuantity), zap.Int("new_quantity", updated.Quantity))
	s.publisher.Publish(ctx, InventoryChanged{
		EventMeta:   newEventMeta(),
		Book:        updated,
		OldQuantity: oldQuantity,
		NewQuantity: updated.Quantity,
	})
	return updated, nil
}

// DeleteBook removes the book permanently. No notification is emitted.
func (s *Service) DeleteBook(ctx context.Context, id int64) error {
	ctx, span := s.tracer.Start(ctx, "book.DeleteBook", trace.WithAttributes(attribute.Int64("book.id", id)))
	defer span.End()

	err := s.store.WithinTx(ctx, func(ctx context.Context, repo Repository) error {
		exists, err := repo.ExistsByID(ctx, id)
		if err != nil {
			return err
		}
		if !exists {
			s.logger.Warn("attempted to delete non-existent book", zap.Int64("book_id", id))
			return notFound(id)
		}
		return repo.DeleteByID(ctx, id)
	})
	if err != nil {
		return recordErr(span, err)
	}

	s.logger.Info("book deleted", zap.Int64("book_id", id))
	return nil
}

// SearchBooks filters books by the given criteria. When every criterion is
// blank it returns all books instead of none.
func (s *Service) SearchBooks(ctx context.Context, c SearchCriteria) ([]Book, error) {
	s.logger.Debug("searching books",
		zap.String("title", c.Title), zap.String("author", c.Author),
		zap.String("genre", c.Genre), zap.String("isbn", c.ISBN))

	if c.IsEmpty() {
		return s.GetAllBooks(ctx)
	}

	ctx, span := s.tracer.Start(ctx, "book.SearchBooks")
	defer span.End()

	books, err := s.store.Search(ctx, c.Trimmed())
	if err != nil {
		return nil, recordErr(span, err)
	}
	return books, nil
}

func (s *Service) lockExisting(ctx context.Context, repo Repository, id int64) (*Book, error) {
	current, err := repo.FindByIDForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		s.logger.Warn("book not found", zap.Int64("book_id", id))
		return nil, notFound(id)
	}
	return current, nil
}

func notFound(id int64) error {
	return fmt.Errorf("%w: id %d", ErrNotFound, id)
}

func translateSaveErr(err error, isbn string) error {
	if errors.Is(err, ErrUniqueViolation) {
		return fmt.Errorf("%w: %s", ErrDuplicateISBN, isbn)
	}
	return err
}

func recordErr(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
