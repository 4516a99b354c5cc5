package book

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"
)

// MemoryRepo is an in-process Store. Transactions are serialised under a
// single lock and applied to a copy that only replaces the live state on success.
type MemoryRepo struct {
	mu    sync.Mutex
	state *memState
}

type memState struct {
	books  map[int64]Book
	nextID int64
}

// NewMemoryRepo creates an empty in-memory store whose ids start at 1.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{state: &memState{books: map[int64]Book{}, nextID: 1}}
}

func (s *memState) clone() *memState {
	return &memState{books: maps.Clone(s.books), nextID: s.nextID}
}

// WithinTx runs fn against a private copy of the state. The copy replaces the
// live state only when fn returns nil, and other callers wait until it does.
func (r *MemoryRepo) WithinTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	draft := r.state.clone()
	if err := fn(ctx, draft); err != nil {
		return err
	}
	r.state = draft
	return nil
}

func (r *MemoryRepo) FindByID(ctx context.Context, id int64) (*Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.FindByID(ctx, id)
}

// FindByIDForUpdate is FindByID: WithinTx already serialises writers.
func (r *MemoryRepo) FindByIDForUpdate(ctx context.Context, id int64) (*Book, error) {
	return r.FindByID(ctx, id)
}

func (r *MemoryRepo) FindByISBN(ctx context.Context, isbn string) (*Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.FindByISBN(ctx, isbn)
}

// FindAll returns every book ordered by id.
func (r *MemoryRepo) FindAll(ctx context.Context) ([]Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.FindAll(ctx)
}

// Search applies the same matching rules as the Postgres repo.
func (r *MemoryRepo) Search(ctx context.Context, c SearchCriteria) ([]Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Search(ctx, c)
}

// Save inserts or updates b and rejects an ISBN owned by another book
// with ErrUniqueViolation.
func (r *MemoryRepo) Save(ctx context.Context, b *Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Save(ctx, b)
}

func (r *MemoryRepo) DeleteByID(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.DeleteByID(ctx, id)
}

func (r *MemoryRepo) ExistsByID(ctx context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.ExistsByID(ctx, id)
}

// memState methods assume the caller holds the MemoryRepo lock.

func (s *memState) FindByID(_ context.Context, id int64) (*Book, error) {
	b, ok := s.books[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (s *memState) FindByIDForUpdate(ctx context.Context, id int64) (*Book, error) {
	return s.FindByID(ctx, id)
}

func (s *memState) FindByISBN(_ context.Context, isbn string) (*Book, error) {
	for _, b := range s.books {
		if b.ISBN == isbn {
			return &b, nil
		}
	}
	return nil, nil
}

func (s *memState) FindAll(_ context.Context) ([]Book, error) {
	out := make([]Book, 0, len(s.books))
	for _, id := range slices.Sorted(maps.Keys(s.books)) {
		out = append(out, s.books[id])
	}
	return out, nil
}

func (s *memState) Search(ctx context.Context, c SearchCriteria) ([]Book, error) {
	all, err := s.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	out := []Book{}
	for _, b := range all {
		if c.Title != "" && !containsFold(b.Title, c.Title) {
			continue
		}
		if c.Author != "" && !containsFold(b.Author, c.Author) {
			continue
		}
		if c.Genre != "" && !containsFold(b.Genre, c.Genre) {
			continue
		}
		if c.ISBN != "" && b.ISBN != c.ISBN {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *memState) Save(_ context.Context, b *Book) error {
	for id, other := range s.books {
		if id != b.ID && other.ISBN == b.ISBN {
			return fmt.Errorf("%w: books_isbn_key", ErrUniqueViolation)
		}
	}

	now := time.Now().UTC()
	if b.ID == 0 {
		b.ID = s.nextID
		s.nextID++
		b.CreatedAt = now
	} else {
		existing, ok := s.books[b.ID]
		if !ok {
			return fmt.Errorf("%w: id %d", ErrNotFound, b.ID)
		}
		b.CreatedAt = existing.CreatedAt
	}
	b.UpdatedAt = now
	s.books[b.ID] = *b
	return nil
}

func (s *memState) DeleteByID(_ context.Context, id int64) error {
	delete(s.books, id)
	return nil
}

func (s *memState) ExistsByID(_ context.Context, id int64) (bool, error) {
	_, ok := s.books[id]
	return ok, nil
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
