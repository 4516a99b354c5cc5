package book

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// MaxQuantity is the largest stock level the books table can hold.
const MaxQuantity = math.MaxInt32

var (
	// ErrNotFound is returned when no book exists for the requested id.
	ErrNotFound = errors.New("book not found")
	// ErrDuplicateISBN is returned when another book already owns the ISBN.
	ErrDuplicateISBN = errors.New("book with this isbn already exists")
	// ErrInvalidArgument is returned when a change would break a business rule,
	// such as a negative price or a negative stock level.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Book represents a book entity together with its current stock level.
type Book struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Genre     string    `json:"genre"`
	ISBN      string    `json:"isbn"`
	Price     float64   `json:"price"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateInput carries the fields of a new book. Shape validation happens at
// the transport layer before it reaches the service.
type CreateInput struct {
	Title    string
	Author   string
	Genre    string
	ISBN     string
	Price    float64
	Quantity int
}

// Changes is a partial update. A nil field means "leave unchanged".
type Changes struct {
	Title    *string
	Author   *string
	Genre    *string
	Price    *float64
	Quantity *int
}

func (c Changes) validate() error {
	if c.Price != nil && *c.Price < 0 {
		return fmt.Errorf("%w: price cannot be negative", ErrInvalidArgument)
	}
	if c.Quantity != nil && *c.Quantity < 0 {
		return fmt.Errorf("%w: quantity cannot be negative", ErrInvalidArgument)
	}
	if c.Quantity != nil && *c.Quantity > MaxQuantity {
		return fmt.Errorf("%w: quantity cannot exceed %d", ErrInvalidArgument, MaxQuantity)
	}
	return nil
}

// SearchCriteria holds the optional search filters. Title, Author and Genre
// match as case-insensitive substrings, ISBN matches exactly.
type SearchCriteria struct {
	Title  string
	Author string
	Genre  string
	ISBN   string
}

// Trimmed returns a copy with surrounding whitespace removed from every filter.
func (c SearchCriteria) Trimmed() SearchCriteria {
	return SearchCriteria{
		Title:  strings.TrimSpace(c.Title),
		Author: strings.TrimSpace(c.Author),
		Genre:  strings.TrimSpace(c.Genre),
		ISBN:   strings.TrimSpace(c.ISBN),
	}
}

// IsEmpty reports whether every filter is blank.
func (c SearchCriteria) IsEmpty() bool {
	t := c.Trimmed()
	return t.Title == "" && t.Author == "" && t.Genre == "" && t.ISBN == ""
}

func (c Changes) apply(b *Book) {
	if c.Title != nil {
		b.Title = *c.Title
	}
	if c.Author != nil {
		b.Author = *c.Author
	}
	if c.Genre != nil {
		b.Genre = *c.Genre
	}
	if c.Price != nil {
		b.Price = *c.Price
	}
	if c.Quantity != nil {
		b.Quantity = *c.Quantity
	}
}
