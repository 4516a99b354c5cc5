package book

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	booksTable          = "books"
	uniqueViolationCode = "23505"
)

var bookColumns = []any{"id", "title", "author", "genre", "isbn", "price", "quantity", "created_at", "updated_at"}

const selectBookSQL = `
	SELECT id, title, author, genre, isbn, price, quantity, created_at, updated_at
	FROM books`

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepo is the Store backed by the books table.
type PostgresRepo struct {
	db      *pgxpool.Pool
	q       querier
	timeout time.Duration
}

// NewPostgresRepo creates a repo on db. Every statement runs under its own
// timeout derived from the caller's context.
func NewPostgresRepo(db *pgxpool.Pool, timeout time.Duration) *PostgresRepo {
	return &PostgresRepo{db: db, q: db, timeout: timeout}
}

func (r *PostgresRepo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

// WithinTx runs fn inside a read-committed transaction. Returning an error
// from fn rolls the transaction back.
func (r *PostgresRepo) WithinTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &PostgresRepo{db: r.db, q: tx, timeout: r.timeout}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *PostgresRepo) FindByID(ctx context.Context, id int64) (*Book, error) {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	return scanOne(r.q.QueryRow(timeoutCtx, selectBookSQL+` WHERE id = $1`, id))
}

// FindByIDForUpdate locks the row until the surrounding transaction ends.
// Outside WithinTx the lock is released immediately.
func (r *PostgresRepo) FindByIDForUpdate(ctx context.Context, id int64) (*Book, error) {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	return scanOne(r.q.QueryRow(timeoutCtx, selectBookSQL+` WHERE id = $1 FOR UPDATE`, id))
}

func (r *PostgresRepo) FindByISBN(ctx context.Context, isbn string) (*Book, error) {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	return scanOne(r.q.QueryRow(timeoutCtx, selectBookSQL+` WHERE isbn = $1 LIMIT 1`, isbn))
}

// FindAll returns every book ordered by id.
func (r *PostgresRepo) FindAll(ctx context.Context) ([]Book, error) {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	rows, err := r.q.Query(timeoutCtx, selectBookSQL+` ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return scanAll(rows)
}

// Search returns the books matching every non-blank criterion, ordered by id.
func (r *PostgresRepo) Search(ctx context.Context, c SearchCriteria) ([]Book, error) {
	query, args, err := buildSearchQuery(c)
	if err != nil {
		return nil, fmt.Errorf("build search query: %w", err)
	}
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	rows, err := r.q.Query(timeoutCtx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanAll(rows)
}

// Save inserts b when it has no id yet and updates it otherwise. The storage
// assigned fields (id, timestamps) are written back into b.
func (r *PostgresRepo) Save(ctx context.Context, b *Book) error {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	if b.ID == 0 {
		const insertSQL = `
		INSERT INTO books (title, author, genre, isbn, price, quantity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING id, created_at, updated_at`
		err := r.q.QueryRow(timeoutCtx, insertSQL,
			b.Title, b.Author, b.Genre, b.ISBN, b.Price, b.Quantity,
		).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
		return mapWriteErr(err)
	}

	const updateSQL = `
		UPDATE books
		SET title = $1, author = $2, genre = $3, isbn = $4, price = $5, quantity = $6, updated_at = NOW()
		WHERE id = $7
		RETURNING created_at, updated_at`
	err := r.q.QueryRow(timeoutCtx, updateSQL,
		b.Title, b.Author, b.Genre, b.ISBN, b.Price, b.Quantity, b.ID,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: id %d", ErrNotFound, b.ID)
	}
	return mapWriteErr(err)
}

func (r *PostgresRepo) DeleteByID(ctx context.Context, id int64) error {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	_, err := r.q.Exec(timeoutCtx, `DELETE FROM books WHERE id = $1`, id)
	return err
}

func (r *PostgresRepo) ExistsByID(ctx context.Context, id int64) (bool, error) {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	var exists bool
	err := r.q.QueryRow(timeoutCtx, `SELECT EXISTS(SELECT 1 FROM books WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

// buildSearchQuery ANDs every non-blank filter. Text filters are
// case-insensitive substring matches, the ISBN filter is exact.
func buildSearchQuery(c SearchCriteria) (string, []any, error) {
	var where []exp.Expression
	if c.Title != "" {
		where = append(where, goqu.C("title").ILike(containsPattern(c.Title)))
	}
	if c.Author != "" {
		where = append(where, goqu.C("author").ILike(containsPattern(c.Author)))
	}
	if c.Genre != "" {
		where = append(where, goqu.C("genre").ILike(containsPattern(c.Genre)))
	}
	if c.ISBN != "" {
		where = append(where, goqu.C("isbn").Eq(c.ISBN))
	}

	ds := goqu.Dialect("postgres").
		From(booksTable).
		Select(bookColumns...).
		Prepared(true).
		Order(goqu.C("id").Asc())
	if len(where) > 0 {
		ds = ds.Where(where...)
	}
	return ds.ToSQL()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

func mapWriteErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		return fmt.Errorf("%w: %s", ErrUniqueViolation, pgErr.ConstraintName)
	}
	return err
}

func scanOne(row pgx.Row) (*Book, error) {
	var b Book
	err := row.Scan(&b.ID, &b.Title, &b.Author, &b.Genre, &b.ISBN, &b.Price, &b.Quantity, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}

func scanAll(rows pgx.Rows) ([]Book, error) {
	defer rows.Close()

	out := []Book{}
	for rows.Next() {
		var b Book
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.Genre, &b.ISBN, &b.Price, &b.Quantity, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
