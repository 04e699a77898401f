package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/listenupapp/reading-server/internal/domain"
	"github.com/listenupapp/reading-server/internal/store"
)

// CreateBook inserts a book. Returns store.ErrAlreadyExists on a duplicate ID.
func (s *Store) CreateBook(ctx context.Context, book *domain.Book) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO books (id, title, author, total_pages, created_at) VALUES (?, ?, ?, ?, ?)`,
		book.ID, book.Title, nullString(book.Author), nullInt(book.TotalPages), formatTime(book.CreatedAt),
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

// GetBook returns store.ErrNotFound when the book does not exist.
func (s *Store) GetBook(ctx context.Context, id string) (*domain.Book, error) {
	var (
		b          domain.Book
		author     sql.NullString
		totalPages sql.NullInt64
		createdAt  string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, author, total_pages, created_at FROM books WHERE id = ?`, id,
	).Scan(&b.ID, &b.Title, &author, &totalPages, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	b.Author = author.String
	b.TotalPages = intPtr(totalPages)
	if b.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &b, nil
}

// BookExists reports whether a book row exists.
func (c *conn) BookExists(ctx context.Context, id string) (bool, error) {
	return c.exists(ctx, `SELECT 1 FROM books WHERE id = ?`, id)
}
