package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/listenupapp/reading-server/internal/domain"
	"github.com/listenupapp/reading-server/internal/store"
)

// CreateUser inserts a user. Returns store.ErrAlreadyExists on a duplicate ID.
func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, display_name, created_at) VALUES (?, ?, ?)`,
		user.ID, user.DisplayName, formatTime(user.CreatedAt),
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

// GetUser returns store.ErrNotFound when the user does not exist.
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var (
		u         domain.User
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, display_name, created_at FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.DisplayName, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// UserExists reports whether a user row exists.
func (c *conn) UserExists(ctx context.Context, id string) (bool, error) {
	return c.exists(ctx, `SELECT 1 FROM users WHERE id = ?`, id)
}

func (c *conn) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var one int
	err := c.q.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
