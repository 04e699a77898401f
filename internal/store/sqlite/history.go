package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/listenupapp/reading-server/internal/domain"
	"github.com/listenupapp/reading-server/internal/store"
)

// historyColumns must match the scan order in scanHistory.
const historyColumns = `id, user_id, book_id, last_read_at, total_reading_time,
	total_progress, read_count, created_at, updated_at`

func scanHistory(scanner interface{ Scan(dest ...any) error }) (*domain.ReadingHistory, error) {
	var (
		h          domain.ReadingHistory
		lastReadAt sql.NullString
		createdAt  string
		updatedAt  string
	)

	err := scanner.Scan(
		&h.ID,
		&h.UserID,
		&h.BookID,
		&lastReadAt,
		&h.TotalReadingTime,
		&h.TotalProgress,
		&h.ReadCount,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if h.LastReadAt, err = parseNullableTime(lastReadAt); err != nil {
		return nil, err
	}
	if h.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if h.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &h, nil
}

func (c *conn) getHistory(ctx context.Context, where string, args ...any) (*domain.ReadingHistory, error) {
	row := c.q.QueryRowContext(ctx, `SELECT `+historyColumns+` FROM reading_history WHERE `+where, args...)
	h, err := scanHistory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return h, err
}

// GetHistory returns nil, nil when the pair has no history.
func (c *conn) GetHistory(ctx context.Context, userID, bookID string) (*domain.ReadingHistory, error) {
	return c.getHistory(ctx, `user_id = ? AND book_id = ?`, userID, bookID)
}

// GetHistoryByID returns nil, nil when the history does not exist.
func (c *conn) GetHistoryByID(ctx context.Context, id string) (*domain.ReadingHistory, error) {
	return c.getHistory(ctx, `id = ?`, id)
}

// CreateHistory inserts a history row. Returns store.ErrAlreadyExists if
// the ID or the (user, book) pair is taken.
func (c *conn) CreateHistory(ctx context.Context, h *domain.ReadingHistory) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO reading_history (
			id, user_id, book_id, last_read_at, total_reading_time,
			total_progress, read_count, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ID,
		h.UserID,
		h.BookID,
		nullTimeString(h.LastReadAt),
		h.TotalReadingTime,
		h.TotalProgress,
		h.ReadCount,
		formatTime(h.CreatedAt),
		formatTime(h.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

// UpdateHistory rewrites the mutable columns. Returns store.ErrNotFound if absent.
func (c *conn) UpdateHistory(ctx context.Context, h *domain.ReadingHistory) error {
	result, err := c.q.ExecContext(ctx, `
		UPDATE reading_history SET
			last_read_at = ?,
			total_reading_time = ?,
			total_progress = ?,
			read_count = ?,
			updated_at = ?
		WHERE id = ?`,
		nullTimeString(h.LastReadAt),
		h.TotalReadingTime,
		h.TotalProgress,
		h.ReadCount,
		formatTime(h.UpdatedAt),
		h.ID,
	)
	if err != nil {
		return fmt.Errorf("update history: %w", err)
	}
	return checkAffected(result)
}

// DeleteHistory removes a history; its sessions cascade.
func (c *conn) DeleteHistory(ctx context.Context, id string) error {
	result, err := c.q.ExecContext(ctx, `DELETE FROM reading_history WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

// ListHistory returns the user's histories, most recently read first.
// Histories never read sort last.
func (s *Store) ListHistory(ctx context.Context, userID string, limit int) ([]*domain.ReadingHistory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+historyColumns+`
		FROM reading_history
		WHERE user_id = ?
		ORDER BY last_read_at IS NULL, last_read_at DESC, created_at DESC
		LIMIT ?`,
		userID, store.ClampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var out []*domain.ReadingHistory
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
