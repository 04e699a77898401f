package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/listenupapp/reading-server/internal/domain"
	"github.com/listenupapp/reading-server/internal/store"
)

// readingSessionColumns must match the scan order in scanReadingSession.
const readingSessionColumns = `s.id, s.history_id, s.user_id, s.book_id, s.start_time, s.end_time,
	s.duration, s.progress_before, s.progress_after, s.created_at, s.updated_at`

func scanReadingSession(scanner interface{ Scan(dest ...any) error }) (*domain.ReadingSession, error) {
	var (
		rs            domain.ReadingSession
		startTime     string
		endTime       sql.NullString
		progressAfter sql.NullFloat64
		createdAt     string
		updatedAt     string
	)

	err := scanner.Scan(
		&rs.ID,
		&rs.HistoryID,
		&rs.UserID,
		&rs.BookID,
		&startTime,
		&endTime,
		&rs.Duration,
		&rs.ProgressBefore,
		&progressAfter,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if rs.StartTime, err = parseTime(startTime); err != nil {
		return nil, err
	}
	if rs.EndTime, err = parseNullableTime(endTime); err != nil {
		return nil, err
	}
	if rs.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if rs.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	rs.ProgressAfter = floatPtr(progressAfter)

	return &rs, nil
}

// GetSession returns store.ErrNotFound when the session does not exist.
func (c *conn) GetSession(ctx context.Context, id string) (*domain.ReadingSession, error) {
	row := c.q.QueryRowContext(ctx,
		`SELECT `+readingSessionColumns+` FROM reading_sessions s WHERE s.id = ?`, id)
	rs, err := scanReadingSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return rs, err
}

// GetOpenSession returns the open session of a history, or nil, nil.
func (c *conn) GetOpenSession(ctx context.Context, historyID string) (*domain.ReadingSession, error) {
	row := c.q.QueryRowContext(ctx,
		`SELECT `+readingSessionColumns+` FROM reading_sessions s
		WHERE s.history_id = ? AND s.end_time IS NULL`, historyID)
	rs, err := scanReadingSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rs, err
}

// CreateSession inserts a session. Returns store.ErrOpenSessionExists when
// the history already has an open session.
func (c *conn) CreateSession(ctx context.Context, rs *domain.ReadingSession) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO reading_sessions (
			id, history_id, user_id, book_id, start_time, end_time,
			duration, progress_before, progress_after, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rs.ID,
		rs.HistoryID,
		rs.UserID,
		rs.BookID,
		formatTime(rs.StartTime),
		nullTimeString(rs.EndTime),
		rs.Duration,
		rs.ProgressBefore,
		nullFloat(rs.ProgressAfter),
		formatTime(rs.CreatedAt),
		formatTime(rs.UpdatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "reading_sessions.history_id") {
			return store.ErrOpenSessionExists
		}
		if isUniqueViolation(err) {
			return store.ErrAlreadyExists
		}
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// UpdateSession rewrites the mutable columns. Returns store.ErrNotFound if absent.
func (c *conn) UpdateSession(ctx context.Context, rs *domain.ReadingSession) error {
	result, err := c.q.ExecContext(ctx, `
		UPDATE reading_sessions SET
			end_time = ?,
			duration = ?,
			progress_after = ?,
			updated_at = ?
		WHERE id = ?`,
		nullTimeString(rs.EndTime),
		rs.Duration,
		nullFloat(rs.ProgressAfter),
		formatTime(rs.UpdatedAt),
		rs.ID,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return checkAffected(result)
}

// SumClosedDurations totals closed-session durations in a history, excluding excludeID.
func (c *conn) SumClosedDurations(ctx context.Context, historyID, excludeID string) (int64, error) {
	var total int64
	err := c.q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(duration), 0) FROM reading_sessions
		WHERE history_id = ? AND end_time IS NOT NULL AND id != ?`,
		historyID, excludeID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum session durations: %w", err)
	}
	return total, nil
}

// ListSessions returns every session of a history ordered by start time.
func (s *Store) ListSessions(ctx context.Context, historyID string) ([]*domain.ReadingSession, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+readingSessionColumns+` FROM reading_sessions s
		WHERE s.history_id = ?
		ORDER BY s.start_time ASC, s.created_at ASC`, historyID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return collectSessions(rows)
}

// ListIdleOpenSessions returns open sessions whose last activity, the later
// of the history's last read and the session start, is before cutoff.
func (s *Store) ListIdleOpenSessions(ctx context.Context, cutoff time.Time) ([]*domain.ReadingSession, error) {
	c := formatTime(cutoff)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+readingSessionColumns+` FROM reading_sessions s
		JOIN reading_history h ON h.id = s.history_id
		WHERE s.end_time IS NULL
		  AND MAX(COALESCE(h.last_read_at, s.start_time), s.start_time) < ?
		ORDER BY s.start_time ASC`, c)
	if err != nil {
		return nil, fmt.Errorf("list idle sessions: %w", err)
	}
	return collectSessions(rows)
}

func collectSessions(rows *sql.Rows) ([]*domain.ReadingSession, error) {
	defer rows.Close()

	var out []*domain.ReadingSession
	for rows.Next() {
		rs, err := scanReadingSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rs)
	}
	return out, rows.Err()
}
