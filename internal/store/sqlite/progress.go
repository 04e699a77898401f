package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/listenupapp/reading-server/internal/domain"
	"github.com/listenupapp/reading-server/internal/store"
)

// progressColumns must match the scan order in scanProgress.
const progressColumns = `p.user_id, p.book_id, p.progress, p.position, p.current_page,
	p.total_pages, p.chapter_index, p.scroll_top, p.last_read_at, p.updated_at`

func scanProgress(scanner interface{ Scan(dest ...any) error }, extra ...any) (*domain.ReadingProgress, error) {
	var (
		p            domain.ReadingProgress
		position     sql.NullString
		currentPage  sql.NullInt64
		totalPages   sql.NullInt64
		chapterIndex sql.NullInt64
		scrollTop    sql.NullFloat64
		lastReadAt   string
		updatedAt    string
	)

	dest := []any{
		&p.UserID, &p.BookID, &p.Progress, &position, &currentPage,
		&totalPages, &chapterIndex, &scrollTop, &lastReadAt, &updatedAt,
	}
	if err := scanner.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	var err error
	if p.LastReadAt, err = parseTime(lastReadAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	p.Position = position.String
	p.CurrentPage = intPtr(currentPage)
	p.TotalPages = intPtr(totalPages)
	p.ChapterIndex = intPtr(chapterIndex)
	p.ScrollTop = floatPtr(scrollTop)

	return &p, nil
}

// GetProgress returns nil, nil when no record exists.
func (c *conn) GetProgress(ctx context.Context, userID, bookID string) (*domain.ReadingProgress, error) {
	row := c.q.QueryRowContext(ctx,
		`SELECT `+progressColumns+` FROM reading_progress p WHERE p.user_id = ? AND p.book_id = ?`,
		userID, bookID,
	)
	p, err := scanProgress(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

// UpsertProgress inserts or fully replaces the record for (user, book).
func (c *conn) UpsertProgress(ctx context.Context, p *domain.ReadingProgress) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO reading_progress (
			user_id, book_id, progress, position, current_page,
			total_pages, chapter_index, scroll_top, last_read_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, book_id) DO UPDATE SET
			progress = excluded.progress,
			position = excluded.position,
			current_page = excluded.current_page,
			total_pages = excluded.total_pages,
			chapter_index = excluded.chapter_index,
			scroll_top = excluded.scroll_top,
			last_read_at = excluded.last_read_at,
			updated_at = excluded.updated_at`,
		p.UserID,
		p.BookID,
		p.Progress,
		nullString(p.Position),
		nullInt(p.CurrentPage),
		nullInt(p.TotalPages),
		nullInt(p.ChapterIndex),
		nullFloat(p.ScrollTop),
		formatTime(p.LastReadAt),
		formatTime(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert progress: %w", err)
	}
	return nil
}

// DeleteProgress removes the record for (user, book). Returns store.ErrNotFound if absent.
func (c *conn) DeleteProgress(ctx context.Context, userID, bookID string) error {
	result, err := c.q.ExecContext(ctx,
		`DELETE FROM reading_progress WHERE user_id = ? AND book_id = ?`, userID, bookID)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

// ListRecentProgress returns the user's progress records joined with book
// details, most recently read first.
func (s *Store) ListRecentProgress(ctx context.Context, userID string, limit int) ([]domain.ProgressWithBook, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+progressColumns+`, b.title, b.author
		FROM reading_progress p
		JOIN books b ON b.id = p.book_id
		WHERE p.user_id = ?
		ORDER BY p.last_read_at DESC
		LIMIT ?`,
		userID, store.ClampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("list recent progress: %w", err)
	}
	defer rows.Close()

	var items []domain.ProgressWithBook
	for rows.Next() {
		var (
			title  string
			author sql.NullString
		)
		p, err := scanProgress(rows, &title, &author)
		if err != nil {
			return nil, err
		}
		items = append(items, domain.ProgressWithBook{
			ReadingProgress: *p,
			Title:           title,
			Author:          author.String,
		})
	}
	return items, rows.Err()
}
