// Package store defines the persistence interface for reading progress, history and sessions.
package store

import (
	"context"
	"time"

	"github.com/listenupapp/reading-server/internal/domain"
)

// Store is the authoritative persistence layer. Reads outside a
// transaction see the latest committed state; multi-step writes go
// through InTx.
type Store interface {
	Close() error
	Ping(ctx context.Context) error

	// InTx runs fn in a write transaction. The transaction commits when fn
	// returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	// Catalog
	CreateUser(ctx context.Context, user *domain.User) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
	CreateBook(ctx context.Context, book *domain.Book) error
	GetBook(ctx context.Context, id string) (*domain.Book, error)

	// Read models
	ListRecentProgress(ctx context.Context, userID string, limit int) ([]domain.ProgressWithBook, error)
	ListHistory(ctx context.Context, userID string, limit int) ([]*domain.ReadingHistory, error)
	ListSessions(ctx context.Context, historyID string) ([]*domain.ReadingSession, error)
	// ListIdleOpenSessions returns open sessions whose history was last read before cutoff.
	ListIdleOpenSessions(ctx context.Context, cutoff time.Time) ([]*domain.ReadingSession, error)

	Tx
}

// Tx holds the operations available both inside and outside a transaction.
// Get methods return (nil, nil) when the row does not exist, except
// GetSession which returns ErrNotFound.
type Tx interface {
	UserExists(ctx context.Context, id string) (bool, error)
	BookExists(ctx context.Context, id string) (bool, error)

	GetProgress(ctx context.Context, userID, bookID string) (*domain.ReadingProgress, error)
	UpsertProgress(ctx context.Context, p *domain.ReadingProgress) error
	DeleteProgress(ctx context.Context, userID, bookID string) error

	GetHistory(ctx context.Context, userID, bookID string) (*domain.ReadingHistory, error)
	GetHistoryByID(ctx context.Context, id string) (*domain.ReadingHistory, error)
	CreateHistory(ctx context.Context, h *domain.ReadingHistory) error
	UpdateHistory(ctx context.Context, h *domain.ReadingHistory) error
	DeleteHistory(ctx context.Context, id string) error

	GetSession(ctx context.Context, id string) (*domain.ReadingSession, error)
	GetOpenSession(ctx context.Context, historyID string) (*domain.ReadingSession, error)
	CreateSession(ctx context.Context, s *domain.ReadingSession) error
	UpdateSession(ctx context.Context, s *domain.ReadingSession) error
	// SumClosedDurations totals the durations of closed sessions in a
	// history, excluding excludeID.
	SumClosedDurations(ctx context.Context, historyID, excludeID string) (int64, error)
}
