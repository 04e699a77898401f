package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/listenupapp/reading-server/internal/clock"
	"github.com/listenupapp/reading-server/internal/domain"
	domainerrors "github.com/listenupapp/reading-server/internal/errors"
	"github.com/listenupapp/reading-server/internal/sse"
	"github.com/listenupapp/reading-server/internal/store"
)

// HistoryView is a history record with its sessions in start order.
type HistoryView struct {
	History  *domain.ReadingHistory  `json:"history"`
	Sessions []*domain.ReadingSession `json:"sessions"`
}

// HistoryService exposes the lifetime reading rollups.
type HistoryService struct {
	store  store.Store
	locks  *KeyedLocker
	clock  clock.Clock
	events store.EventEmitter
	logger *slog.Logger
}

// NewHistoryService creates a new history service.
func NewHistoryService(st store.Store, locks *KeyedLocker, clk clock.Clock, events store.EventEmitter, logger *slog.Logger) *HistoryService {
	return &HistoryService{
		store:  st,
		locks:  locks,
		clock:  clk,
		events: events,
		logger: logger,
	}
}

// GetHistory returns the user's history for a book. History is nil and
// Sessions empty when the book has never been read.
func (s *HistoryService) GetHistory(ctx context.Context, userID, bookID string) (*HistoryView, error) {
	ok, err := s.store.BookExists(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("check book: %w", err)
	}
	if !ok {
		return nil, domainerrors.NotFoundf("book %s not found", bookID)
	}

	view := &HistoryView{Sessions: []*domain.ReadingSession{}}

	h, err := s.store.GetHistory(ctx, userID, bookID)
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}
	if h == nil {
		return view, nil
	}
	view.History = h

	sessions, err := s.store.ListSessions(ctx, h.ID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	if sessions != nil {
		view.Sessions = sessions
	}
	return view, nil
}

// ListHistory returns the user's histories, most recently read first.
func (s *HistoryService) ListHistory(ctx context.Context, userID string, limit int) ([]*domain.ReadingHistory, error) {
	list, err := s.store.ListHistory(ctx, userID, store.ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return list, nil
}

// DeleteHistory forgets everything about the user's reading of a book:
// the history, its sessions and the progress record.
func (s *HistoryService) DeleteHistory(ctx context.Context, userID, bookID string) error {
	unlock := s.locks.Lock(userID, bookID)
	defer unlock()

	err := s.store.InTx(ctx, func(tx store.Tx) error {
		h, err := tx.GetHistory(ctx, userID, bookID)
		if err != nil {
			return fmt.Errorf("get history: %w", err)
		}
		if h == nil {
			return domainerrors.NotFoundf("no reading history for book %s", bookID)
		}

		if err := tx.DeleteHistory(ctx, h.ID); err != nil {
			return fmt.Errorf("delete history: %w", err)
		}
		if err := tx.DeleteProgress(ctx, userID, bookID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("delete progress: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	now := s.clock.Now()
	s.logger.Info("reading history deleted", "user_id", userID, "book_id", bookID)
	s.events.Emit(sse.NewHistoryDeletedEvent(userID, bookID, now))
	return nil
}
