package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/listenupapp/reading-server/internal/accounting"
	"github.com/listenupapp/reading-server/internal/clock"
	"github.com/listenupapp/reading-server/internal/domain"
	domainerrors "github.com/listenupapp/reading-server/internal/errors"
	"github.com/listenupapp/reading-server/internal/id"
	"github.com/listenupapp/reading-server/internal/sse"
	"github.com/listenupapp/reading-server/internal/store"
	"github.com/listenupapp/reading-server/internal/validation"
)

// UpdateProgressRequest is a progress push from a client.
type UpdateProgressRequest struct {
	BookID          string     `json:"book_id" validate:"required"`
	Progress        *float64   `json:"progress" validate:"required,gte=0,lte=1"`
	Position        string     `json:"position,omitempty" validate:"max=2048"`
	CurrentPage     *int       `json:"current_page,omitempty" validate:"omitempty,gte=0"`
	TotalPages      *int       `json:"total_pages,omitempty" validate:"omitempty,gte=0"`
	ChapterIndex    *int       `json:"chapter_index,omitempty" validate:"omitempty,gte=0"`
	ScrollTop       *float64   `json:"scroll_top,omitempty" validate:"omitempty,gte=0"`
	ClientTimestamp *time.Time `json:"client_timestamp,omitempty"`
	// Force skips conflict detection.
	Force bool `json:"force,omitempty"`
}

// UpdateProgressResult is returned for an accepted push.
type UpdateProgressResult struct {
	Progress *domain.ReadingProgress `json:"progress"`
	// SessionID is the session the push was attributed to. Empty when
	// session accounting failed.
	SessionID string `json:"session_id,omitempty"`
}

// ConflictDetails carries both sides of a rejected push.
type ConflictDetails struct {
	Server *domain.ReadingProgress `json:"server"`
	Client ClientSnapshot          `json:"client"`
}

// ClientSnapshot is the rejected client state, every field as pushed.
type ClientSnapshot struct {
	Progress        float64    `json:"progress"`
	Position        string     `json:"position,omitempty"`
	CurrentPage     *int       `json:"current_page,omitempty"`
	TotalPages      *int       `json:"total_pages,omitempty"`
	ChapterIndex    *int       `json:"chapter_index,omitempty"`
	ScrollTop       *float64   `json:"scroll_top,omitempty"`
	ClientTimestamp *time.Time `json:"client_timestamp,omitempty"`
}

// ProgressService reconciles progress pushes from a user's devices and
// drives session accounting.
type ProgressService struct {
	store      store.Store
	locks      *KeyedLocker
	clock      clock.Clock
	thresholds Thresholds
	validator  *validation.Validator
	events     store.EventEmitter
	logger     *slog.Logger
}

// NewProgressService creates a new progress service.
func NewProgressService(
	st store.Store,
	locks *KeyedLocker,
	clk clock.Clock,
	thresholds Thresholds,
	events store.EventEmitter,
	logger *slog.Logger,
) *ProgressService {
	return &ProgressService{
		store:      st,
		locks:      locks,
		clock:      clk,
		thresholds: thresholds,
		validator:  validation.New(),
		events:     events,
		logger:     logger,
	}
}

// UpdateProgress stores a progress push unless a newer server record wins,
// then attributes the activity to a reading session.
//
// Session accounting runs for accepted and conflicting pushes alike. Its
// failure is logged and never fails the call.
func (s *ProgressService) UpdateProgress(ctx context.Context, userID string, req UpdateProgressRequest) (*UpdateProgressResult, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	progress := *req.Progress

	unlock := s.locks.Lock(userID, req.BookID)
	defer unlock()

	now := s.clock.Now()

	var (
		saved    *domain.ReadingProgress
		conflict *ConflictDetails
	)
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if err := ensureReaderAndBook(ctx, tx, userID, req.BookID); err != nil {
			return err
		}

		existing, err := tx.GetProgress(ctx, userID, req.BookID)
		if err != nil {
			return fmt.Errorf("get progress: %w", err)
		}
		if existing != nil && !req.Force && s.isStale(existing, req, now) {
			conflict = &ConflictDetails{Server: existing, Client: snapshot(req)}
			return nil
		}

		p := &domain.ReadingProgress{
			UserID:       userID,
			BookID:       req.BookID,
			Progress:     progress,
			Position:     req.Position,
			CurrentPage:  req.CurrentPage,
			TotalPages:   req.TotalPages,
			ChapterIndex: req.ChapterIndex,
			ScrollTop:    req.ScrollTop,
			LastReadAt:   now,
			UpdatedAt:    now,
		}
		if err := tx.UpsertProgress(ctx, p); err != nil {
			return fmt.Errorf("upsert progress: %w", err)
		}
		saved = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The progress write is already committed; an interrupted request must
	// not cut accounting short.
	sessionID, err := s.recordActivity(context.WithoutCancel(ctx), userID, req.BookID, progress, now)
	if err != nil {
		s.logger.Warn("session accounting failed",
			"user_id", userID,
			"book_id", req.BookID,
			"error", err)
	}

	if conflict != nil {
		s.logger.Info("progress push rejected",
			"user_id", userID,
			"book_id", req.BookID,
			"server_progress", conflict.Server.Progress,
			"client_progress", progress)
		return nil, domainerrors.Conflict("server has newer progress").WithDetails(conflict)
	}

	s.events.Emit(sse.NewProgressUpdatedEvent(saved))

	return &UpdateProgressResult{Progress: saved, SessionID: sessionID}, nil
}

// isStale reports whether the stored record is both newer (beyond the
// allowed skew) and further along than the push.
func (s *ProgressService) isStale(existing *domain.ReadingProgress, req UpdateProgressRequest, now time.Time) bool {
	clientTime := now
	if req.ClientTimestamp != nil {
		clientTime = *req.ClientTimestamp
	}
	return existing.UpdatedAt.Sub(clientTime) > s.thresholds.ConflictSkew &&
		existing.Progress > *req.Progress
}

func snapshot(req UpdateProgressRequest) ClientSnapshot {
	return ClientSnapshot{
		Progress:        *req.Progress,
		Position:        req.Position,
		CurrentPage:     req.CurrentPage,
		TotalPages:      req.TotalPages,
		ChapterIndex:    req.ChapterIndex,
		ScrollTop:       req.ScrollTop,
		ClientTimestamp: req.ClientTimestamp,
	}
}

// recordActivity applies one push to the history and session rows in its
// own transaction and returns the id of the session left open.
func (s *ProgressService) recordActivity(ctx context.Context, userID, bookID string, progress float64, now time.Time) (string, error) {
	var (
		opened    []domain.ReadingSession
		sessionID string
	)

	err := s.store.InTx(ctx, func(tx store.Tx) error {
		prev := accounting.State{}

		h, err := tx.GetHistory(ctx, userID, bookID)
		if err != nil {
			return fmt.Errorf("get history: %w", err)
		}
		prev.History = h

		if h != nil {
			prev.Open, err = tx.GetOpenSession(ctx, h.ID)
			if err != nil {
				return fmt.Errorf("get open session: %w", err)
			}
		}

		res := accounting.Account(prev, accounting.Push{UserID: userID, BookID: bookID, Progress: progress}, now, s.thresholds.accounting())

		hist := res.History
		if res.CreateHistory {
			hist.ID, err = id.Generate(id.PrefixHistory)
			if err != nil {
				return fmt.Errorf("generate history id: %w", err)
			}
			if err := tx.CreateHistory(ctx, &hist); err != nil {
				return fmt.Errorf("create history: %w", err)
			}
		} else if err := tx.UpdateHistory(ctx, &hist); err != nil {
			return fmt.Errorf("update history: %w", err)
		}

		// Effects are ordered: a discard always lands before the open that
		// replaces it, keeping the one-open-session index satisfied.
		for _, eff := range res.Effects {
			sess := eff.Session
			switch eff.Kind {
			case accounting.Open:
				sess.ID, err = id.Generate(id.PrefixSession)
				if err != nil {
					return fmt.Errorf("generate session id: %w", err)
				}
				sess.HistoryID = hist.ID
				if err := tx.CreateSession(ctx, &sess); err != nil {
					return fmt.Errorf("open session: %w", err)
				}
				opened = append(opened, sess)
				sessionID = sess.ID
			case accounting.Discard:
				if err := tx.UpdateSession(ctx, &sess); err != nil {
					return fmt.Errorf("discard session %s: %w", sess.ID, err)
				}
				s.logger.Debug("idle session discarded",
					"session_id", sess.ID,
					"user_id", userID,
					"book_id", bookID,
					"idle", res.Elapsed)
			default:
				if err := tx.UpdateSession(ctx, &sess); err != nil {
					return fmt.Errorf("%s session %s: %w", eff.Kind, sess.ID, err)
				}
				sessionID = sess.ID
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	for i := range opened {
		s.events.Emit(sse.NewSessionStartedEvent(&opened[i]))
	}

	return sessionID, nil
}

// GetProgress returns the user's progress record for a book, or nil.
func (s *ProgressService) GetProgress(ctx context.Context, userID, bookID string) (*domain.ReadingProgress, error) {
	p, err := s.store.GetProgress(ctx, userID, bookID)
	if err != nil {
		return nil, fmt.Errorf("get progress: %w", err)
	}
	return p, nil
}

// ListRecentProgress returns the user's most recently read books.
func (s *ProgressService) ListRecentProgress(ctx context.Context, userID string, limit int) ([]domain.ProgressWithBook, error) {
	items, err := s.store.ListRecentProgress(ctx, userID, store.ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list recent progress: %w", err)
	}
	return items, nil
}
