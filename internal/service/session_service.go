package service

import (
	"context"
	"errors"
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

// EndSessionRequest closes a session. Omitted fields are resolved server side.
type EndSessionRequest struct {
	EndTime       *time.Time `json:"end_time,omitempty"`
	ProgressAfter *float64   `json:"progress_after,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// SessionService manages explicitly started and ended reading sessions.
type SessionService struct {
	store      store.Store
	locks      *KeyedLocker
	clock      clock.Clock
	thresholds Thresholds
	validator  *validation.Validator
	events     store.EventEmitter
	logger     *slog.Logger
}

// NewSessionService creates a new session service.
func NewSessionService(
	st store.Store,
	locks *KeyedLocker,
	clk clock.Clock,
	thresholds Thresholds,
	events store.EventEmitter,
	logger *slog.Logger,
) *SessionService {
	return &SessionService{
		store:      st,
		locks:      locks,
		clock:      clk,
		thresholds: thresholds,
		validator:  validation.New(),
		events:     events,
		logger:     logger,
	}
}

// CreateSession starts a reading session. A session opened within the
// coalesce window is returned as is, so double taps and page reloads do
// not fragment reading time.
func (s *SessionService) CreateSession(ctx context.Context, userID, bookID string, startTime *time.Time) (*domain.ReadingSession, error) {
	if bookID == "" {
		return nil, domainerrors.ValidationWithDetails("validation failed", map[string]string{"book_id": "is required"})
	}

	unlock := s.locks.Lock(userID, bookID)
	defer unlock()

	now := s.clock.Now()

	var (
		session *domain.ReadingSession
		created bool
	)
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if err := ensureReaderAndBook(ctx, tx, userID, bookID); err != nil {
			return err
		}

		progress, err := resolveCurrentProgress(ctx, tx, userID, bookID, 0)
		if err != nil {
			return err
		}

		h, err := s.ensureHistory(ctx, tx, userID, bookID, progress, now)
		if err != nil {
			return err
		}

		open, err := tx.GetOpenSession(ctx, h.ID)
		if err != nil {
			return fmt.Errorf("get open session: %w", err)
		}

		if accounting.Coalesces(open, now, s.thresholds.SessionCoalesce) {
			session = open
			return nil
		}

		if open != nil {
			if err := s.supersede(ctx, tx, h, *open, now); err != nil {
				return err
			}
		}

		start := now
		if startTime != nil {
			start = startTime.UTC()
		}

		sessionID, err := id.Generate(id.PrefixSession)
		if err != nil {
			return fmt.Errorf("generate session id: %w", err)
		}

		session = &domain.ReadingSession{
			ID:             sessionID,
			HistoryID:      h.ID,
			UserID:         userID,
			BookID:         bookID,
			StartTime:      start,
			ProgressBefore: progress,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.CreateSession(ctx, session); err != nil {
			if errors.Is(err, store.ErrOpenSessionExists) {
				return domainerrors.Conflict("book already has an open reading session").WithCause(err)
			}
			return fmt.Errorf("create session: %w", err)
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if created {
		s.logger.Info("reading session started",
			"session_id", session.ID,
			"user_id", userID,
			"book_id", bookID,
			"progress_before", session.ProgressBefore)
		s.events.Emit(sse.NewSessionStartedEvent(session))
	} else {
		s.logger.Debug("reusing recent open session",
			"session_id", session.ID,
			"user_id", userID,
			"book_id", bookID)
	}

	return session, nil
}

func (s *SessionService) ensureHistory(ctx context.Context, tx store.Tx, userID, bookID string, progress float64, now time.Time) (*domain.ReadingHistory, error) {
	h, err := tx.GetHistory(ctx, userID, bookID)
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}
	if h != nil {
		return h, nil
	}

	historyID, err := id.Generate(id.PrefixHistory)
	if err != nil {
		return nil, fmt.Errorf("generate history id: %w", err)
	}
	h = &domain.ReadingHistory{
		ID:            historyID,
		UserID:        userID,
		BookID:        bookID,
		TotalProgress: progress,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := tx.CreateHistory(ctx, h); err != nil {
		return nil, fmt.Errorf("create history: %w", err)
	}
	return h, nil
}

// supersede closes a stale open session with the interim time it already
// accrued and folds that time into the history total.
func (s *SessionService) supersede(ctx context.Context, tx store.Tx, h *domain.ReadingHistory, open domain.ReadingSession, now time.Time) error {
	closed := accounting.SupersedeSession(open, now)
	if err := tx.UpdateSession(ctx, &closed); err != nil {
		return fmt.Errorf("supersede session %s: %w", closed.ID, err)
	}

	others, err := tx.SumClosedDurations(ctx, h.ID, closed.ID)
	if err != nil {
		return fmt.Errorf("sum durations: %w", err)
	}
	h.TotalReadingTime = max(h.TotalReadingTime, accounting.TotalReadingTime(others, closed.Duration))
	h.UpdatedAt = now
	if err := tx.UpdateHistory(ctx, h); err != nil {
		return fmt.Errorf("update history: %w", err)
	}

	s.logger.Info("superseded stale session",
		"session_id", closed.ID,
		"user_id", open.UserID,
		"book_id", open.BookID,
		"duration", closed.Duration)
	return nil
}

// EndSession closes a session with an exact duration and recomputes the
// history total from all closed sessions. Ending a session that is
// already closed returns it unchanged, recomputing the total again without
// counting another read.
func (s *SessionService) EndSession(ctx context.Context, sessionID, userID string, req EndSessionRequest) (*domain.ReadingSession, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	// Resolve the owning pair first so the right lock is taken.
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFoundf("session %s not found", sessionID)
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess.UserID != userID {
		return nil, domainerrors.NotFoundf("session %s not found", sessionID)
	}

	unlock := s.locks.Lock(sess.UserID, sess.BookID)
	defer unlock()

	now := s.clock.Now()

	var (
		closed  domain.ReadingSession
		changed bool
	)
	err = s.store.InTx(ctx, func(tx store.Tx) error {
		current, err := tx.GetSession(ctx, sessionID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domainerrors.NotFoundf("session %s not found", sessionID)
			}
			return fmt.Errorf("get session: %w", err)
		}

		h, err := tx.GetHistoryByID(ctx, current.HistoryID)
		if err != nil {
			return fmt.Errorf("get history: %w", err)
		}
		if h == nil {
			return domainerrors.Integrityf("session %s references missing history %s", current.ID, current.HistoryID)
		}

		if !current.IsOpen() {
			closed = *current
			return s.recomputeTotal(ctx, tx, h, current, now)
		}

		end := now
		if req.EndTime != nil {
			end = req.EndTime.UTC()
		}

		var progressAfter float64
		if req.ProgressAfter != nil {
			progressAfter = *req.ProgressAfter
		} else {
			progressAfter, err = resolveCurrentProgress(ctx, tx, current.UserID, current.BookID, current.ProgressBefore)
			if err != nil {
				return err
			}
		}

		closed = accounting.CloseSession(*current, end, progressAfter, now)
		if err := tx.UpdateSession(ctx, &closed); err != nil {
			return fmt.Errorf("close session: %w", err)
		}

		others, err := tx.SumClosedDurations(ctx, h.ID, closed.ID)
		if err != nil {
			return fmt.Errorf("sum durations: %w", err)
		}
		h.TotalReadingTime = accounting.TotalReadingTime(others, closed.Duration)
		h.TotalProgress = max(h.TotalProgress, progressAfter)
		h.ReadCount++
		h.UpdatedAt = now
		if err := tx.UpdateHistory(ctx, h); err != nil {
			return fmt.Errorf("update history: %w", err)
		}

		changed = true
		return nil
	})
	if err != nil {
		s.logger.Error("failed to end session",
			"session_id", sessionID,
			"user_id", userID,
			"error", err)
		return nil, err
	}

	if changed {
		s.logger.Info("reading session ended",
			"session_id", closed.ID,
			"user_id", closed.UserID,
			"book_id", closed.BookID,
			"duration", closed.Duration)
		s.events.Emit(sse.NewSessionEndedEvent(&closed))
	}

	return &closed, nil
}

// recomputeTotal re-derives the history total from its closed sessions
// when a retried end finds the session already closed. ReadCount is left
// alone.
func (s *SessionService) recomputeTotal(ctx context.Context, tx store.Tx, h *domain.ReadingHistory, sess *domain.ReadingSession, now time.Time) error {
	others, err := tx.SumClosedDurations(ctx, h.ID, sess.ID)
	if err != nil {
		return fmt.Errorf("sum durations: %w", err)
	}

	total := accounting.TotalReadingTime(others, sess.Duration)
	progress := h.TotalProgress
	if sess.ProgressAfter != nil {
		progress = max(progress, *sess.ProgressAfter)
	}
	if total == h.TotalReadingTime && progress == h.TotalProgress {
		return nil
	}

	s.logger.Info("repaired history total on repeated end",
		"session_id", sess.ID,
		"history_id", h.ID,
		"stored_total", h.TotalReadingTime,
		"recomputed_total", total)

	h.TotalReadingTime = total
	h.TotalProgress = progress
	h.UpdatedAt = now
	if err := tx.UpdateHistory(ctx, h); err != nil {
		return fmt.Errorf("update history: %w", err)
	}
	return nil
}

// CloseIdleSessions discards open sessions with no activity, neither a read
// nor the session's own start, for longer than the idle window. It returns how many were closed.
func (s *SessionService) CloseIdleSessions(ctx context.Context) (int, error) {
	now := s.clock.Now()
	cutoff := now.Add(-s.thresholds.IdleDiscard)

	candidates, err := s.store.ListIdleOpenSessions(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list idle sessions: %w", err)
	}

	closed := 0
	for _, c := range candidates {
		if ctx.Err() != nil {
			return closed, ctx.Err()
		}

		ok, err := s.discardIfIdle(ctx, c, now)
		if err != nil {
			s.logger.Warn("failed to close idle session",
				"session_id", c.ID,
				"user_id", c.UserID,
				"book_id", c.BookID,
				"error", err)
			continue
		}
		if ok {
			closed++
		}
	}

	if closed > 0 {
		s.logger.Info("closed idle sessions", "count", closed, "candidates", len(candidates))
	}
	return closed, nil
}

// discardIfIdle re-checks the candidate under the pair lock, since a push
// may have landed after the listing.
func (s *SessionService) discardIfIdle(ctx context.Context, candidate *domain.ReadingSession, now time.Time) (bool, error) {
	unlock := s.locks.Lock(candidate.UserID, candidate.BookID)
	defer unlock()

	discarded := false
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		h, err := tx.GetHistoryByID(ctx, candidate.HistoryID)
		if err != nil {
			return fmt.Errorf("get history: %w", err)
		}
		if h == nil {
			return nil
		}

		open, err := tx.GetOpenSession(ctx, h.ID)
		if err != nil {
			return fmt.Errorf("get open session: %w", err)
		}
		if open == nil || open.ID != candidate.ID {
			return nil
		}

		if now.Sub(accounting.LastActivity(h, open)) <= s.thresholds.IdleDiscard {
			return nil
		}

		progress := open.ProgressBefore
		if open.ProgressAfter != nil {
			progress = *open.ProgressAfter
		}

		done := accounting.DiscardSession(*open, progress, now)
		if err := tx.UpdateSession(ctx, &done); err != nil {
			return fmt.Errorf("discard session: %w", err)
		}
		discarded = true
		return nil
	})
	return discarded, err
}
