package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/listenupapp/reading-server/internal/domain"
	"github.com/listenupapp/reading-server/internal/store"
)

func newSession(id, historyID string, start time.Time) *domain.ReadingSession {
	return &domain.ReadingSession{
		ID:             id,
		HistoryID:      historyID,
		UserID:         "user-1",
		BookID:         "book-1",
		StartTime:      start,
		ProgressBefore: 0.1,
		CreatedAt:      start,
		UpdatedAt:      start,
	}
}

func closeAt(rs *domain.ReadingSession, end time.Time, duration int64) {
	rs.EndTime = &end
	rs.Duration = duration
	rs.UpdatedAt = end
}

func TestReadingSession_CreateAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	insertTestHistory(t, s, "hist-1", "user-1", "book-1")

	rs := newSession("rs-1", "hist-1", baseTime)
	if err := s.CreateSession(ctx, rs); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.GetSession(ctx, "rs-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.IsOpen() || got.ProgressAfter != nil || got.ProgressBefore != 0.1 {
		t.Errorf("unexpected session: %+v", got)
	}

	open, err := s.GetOpenSession(ctx, "hist-1")
	if err != nil || open == nil || open.ID != "rs-1" {
		t.Errorf("GetOpenSession = %v, %v", open, err)
	}

	if _, err := s.GetSession(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestReadingSession_AtMostOneOpen(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	insertTestHistory(t, s, "hist-1", "user-1", "book-1")

	if err := s.CreateSession(ctx, newSession("rs-1", "hist-1", baseTime)); err != nil {
		t.Fatalf("create first: %v", err)
	}
	err := s.CreateSession(ctx, newSession("rs-2", "hist-1", baseTime.Add(time.Minute)))
	if !errors.Is(err, store.ErrOpenSessionExists) {
		t.Fatalf("expected ErrOpenSessionExists, got %v", err)
	}

	// Closed sessions do not count against the index.
	first, _ := s.GetSession(ctx, "rs-1")
	closeAt(first, baseTime.Add(10*time.Minute), 600)
	if err := s.UpdateSession(ctx, first); err != nil {
		t.Fatalf("close first: %v", err)
	}
	if err := s.CreateSession(ctx, newSession("rs-2", "hist-1", baseTime.Add(time.Hour))); err != nil {
		t.Fatalf("create after close: %v", err)
	}

	if err := s.CreateSession(ctx, newSession("rs-2", "hist-1", baseTime)); !errors.Is(err, store.ErrAlreadyExists) && !errors.Is(err, store.ErrOpenSessionExists) {
		t.Errorf("expected a uniqueness error on duplicate id, got %v", err)
	}
}

func TestReadingSession_UpdateMissing(t *testing.T) {
	s := newTestStore(t)
	err := s.UpdateSession(context.Background(), newSession("ghost", "hist-1", baseTime))
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestReadingSession_SumClosedDurations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	insertTestHistory(t, s, "hist-1", "user-1", "book-1")

	durations := []int64{100, 250, 0}
	for i, d := range durations {
		rs := newSession("rs-"+string(rune('a'+i)), "hist-1", baseTime.Add(time.Duration(i)*time.Hour))
		closeAt(rs, rs.StartTime.Add(time.Duration(d)*time.Second), d)
		if err := s.CreateSession(ctx, rs); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	open := newSession("rs-open", "hist-1", baseTime.Add(5*time.Hour))
	open.Duration = 999
	if err := s.CreateSession(ctx, open); err != nil {
		t.Fatalf("create open: %v", err)
	}

	total, err := s.SumClosedDurations(ctx, "hist-1", "")
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if total != 350 {
		t.Errorf("total = %d, want 350", total)
	}

	total, _ = s.SumClosedDurations(ctx, "hist-1", "rs-b")
	if total != 100 {
		t.Errorf("total excluding rs-b = %d, want 100", total)
	}

	total, _ = s.SumClosedDurations(ctx, "hist-none", "")
	if total != 0 {
		t.Errorf("total for unknown history = %d, want 0", total)
	}
}

func TestListSessions_Ordered(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	insertTestHistory(t, s, "hist-1", "user-1", "book-1")

	late := newSession("rs-late", "hist-1", baseTime.Add(2*time.Hour))
	early := newSession("rs-early", "hist-1", baseTime)
	closeAt(early, baseTime.Add(time.Minute), 60)
	for _, rs := range []*domain.ReadingSession{late, early} {
		if err := s.CreateSession(ctx, rs); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	list, err := s.ListSessions(ctx, "hist-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != "rs-early" || list[1].ID != "rs-late" {
		t.Errorf("unexpected order: %+v", list)
	}
}

func TestListIdleOpenSessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	stale := insertTestHistory(t, s, "hist-1", "user-1", "book-1")
	insertTestBook(t, s, "book-2", "Fresh")
	fresh := &domain.ReadingHistory{ID: "hist-2", UserID: "user-1", BookID: "book-2", CreatedAt: baseTime, UpdatedAt: baseTime}
	if err := s.CreateHistory(ctx, fresh); err != nil {
		t.Fatalf("create history: %v", err)
	}

	staleRead := baseTime
	stale.LastReadAt = &staleRead
	if err := s.UpdateHistory(ctx, stale); err != nil {
		t.Fatalf("update: %v", err)
	}
	freshRead := baseTime.Add(3 * time.Hour)
	fresh.LastReadAt = &freshRead
	if err := s.UpdateHistory(ctx, fresh); err != nil {
		t.Fatalf("update: %v", err)
	}

	_ = s.CreateSession(ctx, newSession("rs-stale", "hist-1", baseTime))
	freshSession := newSession("rs-fresh", "hist-2", baseTime)
	freshSession.BookID = "book-2"
	_ = s.CreateSession(ctx, freshSession)

	idle, err := s.ListIdleOpenSessions(ctx, baseTime.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("list idle: %v", err)
	}
	if len(idle) != 1 || idle[0].ID != "rs-stale" {
		t.Errorf("expected only rs-stale, got %+v", idle)
	}
}

func TestListIdleOpenSessions_RecentStartIsNotIdle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	h := insertTestHistory(t, s, "hist-1", "user-1", "book-1")

	lastRead := baseTime
	h.LastReadAt = &lastRead
	if err := s.UpdateHistory(ctx, h); err != nil {
		t.Fatalf("update: %v", err)
	}

	// The reader comes back a day later and starts a session.
	start := baseTime.Add(24 * time.Hour)
	if err := s.CreateSession(ctx, newSession("rs-back", "hist-1", start)); err != nil {
		t.Fatalf("create session: %v", err)
	}

	idle, err := s.ListIdleOpenSessions(ctx, start.Add(10*time.Minute).Add(-2*time.Hour))
	if err != nil {
		t.Fatalf("list idle: %v", err)
	}
	if len(idle) != 0 {
		t.Errorf("session started 10 minutes ago listed as idle: %+v", idle)
	}

	idle, err = s.ListIdleOpenSessions(ctx, start.Add(time.Minute))
	if err != nil {
		t.Fatalf("list idle: %v", err)
	}
	if len(idle) != 1 || idle[0].ID != "rs-back" {
		t.Errorf("expected rs-back once its start passes the cutoff, got %+v", idle)
	}
}
