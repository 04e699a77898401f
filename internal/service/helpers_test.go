package service

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/listenupapp/reading-server/internal/clock"
	"github.com/listenupapp/reading-server/internal/domain"
	"github.com/listenupapp/reading-server/internal/sse"
	"github.com/listenupapp/reading-server/internal/store"
	"github.com/listenupapp/reading-server/internal/store/sqlite"
)

var t0 = time.Date(2025, 3, 14, 20, 0, 0, 0, time.UTC)

type testEnv struct {
	store    store.Store
	clock    *clock.Fake
	events   *recordingEmitter
	locks    *KeyedLocker
	progress *ProgressService
	sessions *SessionService
	history  *HistoryService
	catalog  *CatalogService

	userID string
	bookID string
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	st, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	return newTestEnv(t, st)
}

// newTestEnv wires every service over st and seeds one user and one book.
func newTestEnv(t *testing.T, st store.Store) *testEnv {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	env := &testEnv{
		store:  st,
		clock:  clock.NewFake(t0),
		events: &recordingEmitter{},
		locks:  NewKeyedLocker(),
	}
	th := DefaultThresholds()

	env.progress = NewProgressService(st, env.locks, env.clock, th, env.events, logger)
	env.sessions = NewSessionService(st, env.locks, env.clock, th, env.events, logger)
	env.history = NewHistoryService(st, env.locks, env.clock, env.events, logger)
	env.catalog = NewCatalogService(st, env.clock, logger)

	ctx := context.Background()
	u, err := env.catalog.CreateUser(ctx, CreateUserRequest{DisplayName: "Ada"})
	require.NoError(t, err)
	b, err := env.catalog.CreateBook(ctx, CreateBookRequest{Title: "Middlemarch", Author: "George Eliot"})
	require.NoError(t, err)
	env.userID, env.bookID = u.ID, b.ID

	return env
}

func (e *testEnv) push(t *testing.T, progress float64) *UpdateProgressResult {
	t.Helper()
	res, err := e.progress.UpdateProgress(context.Background(), e.userID, UpdateProgressRequest{
		BookID:   e.bookID,
		Progress: &progress,
	})
	require.NoError(t, err)
	return res
}

func (e *testEnv) getHistory(t *testing.T) *domain.ReadingHistory {
	t.Helper()
	h, err := e.store.GetHistory(context.Background(), e.userID, e.bookID)
	require.NoError(t, err)
	require.NotNil(t, h)
	return h
}

func (e *testEnv) listSessions(t *testing.T) []*domain.ReadingSession {
	t.Helper()
	h := e.getHistory(t)
	sessions, err := e.store.ListSessions(context.Background(), h.ID)
	require.NoError(t, err)
	return sessions
}

func openCount(sessions []*domain.ReadingSession) int {
	n := 0
	for _, s := range sessions {
		if s.IsOpen() {
			n++
		}
	}
	return n
}

func ptr[T any](v T) *T { return &v }

// recordingEmitter keeps every emitted SSE event.
type recordingEmitter struct {
	mu     sync.Mutex
	events []sse.Event
}

func (r *recordingEmitter) Emit(event any) {
	ev, ok := event.(sse.Event)
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingEmitter) types() []sse.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]sse.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

var errInjected = errors.New("injected failure")

// faultyStore fails every transaction after the first allowTx and can hide
// history rows from transactions.
type faultyStore struct {
	store.Store

	mu          sync.Mutex
	allowTx     int
	txCalls     int
	hideHistory bool
}

func (f *faultyStore) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	f.mu.Lock()
	f.txCalls++
	fail := f.allowTx >= 0 && f.txCalls > f.allowTx
	hide := f.hideHistory
	f.mu.Unlock()

	if fail {
		return errInjected
	}
	return f.Store.InTx(ctx, func(tx store.Tx) error {
		if hide {
			tx = missingHistoryTx{Tx: tx}
		}
		return fn(tx)
	})
}

type missingHistoryTx struct {
	store.Tx
}

func (missingHistoryTx) GetHistoryByID(context.Context, string) (*domain.ReadingHistory, error) {
	return nil, nil
}
