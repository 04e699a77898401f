package sse

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/reading-server/internal/domain"
)

func newTestManager(t *testing.T) (*Manager, context.CancelFunc) {
	t.Helper()
	m := NewManager(slog.New(slog.DiscardHandler))
	ctx, cancel := context.WithCancel(context.Background())
	go m.Start(ctx)
	t.Cleanup(cancel)
	return m, cancel
}

func receive(t *testing.T, c *Client) (Event, bool) {
	t.Helper()
	select {
	case e := <-c.EventChan:
		return e, true
	case <-time.After(200 * time.Millisecond):
		return Event{}, false
	}
}

func TestManager_DeliversOnlyToOwner(t *testing.T) {
	m, _ := newTestManager(t)

	alice, err := m.Connect("user-alice")
	require.NoError(t, err)
	bob, err := m.Connect("user-bob")
	require.NoError(t, err)
	assert.Equal(t, 2, m.ClientCount())

	m.Emit(NewProgressUpdatedEvent(&domain.ReadingProgress{UserID: "user-alice", BookID: "book-1", Progress: 0.4}))

	got, ok := receive(t, alice)
	require.True(t, ok)
	assert.Equal(t, EventProgressUpdated, got.Type)

	_, ok = receive(t, bob)
	assert.False(t, ok, "bob must not see alice's progress")
}

func TestManager_IgnoresForeignValues(t *testing.T) {
	m, _ := newTestManager(t)
	c, err := m.Connect("user-1")
	require.NoError(t, err)

	m.Emit("not an event")

	_, ok := receive(t, c)
	assert.False(t, ok)
}

func TestManager_Disconnect(t *testing.T) {
	m, _ := newTestManager(t)
	c, err := m.Connect("user-1")
	require.NoError(t, err)

	m.Disconnect(c.ID)
	m.Disconnect(c.ID)

	assert.Equal(t, 0, m.ClientCount())
	_, open := <-c.Done
	assert.False(t, open)
}

func TestManager_ShutdownDropsLaterEvents(t *testing.T) {
	m, cancel := newTestManager(t)
	c, err := m.Connect("user-1")
	require.NoError(t, err)

	// Wait for the broadcast loop to be running.
	m.Emit(NewSessionStartedEvent(&domain.ReadingSession{ID: "rs-1", UserID: "user-1"}))
	_, ok := receive(t, c)
	require.True(t, ok)

	ctx, done := context.WithTimeout(context.Background(), time.Second)
	defer done()
	require.NoError(t, m.Shutdown(ctx))
	cancel()

	// Must not panic on the closed channel.
	m.Emit(NewHistoryDeletedEvent("user-1", "book-1", time.Now()))
	require.NoError(t, m.Shutdown(ctx))

	_, open := <-c.Done
	assert.False(t, open)
}
