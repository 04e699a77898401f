// Package sse streams reading-activity changes to a user's other devices over Server-Sent Events.
package sse

import (
	"time"

	"github.com/listenupapp/reading-server/internal/domain"
)

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventProgressUpdated is sent after a progress push is accepted.
	EventProgressUpdated EventType = "progress.updated"
	// EventSessionStarted is sent when a new reading session opens.
	EventSessionStarted EventType = "session.started"
	// EventSessionEnded is sent when a session is closed explicitly.
	EventSessionEnded EventType = "session.ended"
	// EventHistoryDeleted is sent when a book's reading history is removed.
	EventHistoryDeleted EventType = "history.deleted"
	// EventHeartbeat keeps idle connections alive.
	EventHeartbeat EventType = "heartbeat"
)

// Event represents an SSE event to be sent to clients.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`

	// UserID restricts delivery to one user's clients. Empty means everyone.
	UserID string `json:"-"`
}

// HistoryDeletedEventData is the payload of history.deleted.
type HistoryDeletedEventData struct {
	BookID    string    `json:"book_id"`
	DeletedAt time.Time `json:"deleted_at"`
}

// NewProgressUpdatedEvent creates a progress.updated event for the record owner.
func NewProgressUpdatedEvent(p *domain.ReadingProgress) Event {
	return Event{
		Type:      EventProgressUpdated,
		Data:      p,
		Timestamp: p.UpdatedAt,
		UserID:    p.UserID,
	}
}

// NewSessionStartedEvent creates a session.started event.
func NewSessionStartedEvent(s *domain.ReadingSession) Event {
	return Event{
		Type:      EventSessionStarted,
		Data:      s,
		Timestamp: s.UpdatedAt,
		UserID:    s.UserID,
	}
}

// NewSessionEndedEvent creates a session.ended event.
func NewSessionEndedEvent(s *domain.ReadingSession) Event {
	return Event{
		Type:      EventSessionEnded,
		Data:      s,
		Timestamp: s.UpdatedAt,
		UserID:    s.UserID,
	}
}

// NewHistoryDeletedEvent creates a history.deleted event.
func NewHistoryDeletedEvent(userID, bookID string, at time.Time) Event {
	return Event{
		Type:      EventHistoryDeleted,
		Data:      HistoryDeletedEventData{BookID: bookID, DeletedAt: at},
		Timestamp: at,
		UserID:    userID,
	}
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	return Event{
		Type:      EventHeartbeat,
		Data:      struct{}{},
		Timestamp: time.Now(),
	}
}
