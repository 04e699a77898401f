package domain

import "time"

// ReadingSession is one contiguous span of reading within a history.
// A history has at most one open session (EndTime == nil) at any time.
type ReadingSession struct {
	ID             string     `json:"id"`
	HistoryID      string     `json:"history_id"`
	UserID         string     `json:"user_id"`
	BookID         string     `json:"book_id"`
	StartTime      time.Time  `json:"start_time"`
	EndTime        *time.Time `json:"end_time,omitempty"`
	Duration       int64      `json:"duration"` // seconds
	ProgressBefore float64    `json:"progress_before"`
	ProgressAfter  *float64   `json:"progress_after,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// IsOpen reports whether the session has not been closed yet.
func (s *ReadingSession) IsOpen() bool {
	return s.EndTime == nil
}

// Elapsed returns the whole seconds between the session start and t,
// clamped at zero.
func (s *ReadingSession) Elapsed(t time.Time) int64 {
	secs := int64(t.Sub(s.StartTime) / time.Second)
	return max(secs, 0)
}
