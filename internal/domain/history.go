package domain

import "time"

// ReadingHistory is the lifetime rollup for one (user, book) pair.
//
// TotalProgress and TotalReadingTime never decrease. ReadCount moves only
// when a session is explicitly ended.
type ReadingHistory struct {
	ID               string     `json:"id"`
	UserID           string     `json:"user_id"`
	BookID           string     `json:"book_id"`
	LastReadAt       *time.Time `json:"last_read_at,omitempty"`
	TotalReadingTime int64      `json:"total_reading_time"` // seconds
	TotalProgress    float64    `json:"total_progress"`
	ReadCount        int        `json:"read_count"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}
