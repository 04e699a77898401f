package domain

import "time"

// MaxPositionLength bounds the opaque position string clients may store.
const MaxPositionLength = 2048

// ReadingProgress is where a reader currently is in a book. There is one
// record per (user, book). Progress may move backwards; only the history
// keeps a monotonic high-water mark.
type ReadingProgress struct {
	UserID       string    `json:"user_id"`
	BookID       string    `json:"book_id"`
	Progress     float64   `json:"progress"`
	Position     string    `json:"position,omitempty"`
	CurrentPage  *int      `json:"current_page,omitempty"`
	TotalPages   *int      `json:"total_pages,omitempty"`
	ChapterIndex *int      `json:"chapter_index,omitempty"`
	ScrollTop    *float64  `json:"scroll_top,omitempty"`
	LastReadAt   time.Time `json:"last_read_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ProgressWithBook pairs a progress record with the book it belongs to.
type ProgressWithBook struct {
	ReadingProgress
	Title  string `json:"title"`
	Author string `json:"author,omitempty"`
}
