// Package domain holds the reading-activity records and the catalog entities they refer to.
package domain

import "time"

// Book is the catalog entry a reader makes progress through. Only the
// fields needed for existence checks and recent-progress listings are kept.
type Book struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Author     string    `json:"author,omitempty"`
	TotalPages *int      `json:"total_pages,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
