package model

import "time"

// Category groups transactions under a free-text title.
// Titles are matched exactly (case-sensitive).
type Category struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
