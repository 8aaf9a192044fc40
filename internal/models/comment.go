package models

import "time"

// Comment belongs to exactly one post through that post's comment id list.
type Comment struct {
	ID         string          `json:"id"`
	Username   string          `json:"username"`
	Content    string          `json:"content"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	Upvotes    int             `json:"upvotes"`
	Downvotes  int             `json:"downvotes"`
	Upvoters   map[string]bool `json:"upvoters,omitempty"`
	Downvoters map[string]bool `json:"downvoters,omitempty"`
}
