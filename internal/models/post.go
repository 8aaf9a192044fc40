// Package models contains data structures for the application's domain models.
package models

import "time"

// Post represents a discussion post. Voter sets map a username to true.
type Post struct {
	ID         string          `json:"id"`
	Username   string          `json:"username"`
	Title      string          `json:"title"`
	Content    string          `json:"content"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	Upvotes    int             `json:"upvotes"`
	Downvotes  int             `json:"downvotes"`
	Upvoters   map[string]bool `json:"upvoters,omitempty"`
	Downvoters map[string]bool `json:"downvoters,omitempty"`
	// CommentIDs is the stored, ordered list of linked comment ids.
	CommentIDs []string `json:"-"`
	// Comments is filled by the fan-out reader, in CommentIDs order.
	Comments []*Comment `json:"comments"`
}

// HasVoted reports whether username is in either voter set.
func (p *Post) HasVoted(username string) bool {
	return p.Upvoters[username] || p.Downvoters[username]
}
