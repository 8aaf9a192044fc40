// Package repository provides data access layer implementations for the application.
package repository

import (
	"time"

	"agora/internal/docstore"
	"agora/internal/models"
)

// Stored field names shared by posts and comments.
const (
	FieldUsername   = "username"
	FieldTitle      = "title"
	FieldContent    = "content"
	FieldCreatedAt  = "created_at"
	FieldUpdatedAt  = "updated_at"
	FieldUpvotes    = "upvotes"
	FieldDownvotes  = "downvotes"
	FieldUpvoters   = "upvoters"
	FieldDownvoters = "downvoters"
	FieldComments   = "comments"
)

// CounterField is the counter updated by votes in direction d.
func CounterField(d models.VoteDirection) string {
	if d == models.VoteUp {
		return FieldUpvotes
	}
	return FieldDownvotes
}

// VoterField is the voter set updated by votes in direction d.
func VoterField(d models.VoteDirection) string {
	if d == models.VoteUp {
		return FieldUpvoters
	}
	return FieldDownvoters
}

// Timestamp formats t the way documents store it.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// postRecord is the stored shape of a post document.
type postRecord struct {
	Username   string          `json:"username"`
	Title      string          `json:"title"`
	Content    string          `json:"content"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	Upvotes    int             `json:"upvotes"`
	Downvotes  int             `json:"downvotes"`
	Upvoters   map[string]bool `json:"upvoters,omitempty"`
	Downvoters map[string]bool `json:"downvoters,omitempty"`
	Comments   []string        `json:"comments"`
}

// commentRecord is the stored shape of a comment document.
type commentRecord struct {
	Username   string          `json:"username"`
	Content    string          `json:"content"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	Upvotes    int             `json:"upvotes"`
	Downvotes  int             `json:"downvotes"`
	Upvoters   map[string]bool `json:"upvoters,omitempty"`
	Downvoters map[string]bool `json:"downvoters,omitempty"`
}

// voteRecord decodes only the vote state of either kind of item.
type voteRecord struct {
	Upvotes    int             `json:"upvotes"`
	Downvotes  int             `json:"downvotes"`
	Upvoters   map[string]bool `json:"upvoters"`
	Downvoters map[string]bool `json:"downvoters"`
}

func postToRecord(p *models.Post) postRecord {
	comments := p.CommentIDs
	if comments == nil {
		comments = []string{}
	}
	return postRecord{
		Username:   p.Username,
		Title:      p.Title,
		Content:    p.Content,
		CreatedAt:  p.CreatedAt.UTC(),
		UpdatedAt:  p.UpdatedAt.UTC(),
		Upvotes:    p.Upvotes,
		Downvotes:  p.Downvotes,
		Upvoters:   p.Upvoters,
		Downvoters: p.Downvoters,
		Comments:   comments,
	}
}

func postFromDocument(doc *docstore.Document) (*models.Post, error) {
	var rec postRecord
	if err := doc.Decode(&rec); err != nil {
		return nil, err
	}
	comments := rec.Comments
	if comments == nil {
		comments = []string{}
	}
	return &models.Post{
		ID:         doc.ID,
		Username:   rec.Username,
		Title:      rec.Title,
		Content:    rec.Content,
		CreatedAt:  rec.CreatedAt,
		UpdatedAt:  rec.UpdatedAt,
		Upvotes:    rec.Upvotes,
		Downvotes:  rec.Downvotes,
		Upvoters:   rec.Upvoters,
		Downvoters: rec.Downvoters,
		CommentIDs: comments,
		Comments:   []*models.Comment{},
	}, nil
}

func commentToRecord(c *models.Comment) commentRecord {
	return commentRecord{
		Username:   c.Username,
		Content:    c.Content,
		CreatedAt:  c.CreatedAt.UTC(),
		UpdatedAt:  c.UpdatedAt.UTC(),
		Upvotes:    c.Upvotes,
		Downvotes:  c.Downvotes,
		Upvoters:   c.Upvoters,
		Downvoters: c.Downvoters,
	}
}

func commentFromDocument(doc *docstore.Document) (*models.Comment, error) {
	var rec commentRecord
	if err := doc.Decode(&rec); err != nil {
		return nil, err
	}
	return &models.Comment{
		ID:         doc.ID,
		Username:   rec.Username,
		Content:    rec.Content,
		CreatedAt:  rec.CreatedAt,
		UpdatedAt:  rec.UpdatedAt,
		Upvotes:    rec.Upvotes,
		Downvotes:  rec.Downvotes,
		Upvoters:   rec.Upvoters,
		Downvoters: rec.Downvoters,
	}, nil
}

func votersFromDocument(doc *docstore.Document) (*models.Voters, error) {
	var rec voteRecord
	if err := doc.Decode(&rec); err != nil {
		return nil, err
	}
	v := &models.Voters{
		Upvotes:    rec.Upvotes,
		Downvotes:  rec.Downvotes,
		Upvoters:   rec.Upvoters,
		Downvoters: rec.Downvoters,
	}
	if v.Upvoters == nil {
		v.Upvoters = map[string]bool{}
	}
	if v.Downvoters == nil {
		v.Downvoters = map[string]bool{}
	}
	return v, nil
}

// fieldsPatch sets each whitelisted field and refreshes updated_at.
func fieldsPatch(fields map[string]string, now time.Time) *docstore.Patch {
	patch := docstore.NewPatch()
	for k, v := range fields {
		patch.Set(k, v)
	}
	return patch.Set(FieldUpdatedAt, Timestamp(now))
}
