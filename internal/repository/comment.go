package repository

import (
	"context"
	"fmt"
	"time"

	"agora/internal/docstore"
	"agora/internal/models"
	"agora/internal/observability"
)

// timeNow is replaced in tests that need stable timestamps.
var timeNow = func() time.Time { return time.Now().UTC() }

// CommentRepository defines interface for comment operations
type CommentRepository interface {
	VoteRepository
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id string) (*models.Comment, error)
	// FindByIDs resolves many comment ids with one batched query, in the order of ids.
	FindByIDs(ctx context.Context, ids []string) ([]*models.Comment, error)
	UpdateFields(ctx context.Context, id string, fields map[string]string) error
	Delete(ctx context.Context, id string) error
}

type commentRepository struct {
	voteStore
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(store docstore.Store, collection string) CommentRepository {
	return &commentRepository{voteStore{
		store:      store,
		collection: collection,
		log:        observability.NewRepoLogger(collection),
	}}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	data, err := docstore.Fields(commentToRecord(comment))
	if err != nil {
		return fmt.Errorf("encode comment: %w", err)
	}
	id, err := r.store.Create(ctx, r.collection, data)
	if err != nil {
		r.log.LogError(ctx, err, "create")
		return fmt.Errorf("create comment: %w", err)
	}
	comment.ID = id
	r.log.LogCreate(ctx, map[string]any{"id": id, "username": comment.Username})
	return nil
}

func (r *commentRepository) GetByID(ctx context.Context, id string) (*models.Comment, error) {
	doc, err := r.store.Get(ctx, r.collection, id)
	if err != nil {
		return nil, fmt.Errorf("get comment %s: %w", id, err)
	}
	return commentFromDocument(doc)
}

func (r *commentRepository) FindByIDs(ctx context.Context, ids []string) ([]*models.Comment, error) {
	docs, err := r.store.FindIn(ctx, r.collection, ids)
	if err != nil {
		return nil, fmt.Errorf("find comments: %w", err)
	}
	comments := make([]*models.Comment, 0, len(docs))
	for _, doc := range docs {
		c, err := commentFromDocument(doc)
		if err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, nil
}

func (r *commentRepository) UpdateFields(ctx context.Context, id string, fields map[string]string) error {
	if err := r.store.Update(ctx, r.collection, id, fieldsPatch(fields, timeNow())); err != nil {
		return fmt.Errorf("update comment %s: %w", id, err)
	}
	r.log.LogUpdate(ctx, map[string]any{"id": id, "fields": len(fields)})
	return nil
}

func (r *commentRepository) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, r.collection, id); err != nil {
		return fmt.Errorf("delete comment %s: %w", id, err)
	}
	r.log.LogDelete(ctx, map[string]any{"id": id})
	return nil
}
