package repository

import (
	"context"
	"fmt"
	"sort"

	"agora/internal/docstore"
	"agora/internal/models"
	"agora/internal/observability"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	VoteRepository
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id string) (*models.Post, error)
	List(ctx context.Context) ([]*models.Post, error)
	ListByUsername(ctx context.Context, username string) ([]*models.Post, error)
	ListVotedBy(ctx context.Context, username string) ([]*models.Post, error)
	UpdateFields(ctx context.Context, id string, fields map[string]string) error
	Delete(ctx context.Context, id string) error
	AppendComment(ctx context.Context, postID, commentID string) error
	RemoveComment(ctx context.Context, postID, commentID string) error
}

// postRepository implements PostRepository
type postRepository struct {
	voteStore
}

// NewPostRepository creates a new post repository over the given collection
func NewPostRepository(store docstore.Store, collection string) PostRepository {
	return &postRepository{voteStore{
		store:      store,
		collection: collection,
		log:        observability.NewRepoLogger(collection),
	}}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	data, err := docstore.Fields(postToRecord(post))
	if err != nil {
		return fmt.Errorf("encode post: %w", err)
	}
	id, err := r.store.Create(ctx, r.collection, data)
	if err != nil {
		r.log.LogError(ctx, err, "create")
		return fmt.Errorf("create post: %w", err)
	}
	post.ID = id
	r.log.LogCreate(ctx, map[string]any{"id": id, "username": post.Username})
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	doc, err := r.store.Get(ctx, r.collection, id)
	if err != nil {
		return nil, fmt.Errorf("get post %s: %w", id, err)
	}
	return postFromDocument(doc)
}

// List returns all posts, newest first.
func (r *postRepository) List(ctx context.Context) ([]*models.Post, error) {
	docs, err := r.store.List(ctx, r.collection)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return postsFromDocuments(docs)
}

func (r *postRepository) ListByUsername(ctx context.Context, username string) ([]*models.Post, error) {
	docs, err := r.store.FindEqual(ctx, r.collection, FieldUsername, username)
	if err != nil {
		return nil, fmt.Errorf("list posts by %s: %w", username, err)
	}
	return postsFromDocuments(docs)
}

// ListVotedBy returns the posts where username is in either voter set, newest first.
// Voter sets are map-valued, so the membership test runs over the listed posts.
func (r *postRepository) ListVotedBy(ctx context.Context, username string) ([]*models.Post, error) {
	posts, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	voted := make([]*models.Post, 0, len(posts))
	for _, p := range posts {
		if p.HasVoted(username) {
			voted = append(voted, p)
		}
	}
	return voted, nil
}

func (r *postRepository) UpdateFields(ctx context.Context, id string, fields map[string]string) error {
	if err := r.store.Update(ctx, r.collection, id, fieldsPatch(fields, timeNow())); err != nil {
		return fmt.Errorf("update post %s: %w", id, err)
	}
	r.log.LogUpdate(ctx, map[string]any{"id": id, "fields": len(fields)})
	return nil
}

func (r *postRepository) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, r.collection, id); err != nil {
		return fmt.Errorf("delete post %s: %w", id, err)
	}
	r.log.LogDelete(ctx, map[string]any{"id": id})
	return nil
}

// AppendComment links a comment to its post. Linking the same id twice is a no-op.
func (r *postRepository) AppendComment(ctx context.Context, postID, commentID string) error {
	if err := r.store.Update(ctx, r.collection, postID, docstore.NewPatch().Append(FieldComments, commentID)); err != nil {
		return fmt.Errorf("link comment %s to post %s: %w", commentID, postID, err)
	}
	return nil
}

func (r *postRepository) RemoveComment(ctx context.Context, postID, commentID string) error {
	if err := r.store.Update(ctx, r.collection, postID, docstore.NewPatch().Remove(FieldComments, commentID)); err != nil {
		return fmt.Errorf("unlink comment %s from post %s: %w", commentID, postID, err)
	}
	return nil
}

func postsFromDocuments(docs []*docstore.Document) ([]*models.Post, error) {
	posts := make([]*models.Post, 0, len(docs))
	for _, doc := range docs {
		p, err := postFromDocument(doc)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
	return posts, nil
}
