package service

import (
	"context"
	"errors"

	"agora/internal/docstore"
	"agora/internal/models"
	"agora/internal/observability"
	"agora/internal/repository"
	"agora/internal/validation"
)

type PostService struct {
	posts         repository.PostRepository
	comments      repository.CommentRepository
	fanout        *CommentFanout
	sanitizer     *validation.Sanitizer
	cascadeDelete bool
}

type CreatePostInput struct {
	Username string
	Title    string
	Content  string
}

// UpdatePostInput carries the whitelisted fields of a post update. Nil means not provided.
type UpdatePostInput struct {
	PostID  string
	Title   *string
	Content *string
}

// PostServiceOptions tunes optional post lifecycle behaviour.
type PostServiceOptions struct {
	Sanitizer *validation.Sanitizer
	// CascadeDelete also deletes a post's comments when the post is deleted.
	CascadeDelete bool
}

func NewPostService(
	posts repository.PostRepository,
	comments repository.CommentRepository,
	fanout *CommentFanout,
	opts PostServiceOptions,
) *PostService {
	return &PostService{
		posts:         posts,
		comments:      comments,
		fanout:        fanout,
		sanitizer:     opts.Sanitizer,
		cascadeDelete: opts.CascadeDelete,
	}
}

// CreatePost stores a new post with zeroed vote state and returns its id.
func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (string, error) {
	var check validation.Checker
	username := check.Required(s.sanitizer.Text(in.Username), "Username is required")
	title := check.Required(s.sanitizer.Text(in.Title), "Title is required")
	content := check.Required(s.sanitizer.Content(in.Content), "Content is required")
	if err := check.Err(); err != nil {
		return "", err
	}

	now := timeNow()
	post := &models.Post{
		Username:   username,
		Title:      title,
		Content:    content,
		CreatedAt:  now,
		UpdatedAt:  now,
		Upvoters:   map[string]bool{},
		Downvoters: map[string]bool{},
		CommentIDs: []string{},
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return "", models.NewInternalError("Unable to create post", err)
	}
	return post.ID, nil
}

// GetPost returns one post with its comments.
func (s *PostService) GetPost(ctx context.Context, id string) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, postError(err, "Failed to get post")
	}
	if err := s.fanout.Attach(ctx, post); err != nil {
		return nil, models.NewInternalError("Failed to get post", err)
	}
	return post, nil
}

// ListPosts returns every post, newest first, with comments.
func (s *PostService) ListPosts(ctx context.Context) ([]*models.Post, error) {
	posts, err := s.posts.List(ctx)
	if err != nil {
		return nil, models.NewInternalError("Failed to get all posts", err)
	}
	if err := s.fanout.Attach(ctx, posts...); err != nil {
		return nil, models.NewInternalError("Failed to get all posts", err)
	}
	return posts, nil
}

// ListByUsername returns the posts authored by username. No posts is a not-found error.
func (s *PostService) ListByUsername(ctx context.Context, username string) ([]*models.Post, error) {
	if username == "" {
		return nil, models.NewValidationError("Username is required")
	}
	posts, err := s.posts.ListByUsername(ctx, username)
	if err != nil {
		return nil, models.NewInternalError("Unable to get posts", err)
	}
	if len(posts) == 0 {
		return nil, models.NewNotFoundError("No posts found for this user.")
	}
	if err := s.fanout.Attach(ctx, posts...); err != nil {
		return nil, models.NewInternalError("Unable to get posts", err)
	}
	return posts, nil
}

// ListVotedBy returns the posts username has voted on in either direction.
func (s *PostService) ListVotedBy(ctx context.Context, username string) ([]*models.Post, error) {
	if username == "" {
		return nil, models.NewValidationError("Username is required")
	}
	posts, err := s.posts.ListVotedBy(ctx, username)
	if err != nil {
		return nil, models.NewInternalError("Failed to retrieve voted posts", err)
	}
	if len(posts) == 0 {
		return nil, models.NewNotFoundError("No voted posts found for this user.")
	}
	if err := s.fanout.Attach(ctx, posts...); err != nil {
		return nil, models.NewInternalError("Failed to retrieve voted posts", err)
	}
	return posts, nil
}

// UpdatePost changes title and/or content and refreshes updated_at.
func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) error {
	if in.Title == nil && in.Content == nil {
		return models.NewValidationError("No valid fields to update")
	}
	var check validation.Checker
	fields := map[string]string{}
	if in.Title != nil {
		fields[repository.FieldTitle] = check.Required(s.sanitizer.Text(*in.Title), "Title is required")
	}
	if in.Content != nil {
		fields[repository.FieldContent] = check.Required(s.sanitizer.Content(*in.Content), "Content is required")
	}
	if err := check.Err(); err != nil {
		return err
	}

	if err := s.posts.UpdateFields(ctx, in.PostID, fields); err != nil {
		return postError(err, "Unable to update post")
	}
	return nil
}

// DeletePost removes a post. With cascading enabled its comments are removed too, best-effort.
func (s *PostService) DeletePost(ctx context.Context, id string) error {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return postError(err, "Failed to delete post")
	}
	if err := s.posts.Delete(ctx, id); err != nil {
		return postError(err, "Failed to delete post")
	}

	if s.cascadeDelete {
		for _, commentID := range dedupeIDs(post.CommentIDs) {
			err := s.comments.Delete(ctx, commentID)
			if err != nil && !errors.Is(err, docstore.ErrNotFound) {
				observability.CompensationsTotal.WithLabelValues("cascade_delete", "failure").Inc()
				observability.LogAsyncOperationError(ctx, "cascade_delete_comment", err, map[string]any{
					"post_id":    id,
					"comment_id": commentID,
				})
				continue
			}
			observability.CompensationsTotal.WithLabelValues("cascade_delete", "success").Inc()
		}
	}
	return nil
}

func postError(err error, failMsg string) error {
	if errors.Is(err, docstore.ErrNotFound) {
		return models.NewNotFoundError("Post not found")
	}
	return models.NewInternalError(failMsg, err)
}
