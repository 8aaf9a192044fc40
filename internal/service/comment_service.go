package service

import (
	"context"
	"errors"
	"time"

	"agora/internal/docstore"
	"agora/internal/models"
	"agora/internal/observability"
	"agora/internal/repository"
	"agora/internal/validation"
)

// timeNow is replaced in tests that need stable timestamps.
var timeNow = func() time.Time { return time.Now().UTC() }

type CommentService struct {
	comments  repository.CommentRepository
	posts     repository.PostRepository
	sanitizer *validation.Sanitizer
}

type CreateCommentInput struct {
	PostID   string
	Username string
	Content  string
}

// UpdateCommentInput carries the whitelisted fields of a comment update. Nil means not provided.
type UpdateCommentInput struct {
	PostID    string
	CommentID string
	Content   *string
}

func NewCommentService(
	comments repository.CommentRepository,
	posts repository.PostRepository,
	sanitizer *validation.Sanitizer,
) *CommentService {
	return &CommentService{
		comments:  comments,
		posts:     posts,
		sanitizer: sanitizer,
	}
}

// CreateComment writes a comment and links it to its post. The two writes are separate;
// if linking fails the comment is deleted again so it does not linger unreachable.
func (s *CommentService) CreateComment(ctx context.Context, in CreateCommentInput) (string, error) {
	var check validation.Checker
	username := check.Required(s.sanitizer.Text(in.Username), "Username is required")
	content := check.Required(s.sanitizer.Content(in.Content), "Content is required")
	if err := check.Err(); err != nil {
		return "", err
	}

	if _, err := s.posts.GetByID(ctx, in.PostID); err != nil {
		return "", postError(err, "Failed to create comment")
	}

	now := timeNow()
	comment := &models.Comment{
		Username:   username,
		Content:    content,
		CreatedAt:  now,
		UpdatedAt:  now,
		Upvoters:   map[string]bool{},
		Downvoters: map[string]bool{},
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return "", models.NewInternalError("Failed to create comment", err)
	}

	if err := s.posts.AppendComment(ctx, in.PostID, comment.ID); err != nil {
		s.compensateCreate(ctx, in.PostID, comment.ID)
		return "", postError(err, "Failed to create comment")
	}
	return comment.ID, nil
}

func (s *CommentService) compensateCreate(ctx context.Context, postID, commentID string) {
	// The request context may already be done; the cleanup still has to reach the store.
	ctx = context.WithoutCancel(ctx)
	if err := s.comments.Delete(ctx, commentID); err != nil {
		observability.CompensationsTotal.WithLabelValues("comment_create", "failure").Inc()
		observability.LogAsyncOperationError(ctx, "compensate_comment_create", err, map[string]any{
			"post_id":    postID,
			"comment_id": commentID,
		})
		return
	}
	observability.CompensationsTotal.WithLabelValues("comment_create", "success").Inc()
}

// UpdateComment changes the content of a comment and refreshes updated_at.
func (s *CommentService) UpdateComment(ctx context.Context, in UpdateCommentInput) error {
	if in.Content == nil {
		return models.NewValidationError("No valid fields to update")
	}
	var check validation.Checker
	content := check.Required(s.sanitizer.Content(*in.Content), "Content is required")
	if err := check.Err(); err != nil {
		return err
	}

	err := s.comments.UpdateFields(ctx, in.CommentID, map[string]string{repository.FieldContent: content})
	if err != nil {
		return commentError(err, "Failed to update comment")
	}
	return nil
}

// DeleteComment removes a comment and unlinks it from its post when the post still exists.
func (s *CommentService) DeleteComment(ctx context.Context, postID, commentID string) error {
	if _, err := s.comments.GetByID(ctx, commentID); err != nil {
		return commentError(err, "Failed to delete comment")
	}
	if err := s.comments.Delete(ctx, commentID); err != nil {
		return commentError(err, "Failed to delete comment")
	}

	err := s.posts.RemoveComment(ctx, postID, commentID)
	switch {
	case err == nil:
		observability.CompensationsTotal.WithLabelValues("comment_unlink", "success").Inc()
	case errors.Is(err, docstore.ErrNotFound):
	default:
		observability.CompensationsTotal.WithLabelValues("comment_unlink", "failure").Inc()
		observability.LogAsyncOperationError(ctx, "unlink_comment", err, map[string]any{
			"post_id":    postID,
			"comment_id": commentID,
		})
	}
	return nil
}

func commentError(err error, failMsg string) error {
	if errors.Is(err, docstore.ErrNotFound) {
		return models.NewNotFoundError("Comment not found")
	}
	return models.NewInternalError(failMsg, err)
}
