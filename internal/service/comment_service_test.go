package service

import (
	"context"
	"errors"
	"testing"

	"agora/internal/docstore"
	"agora/internal/models"
	"agora/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentService_CreateLinksToPost(t *testing.T) {
	r := newTestRepos(t)
	posts := newTestPostService(r, false)
	svc := NewCommentService(r.comments, r.posts, nil)
	ctx := t.Context()

	postID := mustCreatePost(t, posts, "alice")
	commentID, err := svc.CreateComment(ctx, CreateCommentInput{PostID: postID, Username: "bob", Content: "nice"})
	require.NoError(t, err)

	post, err := posts.GetPost(ctx, postID)
	require.NoError(t, err)
	assert.Equal(t, []string{commentID}, post.CommentIDs)
	require.Len(t, post.Comments, 1)
	assert.Equal(t, "nice", post.Comments[0].Content)
	assert.Equal(t, 0, post.Comments[0].Upvotes)
}

func TestCommentService_CreateValidation(t *testing.T) {
	r := newTestRepos(t)
	svc := NewCommentService(r.comments, r.posts, nil)
	postID := mustCreatePost(t, newTestPostService(r, false), "alice")

	tests := []struct {
		name    string
		in      CreateCommentInput
		code    string
		message string
	}{
		{name: "missing fields", in: CreateCommentInput{PostID: postID}, code: models.CodeValidation, message: "Username is required, Content is required"},
		{name: "missing post", in: CreateCommentInput{PostID: "nope", Username: "bob", Content: "x"}, code: models.CodeNotFound, message: "Post not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateComment(t.Context(), tt.in)
			appErr := assertAppError(t, err, tt.code)
			assert.Equal(t, tt.message, appErr.Message)
		})
	}

	docs, err := r.store.List(t.Context(), "Comments")
	require.NoError(t, err)
	assert.Empty(t, docs)
}

// unlinkablePosts finds every post but fails to link comments to it.
type unlinkablePosts struct {
	repository.PostRepository
}

func (unlinkablePosts) GetByID(_ context.Context, id string) (*models.Post, error) {
	return &models.Post{ID: id}, nil
}

func (unlinkablePosts) AppendComment(context.Context, string, string) error {
	return errors.New("write timeout")
}

func TestCommentService_CreateCompensatesFailedLink(t *testing.T) {
	r := newTestRepos(t)
	svc := NewCommentService(r.comments, unlinkablePosts{}, nil)

	_, err := svc.CreateComment(t.Context(), CreateCommentInput{PostID: "p1", Username: "bob", Content: "x"})
	appErr := assertAppError(t, err, models.CodeInternal)
	assert.Equal(t, "Failed to create comment", appErr.Message)

	docs, err := r.store.List(t.Context(), "Comments")
	require.NoError(t, err)
	assert.Empty(t, docs, "the unlinked comment must be removed")
}

func TestCommentService_UpdateComment(t *testing.T) {
	r := newTestRepos(t)
	svc := NewCommentService(r.comments, r.posts, nil)
	ctx := t.Context()
	postID := mustCreatePost(t, newTestPostService(r, false), "alice")
	commentID, err := svc.CreateComment(ctx, CreateCommentInput{PostID: postID, Username: "bob", Content: "old"})
	require.NoError(t, err)

	err = svc.UpdateComment(ctx, UpdateCommentInput{PostID: postID, CommentID: commentID})
	appErr := assertAppError(t, err, models.CodeValidation)
	assert.Equal(t, "No valid fields to update", appErr.Message)

	err = svc.UpdateComment(ctx, UpdateCommentInput{PostID: postID, CommentID: "nope", Content: strPtr("x")})
	appErr = assertAppError(t, err, models.CodeNotFound)
	assert.Equal(t, "Comment not found", appErr.Message)

	require.NoError(t, svc.UpdateComment(ctx, UpdateCommentInput{PostID: postID, CommentID: commentID, Content: strPtr("new")}))
	c, err := r.comments.GetByID(ctx, commentID)
	require.NoError(t, err)
	assert.Equal(t, "new", c.Content)
}

func TestCommentService_DeleteUnlinksFromPost(t *testing.T) {
	r := newTestRepos(t)
	posts := newTestPostService(r, false)
	svc := NewCommentService(r.comments, r.posts, nil)
	ctx := t.Context()

	postID := mustCreatePost(t, posts, "alice")
	keep, err := svc.CreateComment(ctx, CreateCommentInput{PostID: postID, Username: "bob", Content: "keep"})
	require.NoError(t, err)
	drop, err := svc.CreateComment(ctx, CreateCommentInput{PostID: postID, Username: "bob", Content: "drop"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteComment(ctx, postID, drop))

	post, err := posts.GetPost(ctx, postID)
	require.NoError(t, err)
	assert.Equal(t, []string{keep}, post.CommentIDs)

	err = svc.DeleteComment(ctx, postID, drop)
	appErr := assertAppError(t, err, models.CodeNotFound)
	assert.Equal(t, "Comment not found", appErr.Message)
}

func TestCommentService_DeleteWithMissingParent(t *testing.T) {
	r := newTestRepos(t)
	svc := NewCommentService(r.comments, r.posts, nil)
	ctx := t.Context()

	// An orphan left behind by a deleted post.
	orphan := &models.Comment{Username: "bob", Content: "x"}
	require.NoError(t, r.comments.Create(ctx, orphan))

	require.NoError(t, svc.DeleteComment(ctx, "gone", orphan.ID))
	_, err := r.comments.GetByID(ctx, orphan.ID)
	assert.True(t, errors.Is(err, docstore.ErrNotFound))
}
