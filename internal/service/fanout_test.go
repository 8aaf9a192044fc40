package service

import (
	"context"
	"errors"
	"testing"

	"agora/internal/models"
	"agora/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingComments records FindByIDs calls.
type countingComments struct {
	repository.CommentRepository
	calls [][]string
	err   error
}

func (c *countingComments) FindByIDs(_ context.Context, ids []string) ([]*models.Comment, error) {
	c.calls = append(c.calls, ids)
	if c.err != nil {
		return nil, c.err
	}
	out := make([]*models.Comment, 0, len(ids))
	for _, id := range ids {
		out = append(out, &models.Comment{ID: id})
	}
	return out, nil
}

func TestCommentFanout_EmptyInputMakesNoStoreCall(t *testing.T) {
	t.Parallel()

	repo := &countingComments{}
	fanout := NewCommentFanout(repo, 2)

	comments, err := fanout.Load(t.Context(), nil)
	require.NoError(t, err)
	assert.NotNil(t, comments)
	assert.Empty(t, comments)
	assert.Empty(t, repo.calls)
}

func TestCommentFanout_SingleBatchedCall(t *testing.T) {
	t.Parallel()

	repo := &countingComments{}
	fanout := NewCommentFanout(repo, 2)

	comments, err := fanout.Load(t.Context(), []string{"c2", "c1", "c2", ""})
	require.NoError(t, err)
	require.Len(t, repo.calls, 1)
	assert.Equal(t, []string{"c2", "c1"}, repo.calls[0])
	require.Len(t, comments, 2)
	assert.Equal(t, "c2", comments[0].ID)
	assert.Equal(t, "c1", comments[1].ID)
}

func TestCommentFanout_AttachPropagatesErrors(t *testing.T) {
	t.Parallel()

	repo := &countingComments{err: errors.New("store down")}
	fanout := NewCommentFanout(repo, 2)

	err := fanout.Attach(t.Context(),
		&models.Post{ID: "p1", CommentIDs: []string{"c1"}},
		&models.Post{ID: "p2", CommentIDs: []string{"c2"}},
	)
	assert.Error(t, err)
}

func TestCommentFanout_SkipsDeletedCommentsInPostOrder(t *testing.T) {
	r := newTestRepos(t)
	ctx := t.Context()
	posts := newTestPostService(r, false)
	comments := NewCommentService(r.comments, r.posts, nil)

	postID := mustCreatePost(t, posts, "author")
	var ids []string
	for _, body := range []string{"first", "second", "third"} {
		id, err := comments.CreateComment(ctx, CreateCommentInput{PostID: postID, Username: "bob", Content: body})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	// Delete behind the service's back so the post still lists the id.
	require.NoError(t, r.comments.Delete(ctx, ids[1]))

	post, err := posts.GetPost(ctx, postID)
	require.NoError(t, err)
	assert.Equal(t, ids, post.CommentIDs)
	require.Len(t, post.Comments, 2)
	assert.Equal(t, "first", post.Comments[0].Content)
	assert.Equal(t, "third", post.Comments[1].Content)
}
