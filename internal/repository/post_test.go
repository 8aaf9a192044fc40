package repository

import (
	"context"
	"testing"
	"time"

	"agora/internal/docstore"
	"agora/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPost(username, title string, createdAt time.Time) *models.Post {
	return &models.Post{
		Username:  username,
		Title:     title,
		Content:   "content",
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestPostRepository_CreateAndGet(t *testing.T) {
	repo := NewPostRepository(newTestStore(t), "Posts")
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	post := newPost("alice", "T", now)
	require.NoError(t, repo.Create(ctx, post))
	require.NotEmpty(t, post.ID)

	got, err := repo.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "T", got.Title)
	assert.True(t, now.Equal(got.CreatedAt))
	assert.Zero(t, got.Upvotes)
	assert.Zero(t, got.Downvotes)
	assert.Empty(t, got.Upvoters)
	assert.Equal(t, []string{}, got.CommentIDs)
	assert.Equal(t, []*models.Comment{}, got.Comments)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestPostRepository_ListsNewestFirst(t *testing.T) {
	repo := NewPostRepository(newTestStore(t), "Posts")
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	older := newPost("alice", "older", base)
	newer := newPost("bob", "newer", base.Add(time.Hour))
	newest := newPost("alice", "newest", base.Add(2*time.Hour))
	require.NoError(t, repo.Create(ctx, newer))
	require.NoError(t, repo.Create(ctx, older))
	require.NoError(t, repo.Create(ctx, newest))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"newest", "newer", "older"}, titles(all))

	mine, err := repo.ListByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"newest", "older"}, titles(mine))

	none, err := repo.ListByUsername(ctx, "carol")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPostRepository_ListVotedBy(t *testing.T) {
	repo := NewPostRepository(newTestStore(t), "Posts")
	ctx := context.Background()
	now := time.Now().UTC()

	up := newPost("alice", "up", now)
	down := newPost("alice", "down", now.Add(time.Second))
	untouched := newPost("alice", "untouched", now.Add(2*time.Second))
	for _, p := range []*models.Post{up, down, untouched} {
		require.NoError(t, repo.Create(ctx, p))
	}

	require.NoError(t, repo.PatchVotes(ctx, up.ID, docstore.NewPatch().Increment(FieldUpvotes, 1).SetKey(FieldUpvoters, "bob", true)))
	require.NoError(t, repo.PatchVotes(ctx, down.ID, docstore.NewPatch().Increment(FieldDownvotes, 1).SetKey(FieldDownvoters, "bob", true)))

	voted, err := repo.ListVotedBy(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"down", "up"}, titles(voted))
}

func TestPostRepository_UpdateFields(t *testing.T) {
	repo := NewPostRepository(newTestStore(t), "Posts")
	ctx := context.Background()
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	post := newPost("alice", "T", created)
	require.NoError(t, repo.Create(ctx, post))

	fixed := created.Add(time.Hour)
	timeNow = func() time.Time { return fixed }
	defer func() { timeNow = func() time.Time { return time.Now().UTC() } }()

	require.NoError(t, repo.UpdateFields(ctx, post.ID, map[string]string{FieldTitle: "T2"}))

	got, err := repo.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "T2", got.Title)
	assert.Equal(t, "content", got.Content)
	assert.True(t, fixed.Equal(got.UpdatedAt))
	assert.True(t, created.Equal(got.CreatedAt))

	err = repo.UpdateFields(ctx, "missing", map[string]string{FieldTitle: "x"})
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestPostRepository_CommentLinks(t *testing.T) {
	repo := NewPostRepository(newTestStore(t), "Posts")
	ctx := context.Background()

	post := newPost("alice", "T", time.Now())
	require.NoError(t, repo.Create(ctx, post))

	require.NoError(t, repo.AppendComment(ctx, post.ID, "c1"))
	require.NoError(t, repo.AppendComment(ctx, post.ID, "c2"))
	require.NoError(t, repo.AppendComment(ctx, post.ID, "c1"))

	got, err := repo.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, got.CommentIDs)

	require.NoError(t, repo.RemoveComment(ctx, post.ID, "c1"))
	got, err = repo.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"c2"}, got.CommentIDs)

	assert.ErrorIs(t, repo.AppendComment(ctx, "missing", "c3"), docstore.ErrNotFound)
}

func TestPostRepository_GetVotersAndDelete(t *testing.T) {
	repo := NewPostRepository(newTestStore(t), "Posts")
	ctx := context.Background()

	post := newPost("alice", "T", time.Now())
	require.NoError(t, repo.Create(ctx, post))

	voters, version, err := repo.GetVoters(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
	assert.NotNil(t, voters.Upvoters)
	assert.NotNil(t, voters.Downvoters)
	assert.Zero(t, voters.Upvotes)

	err = repo.PatchVotes(ctx, post.ID, docstore.NewPatch().Increment(FieldUpvotes, 1), docstore.IfVersion(7))
	assert.ErrorIs(t, err, docstore.ErrVersionConflict)

	require.NoError(t, repo.Delete(ctx, post.ID))
	assert.ErrorIs(t, repo.Delete(ctx, post.ID), docstore.ErrNotFound)
	_, _, err = repo.GetVoters(ctx, post.ID)
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func titles(posts []*models.Post) []string {
	out := make([]string, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.Title)
	}
	return out
}
