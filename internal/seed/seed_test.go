package seed

import (
	"testing"

	"agora/internal/config"
	"agora/internal/docstore"
	"agora/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) docstore.Store {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return docstore.NewRedisStore(rdb, "seed")
}

func testConfig() *config.Config {
	return &config.Config{
		PostsCollection:      "Posts",
		CommentsCollection:   "Comments",
		VoteConsistency:      config.ConsistencyVersioned,
		VoteMaxAttempts:      5,
		PostDuplicateVote:    "ignore",
		CommentDuplicateVote: "conflict",
		FanoutConcurrency:    2,
	}
}

func TestUsernamesAreDistinct(t *testing.T) {
	t.Parallel()

	users := Usernames(gofakeit.New(42), 200)
	seen := map[string]bool{}
	for _, u := range users {
		assert.NotEmpty(t, u)
		assert.False(t, seen[u], "duplicate username %s", u)
		seen[u] = true
	}
	assert.Len(t, users, 200)
}

func TestSeeder_RunKeepsInvariants(t *testing.T) {
	store := newTestStore(t)
	cfg := testConfig()
	ctx := t.Context()

	sum, err := NewSeeder(cfg, store).Run(ctx, Options{
		NumUsers:           8,
		NumPosts:           5,
		MaxCommentsPerPost: 3,
		VoteProbability:    0.5,
		Seed:               7,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, sum.Posts)

	posts, err := repository.NewPostRepository(store, cfg.PostsCollection).List(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 5)

	linked := 0
	for _, p := range posts {
		assert.Equal(t, len(p.Upvoters), p.Upvotes)
		assert.Equal(t, len(p.Downvoters), p.Downvotes)
		for u := range p.Upvoters {
			assert.False(t, p.Downvoters[u])
		}
		linked += len(p.CommentIDs)
	}
	assert.Equal(t, sum.Comments, linked)

	removed, err := Clear(ctx, store, cfg.PostsCollection, cfg.CommentsCollection)
	require.NoError(t, err)
	assert.Equal(t, sum.Posts+sum.Comments, removed)

	left, err := store.List(ctx, cfg.PostsCollection)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestSeeder_RejectsEmptyUserPool(t *testing.T) {
	t.Parallel()

	_, err := NewSeeder(testConfig(), newTestStore(t)).Run(t.Context(), Options{NumPosts: 1})
	assert.Error(t, err)
}
