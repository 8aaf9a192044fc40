package service

import (
	"errors"
	"testing"

	"agora/internal/docstore"
	"agora/internal/models"
	"agora/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testRepos are repositories over a fresh miniredis-backed document store.
type testRepos struct {
	store    docstore.Store
	posts    repository.PostRepository
	comments repository.CommentRepository
}

func newTestRepos(t *testing.T) testRepos {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return reposOn(docstore.NewRedisStore(rdb, "test"))
}

// newSQLTestRepos are repositories over an in-memory SQLite document store.
func newSQLTestRepos(t *testing.T) testRepos {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	store := docstore.NewSQLStore(db)
	require.NoError(t, store.Migrate(t.Context()))
	t.Cleanup(func() { _ = store.Close() })
	return reposOn(store)
}

func reposOn(store docstore.Store) testRepos {
	return testRepos{
		store:    store,
		posts:    repository.NewPostRepository(store, "Posts"),
		comments: repository.NewCommentRepository(store, "Comments"),
	}
}

// storeBackends lists the document stores the ledger is exercised against.
var storeBackends = []struct {
	name string
	new  func(t *testing.T) testRepos
}{
	{"redis", newTestRepos},
	{"sqlite", newSQLTestRepos},
}

func newTestLedger(r testRepos, consistency string) *VoteLedger {
	cfg := DefaultVoteLedgerConfig()
	cfg.Consistency = consistency
	return NewVoteLedger(r.posts, r.comments, cfg)
}

func newTestPostService(r testRepos, cascade bool) *PostService {
	return NewPostService(r.posts, r.comments, NewCommentFanout(r.comments, 4), PostServiceOptions{
		CascadeDelete: cascade,
	})
}

// assertAppError asserts that err is an AppError with the given code.
func assertAppError(t *testing.T, err error, code string) *models.AppError {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
	return appErr
}

// assertVoteInvariants checks counters against voter sets and that no user holds both votes.
func assertVoteInvariants(t *testing.T, v *models.Voters) {
	t.Helper()
	assert.Equal(t, len(v.Upvoters), v.Upvotes, "upvotes must equal |upvoters|")
	assert.Equal(t, len(v.Downvoters), v.Downvotes, "downvotes must equal |downvoters|")
	assert.GreaterOrEqual(t, v.Upvotes, 0)
	assert.GreaterOrEqual(t, v.Downvotes, 0)
	for u := range v.Upvoters {
		assert.False(t, v.Downvoters[u], "%s holds both votes", u)
	}
}

func mustCreatePost(t *testing.T, svc *PostService, username string) string {
	t.Helper()
	id, err := svc.CreatePost(t.Context(), CreatePostInput{Username: username, Title: "Hello", Content: "World"})
	require.NoError(t, err)
	return id
}
