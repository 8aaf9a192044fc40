package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"agora/internal/config"
	"agora/internal/docstore"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:                 "0",
		Env:                  "test",
		StoreDriver:          config.StoreRedis,
		PostsCollection:      "Posts",
		CommentsCollection:   "Comments",
		VoteConsistency:      config.ConsistencyVersioned,
		VoteMaxAttempts:      5,
		PostDuplicateVote:    "ignore",
		CommentDuplicateVote: "conflict",
		FanoutConcurrency:    4,
		RateLimit:            100,
	}
}

// newTestApp serves the routes over a miniredis-backed store, without the middleware stack.
func newTestApp(t *testing.T, cfg *config.Config) (*fiber.App, *Server) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	srv, err := NewServerWithDeps(cfg, docstore.NewRedisStore(rdb, "test"), rdb)
	require.NoError(t, err)

	app := NewApp()
	srv.SetupRoutes(app)
	return app, srv
}

// envelope mirrors models.Envelope with a raw data field for per-test decoding.
type envelope struct {
	StatusCode int             `json:"statusCode"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
}

func doRequest(t *testing.T, app *fiber.App, method, path string, body any) (int, envelope) {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), "body: %s", raw)
	}
	return resp.StatusCode, env
}

// createPost creates a post through the API and returns its id.
func createPost(t *testing.T, app *fiber.App, username string) string {
	t.Helper()
	status, env := doRequest(t, app, http.MethodPost, "/posts", map[string]string{
		"username": username,
		"title":    "Title by " + username,
		"content":  "Content",
	})
	require.Equal(t, http.StatusCreated, status, env.Message)

	var data struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.ID)
	return data.ID
}

// apiPost is the JSON shape of a post in responses.
type apiPost struct {
	ID         string          `json:"id"`
	Username   string          `json:"username"`
	Title      string          `json:"title"`
	Content    string          `json:"content"`
	Upvotes    int             `json:"upvotes"`
	Downvotes  int             `json:"downvotes"`
	Upvoters   map[string]bool `json:"upvoters"`
	Downvoters map[string]bool `json:"downvoters"`
	Comments   []struct {
		ID        string `json:"id"`
		Content   string `json:"content"`
		Upvotes   int    `json:"upvotes"`
		Downvotes int    `json:"downvotes"`
	} `json:"comments"`
}

func getPost(t *testing.T, app *fiber.App, id string) apiPost {
	t.Helper()
	status, env := doRequest(t, app, http.MethodGet, "/posts/"+id, nil)
	require.Equal(t, http.StatusOK, status, env.Message)
	var p apiPost
	require.NoError(t, json.Unmarshal(env.Data, &p))
	return p
}
