package server

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentLifecycle(t *testing.T) {
	app, _ := newTestApp(t, testConfig())
	postID := createPost(t, app, "alice")

	var ids []string
	for _, content := range []string{"first", "second"} {
		status, env := doRequest(t, app, http.MethodPost, "/posts/"+postID+"/comments", map[string]string{
			"username": "bob",
			"content":  content,
		})
		require.Equal(t, http.StatusCreated, status, env.Message)
		assert.Equal(t, "Comment created successfully", env.Message)
		var data struct {
			ID string `json:"id"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &data))
		ids = append(ids, data.ID)
	}

	p := getPost(t, app, postID)
	require.Len(t, p.Comments, 2)
	assert.Equal(t, "first", p.Comments[0].Content)
	assert.Equal(t, "second", p.Comments[1].Content)

	status, env := doRequest(t, app, http.MethodPut, "/posts/"+postID+"/comments/"+ids[0], map[string]string{"content": "edited"})
	require.Equal(t, http.StatusOK, status, env.Message)
	assert.Equal(t, "Comment updated successfully", env.Message)

	status, env = doRequest(t, app, http.MethodPut, "/posts/"+postID+"/comments/"+ids[0], map[string]string{})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "No valid fields to update", env.Message)

	status, env = doRequest(t, app, http.MethodDelete, "/posts/"+postID+"/comments/"+ids[1], nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Comment deleted successfully", env.Message)

	p = getPost(t, app, postID)
	require.Len(t, p.Comments, 1)
	assert.Equal(t, ids[0], p.Comments[0].ID)
	assert.Equal(t, "edited", p.Comments[0].Content)

	status, env = doRequest(t, app, http.MethodDelete, "/posts/"+postID+"/comments/"+ids[1], nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Comment not found", env.Message)
}

func TestCreateComment_Errors(t *testing.T) {
	app, _ := newTestApp(t, testConfig())
	postID := createPost(t, app, "alice")

	tests := []struct {
		name    string
		path    string
		body    any
		status  int
		message string
	}{
		{"missing content", "/posts/" + postID + "/comments", map[string]string{"username": "bob"}, http.StatusBadRequest, "Content is required"},
		{"unknown post", "/posts/nope/comments", map[string]string{"username": "bob", "content": "x"}, http.StatusNotFound, "Post not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := doRequest(t, app, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.message, env.Message)
		})
	}

	p := getPost(t, app, postID)
	assert.Empty(t, p.Comments)
}

func TestVotedPosts(t *testing.T) {
	app, _ := newTestApp(t, testConfig())
	voted := createPost(t, app, "alice")
	createPost(t, app, "bob")

	status, env := doRequest(t, app, http.MethodGet, "/posts/user/carol/votes", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "No voted posts found for this user.", env.Message)

	status, _ = doRequest(t, app, http.MethodPost, "/posts/"+voted+"/downvote", map[string]string{"username": "carol"})
	require.Equal(t, http.StatusOK, status)

	status, env = doRequest(t, app, http.MethodGet, "/posts/user/carol/votes", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "User voted posts retrieved successfully", env.Message)
	var posts []apiPost
	require.NoError(t, json.Unmarshal(env.Data, &posts))
	require.Len(t, posts, 1)
	assert.Equal(t, voted, posts[0].ID)
}
