package docstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testItem struct {
	Username string          `json:"username"`
	Title    string          `json:"title,omitempty"`
	Upvotes  int             `json:"upvotes"`
	Upvoters map[string]bool `json:"upvoters,omitempty"`
	Comments []string        `json:"comments"`
}

func createItem(t *testing.T, s Store, collection string, item testItem) string {
	t.Helper()
	if item.Comments == nil {
		item.Comments = []string{}
	}
	data, err := Fields(item)
	require.NoError(t, err)
	id, err := s.Create(context.Background(), collection, data)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	return id
}

func getItem(t *testing.T, s Store, collection, id string) (testItem, int64) {
	t.Helper()
	doc, err := s.Get(context.Background(), collection, id)
	require.NoError(t, err)
	var item testItem
	require.NoError(t, doc.Decode(&item))
	return item, doc.Version
}

// runStoreContract exercises the behavior every backend must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		s := newStore(t)
		id := createItem(t, s, "Posts", testItem{Username: "alice", Title: "hello"})

		item, version := getItem(t, s, "Posts", id)
		assert.Equal(t, "alice", item.Username)
		assert.Equal(t, "hello", item.Title)
		assert.Equal(t, 0, item.Upvotes)
		assert.Empty(t, item.Comments)
		assert.Equal(t, int64(1), version)
	})

	t.Run("missing document", func(t *testing.T) {
		s := newStore(t)

		_, err := s.Get(ctx, "Posts", "does-not-exist")
		assert.ErrorIs(t, err, ErrNotFound)

		err = s.Update(ctx, "Posts", "does-not-exist", NewPatch().Set("title", "x"))
		assert.ErrorIs(t, err, ErrNotFound)

		err = s.Update(ctx, "Posts", "does-not-exist", NewPatch().Set("title", "x"), IfVersion(1))
		assert.ErrorIs(t, err, ErrNotFound)

		assert.ErrorIs(t, s.Delete(ctx, "Posts", "does-not-exist"), ErrNotFound)
	})

	t.Run("update applies field operations", func(t *testing.T) {
		s := newStore(t)
		id := createItem(t, s, "Posts", testItem{Username: "alice"})

		patch := NewPatch().
			Increment("upvotes", 1).
			SetKey("upvoters", "bob", true).
			Append("comments", "c1").
			Set("title", "edited")
		require.NoError(t, s.Update(ctx, "Posts", id, patch))
		require.NoError(t, s.Update(ctx, "Posts", id, NewPatch().Append("comments", "c1").Append("comments", "c2")))

		item, version := getItem(t, s, "Posts", id)
		assert.Equal(t, 1, item.Upvotes)
		assert.Equal(t, map[string]bool{"bob": true}, item.Upvoters)
		assert.Equal(t, []string{"c1", "c2"}, item.Comments)
		assert.Equal(t, "edited", item.Title)
		assert.Equal(t, int64(3), version)

		patch = NewPatch().
			Increment("upvotes", -1).
			UnsetKey("upvoters", "bob").
			Remove("comments", "c1")
		require.NoError(t, s.Update(ctx, "Posts", id, patch))

		item, _ = getItem(t, s, "Posts", id)
		assert.Equal(t, 0, item.Upvotes)
		assert.Empty(t, item.Upvoters)
		assert.Equal(t, []string{"c2"}, item.Comments)
	})

	t.Run("map keys with reserved characters", func(t *testing.T) {
		s := newStore(t)
		id := createItem(t, s, "Posts", testItem{Username: "alice"})

		require.NoError(t, s.Update(ctx, "Posts", id, NewPatch().SetKey("upvoters", "j.doe$1%", true)))

		item, _ := getItem(t, s, "Posts", id)
		assert.True(t, item.Upvoters["j.doe$1%"])
	})

	t.Run("conditional update", func(t *testing.T) {
		s := newStore(t)
		id := createItem(t, s, "Posts", testItem{Username: "alice"})

		require.NoError(t, s.Update(ctx, "Posts", id, NewPatch().Increment("upvotes", 1), IfVersion(1)))

		err := s.Update(ctx, "Posts", id, NewPatch().Increment("upvotes", 1), IfVersion(1))
		assert.ErrorIs(t, err, ErrVersionConflict)

		item, version := getItem(t, s, "Posts", id)
		assert.Equal(t, 1, item.Upvotes)
		assert.Equal(t, int64(2), version)
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		id := createItem(t, s, "Posts", testItem{Username: "alice"})

		require.NoError(t, s.Delete(ctx, "Posts", id))
		_, err := s.Get(ctx, "Posts", id)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, "Posts", id), ErrNotFound)

		docs, err := s.List(ctx, "Posts")
		require.NoError(t, err)
		assert.Empty(t, docs)
	})

	t.Run("list and find", func(t *testing.T) {
		s := newStore(t)
		a := createItem(t, s, "Posts", testItem{Username: "alice"})
		b := createItem(t, s, "Posts", testItem{Username: "bob"})
		c := createItem(t, s, "Posts", testItem{Username: "alice"})
		createItem(t, s, "Comments", testItem{Username: "alice"})

		docs, err := s.List(ctx, "Posts")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{a, b, c}, docIDs(docs))

		docs, err = s.FindEqual(ctx, "Posts", "username", "alice")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{a, c}, docIDs(docs))

		docs, err = s.FindEqual(ctx, "Posts", "username", "nobody")
		require.NoError(t, err)
		assert.Empty(t, docs)

		docs, err = s.FindIn(ctx, "Posts", []string{c, "missing", a, c})
		require.NoError(t, err)
		assert.Equal(t, []string{c, a}, docIDs(docs))

		docs, err = s.FindIn(ctx, "Posts", nil)
		require.NoError(t, err)
		assert.Empty(t, docs)
	})

	t.Run("ping", func(t *testing.T) {
		s := newStore(t)
		assert.NoError(t, s.Ping(ctx))
	})
}

func docIDs(docs []*Document) []string {
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids
}

func TestOrderByIDs(t *testing.T) {
	docs := []*Document{{ID: "a"}, {ID: "b"}, {ID: "c"}}

	got := orderByIDs(docs, []string{"c", "x", "a"})
	assert.Equal(t, []string{"c", "a"}, docIDs(got))
}

func TestUniqueIDs(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, uniqueIDs([]string{"a", "", "b", "a"}))
	assert.Empty(t, uniqueIDs(nil))
}
