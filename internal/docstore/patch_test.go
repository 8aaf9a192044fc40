package docstore

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatch_Apply(t *testing.T) {
	tests := []struct {
		name  string
		data  map[string]any
		patch *Patch
		want  map[string]any
	}{
		{
			name:  "set overwrites",
			data:  map[string]any{"title": "a", "content": "b"},
			patch: NewPatch().Set("title", "z"),
			want:  map[string]any{"title": "z", "content": "b"},
		},
		{
			name:  "increment missing field starts at zero",
			data:  map[string]any{},
			patch: NewPatch().Increment("upvotes", 1),
			want:  map[string]any{"upvotes": int64(1)},
		},
		{
			name:  "increment json number",
			data:  map[string]any{"upvotes": json.Number("4")},
			patch: NewPatch().Increment("upvotes", -1),
			want:  map[string]any{"upvotes": int64(3)},
		},
		{
			name:  "set key creates map",
			data:  map[string]any{},
			patch: NewPatch().SetKey("upvoters", "bob", true),
			want:  map[string]any{"upvoters": map[string]any{"bob": true}},
		},
		{
			name:  "unset key on absent map is a no-op",
			data:  map[string]any{},
			patch: NewPatch().UnsetKey("upvoters", "bob"),
			want:  map[string]any{},
		},
		{
			name:  "append is idempotent",
			data:  map[string]any{"comments": []any{"c1"}},
			patch: NewPatch().Append("comments", "c1").Append("comments", "c2"),
			want:  map[string]any{"comments": []any{"c1", "c2"}},
		},
		{
			name:  "remove drops every occurrence",
			data:  map[string]any{"comments": []any{"c1", "c2", "c1"}},
			patch: NewPatch().Remove("comments", "c1"),
			want:  map[string]any{"comments": []any{"c2"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.patch.Apply(tt.data))
			assert.Equal(t, tt.want, tt.data)
		})
	}
}

func TestPatch_ApplyTypeErrors(t *testing.T) {
	assert.Error(t, NewPatch().Increment("title", 1).Apply(map[string]any{"title": "x"}))
	assert.Error(t, NewPatch().SetKey("title", "k", true).Apply(map[string]any{"title": "x"}))
	assert.Error(t, NewPatch().Append("title", "c").Apply(map[string]any{"title": "x"}))
}

func TestPatch_Len(t *testing.T) {
	var nilPatch *Patch
	assert.Equal(t, 0, nilPatch.Len())
	assert.Equal(t, 2, NewPatch().Set("a", 1).UnsetKey("b", "k").Len())
}

func TestDocument_Decode(t *testing.T) {
	doc := &Document{ID: "p1", Data: map[string]any{
		"username": "alice",
		"upvotes":  json.Number("2"),
		"upvoters": map[string]any{"bob": true},
	}}

	var item testItem
	require.NoError(t, doc.Decode(&item))
	assert.Equal(t, "alice", item.Username)
	assert.Equal(t, 2, item.Upvotes)
	assert.True(t, item.Upvoters["bob"])
}
