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

func TestCommentRepository_CreateGetUpdateDelete(t *testing.T) {
	repo := NewCommentRepository(newTestStore(t), "Comments")
	ctx := context.Background()
	now := time.Now().UTC()

	comment := &models.Comment{Username: "bob", Content: "nice", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repo.Create(ctx, comment))
	require.NotEmpty(t, comment.ID)

	got, err := repo.GetByID(ctx, comment.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", got.Username)
	assert.Equal(t, "nice", got.Content)

	require.NoError(t, repo.UpdateFields(ctx, comment.ID, map[string]string{FieldContent: "edited"}))
	got, err = repo.GetByID(ctx, comment.ID)
	require.NoError(t, err)
	assert.Equal(t, "edited", got.Content)

	require.NoError(t, repo.Delete(ctx, comment.ID))
	_, err = repo.GetByID(ctx, comment.ID)
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestCommentRepository_FindByIDs(t *testing.T) {
	repo := NewCommentRepository(newTestStore(t), "Comments")
	ctx := context.Background()

	ids := make([]string, 0, 3)
	for _, content := range []string{"one", "two", "three"} {
		c := &models.Comment{Username: "bob", Content: content, CreatedAt: time.Now()}
		require.NoError(t, repo.Create(ctx, c))
		ids = append(ids, c.ID)
	}

	got, err := repo.FindByIDs(ctx, []string{ids[2], "gone", ids[0], ids[1]})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "three", got[0].Content)
	assert.Equal(t, "one", got[1].Content)
	assert.Equal(t, "two", got[2].Content)

	got, err = repo.FindByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}
