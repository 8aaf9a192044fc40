package repository

import (
	"context"
	"fmt"

	"agora/internal/docstore"
	"agora/internal/models"
	"agora/internal/observability"
)

// VoteRepository is the storage surface of the vote ledger for one item kind.
type VoteRepository interface {
	// GetVoters reads the vote state of an item and the version it was read at.
	GetVoters(ctx context.Context, id string) (*models.Voters, int64, error)
	// PatchVotes applies a vote mutation to an item.
	PatchVotes(ctx context.Context, id string, patch *docstore.Patch, opts ...docstore.UpdateOption) error
}

type voteStore struct {
	store      docstore.Store
	collection string
	log        *observability.RepoLogger
}

func (r *voteStore) GetVoters(ctx context.Context, id string) (*models.Voters, int64, error) {
	doc, err := r.store.Get(ctx, r.collection, id)
	if err != nil {
		return nil, 0, fmt.Errorf("get voters of %s: %w", id, err)
	}
	voters, err := votersFromDocument(doc)
	if err != nil {
		r.log.LogError(ctx, err, "get_voters")
		return nil, 0, err
	}
	return voters, doc.Version, nil
}

func (r *voteStore) PatchVotes(ctx context.Context, id string, patch *docstore.Patch, opts ...docstore.UpdateOption) error {
	if err := r.store.Update(ctx, r.collection, id, patch, opts...); err != nil {
		return fmt.Errorf("patch votes of %s: %w", id, err)
	}
	r.log.LogUpdate(ctx, map[string]any{"id": id, "ops": patch.Len()})
	return nil
}
