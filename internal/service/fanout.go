package service

import (
	"context"

	"agora/internal/models"
	"agora/internal/observability"
	"agora/internal/repository"

	"golang.org/x/sync/errgroup"
)

// CommentFanout resolves a post's comment ids into comments with one batched read per post.
type CommentFanout struct {
	comments    repository.CommentRepository
	concurrency int
}

// NewCommentFanout creates a fan-out reader. concurrency bounds the posts resolved at once
// by Attach.
func NewCommentFanout(comments repository.CommentRepository, concurrency int) *CommentFanout {
	if concurrency < 1 {
		concurrency = 1
	}
	return &CommentFanout{comments: comments, concurrency: concurrency}
}

// Load returns the comments for ids in the order of ids. Ids that no longer resolve are
// skipped and repeated ids are returned once. An empty input makes no store call.
func (f *CommentFanout) Load(ctx context.Context, ids []string) ([]*models.Comment, error) {
	ids = dedupeIDs(ids)
	observability.FanoutBatchSize.Observe(float64(len(ids)))
	if len(ids) == 0 {
		return []*models.Comment{}, nil
	}
	return f.comments.FindByIDs(ctx, ids)
}

// Attach fills Comments on every post, resolving posts concurrently.
func (f *CommentFanout) Attach(ctx context.Context, posts ...*models.Post) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for _, p := range posts {
		g.Go(func() error {
			comments, err := f.Load(ctx, p.CommentIDs)
			if err != nil {
				return err
			}
			p.Comments = comments
			return nil
		})
	}
	return g.Wait()
}

func dedupeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
