// Package seed provides helpers to create demo data for local development. Data goes through
// the same services as API traffic, so seeded items satisfy every vote and comment invariant.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"agora/internal/config"
	"agora/internal/docstore"
	"agora/internal/middleware"
	"agora/internal/models"
	"agora/internal/repository"
	"agora/internal/service"
	"agora/internal/validation"

	"github.com/brianvoe/gofakeit/v6"
)

// Options configuration for the seeder
type Options struct {
	NumUsers           int
	NumPosts           int
	MaxCommentsPerPost int
	// VoteProbability is the chance, per user and item, that the user votes.
	VoteProbability float64
	// Seed makes runs reproducible. Zero picks a random seed.
	Seed int64
}

// DefaultOptions returns a small, varied data set.
func DefaultOptions() Options {
	return Options{
		NumUsers:           20,
		NumPosts:           50,
		MaxCommentsPerPost: 6,
		VoteProbability:    0.3,
	}
}

// Summary counts what a run created.
type Summary struct {
	Posts    int
	Comments int
	Votes    int
}

// Seeder writes fake posts, comments and votes.
type Seeder struct {
	posts    *service.PostService
	comments *service.CommentService
	votes    *service.VoteLedger
}

// NewSeeder builds the services over store using the collection names and vote settings of cfg.
func NewSeeder(cfg *config.Config, store docstore.Store) *Seeder {
	postRepo := repository.NewPostRepository(store, cfg.PostsCollection)
	commentRepo := repository.NewCommentRepository(store, cfg.CommentsCollection)
	fanout := service.NewCommentFanout(commentRepo, cfg.FanoutConcurrency)

	return &Seeder{
		posts:    service.NewPostService(postRepo, commentRepo, fanout, service.PostServiceOptions{}),
		comments: service.NewCommentService(commentRepo, postRepo, validation.NewSanitizer(false)),
		votes:    service.NewVoteLedger(postRepo, commentRepo, service.VoteLedgerConfigFrom(cfg)),
	}
}

// Run creates opts.NumPosts posts authored by a pool of fake users, comments on them and
// casts random votes on both.
func (s *Seeder) Run(ctx context.Context, opts Options) (Summary, error) {
	var sum Summary
	if opts.NumUsers < 1 {
		return sum, fmt.Errorf("seed: need at least one user, got %d", opts.NumUsers)
	}
	faker := gofakeit.New(opts.Seed)
	users := Usernames(faker, opts.NumUsers)

	for i := 0; i < opts.NumPosts; i++ {
		author := users[faker.IntRange(0, len(users)-1)]
		postID, err := s.posts.CreatePost(ctx, service.CreatePostInput{
			Username: author,
			Title:    faker.Sentence(faker.IntRange(3, 8)),
			Content:  faker.Paragraph(1, 3, 12, "\n"),
		})
		if err != nil {
			return sum, fmt.Errorf("seed post %d: %w", i, err)
		}
		sum.Posts++

		n, err := s.castVotes(ctx, faker, users, models.ItemPost, postID, opts.VoteProbability)
		sum.Votes += n
		if err != nil {
			return sum, err
		}

		for j := 0; j < faker.IntRange(0, max(opts.MaxCommentsPerPost, 0)); j++ {
			commentID, err := s.comments.CreateComment(ctx, service.CreateCommentInput{
				PostID:   postID,
				Username: users[faker.IntRange(0, len(users)-1)],
				Content:  faker.Sentence(faker.IntRange(4, 16)),
			})
			if err != nil {
				return sum, fmt.Errorf("seed comment on %s: %w", postID, err)
			}
			sum.Comments++

			n, err := s.castVotes(ctx, faker, users, models.ItemComment, commentID, opts.VoteProbability/2)
			sum.Votes += n
			if err != nil {
				return sum, err
			}
		}
	}

	middleware.Logger.InfoContext(ctx, "seed complete",
		slog.Int("posts", sum.Posts),
		slog.Int("comments", sum.Comments),
		slog.Int("votes", sum.Votes))
	return sum, nil
}

func (s *Seeder) castVotes(ctx context.Context, faker *gofakeit.Faker, users []string, kind models.ItemKind, id string, p float64) (int, error) {
	cast := 0
	for _, u := range users {
		if faker.Float64() >= p {
			continue
		}
		d := models.VoteUp
		if faker.Float64() < 0.3 {
			d = models.VoteDown
		}
		if _, err := s.votes.Apply(ctx, kind, id, u, d); err != nil {
			return cast, fmt.Errorf("seed %s vote on %s: %w", kind, id, err)
		}
		cast++
	}
	return cast, nil
}

// Usernames returns n distinct fake usernames.
func Usernames(faker *gofakeit.Faker, n int) []string {
	seen := make(map[string]bool, n)
	out := make([]string, 0, n)
	for len(out) < n {
		u := faker.Username()
		if seen[u] {
			u = fmt.Sprintf("%s%d", u, len(out))
			if seen[u] {
				continue
			}
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

// Clear deletes every document of the given collections and returns how many were removed.
func Clear(ctx context.Context, store docstore.Store, collections ...string) (int, error) {
	removed := 0
	for _, collection := range collections {
		docs, err := store.List(ctx, collection)
		if err != nil {
			return removed, fmt.Errorf("list %s: %w", collection, err)
		}
		for _, doc := range docs {
			err := store.Delete(ctx, collection, doc.ID)
			if err != nil && !errors.Is(err, docstore.ErrNotFound) {
				return removed, fmt.Errorf("delete %s/%s: %w", collection, doc.ID, err)
			}
			removed++
		}
	}
	return removed, nil
}
