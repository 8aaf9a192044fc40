// Command main runs the demo data seeder for Agora.
package main

import (
	"context"
	"flag"
	"log"

	"agora/internal/bootstrap"
	"agora/internal/config"
	"agora/internal/seed"
)

func main() {
	defaults := seed.DefaultOptions()

	// Parse command line flags
	numUsers := flag.Int("users", defaults.NumUsers, "Number of distinct usernames to author and vote")
	numPosts := flag.Int("posts", defaults.NumPosts, "Number of posts to create")
	maxComments := flag.Int("comments", defaults.MaxCommentsPerPost, "Maximum comments per post")
	voteProb := flag.Float64("votes", defaults.VoteProbability, "Chance that a user votes on a given post")
	seedValue := flag.Int64("seed", 0, "Random seed, 0 for a random run")
	shouldClean := flag.Bool("clean", true, "Delete existing posts and comments before seeding")
	flag.Parse()

	log.Println("🌱 Agora Seeder")
	log.Println("===============")
	log.Printf("Target: %d users, %d posts, clean=%v\n", *numUsers, *numPosts, *shouldClean)

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()
	rt, err := bootstrap.InitRuntime(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.StoreDriver, err)
	}
	defer func() {
		if err := rt.Close(); err != nil {
			log.Printf("Failed to close runtime: %v", err)
		}
	}()

	if *shouldClean {
		removed, err := seed.Clear(ctx, rt.Store, cfg.PostsCollection, cfg.CommentsCollection)
		if err != nil {
			log.Fatalf("❌ Cleanup failed: %v", err)
		}
		log.Printf("🧹 Removed %d documents\n", removed)
	}

	sum, err := seed.NewSeeder(cfg, rt.Store).Run(ctx, seed.Options{
		NumUsers:           *numUsers,
		NumPosts:           *numPosts,
		MaxCommentsPerPost: *maxComments,
		VoteProbability:    *voteProb,
		Seed:               *seedValue,
	})
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Printf("✨ All done! %d posts, %d comments, %d votes\n", sum.Posts, sum.Comments, sum.Votes)
}
