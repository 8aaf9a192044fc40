// Command migrate runs schema operations for the SQL document store.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"

	"agora/internal/config"
	"agora/internal/database"
	"agora/internal/docstore"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func usage() error {
	return fmt.Errorf("usage: go run ./cmd/migrate/main.go <up|status>")
}

func run() error {
	flag.Parse()
	if flag.NArg() < 1 {
		return usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.StoreDriver != config.StorePostgres && cfg.StoreDriver != config.StoreSQLite {
		return fmt.Errorf("store driver %q has no schema to migrate", cfg.StoreDriver)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	store := docstore.NewSQLStore(db)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	cmd := strings.ToLower(strings.TrimSpace(flag.Arg(0)))
	switch cmd {
	case "up":
		if err := store.Migrate(ctx); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		log.Println("documents table migrated")
	case "status":
		if !store.Migrated(ctx) {
			log.Printf("driver=%s migrated=false", cfg.StoreDriver)
			return nil
		}
		for _, collection := range []string{cfg.PostsCollection, cfg.CommentsCollection} {
			docs, err := store.List(ctx, collection)
			if err != nil {
				return fmt.Errorf("count %s: %w", collection, err)
			}
			log.Printf("driver=%s migrated=true collection=%s documents=%d", cfg.StoreDriver, collection, len(docs))
		}
	default:
		return usage()
	}

	return nil
}
