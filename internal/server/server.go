// Package server contains the HTTP handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	_ "agora/docs" // swagger docs
	"agora/internal/bootstrap"
	"agora/internal/config"
	"agora/internal/docstore"
	"agora/internal/middleware"
	"agora/internal/models"
	"agora/internal/repository"
	"agora/internal/service"
	"agora/internal/validation"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	store          docstore.Store
	redis          *redis.Client
	runtime        *bootstrap.Runtime
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	postRepo       repository.PostRepository
	commentRepo    repository.CommentRepository
	postService    *service.PostService
	commentService *service.CommentService
	votes          *service.VoteLedger
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	rt, err := bootstrap.InitRuntime(context.Background(), cfg)
	if err != nil {
		return nil, err
	}
	s, err := NewServerWithDeps(cfg, rt.Store, rt.Redis)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	s.runtime = rt
	return s, nil
}

// NewServerWithDeps creates a Server using an already-opened document store. redisClient
// backs the per-route rate limits and may be nil.
func NewServerWithDeps(cfg *config.Config, store docstore.Store, redisClient *redis.Client) (*Server, error) {
	if store == nil {
		return nil, fmt.Errorf("document store is required")
	}

	postRepo := repository.NewPostRepository(store, cfg.PostsCollection)
	commentRepo := repository.NewCommentRepository(store, cfg.CommentsCollection)
	sanitizer := validation.NewSanitizer(cfg.SanitizeContent)
	fanout := service.NewCommentFanout(commentRepo, cfg.FanoutConcurrency)

	server := &Server{
		config:         cfg,
		store:          store,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("agora-api"),
		postRepo:       postRepo,
		commentRepo:    commentRepo,
	}
	server.postService = service.NewPostService(postRepo, commentRepo, fanout, service.PostServiceOptions{
		Sanitizer:     sanitizer,
		CascadeDelete: cfg.CascadeDelete,
	})
	server.commentService = service.NewCommentService(commentRepo, postRepo, sanitizer)
	server.votes = service.NewVoteLedger(postRepo, commentRepo, service.VoteLedgerConfigFrom(cfg))

	return server, nil
}

// NewApp builds the Fiber app with the error handler that keeps every failure in the
// response envelope.
func NewApp() *fiber.App {
	return fiber.New(fiber.Config{
		AppName:   "Agora API",
		BodyLimit: 1 * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			status := fiber.StatusInternalServerError
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
			if status >= fiber.StatusInternalServerError {
				middleware.Logger.ErrorContext(c.UserContext(), "unhandled error",
					slog.String("path", c.Path()), slog.String("error", err.Error()))
			}
			return models.RespondWithError(c, status, err)
		},
	})
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	app.Use(middleware.TracingMiddleware())

	// Context Middleware to propagate Request ID and Trace ID
	app.Use(middleware.ContextMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS middleware should run before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept",
		MaxAge:       86400, // 24 hours
	}))

	maxRequests := s.config.RateLimit
	if maxRequests <= 0 {
		maxRequests = 100
	}
	app.Use(limiter.New(limiter.Config{
		Max:        maxRequests,
		Expiration: 1 * time.Minute,
		// Never rate-limit preflight requests; they should be handled by CORS.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(models.Envelope{
				StatusCode: fiber.StatusTooManyRequests,
				Message:    "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	posts := app.Group("/posts")
	posts.Get("/", s.GetPosts)
	posts.Post("/", s.writeLimit(10, "create_post"), s.CreatePost)

	// Define specific /user routes BEFORE generic /:postId routes
	posts.Get("/user/:username/votes", s.GetVotedPosts)
	posts.Get("/user/:username", s.GetUserPosts)

	posts.Get("/:postId", s.GetPost)
	posts.Put("/:postId", s.UpdatePost)
	posts.Delete("/:postId", s.DeletePost)

	posts.Post("/:postId/upvote", s.votePost(models.VoteUp, false))
	posts.Post("/:postId/downvote", s.votePost(models.VoteDown, false))
	posts.Post("/:postId/removeUpvote", s.votePost(models.VoteUp, true))
	posts.Post("/:postId/removeDownvote", s.votePost(models.VoteDown, true))

	comments := posts.Group("/:postId/comments")
	comments.Post("/", s.writeLimit(30, "create_comment"), s.CreateComment)
	comments.Put("/:commentId", s.UpdateComment)
	comments.Delete("/:commentId", s.DeleteComment)

	comments.Post("/:commentId/upvote", s.voteComment(models.VoteUp, false))
	comments.Post("/:commentId/downvote", s.voteComment(models.VoteDown, false))
	comments.Post("/:commentId/removeUpvote", s.voteComment(models.VoteUp, true))
	comments.Post("/:commentId/removeDownvote", s.voteComment(models.VoteDown, true))
}

// writeLimit throttles content creation per client IP, limit requests a minute.
func (s *Server) writeLimit(limit int, name string) fiber.Handler {
	if s.config.RateLimitFailClosed {
		return middleware.RateLimitWithPolicy(s.redis, s.config.Env, limit, time.Minute, middleware.FailClosed, name)
	}
	return middleware.RateLimit(s.redis, s.config.Env, limit, time.Minute, name)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	storeStatus := "healthy"
	if err := s.store.Ping(ctx); err != nil {
		storeStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		// Redis only backs rate limiting when the store is elsewhere; its absence is tolerated.
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if storeStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"store": storeStatus,
			"redis": redisStatus,
		},
		"time": time.Now(),
	})
}

// Start starts the server
func (s *Server) Start() error {
	app := NewApp()
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)

	middleware.Logger.Info("server starting",
		slog.String("port", s.config.Port),
		slog.String("store", s.config.StoreDriver),
		slog.String("vote_consistency", s.config.VoteConsistency))
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Shutdown the HTTP server first so in-flight requests finish against an open store
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if s.runtime != nil {
		if err := s.runtime.Close(); err != nil {
			middleware.Logger.Error("error closing runtime", slog.String("error", err.Error()))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
