package server

import (
	"agora/internal/models"
	"agora/internal/service"
	"agora/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// GetPosts handles GET /posts
// @Summary List posts
// @Description All posts, newest first, each with its comments.
// @Tags posts
// @Produce json
// @Success 200 {object} models.Envelope{data=[]models.Post}
// @Failure 500 {object} models.Envelope
// @Router /posts [get]
func (s *Server) GetPosts(c *fiber.Ctx) error {
	posts, err := s.postService.ListPosts(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return models.RespondWithSuccess(c, fiber.StatusOK, "Posts retrieved successfully", posts)
}

// GetPost handles GET /posts/:postId
// @Summary Get post
// @Tags posts
// @Produce json
// @Param postId path string true "Post ID"
// @Success 200 {object} models.Envelope{data=models.Post}
// @Failure 404 {object} models.Envelope
// @Router /posts/{postId} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	post, err := s.postService.GetPost(c.UserContext(), c.Params("postId"))
	if err != nil {
		return respondError(c, err)
	}
	return models.RespondWithSuccess(c, fiber.StatusOK, "Post retrieved successfully", post)
}

// GetUserPosts handles GET /posts/user/:username
// @Summary List posts by author
// @Tags posts
// @Produce json
// @Param username path string true "Author"
// @Success 200 {object} models.Envelope{data=[]models.Post}
// @Failure 404 {object} models.Envelope
// @Router /posts/user/{username} [get]
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	posts, err := s.postService.ListByUsername(c.UserContext(), c.Params("username"))
	if err != nil {
		return respondError(c, err)
	}
	return models.RespondWithSuccess(c, fiber.StatusOK, "Posts retrieved successfully", posts)
}

// GetVotedPosts handles GET /posts/user/:username/votes
// @Summary List posts a user voted on
// @Tags posts
// @Produce json
// @Param username path string true "Voter"
// @Success 200 {object} models.Envelope{data=[]models.Post}
// @Failure 404 {object} models.Envelope
// @Router /posts/user/{username}/votes [get]
func (s *Server) GetVotedPosts(c *fiber.Ctx) error {
	posts, err := s.postService.ListVotedBy(c.UserContext(), c.Params("username"))
	if err != nil {
		return respondError(c, err)
	}
	return models.RespondWithSuccess(c, fiber.StatusOK, "User voted posts retrieved successfully", posts)
}

// CreatePost handles POST /posts
// @Summary Create post
// @Tags posts
// @Accept json
// @Produce json
// @Param request body validation.PostBody true "username, title and content"
// @Success 201 {object} models.Envelope{data=object{id=string}}
// @Failure 400 {object} models.Envelope
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req validation.PostBody
	if err := validation.ParseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	id, err := s.postService.CreatePost(c.UserContext(), service.CreatePostInput{
		Username: validation.Value(req.Username),
		Title:    validation.Value(req.Title),
		Content:  validation.Value(req.Content),
	})
	if err != nil {
		return respondError(c, err)
	}
	return models.RespondWithSuccess(c, fiber.StatusCreated, "Post created successfully", fiber.Map{"id": id})
}

// UpdatePost handles PUT /posts/:postId
// @Summary Update post
// @Description Only title and content can change; other fields are ignored.
// @Tags posts
// @Accept json
// @Produce json
// @Param postId path string true "Post ID"
// @Param request body validation.PostBody true "title and/or content"
// @Success 200 {object} models.Envelope
// @Failure 400 {object} models.Envelope
// @Failure 404 {object} models.Envelope
// @Router /posts/{postId} [put]
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	var req validation.PostBody
	if err := validation.ParseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	err := s.postService.UpdatePost(c.UserContext(), service.UpdatePostInput{
		PostID:  c.Params("postId"),
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		return respondError(c, err)
	}
	return models.RespondWithSuccess(c, fiber.StatusOK, "Post updated successfully", nil)
}

// DeletePost handles DELETE /posts/:postId
// @Summary Delete post
// @Tags posts
// @Produce json
// @Param postId path string true "Post ID"
// @Success 200 {object} models.Envelope
// @Failure 404 {object} models.Envelope
// @Router /posts/{postId} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	if err := s.postService.DeletePost(c.UserContext(), c.Params("postId")); err != nil {
		return respondError(c, err)
	}
	return models.RespondWithSuccess(c, fiber.StatusOK, "Post deleted successfully", nil)
}
