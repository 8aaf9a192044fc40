package server

import (
	"agora/internal/models"
	"agora/internal/service"
	"agora/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// CreateComment handles POST /posts/:postId/comments
// @Summary Comment on a post
// @Tags comments
// @Accept json
// @Produce json
// @Param postId path string true "Post ID"
// @Param request body validation.CommentBody true "username and content"
// @Success 201 {object} models.Envelope{data=object{id=string}}
// @Failure 400 {object} models.Envelope
// @Failure 404 {object} models.Envelope
// @Router /posts/{postId}/comments [post]
func (s *Server) CreateComment(c *fiber.Ctx) error {
	var req validation.CommentBody
	if err := validation.ParseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	id, err := s.commentService.CreateComment(c.UserContext(), service.CreateCommentInput{
		PostID:   c.Params("postId"),
		Username: validation.Value(req.Username),
		Content:  validation.Value(req.Content),
	})
	if err != nil {
		return respondError(c, err)
	}
	return models.RespondWithSuccess(c, fiber.StatusCreated, "Comment created successfully", fiber.Map{"id": id})
}

// UpdateComment handles PUT /posts/:postId/comments/:commentId
// @Summary Update comment
// @Tags comments
// @Accept json
// @Produce json
// @Param postId path string true "Post ID"
// @Param commentId path string true "Comment ID"
// @Param request body validation.CommentBody true "content"
// @Success 200 {object} models.Envelope
// @Failure 400 {object} models.Envelope
// @Failure 404 {object} models.Envelope
// @Router /posts/{postId}/comments/{commentId} [put]
func (s *Server) UpdateComment(c *fiber.Ctx) error {
	var req validation.CommentBody
	if err := validation.ParseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	err := s.commentService.UpdateComment(c.UserContext(), service.UpdateCommentInput{
		PostID:    c.Params("postId"),
		CommentID: c.Params("commentId"),
		Content:   req.Content,
	})
	if err != nil {
		return respondError(c, err)
	}
	return models.RespondWithSuccess(c, fiber.StatusOK, "Comment updated successfully", nil)
}

// DeleteComment handles DELETE /posts/:postId/comments/:commentId
// @Summary Delete comment
// @Tags comments
// @Produce json
// @Param postId path string true "Post ID"
// @Param commentId path string true "Comment ID"
// @Success 200 {object} models.Envelope
// @Failure 404 {object} models.Envelope
// @Router /posts/{postId}/comments/{commentId} [delete]
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	if err := s.commentService.DeleteComment(c.UserContext(), c.Params("postId"), c.Params("commentId")); err != nil {
		return respondError(c, err)
	}
	return models.RespondWithSuccess(c, fiber.StatusOK, "Comment deleted successfully", nil)
}
