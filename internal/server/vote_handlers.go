package server

import (
	"agora/internal/models"
	"agora/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// votePost handles POST /posts/:postId/{upvote,downvote,removeUpvote,removeDownvote}
// @Summary Vote on a post
// @Tags votes
// @Accept json
// @Produce json
// @Param postId path string true "Post ID"
// @Param request body validation.VoteBody true "username"
// @Success 200 {object} models.Envelope
// @Failure 400 {object} models.Envelope
// @Failure 404 {object} models.Envelope
// @Failure 409 {object} models.Envelope
// @Router /posts/{postId}/upvote [post]
// @Router /posts/{postId}/downvote [post]
// @Router /posts/{postId}/removeUpvote [post]
// @Router /posts/{postId}/removeDownvote [post]
func (s *Server) votePost(d models.VoteDirection, remove bool) fiber.Handler {
	return s.vote(models.ItemPost, "postId", d, remove)
}

// voteComment handles POST /posts/:postId/comments/:commentId/{upvote,downvote,removeUpvote,removeDownvote}
// @Summary Vote on a comment
// @Tags votes
// @Accept json
// @Produce json
// @Param postId path string true "Post ID"
// @Param commentId path string true "Comment ID"
// @Param request body validation.VoteBody true "username"
// @Success 200 {object} models.Envelope
// @Failure 400 {object} models.Envelope
// @Failure 404 {object} models.Envelope
// @Failure 409 {object} models.Envelope
// @Router /posts/{postId}/comments/{commentId}/upvote [post]
// @Router /posts/{postId}/comments/{commentId}/downvote [post]
// @Router /posts/{postId}/comments/{commentId}/removeUpvote [post]
// @Router /posts/{postId}/comments/{commentId}/removeDownvote [post]
func (s *Server) voteComment(d models.VoteDirection, remove bool) fiber.Handler {
	return s.vote(models.ItemComment, "commentId", d, remove)
}

func (s *Server) vote(kind models.ItemKind, param string, d models.VoteDirection, remove bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req validation.VoteBody
		if err := validation.ParseBody(c, &req); err != nil {
			return respondError(c, err)
		}

		ctx := c.UserContext()
		id := c.Params(param)
		username := validation.Value(req.Username)

		apply := s.votes.Apply
		if remove {
			apply = s.votes.Remove
		}
		result, err := apply(ctx, kind, id, username, d)
		if err != nil {
			return respondError(c, err)
		}
		return models.RespondWithSuccess(c, fiber.StatusOK, result.Message, nil)
	}
}
