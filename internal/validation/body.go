package validation

import (
	"encoding/json"
	"errors"
	"fmt"

	"agora/internal/models"

	"github.com/gofiber/fiber/v2"
)

// PostBody is the JSON body of post create and update requests.
type PostBody struct {
	Username *string `json:"username"`
	Title    *string `json:"title"`
	Content  *string `json:"content"`
}

// CommentBody is the JSON body of comment create and update requests.
type CommentBody struct {
	Username *string `json:"username"`
	Content  *string `json:"content"`
}

// VoteBody is the JSON body of vote requests.
type VoteBody struct {
	Username *string `json:"username"`
}

// Value dereferences an optional field.
func Value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ParseBody decodes the JSON request body into out. An empty body decodes as {} so that
// missing fields are reported by the field checks. Unknown fields are ignored.
func ParseBody(c *fiber.Ctx, out any) error {
	body := c.Body()
	if len(body) == 0 {
		return nil
	}

	if err := json.Unmarshal(body, out); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return models.NewValidationError(fmt.Sprintf("%s must be a string", typeErr.Field))
		}
		return models.NewValidationError("Invalid request body")
	}
	return nil
}
