// Package validation holds request body decoding, field checks and content sanitising.
package validation

import (
	"strings"

	"agora/internal/models"
)

// Checker collects field failures so a request reports all of them at once.
type Checker struct {
	failures []string
}

// Required records message when value is empty after trimming and returns the trimmed value.
func (c *Checker) Required(value, message string) string {
	v := strings.TrimSpace(value)
	if v == "" {
		c.failures = append(c.failures, message)
	}
	return v
}

// Err returns a validation AppError joining every failure, or nil.
func (c *Checker) Err() error {
	if len(c.failures) == 0 {
		return nil
	}
	return models.NewValidationError(strings.Join(c.failures, ", "))
}
