package validation

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer strips unsafe markup from user text before it is stored.
type Sanitizer struct {
	enabled bool
	strict  *bluemonday.Policy
	ugc     *bluemonday.Policy
}

// NewSanitizer returns a sanitizer. A disabled sanitizer only trims whitespace.
func NewSanitizer(enabled bool) *Sanitizer {
	return &Sanitizer{
		enabled: enabled,
		strict:  bluemonday.StrictPolicy(),
		ugc:     bluemonday.UGCPolicy(),
	}
}

// Text removes all markup. Used for usernames and titles.
func (s *Sanitizer) Text(v string) string {
	if s == nil || !s.enabled {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(s.strict.Sanitize(v))
}

// Content keeps safe formatting markup and drops scripts, handlers and the like.
func (s *Sanitizer) Content(v string) string {
	if s == nil || !s.enabled {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(s.ugc.Sanitize(v))
}
