package catalog

import "github.com/microcosm-cc/bluemonday"

// Sanitizer cleans content item payloads before they are stored.
type Sanitizer interface {
	Sanitize(raw string) string
}

type payloadSanitizer struct {
	policy *bluemonday.Policy
}

// NewSanitizer allows user generated content markup (headings, lists,
// tables, images, links) and strips scripts, styles and event handlers.
// Links to absolute URLs open in a new tab with rel=noopener.
func NewSanitizer() Sanitizer {
	p := bluemonday.UGCPolicy()
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)
	return &payloadSanitizer{policy: p}
}

func (s *payloadSanitizer) Sanitize(raw string) string {
	return s.policy.Sanitize(raw)
}
