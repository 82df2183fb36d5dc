package services

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strictPolicy = bluemonday.StrictPolicy()

// maxSanitizePasses bounds how deeply nested entity escaping is unwrapped.
const maxSanitizePasses = 4

// sanitizeText strips markup from user-entered text and trims it. Entities
// are decoded so "R&D" stays "R&D", and the decoded text is sanitized again
// until it stops changing, so escaped markup cannot come back as live tags.
// Input that never settles is returned in its escaped form.
func sanitizeText(s string) string {
	out := s
	for i := 0; i < maxSanitizePasses; i++ {
		next := html.UnescapeString(strictPolicy.Sanitize(out))
		if next == out {
			return strings.TrimSpace(out)
		}
		out = next
	}
	return strings.TrimSpace(strictPolicy.Sanitize(out))
}
