// internal/app/system/sanitize/sanitize.go

// Package sanitize cleans free-text fields arriving from the public
// kiosk form before they are stored. Kiosk input is rendered verbatim in
// the admin dashboard, so markup is stripped entirely rather than
// filtered.
package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// Text strips all HTML from s, decodes entities the policy escaped, and
// collapses surrounding whitespace. Used for comments, customer names,
// contacts, and bill ids on review submission.
func Text(s string) string {
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}
