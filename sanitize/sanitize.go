package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var policy = bluemonday.StrictPolicy()

// Text strips all markup from input and returns plain trimmed text. Every
// free-text field is run through here before it is hashed or stored.
func Text(input string) string {
	cleaned := policy.Sanitize(input)
	// bluemonday escapes entities left in the remaining text.
	return strings.TrimSpace(html.UnescapeString(cleaned))
}
