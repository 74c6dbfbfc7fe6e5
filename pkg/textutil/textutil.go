// Package textutil prepares email bodies for embedding and previews. Raw HTML
// fed to an embedding model wastes tokens on markup, so bodies are stripped
// down to readable text first.
package textutil

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	stripPolicy = bluemonday.StrictPolicy()

	// bluemonday keeps the text content of elements it removes, which for
	// script/style/head is garbage, so those blocks go first.
	scriptRe = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRe  = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	headRe   = regexp.MustCompile(`(?is)<head[^>]*>.*?</head>`)
)

// CleanHTML reduces an HTML document to plain text: script/style/head blocks
// removed, remaining tags stripped, entities unescaped, whitespace collapsed.
// Plain-text input passes through with only whitespace normalization.
func CleanHTML(s string) string {
	s = scriptRe.ReplaceAllString(s, " ")
	s = styleRe.ReplaceAllString(s, " ")
	s = headRe.ReplaceAllString(s, " ")
	s = stripPolicy.Sanitize(s)
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

// Preview returns the first max characters of the cleaned body, with an
// ellipsis when truncated.
func Preview(body string, max int) string {
	text := CleanHTML(body)
	if len(text) <= max {
		return text
	}
	return text[:max] + "..."
}
