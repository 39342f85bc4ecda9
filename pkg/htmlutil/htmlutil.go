// Package htmlutil reduces fetched HTML to the plain text the rest of the
// pipeline works with.
package htmlutil

import (
	"html"
	"regexp"
	"strings"
)

// Title extracts a page title from HTML content, trying <title>, then
// og:title, then the first <h1>.
func Title(htmlContent string) string {
	if matches := titlePattern.FindStringSubmatch(htmlContent); len(matches) > 1 {
		return strings.TrimSpace(html.UnescapeString(matches[1]))
	}
	if matches := ogTitlePattern.FindStringSubmatch(htmlContent); len(matches) > 1 {
		return strings.TrimSpace(html.UnescapeString(matches[1]))
	}
	if matches := firstH1Pattern.FindStringSubmatch(htmlContent); len(matches) > 1 {
		return strings.TrimSpace(html.UnescapeString(matches[1]))
	}
	return ""
}

// Description extracts the meta description, falling back to og:description.
func Description(htmlContent string) string {
	if matches := descPattern.FindStringSubmatch(htmlContent); len(matches) > 1 {
		return strings.TrimSpace(html.UnescapeString(matches[1]))
	}
	if matches := ogDescPattern.FindStringSubmatch(htmlContent); len(matches) > 1 {
		return strings.TrimSpace(html.UnescapeString(matches[1]))
	}
	return ""
}

// ToText strips an HTML document down to readable text. Script and style
// bodies are dropped, block-level tags become newlines, remaining tags are
// removed, entities are unescaped and whitespace is collapsed. Good enough
// for building excerpts; not a sanitizer.
func ToText(htmlContent string) string {
	if htmlContent == "" {
		return ""
	}

	content := scriptPattern.ReplaceAllString(htmlContent, "")
	content = stylePattern.ReplaceAllString(content, "")
	content = blockClosePattern.ReplaceAllString(content, "\n")
	content = brPattern.ReplaceAllString(content, "\n")
	content = tagPattern.ReplaceAllString(content, " ")
	content = html.UnescapeString(content)

	// Collapse runs of spaces and blank lines left behind by removed markup.
	content = spaceRunPattern.ReplaceAllString(content, " ")
	content = multiNewlinePattern.ReplaceAllString(content, "\n")

	lines := strings.Split(content, "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// LooksLikeHTML sniffs whether a response body is an HTML document. Sources
// are fetched through a layer that only hands back bytes, so detection works
// on content rather than headers.
func LooksLikeHTML(body string) bool {
	head := strings.ToLower(body)
	if len(head) > 1024 {
		head = head[:1024]
	}
	return strings.Contains(head, "<!doctype html") ||
		strings.Contains(head, "<html") ||
		strings.Contains(head, "<head") ||
		strings.Contains(head, "<body")
}

var (
	titlePattern        = regexp.MustCompile(`(?i)<title[^>]*>([^<]+)</title>`)
	ogTitlePattern      = regexp.MustCompile(`(?i)<meta[^>]+property=["']og:title["'][^>]+content=["']([^"']+)["']`)
	firstH1Pattern      = regexp.MustCompile(`(?i)<h1[^>]*>([^<]+)</h1>`)
	descPattern         = regexp.MustCompile(`(?i)<meta[^>]+name=["']description["'][^>]+content=["']([^"']+)["']`)
	ogDescPattern       = regexp.MustCompile(`(?i)<meta[^>]+property=["']og:description["'][^>]+content=["']([^"']+)["']`)
	scriptPattern       = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	stylePattern        = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	blockClosePattern   = regexp.MustCompile(`(?i)</(?:p|div|h[1-6]|li|tr|section|article|header|footer)>`)
	brPattern           = regexp.MustCompile(`(?i)<br\s*/?>`)
	tagPattern          = regexp.MustCompile(`<[^>]+>`)
	spaceRunPattern     = regexp.MustCompile(`[ \t]{2,}`)
	multiNewlinePattern = regexp.MustCompile(`\n{2,}`)
)
