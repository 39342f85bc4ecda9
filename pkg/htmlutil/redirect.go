package htmlutil

import (
	"regexp"
	"strings"
)

// RedirectTarget extracts the destination of a client-side redirect from an
// HTML body: a meta refresh tag or a JavaScript location assignment. Search
// portals answer with these interstitials instead of HTTP redirects; the
// page behind them is where the content is. Returns "" when the page does
// not redirect.
func RedirectTarget(htmlContent string) string {
	if m := metaRefreshPattern.FindStringSubmatch(htmlContent); len(m) > 1 {
		return cleanTarget(m[1])
	}
	for _, pattern := range jsRedirectPatterns {
		m := pattern.FindStringSubmatch(htmlContent)
		if len(m) < 2 {
			continue
		}
		target := cleanTarget(m[1])
		if target != "" && !strings.HasPrefix(target, "#") && target != "." && target != "./" {
			return target
		}
	}
	return ""
}

func cleanTarget(target string) string {
	target = strings.TrimSpace(target)
	target = strings.TrimSuffix(target, `"`)
	target = strings.TrimSuffix(target, `'`)
	return strings.TrimSuffix(target, `>`)
}

var (
	metaRefreshPattern = regexp.MustCompile(`(?i)<meta[^>]+http-equiv\s*=\s*["']?refresh["']?[^>]+content\s*=\s*["']?\d+\s*;\s*url\s*=\s*["']?([^"'>\s]+)`)

	jsRedirectPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)window\.location(?:\.href)?\s*=\s*["']([^"']+)["']`),
		regexp.MustCompile(`(?i)window\.location\.replace\s*\(\s*["']([^"']+)["']\s*\)`),
		regexp.MustCompile(`(?i)document\.location(?:\.href)?\s*=\s*["']([^"']+)["']`),
	}
)
