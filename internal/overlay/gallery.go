package overlay

import (
	"net/url"
	"strings"
)

// NormalizeGallery keeps absolute http(s) URLs, trimmed and deduplicated, in
// their original order.
func NormalizeGallery(urls []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(urls))
	for _, raw := range urls {
		raw = strings.TrimSpace(raw)
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			continue
		}
		if _, ok := seen[raw]; ok {
			continue
		}
		seen[raw] = struct{}{}
		out = append(out, raw)
	}
	return out
}
