package scraper

import (
	"net/url"
	"strings"
)

// NormalizeURLs trims each input string, drops anything that does not
// parse as an absolute URL (scheme plus host), and deduplicates by
// exact post-trim equality. First occurrence wins; invalid entries are
// dropped silently, never reported.
func NormalizeURLs(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if !isAbsoluteURL(s) {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func isAbsoluteURL(s string) bool {
	if s == "" {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}

// pageOrigin returns scheme://host for a page URL, the base used by
// resolveCandidate.
func pageOrigin(pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", err
	}
	return u.Scheme + "://" + u.Host, nil
}

// resolveCandidate turns a raw attribute value into an absolute image
// URL. A value with an explicit http prefix is used verbatim; anything
// else is treated as path-relative to the page origin, inserting a
// separating slash only when the candidate lacks a leading one.
//
// This is intentionally not general relative-URL resolution: "../",
// query-relative forms, and protocol-relative "//host" values are not
// handled. Target pages may depend on this exact behavior, so keep it.
func resolveCandidate(origin, candidate string) string {
	if strings.HasPrefix(candidate, "http") {
		return candidate
	}
	if strings.HasPrefix(candidate, "/") {
		return origin + candidate
	}
	return origin + "/" + candidate
}
