package scraper

import (
	"bytes"
	"fmt"

	"github.com/PuerkitoBio/goquery"
)

// imageAttrs is the candidate attribute priority: the primary source
// attribute first, then the common lazy-load fallbacks. The first
// non-empty value wins.
var imageAttrs = []string{"src", "data-src", "data-lazy", "data-original"}

// ExtractImageLinks parses HTML and returns the absolute image URLs
// found in img elements, deduplicated preserving first-seen order.
// Elements contributing no candidate under any known attribute are
// skipped. If pageURL itself fails to parse, every candidate is
// dropped and the result is empty; a malformed page is the only error.
func ExtractImageLinks(html []byte, pageURL string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	origin, originErr := pageOrigin(pageURL)

	seen := make(map[string]struct{})
	var links []string
	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		candidate := firstAttr(sel, imageAttrs)
		if candidate == "" {
			return
		}
		if originErr != nil {
			return
		}
		resolved := resolveCandidate(origin, candidate)
		if _, dup := seen[resolved]; dup {
			return
		}
		seen[resolved] = struct{}{}
		links = append(links, resolved)
	})
	return links, nil
}

func firstAttr(sel *goquery.Selection, attrs []string) string {
	for _, name := range attrs {
		if v, ok := sel.Attr(name); ok && v != "" {
			return v
		}
	}
	return ""
}
