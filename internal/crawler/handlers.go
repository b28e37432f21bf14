package crawler

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/meliscraper/helpers"
)

// Text returns a handler reading the collapsed text of the first element
// matching selector.
func Text(selector string) ElementHandler {
	return func(s *goquery.Selection) string {
		sel := s.Find(selector)
		if sel.Length() == 0 {
			return ""
		}
		return helpers.CollapseSpaces(sel.First().Text())
	}
}

// Attr returns a handler reading attr from the first element matching
// selector that carries a usable value. Inline data URIs (lazy-load
// placeholders) are skipped.
func Attr(selector, attr string) ElementHandler {
	return func(s *goquery.Selection) string {
		var value string
		s.Find(selector).EachWithBreak(func(_ int, el *goquery.Selection) bool {
			v, ok := el.Attr(attr)
			v = strings.TrimSpace(v)
			if !ok || v == "" || strings.HasPrefix(v, "data:") {
				return true
			}
			value = v
			return false
		})
		return value
	}
}

// IDLink returns a handler reading the first href under selector that carries
// a product identifier.
func IDLink(selector string) ElementHandler {
	return func(s *goquery.Selection) string {
		var link string
		s.Find(selector).EachWithBreak(func(_ int, el *goquery.Selection) bool {
			href, ok := el.Attr("href")
			if ok && productIDPattern.MatchString(href) {
				link = strings.TrimSpace(href)
				return false
			}
			return true
		})
		return link
	}
}

// ApplyHandlers runs handlers in order and returns the first non-empty result.
func ApplyHandlers(s *goquery.Selection, handlers []ElementHandler) string {
	for _, handler := range handlers {
		if handler == nil {
			continue
		}
		if result := strings.TrimSpace(handler(s)); result != "" {
			return result
		}
	}
	return ""
}

// ExtractProductID returns the normalized identifier embedded in link, e.g.
// "MLA123456789" for ".../MLA-123456789-memoria-ram-_JM".
func ExtractProductID(link string) string {
	m := productIDPattern.FindStringSubmatch(link)
	if m == nil {
		return ""
	}
	return m[1] + m[2]
}
