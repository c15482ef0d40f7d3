// Package scrape holds the goquery helpers shared by source adapters.
package scrape

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Parse builds a document from a fetched page. Malformed markup still parses;
// only reader failures return an error.
func Parse(page string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(page))
}

// FirstText returns the trimmed text of the first match of selector.
func FirstText(doc *goquery.Document, selector string) string {
	return strings.TrimSpace(doc.Find(selector).First().Text())
}

// JoinedText trims the text of every match of selector and joins the
// non-empty pieces with a single space.
func JoinedText(sel *goquery.Selection) string {
	parts := make([]string, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, " ")
}

// Links resolves the href of every element in sel against base, keeping those
// accepted by keep (nil keeps all). Order follows the document.
func Links(sel *goquery.Selection, base *url.URL, keep func(href string) bool) []string {
	var out []string
	sel.Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		href = strings.TrimSpace(href)
		if !ok || href == "" {
			return
		}
		if keep != nil && !keep(href) {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		out = append(out, base.ResolveReference(ref).String())
	})
	return out
}

// MustBase parses a compile-time base URL.
func MustBase(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		panic(err)
	}
	return u
}
