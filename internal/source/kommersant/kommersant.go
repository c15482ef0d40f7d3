// Package kommersant extracts news records from the kommersant.ru rubric
// archive.
package kommersant

import (
	"fmt"
	"strings"
	"time"

	"github.com/JakeFAU/archive-crawler/internal/dataset"
	"github.com/JakeFAU/archive-crawler/internal/source/scrape"
)

// Name identifies the source on the command line and in dataset filenames.
const Name = "kommersant"

const (
	baseURL = "https://www.kommersant.ru"

	// Rubric archive ids that carry news, inclusive.
	firstRubric = 2
	lastRubric  = 9

	selListing = "div.rubric_lenta"
	selTitle   = "h1.doc_header__name.js-search-mark"
	selBody    = "p.doc__text"
	selTopic   = "a.decor"
)

// FieldTopic is the rubric label.
const FieldTopic = "topic"

var site = scrape.MustBase(baseURL)

// Extractor implements crawler.Extractor for kommersant.ru.
type Extractor struct{}

// New returns the kommersant.ru extractor.
func New() *Extractor { return &Extractor{} }

// Name implements crawler.Extractor.
func (*Extractor) Name() string { return Name }

// BaseURL implements crawler.Extractor.
func (*Extractor) BaseURL() string { return baseURL }

// Schema implements crawler.Extractor.
func (*Extractor) Schema() []string {
	return []string{dataset.FieldDate, dataset.FieldTitle, dataset.FieldText, FieldTopic}
}

// ArchivePagesFor lists the first page of each news rubric for day, at most
// fanout of them.
func (*Extractor) ArchivePagesFor(day time.Time, fanout int) []string {
	n := min(fanout, lastRubric-firstRubric+1)
	out := make([]string, 0, max(n, 0))
	for i := 0; i < n; i++ {
		out = append(out, fmt.Sprintf("%s/archive/rubric/%d/day/%s?page=1",
			baseURL, firstRubric+i, day.Format(dataset.MergedDateLayout)))
	}
	return out
}

// DiscoverArticles returns document links from the rubric feed.
func (*Extractor) DiscoverArticles(page string) []string {
	doc, err := scrape.Parse(page)
	if err != nil {
		return nil
	}
	listing := doc.Find(selListing).First()
	if listing.Length() == 0 {
		return nil
	}
	return scrape.Links(listing.Find("a"), site, func(href string) bool {
		return strings.Contains(href, "doc/")
	})
}

// ExtractRecord reads title, text and topic.
func (*Extractor) ExtractRecord(page string) (dataset.Record, bool) {
	doc, err := scrape.Parse(page)
	if err != nil {
		return nil, false
	}
	text := scrape.JoinedText(doc.Find(selBody))
	if text == "" {
		return nil, false
	}
	return dataset.Record{
		dataset.FieldTitle: scrape.FirstText(doc, selTitle),
		dataset.FieldText:  text,
		FieldTopic:         scrape.FirstText(doc, selTopic),
	}, true
}
