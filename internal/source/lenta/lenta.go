// Package lenta extracts news records from the lenta.ru daily archive.
package lenta

import (
	"fmt"
	"time"

	"github.com/JakeFAU/archive-crawler/internal/dataset"
	"github.com/JakeFAU/archive-crawler/internal/source/scrape"
)

// Name identifies the source on the command line and in dataset filenames.
const Name = "lenta"

const (
	archiveBase = "https://lenta.ru/news/"
	siteBase    = "https://lenta.ru"

	selArticleLink = "a.card-full-news._archive"
	selBody        = "p.topic-body__content-text"
	selTopic       = "div.rubric-header__title"
	selSubtopic    = "a.rubric-header__link._active"
	selTitle       = "span.topic-body__title"

	// allSubtopics is the label of the catch-all rubric tab.
	allSubtopics = "Все"
)

// Field names beyond the shared date/title/text.
const (
	FieldTopic    = "topic"
	FieldSubtopic = "subtopic"
)

var site = scrape.MustBase(siteBase)

// Extractor implements crawler.Extractor for lenta.ru.
type Extractor struct{}

// New returns the lenta.ru extractor.
func New() *Extractor { return &Extractor{} }

// Name implements crawler.Extractor.
func (*Extractor) Name() string { return Name }

// BaseURL implements crawler.Extractor.
func (*Extractor) BaseURL() string { return archiveBase }

// Schema implements crawler.Extractor.
func (*Extractor) Schema() []string {
	return []string{dataset.FieldDate, dataset.FieldTitle, dataset.FieldText, FieldTopic, FieldSubtopic}
}

// ArchivePagesFor lists pages 1..fanout of the day's archive.
func (*Extractor) ArchivePagesFor(day time.Time, fanout int) []string {
	out := make([]string, 0, max(fanout, 0))
	for n := 1; n <= fanout; n++ {
		out = append(out, fmt.Sprintf("%s%s/page/%d/", archiveBase, day.Format("2006/01/02"), n))
	}
	return out
}

// DiscoverArticles returns the archive cards' article links.
func (*Extractor) DiscoverArticles(page string) []string {
	doc, err := scrape.Parse(page)
	if err != nil {
		return nil
	}
	return scrape.Links(doc.Find(selArticleLink), site, nil)
}

// ExtractRecord reads title, text, topic and subtopic. Pages without body
// paragraphs are rejected.
func (*Extractor) ExtractRecord(page string) (dataset.Record, bool) {
	doc, err := scrape.Parse(page)
	if err != nil {
		return nil, false
	}
	text := scrape.JoinedText(doc.Find(selBody))
	if text == "" {
		return nil, false
	}
	subtopic := scrape.FirstText(doc, selSubtopic)
	if subtopic == allSubtopics {
		subtopic = ""
	}
	return dataset.Record{
		dataset.FieldTitle: scrape.FirstText(doc, selTitle),
		dataset.FieldText:  text,
		FieldTopic:         scrape.FirstText(doc, selTopic),
		FieldSubtopic:      subtopic,
	}, true
}
