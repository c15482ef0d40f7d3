package crawler

import (
	"context"
	"time"
)

// Fetcher retrieves one locator. It never fails: an unusable page is "".
type Fetcher interface {
	Fetch(ctx context.Context, locator string) string
}

// Extractor is the per-source capability the engine drives. Implementations
// do no I/O.
type Extractor interface {
	Name() string
	BaseURL() string
	Schema() []string
	// ArchivePagesFor lists the archive listing locators to probe for day.
	ArchivePagesFor(day time.Time, fanout int) []string
	// DiscoverArticles returns the article locators on one listing page.
	DiscoverArticles(page string) []string
	// ExtractRecord parses an article page into a record without the date
	// field. ok is false when the page lacks the minimum content.
	ExtractRecord(page string) (rec Record, ok bool)
}

// RecordStore is the durable, append-only sink of a run.
type RecordStore interface {
	Exists(destination string) bool
	Prepare(destination string, schema []string) error
	Append(destination string, schema []string, records ...Record) error
	Header(destination string) ([]string, error)
	LastRecordDate(destination string, schema []string) (time.Time, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// Confirmer asks the operator whether an existing dataset may be replaced.
type Confirmer interface {
	ConfirmOverwrite(destination string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(destination string) bool

// ConfirmOverwrite calls f.
func (f ConfirmFunc) ConfirmOverwrite(destination string) bool {
	return f(destination)
}
