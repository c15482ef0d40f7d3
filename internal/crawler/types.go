package crawler

import (
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/archive-crawler/internal/dataset"
)

// Record is one extracted article keyed by schema field.
type Record = dataset.Record

// DayLayout is the calendar day format used on the command line.
const DayLayout = dataset.MergedDateLayout

// State is a step of the run state machine.
type State string

// Run states, in the order a healthy run visits them.
const (
	StateIdle               State = "idle"
	StateValidating         State = "validating"
	StateResolvingStart     State = "resolving_start"
	StateFetchingArchives   State = "fetching_archives"
	StateDiscoveringArticle State = "discovering_articles"
	StateFetchingArticles   State = "fetching_articles"
	StateExtracting         State = "extracting"
	StateAppending          State = "appending"
	StateDone               State = "done"
	StateFailed             State = "failed"
)

// RunConfig fully determines one crawl run.
type RunConfig struct {
	// RunID tags progress events; events are only emitted when it is set.
	RunID       uuid.UUID
	Source      string
	BaseURL     string
	Schema      []string
	StartDay    time.Time
	EndDay      time.Time
	Fanout      int
	Output      string
	Concurrency int
	Resume      bool
	// Overwrite confirms up front that an existing dataset may be replaced.
	Overwrite bool
}

// Counters tally what a run did. Soft conditions only ever show up here.
type Counters struct {
	ArchivePages    int `json:"archive_pages"`
	Articles        int `json:"articles"`
	Duplicates      int `json:"duplicates"`
	EmptyFetches    int `json:"empty_fetches"`
	EmptyListings   int `json:"empty_listings"`
	Dropped         int `json:"dropped"`
	RecordsAppended int `json:"records_appended"`
}

func (c *Counters) add(o Counters) {
	c.ArchivePages += o.ArchivePages
	c.Articles += o.Articles
	c.Duplicates += o.Duplicates
	c.EmptyFetches += o.EmptyFetches
	c.EmptyListings += o.EmptyListings
	c.Dropped += o.Dropped
	c.RecordsAppended += o.RecordsAppended
}

// Summary describes a finished (or aborted) run.
type Summary struct {
	Source   string
	Output   string
	FirstDay time.Time
	// LastDay is the last day whose records were all appended; zero if none.
	LastDay time.Time
	Days    int
	Counters
}

// ParseDay parses a YYYY-MM-DD calendar day.
func ParseDay(raw string) (time.Time, error) {
	return time.Parse(DayLayout, raw)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
