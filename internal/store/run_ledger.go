package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound signals that the requested run does not exist.
var ErrNotFound = errors.New("run not found")

// RunStatus mirrors the crawl_runs status column.
type RunStatus string

// Run statuses persisted in crawl_runs.status.
const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunError   RunStatus = "error"
)

// Run models one row of crawl_runs.
type Run struct {
	ID       uuid.UUID
	Source   string
	Output   string
	StartDay time.Time
	EndDay   time.Time
	Resume   bool
	// StartedAt captures when the run was first marked running.
	StartedAt time.Time
	// FinishedAt is nil until the run is marked success/error.
	FinishedAt      *time.Time
	Status          RunStatus
	DaysCompleted   int64
	RecordsAppended int64
	// LastDay is the last day whose records were all appended; nil if none.
	LastDay *time.Time
	// ErrorMessage optionally stores the final failure reason.
	ErrorMessage *string
}

// RunOutcome is what CompleteRun records.
type RunOutcome struct {
	FinishedAt      time.Time
	Status          RunStatus
	DaysCompleted   int64
	RecordsAppended int64
	LastDay         *time.Time
	ErrorMessage    *string
}

// RunLedger persists one row per crawl run.
type RunLedger interface {
	// StartRun inserts the run in running state.
	StartRun(ctx context.Context, run Run) error
	// RecordProgress adds completed days and appended records to a running
	// run. Both values are deltas.
	RecordProgress(ctx context.Context, id uuid.UUID, days, records int64) error
	// CompleteRun marks the run finished.
	CompleteRun(ctx context.Context, id uuid.UUID, outcome RunOutcome) error
	// GetRun loads a single run or returns ErrNotFound.
	GetRun(ctx context.Context, id uuid.UUID) (Run, error)
	// ListRuns returns runs, newest first, filtered by optional status.
	ListRuns(ctx context.Context, status *RunStatus, limit, offset int) ([]Run, error)
}
