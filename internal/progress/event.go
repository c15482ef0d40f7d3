package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the milestone an Event records.
type Stage string

// Supported progress stages.
const (
	StageRunStart Stage = "RUN_START"
	StageDayDone  Stage = "DAY_DONE"
	StageRunDone  Stage = "RUN_DONE"
	StageRunError Stage = "RUN_ERROR"
)

// Event captures one milestone of a crawl run.
type Event struct {
	RunID  uuid.UUID
	TS     time.Time
	Stage  Stage
	Source string
	// Day is the calendar day a DAY_DONE event completed.
	Day time.Time
	// Articles and Records are deltas for the day, or run totals on
	// RUN_DONE and RUN_ERROR.
	Articles int64
	Records  int64
	Dur      time.Duration
	// Note carries the error text of RUN_ERROR.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == uuid.Nil {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageRunError:
	case StageDayDone:
		if e.Day.IsZero() {
			return errors.New("day done requires day")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 || e.Articles < 0 || e.Records < 0 {
		return errors.New("durations and counts must be >= 0")
	}
	return nil
}
