package crawler

import (
	"sync"
	"time"
)

// Progress is a point-in-time view of a running engine.
type Progress struct {
	Source        string    `json:"source"`
	State         State     `json:"state"`
	StartDay      string    `json:"start_day,omitempty"`
	EndDay        string    `json:"end_day,omitempty"`
	CurrentDay    string    `json:"current_day,omitempty"`
	DaysCompleted int       `json:"days_completed"`
	Error         string    `json:"error,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
	Counters
}

type progressTracker struct {
	mu    sync.RWMutex
	clock Clock
	p     Progress
}

func newProgressTracker(source string, clock Clock) *progressTracker {
	return &progressTracker{clock: clock, p: Progress{Source: source, State: StateIdle}}
}

func (t *progressTracker) update(fn func(p *Progress)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.p)
	t.p.UpdatedAt = t.clock.Now()
}

func (t *progressTracker) setState(s State) {
	t.update(func(p *Progress) { p.State = s })
}

func (t *progressTracker) snapshot() Progress {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.p
}
