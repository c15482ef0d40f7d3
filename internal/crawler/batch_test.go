package crawler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type event struct {
	locator string
	start   bool
}

type recordingFetcher struct {
	mu       sync.Mutex
	events   []event
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *recordingFetcher) Fetch(_ context.Context, locator string) string {
	n := f.inFlight.Add(1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	f.log(event{locator: locator, start: true})
	time.Sleep(5 * time.Millisecond)
	f.log(event{locator: locator})
	f.inFlight.Add(-1)
	return "body:" + locator
}

func (f *recordingFetcher) log(e event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
}

func TestFetchBatched(t *testing.T) {
	locators := make([]string, 7)
	for i := range locators {
		locators[i] = fmt.Sprintf("loc-%d", i)
	}
	const size = 3
	f := &recordingFetcher{}

	bodies, err := fetchBatched(context.Background(), f, locators, size)
	require.NoError(t, err)
	require.Len(t, bodies, len(locators))
	for i, body := range bodies {
		assert.Equal(t, "body:"+locators[i], body)
	}
	assert.LessOrEqual(t, f.peak.Load(), int32(size))

	batchOf := func(loc string) int {
		var i int
		_, _ = fmt.Sscanf(loc, "loc-%d", &i)
		return i / size
	}
	ended := map[int]int{}
	for _, e := range f.events {
		b := batchOf(e.locator)
		if e.start {
			if b > 0 {
				assert.Equal(t, size, ended[b-1], "batch %d started before batch %d finished", b, b-1)
			}
			continue
		}
		ended[b]++
	}
}

func TestFetchBatched_Empty(t *testing.T) {
	bodies, err := fetchBatched(context.Background(), &recordingFetcher{}, nil, 2)
	require.NoError(t, err)
	assert.Empty(t, bodies)
}

func TestFetchBatched_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := &recordingFetcher{}
	_, err := fetchBatched(ctx, f, []string{"a", "b"}, 1)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.events)
}

func TestDedupeLocators(t *testing.T) {
	unique, dropped := dedupeLocators([]string{"b", "a", "b", "", "c", "a"})
	assert.Equal(t, []string{"b", "a", "c"}, unique)
	assert.Equal(t, 3, dropped)
}

func TestRunConfigValidate(t *testing.T) {
	cfg := RunConfig{
		Source:      "fake",
		Schema:      []string{"date", "text"},
		StartDay:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDay:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Fanout:      1,
		Concurrency: 1,
		Output:      "out.csv",
	}
	require.NoError(t, cfg.Validate())

	cfg.Source = ""
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidRun)
}
