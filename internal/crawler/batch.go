package crawler

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// fetchBatched fetches locators in consecutive batches of at most size
// concurrent requests. Every fetch of a batch completes before the next batch
// starts. bodies[i] always belongs to locators[i].
func fetchBatched(ctx context.Context, f Fetcher, locators []string, size int) ([]string, error) {
	if size <= 0 {
		size = 1
	}
	bodies := make([]string, len(locators))
	for lo := 0; lo < len(locators); lo += size {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hi := min(lo+size, len(locators))

		g, gctx := errgroup.WithContext(ctx)
		for i := lo; i < hi; i++ {
			g.Go(func() error {
				bodies[i] = f.Fetch(gctx, locators[i])
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}
	// A cancellation mid-batch turns pending fetches into empty pages; those
	// must not be mistaken for a genuinely empty day.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return bodies, nil
}
