package crawler

import (
	"fmt"
	"slices"

	"github.com/JakeFAU/archive-crawler/internal/dataset"
)

// Resolve fills what the run can derive from the extractor: source, base URL,
// schema and default output path. Days are truncated to midnight UTC.
func (c RunConfig) Resolve(x Extractor) RunConfig {
	if c.Source == "" {
		c.Source = x.Name()
	}
	if c.BaseURL == "" {
		c.BaseURL = x.BaseURL()
	}
	if len(c.Schema) == 0 {
		c.Schema = x.Schema()
	}
	c.StartDay = truncateDay(c.StartDay)
	c.EndDay = truncateDay(c.EndDay)
	if c.Output == "" {
		c.Output = dataset.DefaultFilename(c.Source, c.StartDay, c.EndDay)
	}
	return c
}

// Validate checks the parts of the configuration that need no outside state.
func (c RunConfig) Validate() error {
	if c.Source == "" {
		return fmt.Errorf("%w: source is required", ErrInvalidRun)
	}
	if c.StartDay.IsZero() || c.EndDay.IsZero() {
		return fmt.Errorf("%w: start and end days are required", ErrInvalidRun)
	}
	if c.EndDay.Before(c.StartDay) {
		return fmt.Errorf("%w: end day %s is before start day %s",
			ErrInvalidRun, c.EndDay.Format(DayLayout), c.StartDay.Format(DayLayout))
	}
	if c.Fanout < 1 {
		return fmt.Errorf("%w: fanout must be at least 1, got %d", ErrInvalidRun, c.Fanout)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("%w: concurrency must be at least 1, got %d", ErrInvalidRun, c.Concurrency)
	}
	for _, field := range []string{dataset.FieldDate, dataset.FieldText} {
		if !slices.Contains(c.Schema, field) {
			return fmt.Errorf("%w: schema must contain %q", ErrInvalidRun, field)
		}
	}
	if c.Output == "" {
		return fmt.Errorf("%w: output is required", ErrInvalidRun)
	}
	return nil
}

// validate runs every precondition check. It has no side effects on the
// dataset.
func (e *Engine) validate(cfg RunConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Today is the calendar day in the clock's location.
	today := truncateDay(e.clock.Now())
	if cfg.EndDay.After(today) {
		return fmt.Errorf("%w: end day %s is in the future", ErrInvalidRun, cfg.EndDay.Format(DayLayout))
	}

	exists := e.store.Exists(cfg.Output)
	if cfg.Resume {
		if !exists {
			return fmt.Errorf("%w: cannot resume, %s does not exist", ErrInvalidRun, cfg.Output)
		}
		return nil
	}
	if !exists || cfg.Overwrite {
		return nil
	}
	if e.confirmer != nil && e.confirmer.ConfirmOverwrite(cfg.Output) {
		return nil
	}
	return fmt.Errorf("%w: %s already exists; resume it or confirm the overwrite", ErrInvalidRun, cfg.Output)
}
