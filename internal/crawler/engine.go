package crawler

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/archive-crawler/internal/clock/system"
	"github.com/JakeFAU/archive-crawler/internal/dataset"
	"github.com/JakeFAU/archive-crawler/internal/metrics"
	"github.com/JakeFAU/archive-crawler/internal/progress"
	"github.com/JakeFAU/archive-crawler/internal/telemetry"
)

// Locator kinds reported to metrics.
const (
	kindArchive = "archive"
	kindArticle = "article"
)

// Engine drives one source through a window of days.
type Engine struct {
	extractor Extractor
	fetcher   Fetcher
	store     RecordStore
	clock     Clock
	confirmer Confirmer
	logger    *zap.Logger
	progress  *progressTracker
	events    progress.Emitter
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock replaces the system clock.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithConfirmer installs the overwrite prompt. Without one, an existing
// dataset is only replaced when RunConfig.Overwrite is set.
func WithConfirmer(c Confirmer) Option {
	return func(e *Engine) { e.confirmer = c }
}

// WithEmitter streams run and day milestones to em.
func WithEmitter(em progress.Emitter) Option {
	return func(e *Engine) { e.events = em }
}

// NewEngine wires an engine for one source.
func NewEngine(x Extractor, f Fetcher, store RecordStore, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		extractor: x,
		fetcher:   f,
		store:     store,
		clock:     system.NewIn(time.Local),
		logger:    logger.Named("crawler").With(zap.String("source", x.Name())),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.progress = newProgressTracker(x.Name(), e.clock)
	return e
}

// Progress reports what the engine is doing right now.
func (e *Engine) Progress() Progress {
	return e.progress.snapshot()
}

// Run crawls every day of cfg's window, appending records as each day
// completes. On failure, the returned summary covers the days already
// appended; the dataset holds exactly those records plus any appended
// before the failing one.
func (e *Engine) Run(ctx context.Context, cfg RunConfig) (Summary, error) {
	cfg = cfg.Resolve(e.extractor)
	summary := Summary{Source: cfg.Source, Output: cfg.Output}

	ctx, span := telemetry.Tracer().Start(ctx, "crawl.run", trace.WithAttributes(
		attribute.String("source", cfg.Source),
		attribute.String("output", cfg.Output),
		attribute.Bool("resume", cfg.Resume),
	))
	defer span.End()
	began := e.clock.Now()
	e.emit(cfg, progress.Event{Stage: progress.StageRunStart})

	e.progress.update(func(p *Progress) {
		*p = Progress{
			Source:   cfg.Source,
			State:    StateValidating,
			StartDay: cfg.StartDay.Format(DayLayout),
			EndDay:   cfg.EndDay.Format(DayLayout),
		}
	})
	if err := e.validate(cfg); err != nil {
		return summary, e.fail(span, cfg, summary, began, err)
	}

	e.progress.setState(StateResolvingStart)
	start, schema, err := e.resolveStart(cfg)
	if err != nil {
		return summary, e.fail(span, cfg, summary, began, err)
	}
	cfg.Schema = schema
	summary.FirstDay = start

	e.logger.Info("Starting crawl",
		zap.String("output", cfg.Output),
		zap.String("start_day", start.Format(DayLayout)),
		zap.String("end_day", cfg.EndDay.Format(DayLayout)),
		zap.Int("fanout", cfg.Fanout),
		zap.Int("concurrency", cfg.Concurrency),
		zap.Bool("resume", cfg.Resume),
	)

	for day := start; !day.After(cfg.EndDay); day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return summary, e.fail(span, cfg, summary, began, err)
		}
		dayBegan := e.clock.Now()
		counters, err := e.crawlDay(ctx, cfg, day)
		summary.add(counters)
		if err != nil {
			return summary, e.fail(span, cfg, summary, began, err)
		}
		summary.Days++
		summary.LastDay = day
		metrics.ObserveDay(cfg.Source, day)
		e.progress.update(func(p *Progress) {
			p.DaysCompleted++
			p.add(counters)
		})
		e.emit(cfg, progress.Event{
			Stage:    progress.StageDayDone,
			Day:      day,
			Articles: int64(counters.Articles),
			Records:  int64(counters.RecordsAppended),
			Dur:      e.since(dayBegan),
		})
	}

	e.progress.setState(StateDone)
	e.emit(cfg, progress.Event{
		Stage:    progress.StageRunDone,
		Articles: int64(summary.Articles),
		Records:  int64(summary.RecordsAppended),
		Dur:      e.since(began),
	})
	metrics.ObserveRun(cfg.Source, string(StateDone))
	e.logger.Info("Crawl finished",
		zap.Int("days", summary.Days),
		zap.Int("records_appended", summary.RecordsAppended),
		zap.Int("dropped", summary.Dropped),
		zap.Int("empty_fetches", summary.EmptyFetches),
	)
	return summary, nil
}

// resolveStart prepares a fresh dataset or picks the day after the last
// stored record. It returns the column order rows must be written in: the
// run schema for a fresh dataset, the existing header on resume.
func (e *Engine) resolveStart(cfg RunConfig) (time.Time, []string, error) {
	if !cfg.Resume {
		if err := e.store.Prepare(cfg.Output, cfg.Schema); err != nil {
			return time.Time{}, nil, err
		}
		return cfg.StartDay, cfg.Schema, nil
	}
	header, err := e.store.Header(cfg.Output)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("resolve resume day: %w", err)
	}
	for _, field := range cfg.Schema {
		if !slices.Contains(header, field) {
			return time.Time{}, nil, fmt.Errorf("%w: %s has no %q column (header %v)",
				ErrInvalidRun, cfg.Output, field, header)
		}
	}
	for _, field := range []string{dataset.FieldDate, dataset.FieldText} {
		if !slices.Contains(header, field) {
			return time.Time{}, nil, fmt.Errorf("%w: %s has no %q column", ErrInvalidRun, cfg.Output, field)
		}
	}
	last, err := e.store.LastRecordDate(cfg.Output, header)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("resolve resume day: %w", err)
	}
	next := truncateDay(last).AddDate(0, 0, 1)
	e.logger.Info("Resuming dataset",
		zap.String("last_day", last.Format(DayLayout)),
		zap.String("next_day", next.Format(DayLayout)),
		zap.Strings("header", header),
	)
	return next, header, nil
}

// crawlDay runs the per-day pipeline. Records are appended only after every
// fetch of the day has settled.
func (e *Engine) crawlDay(ctx context.Context, cfg RunConfig, day time.Time) (Counters, error) {
	var c Counters
	dayLabel := day.Format(DayLayout)
	ctx, span := telemetry.Tracer().Start(ctx, "crawl.day", trace.WithAttributes(attribute.String("day", dayLabel)))
	defer span.End()
	log := e.logger.With(zap.String("day", dayLabel))
	e.progress.update(func(p *Progress) {
		p.CurrentDay = dayLabel
		p.State = StateFetchingArchives
	})

	archives := e.extractor.ArchivePagesFor(day, cfg.Fanout)
	c.ArchivePages = len(archives)
	metrics.ObserveLocators(cfg.Source, kindArchive, len(archives))
	log.Info("Processing day", zap.Int("archive_pages", len(archives)))

	pages, err := fetchBatched(ctx, e.fetcher, archives, cfg.Concurrency)
	if err != nil {
		return c, err
	}

	e.progress.setState(StateDiscoveringArticle)
	var discovered []string
	for i, page := range pages {
		if page == "" {
			c.EmptyFetches++
			log.Debug("Archive page unavailable", zap.String("locator", archives[i]))
			continue
		}
		links := e.extractor.DiscoverArticles(page)
		if len(links) == 0 {
			c.EmptyListings++
		}
		discovered = append(discovered, links...)
	}
	articles, dupes := dedupeLocators(discovered)
	c.Articles = len(articles)
	c.Duplicates = dupes
	metrics.ObserveLocators(cfg.Source, kindArticle, len(articles))
	log.Info("Found articles", zap.Int("articles", len(articles)), zap.Int("duplicates", dupes))

	e.progress.setState(StateFetchingArticles)
	bodies, err := fetchBatched(ctx, e.fetcher, articles, cfg.Concurrency)
	if err != nil {
		return c, err
	}

	e.progress.setState(StateExtracting)
	stamp := day.Format(dataset.RecordDateLayout)
	records := make([]Record, 0, len(bodies))
	for i, body := range bodies {
		if body == "" {
			c.EmptyFetches++
			continue
		}
		rec, ok := e.extractor.ExtractRecord(body)
		if !ok {
			c.Dropped++
			metrics.ObserveRecord(cfg.Source, metrics.RecordDropped)
			log.Debug("Article dropped", zap.String("locator", articles[i]))
			continue
		}
		stamped := make(Record, len(rec)+1)
		maps.Copy(stamped, rec)
		stamped[dataset.FieldDate] = stamp
		records = append(records, stamped)
	}

	span.SetAttributes(
		attribute.Int("articles", c.Articles),
		attribute.Int("records", len(records)),
	)
	e.progress.setState(StateAppending)
	for _, rec := range records {
		if err := e.store.Append(cfg.Output, cfg.Schema, rec); err != nil {
			return c, fmt.Errorf("append record for %s: %w", dayLabel, err)
		}
		c.RecordsAppended++
		metrics.ObserveRecord(cfg.Source, metrics.RecordAppended)
	}
	return c, nil
}

func (e *Engine) emit(cfg RunConfig, evt progress.Event) {
	if e.events == nil || cfg.RunID == uuid.Nil {
		return
	}
	evt.RunID = cfg.RunID
	evt.Source = cfg.Source
	evt.TS = e.clock.Now()
	e.events.Emit(evt)
}

func (e *Engine) since(t time.Time) time.Duration {
	return max(e.clock.Now().Sub(t), 0)
}

func (e *Engine) fail(span trace.Span, cfg RunConfig, summary Summary, began time.Time, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	e.progress.update(func(p *Progress) {
		p.State = StateFailed
		p.Error = err.Error()
	})
	status := string(StateFailed)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		status = "canceled"
	}
	metrics.ObserveRun(cfg.Source, status)
	e.emit(cfg, progress.Event{
		Stage:    progress.StageRunError,
		Articles: int64(summary.Articles),
		Records:  int64(summary.RecordsAppended),
		Dur:      e.since(began),
		Note:     err.Error(),
	})
	e.logger.Error("Crawl failed", zap.Error(err))
	return err
}
