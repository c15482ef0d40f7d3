// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/archive-crawler/internal/api"
	"github.com/JakeFAU/archive-crawler/internal/clock/system"
	"github.com/JakeFAU/archive-crawler/internal/config"
	"github.com/JakeFAU/archive-crawler/internal/crawler"
	"github.com/JakeFAU/archive-crawler/internal/dataset"
	collyfetcher "github.com/JakeFAU/archive-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/archive-crawler/internal/hash/sha256"
	uuidgen "github.com/JakeFAU/archive-crawler/internal/id/uuid"
	"github.com/JakeFAU/archive-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/archive-crawler/internal/progress"
	progresssinks "github.com/JakeFAU/archive-crawler/internal/progress/sinks"
	"github.com/JakeFAU/archive-crawler/internal/publisher"
	gcppublisher "github.com/JakeFAU/archive-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/archive-crawler/internal/storage"
	gcsstorage "github.com/JakeFAU/archive-crawler/internal/storage/gcs"
	localstorage "github.com/JakeFAU/archive-crawler/internal/storage/local"
	memorystorage "github.com/JakeFAU/archive-crawler/internal/storage/memory"
	pgstore "github.com/JakeFAU/archive-crawler/internal/storage/postgres"
	"github.com/JakeFAU/archive-crawler/internal/store"
)

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// App holds the shared services a crawl needs: the fetch primitive, the
// dataset store, the run ledger and the post-run publication targets.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	fetcher   crawler.Fetcher
	records   *dataset.Store
	blobs     storage.BlobStore
	ledger    store.RunLedger
	publisher publisher.Publisher
	clock     crawler.Clock
	ids       IDGenerator
	hasher    *sha256.Hasher
	closers   []func()
}

// Option overrides a provider, mostly for tests.
type Option func(*App)

// WithFetcher replaces the colly fetcher.
func WithFetcher(f crawler.Fetcher) Option { return func(a *App) { a.fetcher = f } }

// WithBlobStore replaces the configured storage backend.
func WithBlobStore(b storage.BlobStore) Option { return func(a *App) { a.blobs = b } }

// WithLedger replaces the configured run ledger.
func WithLedger(l store.RunLedger) Option { return func(a *App) { a.ledger = l } }

// WithPublisher replaces the configured notifier.
func WithPublisher(p publisher.Publisher) Option { return func(a *App) { a.publisher = p } }

// WithClock replaces the system clock.
func WithClock(c crawler.Clock) Option { return func(a *App) { a.clock = c } }

// WithIDGenerator replaces the UUID v7 generator.
func WithIDGenerator(g IDGenerator) Option { return func(a *App) { a.ids = g } }

// WithDatasetStore replaces the fsyncing dataset store.
func WithDatasetStore(s *dataset.Store) Option { return func(a *App) { a.records = s } }

// New builds every provider named by cfg. Providers supplied through opts are
// used as-is and never connected.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger, hasher: sha256.New()}
	for _, opt := range opts {
		opt(a)
	}
	logger.Info("Initializing application services",
		zap.String("storage", cfg.Storage.Backend),
		zap.Bool("ledger", cfg.DB.DSN != ""),
		zap.Bool("notify", cfg.PubSub.TopicName != ""),
		zap.Bool("server", cfg.Server.Enabled),
	)

	if a.records == nil {
		a.records = dataset.NewStore(logger.Named("dataset"))
	}
	if a.clock == nil {
		a.clock = system.NewIn(time.Local)
	}
	if a.ids == nil {
		a.ids = uuidgen.New()
	}
	if a.fetcher == nil {
		a.fetcher = collyfetcher.New(collyfetcher.Config{
			UserAgent: cfg.HTTP.UserAgent,
			Timeout:   cfg.FetchTimeout(),
			Cooldown:  cfg.FetchCooldown(),
			Limiter: ratelimit.New(ratelimit.Config{
				RequestsPerSecond: cfg.HTTP.RequestsPerSecond,
				Burst:             cfg.HTTP.Burst,
			}),
		}, logger.Named("fetcher"))
	}

	if err := a.initStorage(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initLedger(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initPublisher(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) initStorage(ctx context.Context) error {
	if a.blobs != nil {
		return nil
	}
	switch a.cfg.Storage.Backend {
	case config.StorageGCS:
		a.logger.Info("Using GCS storage", zap.String("bucket", a.cfg.Storage.GCSBucket))
		blobs, client, err := gcsstorage.Open(ctx, gcsstorage.Config{Bucket: a.cfg.Storage.GCSBucket})
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		a.blobs = blobs
		a.closers = append(a.closers, func() {
			if err := client.Close(); err != nil {
				a.logger.Warn("Error closing GCS client", zap.Error(err))
			}
		})
	case config.StorageLocal:
		a.logger.Info("Using local storage", zap.String("dir", a.cfg.Storage.LocalDir))
		blobs, err := localstorage.New(localstorage.Config{BaseDir: a.cfg.Storage.LocalDir})
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		a.blobs = blobs
	case config.StorageNoop, "":
		a.logger.Info("Using No-Op storage. Datasets stay where the crawl wrote them.")
		a.blobs = storage.NoOpBlobStore{}
	default:
		return fmt.Errorf("unknown storage backend: %s", a.cfg.Storage.Backend)
	}
	return nil
}

func (a *App) initLedger(ctx context.Context) error {
	if a.ledger != nil {
		return nil
	}
	if a.cfg.DB.DSN == "" {
		a.logger.Info("Using in-memory run ledger")
		a.ledger = memorystorage.NewRunStore()
		return nil
	}
	a.logger.Info("Connecting to PostgreSQL run ledger")
	runs, err := pgstore.NewRunStore(ctx, pgstore.RunStoreConfig{DSN: a.cfg.DB.DSN})
	if err != nil {
		return fmt.Errorf("failed to initialize run ledger: %w", err)
	}
	a.ledger = runs
	a.closers = append(a.closers, runs.Close)
	return nil
}

func (a *App) initPublisher(ctx context.Context) error {
	if a.publisher != nil {
		return nil
	}
	if a.cfg.PubSub.TopicName == "" {
		a.publisher = publisher.NoOp{}
		return nil
	}
	a.logger.Info("Connecting to GCP Pub/Sub", zap.String("topic", a.cfg.PubSub.TopicName))
	pub, client, err := gcppublisher.Open(ctx, a.cfg.PubSub.ProjectID, a.cfg.PubSub.TopicName)
	if err != nil {
		return fmt.Errorf("failed to initialize publisher: %w", err)
	}
	a.publisher = pub
	a.closers = append(a.closers, func() {
		pub.Stop()
		if err := client.Close(); err != nil {
			a.logger.Warn("Error closing Pub/Sub client", zap.Error(err))
		}
	})
	return nil
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Ledger exposes the run ledger.
func (a *App) Ledger() store.RunLedger { return a.ledger }

// Crawl runs one crawl end to end: ledger row, optional status server, the
// engine itself, then publication of the finished dataset. Publication and
// ledger failures never undo appended records; they are logged and returned
// alongside the run's own outcome.
func (a *App) Crawl(
	ctx context.Context,
	x crawler.Extractor,
	run crawler.RunConfig,
	confirmer crawler.Confirmer,
) (crawler.Summary, error) {
	rawID, err := a.ids.NewID()
	if err != nil {
		return crawler.Summary{}, fmt.Errorf("generate run id: %w", err)
	}
	runID, err := uuid.Parse(rawID)
	if err != nil {
		return crawler.Summary{}, fmt.Errorf("parse run id: %w", err)
	}
	run.RunID = runID
	run = run.Resolve(x)
	log := a.logger.With(zap.String("run_id", rawID))

	ledgerOK := true
	if err := a.ledger.StartRun(ctx, store.Run{
		ID:        runID,
		Source:    run.Source,
		Output:    run.Output,
		StartDay:  run.StartDay,
		EndDay:    run.EndDay,
		Resume:    run.Resume,
		StartedAt: a.clock.Now(),
	}); err != nil {
		ledgerOK = false
		log.Warn("Failed to record run start", zap.Error(err))
	}

	sinks := []progress.Sink{progresssinks.NewLogSink(log.Named("progress"))}
	if ledgerOK {
		sinks = append(sinks, progresssinks.NewLedgerSink(a.ledger, log))
	}
	hub := progress.NewHub(progress.Config{Logger: log}, sinks...)

	engine := crawler.NewEngine(x, a.fetcher, a.records, log,
		crawler.WithClock(a.clock),
		crawler.WithConfirmer(confirmer),
		crawler.WithEmitter(hub),
	)

	stopServer := a.startStatusServer(ctx, engine)
	summary, runErr := engine.Run(ctx, run)
	stopServer()

	// Post-run work must finish even when the run was interrupted.
	postCtx := context.WithoutCancel(ctx)
	var postErrs []error
	// Checkpoints land before the final ledger update.
	if err := hub.Close(postCtx); err != nil {
		log.Warn("Failed to flush progress events", zap.Error(err))
	}
	if runErr == nil {
		if err := a.publish(postCtx, rawID, summary); err != nil {
			log.Error("Failed to publish dataset", zap.Error(err))
			postErrs = append(postErrs, err)
		}
	}
	if ledgerOK {
		if err := a.ledger.CompleteRun(postCtx, runID, outcome(a.clock.Now(), summary, runErr)); err != nil {
			log.Error("Failed to record run outcome", zap.Error(err))
			postErrs = append(postErrs, fmt.Errorf("complete run: %w", err))
		}
	}
	return summary, errors.Join(append([]error{runErr}, postErrs...)...)
}

// publish uploads the dataset and announces it.
func (a *App) publish(ctx context.Context, runID string, summary crawler.Summary) error {
	f, err := os.Open(summary.Output)
	if err != nil {
		return fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	checksum, err := a.hasher.HashReader(f)
	if err != nil {
		return fmt.Errorf("checksum dataset: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind dataset: %w", err)
	}

	objectPath := storage.ObjectPath(a.cfg.Storage.Prefix, summary.Source, summary.Output)
	uri, err := a.blobs.PutObject(ctx, objectPath, a.cfg.Storage.ContentType, f)
	if err != nil {
		return fmt.Errorf("upload dataset: %w", err)
	}
	if uri != "" {
		a.logger.Info("Dataset uploaded", zap.String("uri", uri))
	}

	notice := publisher.DatasetReady{
		RunID:           runID,
		Source:          summary.Source,
		Output:          summary.Output,
		URI:             uri,
		SHA256:          checksum,
		Days:            summary.Days,
		RecordsAppended: summary.RecordsAppended,
		FinishedAt:      a.clock.Now(),
	}
	if !summary.FirstDay.IsZero() {
		notice.FirstDay = summary.FirstDay.Format(crawler.DayLayout)
	}
	if !summary.LastDay.IsZero() {
		notice.LastDay = summary.LastDay.Format(crawler.DayLayout)
	}
	if _, err := a.publisher.Publish(ctx, a.cfg.PubSub.TopicName, notice); err != nil {
		return fmt.Errorf("notify dataset ready: %w", err)
	}
	return nil
}

// startStatusServer serves progress while the run lasts. The returned func
// stops it and waits for shutdown.
func (a *App) startStatusServer(ctx context.Context, engine *crawler.Engine) func() {
	if !a.cfg.Server.Enabled {
		return func() {}
	}
	srvCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		addr := fmt.Sprintf(":%d", a.cfg.Server.Port)
		if err := api.NewServer(engine, a.ledger, a.logger).Serve(srvCtx, addr); err != nil {
			a.logger.Error("Status server failed", zap.Error(err))
		}
	}()
	return func() {
		cancel()
		wg.Wait()
	}
}

func outcome(at time.Time, summary crawler.Summary, runErr error) store.RunOutcome {
	out := store.RunOutcome{
		FinishedAt:      at,
		Status:          store.RunSuccess,
		DaysCompleted:   int64(summary.Days),
		RecordsAppended: int64(summary.RecordsAppended),
	}
	if !summary.LastDay.IsZero() {
		last := summary.LastDay
		out.LastDay = &last
	}
	if runErr != nil {
		msg := runErr.Error()
		out.Status = store.RunError
		out.ErrorMessage = &msg
	}
	return out
}

// Close shuts down every provider New opened, in reverse order.
func (a *App) Close() {
	a.logger.Info("Shutting down application services")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	// Flushing the logger buffer; errors here are expected on terminals.
	_ = a.logger.Sync()
}
