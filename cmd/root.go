// Package cmd defines and implements the CLI commands for the archive-crawler executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/archive-crawler/internal/app"
	"github.com/JakeFAU/archive-crawler/internal/config"
	"github.com/JakeFAU/archive-crawler/internal/crawler"
	"github.com/JakeFAU/archive-crawler/internal/logging"
	"github.com/JakeFAU/archive-crawler/internal/metrics"
	"github.com/JakeFAU/archive-crawler/internal/telemetry"
)

// envKeyType is the key for storing the command environment in the context.
type envKeyType string

const envKey envKeyType = "env"

// env is what PersistentPreRunE builds for every subcommand.
type env struct {
	cfg      config.Config
	logger   *zap.Logger
	shutdown func(context.Context) error
}

// Crawler is the slice of *app.App the crawl command uses. It lets tests
// inject a fake.
type Crawler interface {
	Crawl(ctx context.Context, x crawler.Extractor, run crawler.RunConfig, c crawler.Confirmer) (crawler.Summary, error)
	Close()
}

// newApp is the application factory. It's a variable so we can replace it
// in tests.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (Crawler, error) {
	return app.New(ctx, cfg, logger)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "archive-crawler",
		Short: "Crawls date-indexed news archives into CSV datasets.",
		Long: `archive-crawler walks the daily archive of a news site, one calendar day
at a time, and appends one CSV row per article to a dataset file that can be
resumed after an interruption. Companion commands merge, deduplicate and split
the resulting datasets.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(logging.Options{
				Development: cfg.Logging.Development,
				Level:       cfg.Logging.Level,
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)
			metrics.Init()

			tp, err := telemetry.InitTracerProvider(cmd.Context(), "archive-crawler")
			if err != nil {
				return fmt.Errorf("init tracing: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), envKey, &env{
				cfg:      cfg,
				logger:   logger,
				shutdown: tp.Shutdown,
			}))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			e, ok := cmd.Context().Value(envKey).(*env)
			if !ok {
				return
			}
			if err := e.shutdown(context.WithoutCancel(cmd.Context())); err != nil {
				e.logger.Warn("Failed to shut down tracer provider", zap.Error(err))
			}
			// Flushing the logger buffer; errors here are expected on terminals.
			_ = e.logger.Sync()
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is ./crawler.yaml or $HOME/.archive-crawler/crawler.yaml)")

	cmd.AddCommand(
		newCrawlCmd(),
		newMergeCmd(),
		newDedupeCmd(),
		newSplitCmd(),
		newSourcesCmd(),
	)
	return cmd
}

func resolveEnv(ctx context.Context) (*env, error) {
	e, ok := ctx.Value(envKey).(*env)
	if !ok || e == nil {
		return nil, errors.New("command environment not initialized")
	}
	return e, nil
}

// Execute is the main entry point. SIGINT and SIGTERM cancel the running
// command; any error exits non-zero.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
