package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/archive-crawler/internal/crawler"
	"github.com/JakeFAU/archive-crawler/internal/source"
)

type crawlFlags struct {
	source      string
	start       string
	end         string
	fanout      int
	output      string
	concurrency int
	resume      bool
	overwrite   bool
}

// newCrawlCmd creates and configures the 'crawl' subcommand.
func newCrawlCmd() *cobra.Command {
	var f crawlFlags
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawls one source over a range of days",
		Long: `Walks the archive of --source from --start to --end inclusive and appends
one row per article to the dataset. With --resume the crawl continues the day
after the last record already stored. Fan-out and concurrency default to the
crawl section of the config file.`,
		Example: "  archive-crawler crawl --source lenta --start 2021-01-01 --end 2021-01-31 --concurrency 10",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd, f)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&f.source, "source", "", "source to crawl (see 'sources')")
	flags.StringVar(&f.start, "start", "", "first day, YYYY-MM-DD")
	flags.StringVar(&f.end, "end", "", "last day, YYYY-MM-DD")
	flags.IntVar(&f.fanout, "fanout", 0, "archive pages or rubrics probed per day (default crawl.fanout)")
	flags.StringVar(&f.output, "output", "", "dataset path (default <source>_dataset/<source>-<start>-to-<end>.csv)")
	flags.IntVar(&f.concurrency, "concurrency", 0, "fetches in flight per batch (default crawl.concurrency)")
	flags.BoolVar(&f.resume, "resume", false, "continue an existing dataset after its last record")
	flags.BoolVar(&f.overwrite, "overwrite", false, "replace an existing dataset without asking")
	for _, name := range []string{"source", "start", "end"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func runCrawl(cmd *cobra.Command, f crawlFlags) error {
	e, err := resolveEnv(cmd.Context())
	if err != nil {
		return err
	}
	x, err := source.Lookup(f.source)
	if err != nil {
		return err
	}
	run, err := f.runConfig(e)
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), e.cfg, e.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application services: %w", err)
	}
	defer a.Close()

	confirm := promptConfirmer(cmd.InOrStdin(), cmd.ErrOrStderr())
	summary, err := a.Crawl(cmd.Context(), x, run, confirm)
	if err != nil {
		return err
	}
	e.logger.Info("Crawl command finished.", zap.String("output", summary.Output))
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d day(s), %d record(s) appended to %s\n",
		summary.Source, summary.Days, summary.RecordsAppended, summary.Output)
	return nil
}

func (f crawlFlags) runConfig(e *env) (crawler.RunConfig, error) {
	start, err := crawler.ParseDay(f.start)
	if err != nil {
		return crawler.RunConfig{}, fmt.Errorf("%w: --start: %w", crawler.ErrInvalidRun, err)
	}
	end, err := crawler.ParseDay(f.end)
	if err != nil {
		return crawler.RunConfig{}, fmt.Errorf("%w: --end: %w", crawler.ErrInvalidRun, err)
	}
	run := crawler.RunConfig{
		StartDay:    start,
		EndDay:      end,
		Fanout:      f.fanout,
		Concurrency: f.concurrency,
		Output:      f.output,
		Resume:      f.resume,
		Overwrite:   f.overwrite,
	}
	if run.Fanout == 0 {
		run.Fanout = e.cfg.Crawl.Fanout
	}
	if run.Concurrency == 0 {
		run.Concurrency = e.cfg.Crawl.Concurrency
	}
	return run, nil
}

// promptConfirmer asks on out and reads a y/N answer from in. Anything but
// y or yes declines, including EOF.
func promptConfirmer(in io.Reader, out io.Writer) crawler.Confirmer {
	reader := bufio.NewReader(in)
	return crawler.ConfirmFunc(func(destination string) bool {
		fmt.Fprintf(out, "Dataset %s already exists. Overwrite it? [y/N]: ", destination)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true
		default:
			return false
		}
	})
}
