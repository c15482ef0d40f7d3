package cmd

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/archive-crawler/internal/crawler"
	"github.com/JakeFAU/archive-crawler/internal/dataset"
)

const defaultFields = "date,title,text"

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func newMergeCmd() *cobra.Command {
	var (
		inputs, fields, start, end, output string
		skipMissing                        bool
	)
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merges per-run datasets into one date-sorted file",
		Long: `Reads every --inputs dataset, keeps rows dated within [--start, --end],
projects them onto --fields and writes them sorted by date. Dates are rewritten
to YYYY-MM-DD.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := resolveEnv(cmd.Context())
			if err != nil {
				return err
			}
			from, err := crawler.ParseDay(start)
			if err != nil {
				return fmt.Errorf("--start: %w", err)
			}
			to, err := crawler.ParseDay(end)
			if err != nil {
				return fmt.Errorf("--end: %w", err)
			}
			res, err := dataset.NewStore(e.logger.Named("dataset")).Merge(cmd.Context(), dataset.MergeOptions{
				Inputs:      splitList(inputs),
				Output:      output,
				Schema:      splitList(fields),
				Start:       from,
				End:         to,
				SkipMissing: skipMissing,
			})
			if err != nil {
				return err
			}
			for _, skipped := range res.Skipped {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipped missing input %s\n", skipped)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "merged %d record(s) into %s\n", res.Records, output)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&inputs, "inputs", "", "comma-separated dataset paths")
	flags.StringVar(&fields, "fields", defaultFields, "comma-separated output schema; must include date")
	flags.StringVar(&start, "start", "", "first day kept, YYYY-MM-DD")
	flags.StringVar(&end, "end", "", "last day kept, YYYY-MM-DD")
	flags.StringVar(&output, "output", "merged_dataset.csv", "merged dataset path")
	flags.BoolVar(&skipMissing, "skip-missing", false, "ignore inputs that do not exist")
	for _, name := range []string{"inputs", "start", "end"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newDedupeCmd() *cobra.Command {
	var input, output, fields string
	cmd := &cobra.Command{
		Use:   "dedupe",
		Short: "Drops rows repeating an earlier date and title",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := resolveEnv(cmd.Context())
			if err != nil {
				return err
			}
			if output == "" {
				output = strings.TrimSuffix(input, ".csv") + "_deduplicated.csv"
			}
			removed, err := dataset.NewStore(e.logger.Named("dataset")).Dedupe(input, output, splitList(fields))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d duplicate(s), wrote %s\n", removed, output)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&input, "input", "", "dataset to deduplicate")
	flags.StringVar(&output, "output", "", "output path (default <input>_deduplicated.csv)")
	flags.StringVar(&fields, "fields", "", "comma-separated output schema (default: input header)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func newSplitCmd() *cobra.Command {
	var input, outputDir, name, fields string
	cmd := &cobra.Command{
		Use:   "split",
		Short: "Splits a dataset into one file per year",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := resolveEnv(cmd.Context())
			if err != nil {
				return err
			}
			files, err := dataset.NewStore(e.logger.Named("dataset")).Split(input, outputDir, name, splitList(fields))
			if err != nil {
				return err
			}
			years := make([]int, 0, len(files))
			for year := range files {
				years = append(years, year)
			}
			slices.Sort(years)
			for _, year := range years {
				fmt.Fprintln(cmd.OutOrStdout(), files[year])
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&input, "input", "", "dataset to split")
	flags.StringVar(&outputDir, "output-dir", ".", "directory receiving <name>_<year>.csv")
	flags.StringVar(&name, "name", "dataset", "file name prefix")
	flags.StringVar(&fields, "fields", "", "comma-separated output schema (default: input header)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}
