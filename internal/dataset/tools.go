package dataset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// MergeOptions describe one merge of per-run datasets.
type MergeOptions struct {
	Inputs      []string
	Output      string
	Schema      []string
	Start       time.Time
	End         time.Time
	SkipMissing bool
}

// MergeResult summarizes a merge.
type MergeResult struct {
	Records int
	Skipped []string
}

// Merge combines per-run datasets into one file sorted by date. Dates are
// rewritten from the per-run layout to MergedDateLayout and rows outside
// [Start, End] are dropped.
func (s *Store) Merge(ctx context.Context, opts MergeOptions) (MergeResult, error) {
	var res MergeResult
	if opts.Output == "" {
		opts.Output = "merged_dataset.csv"
	}
	if fieldIndex(opts.Schema, FieldDate) < 0 {
		return res, fmt.Errorf("merge schema %v has no %s field", opts.Schema, FieldDate)
	}
	if opts.End.Before(opts.Start) {
		return res, fmt.Errorf("merge window end %s is before start %s",
			opts.End.Format(MergedDateLayout), opts.Start.Format(MergedDateLayout))
	}

	type dated struct {
		day time.Time
		rec Record
	}
	var merged []dated
	for _, input := range opts.Inputs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		header, records, err := s.ReadAll(input)
		if errors.Is(err, os.ErrNotExist) {
			if opts.SkipMissing {
				s.logger.Warn("skipping missing dataset", zap.String("path", input))
				res.Skipped = append(res.Skipped, input)
				continue
			}
			return res, fmt.Errorf("dataset %s does not exist; enable skip-missing to ignore it: %w", input, err)
		}
		if err != nil {
			return res, err
		}
		for _, field := range opts.Schema {
			if !slices.Contains(header, field) {
				return res, fmt.Errorf("%w: %s has no %q column", ErrRecordMismatch, input, field)
			}
		}
		for _, rec := range records {
			day, err := ParseDate(rec[FieldDate])
			if err != nil {
				return res, fmt.Errorf("%s: %w", input, err)
			}
			if day.Before(opts.Start) || day.After(opts.End) {
				continue
			}
			projected := make(Record, len(opts.Schema))
			for _, field := range opts.Schema {
				projected[field] = rec[field]
			}
			projected[FieldDate] = day.Format(MergedDateLayout)
			merged = append(merged, dated{day: day, rec: projected})
		}
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].day.Before(merged[j].day) })
	out := make([]Record, len(merged))
	for i, d := range merged {
		out[i] = d.rec
	}
	if err := s.WriteNew(opts.Output, opts.Schema, out); err != nil {
		return res, err
	}
	res.Records = len(out)
	s.logger.Info("datasets merged",
		zap.Strings("inputs", opts.Inputs),
		zap.String("output", opts.Output),
		zap.Int("records", res.Records),
	)
	return res, nil
}

// Dedupe rewrites input into output without rows repeating an earlier
// date+title pair. The surviving row keeps the position of the first
// occurrence and the content of the last one.
func (s *Store) Dedupe(input, output string, schema []string) (int, error) {
	header, records, err := s.ReadAll(input)
	if err != nil {
		return 0, err
	}
	if schema == nil {
		schema = header
	}
	for _, field := range []string{FieldDate, FieldTitle} {
		if !slices.Contains(header, field) {
			return 0, fmt.Errorf("%w: %s has no %q column", ErrRecordMismatch, input, field)
		}
	}

	positions := make(map[string]int)
	var out []Record
	for _, rec := range records {
		projected := make(Record, len(schema))
		for _, field := range schema {
			projected[field] = rec[field]
		}
		key := rec[FieldDate] + rec[FieldTitle]
		if pos, ok := positions[key]; ok {
			out[pos] = projected
			continue
		}
		positions[key] = len(out)
		out = append(out, projected)
	}
	if err := s.WriteNew(output, schema, out); err != nil {
		return 0, err
	}
	s.logger.Info("dataset deduplicated",
		zap.String("input", input),
		zap.String("output", output),
		zap.Int("before", len(records)),
		zap.Int("after", len(out)),
	)
	return len(records) - len(out), nil
}

// Split divides a dataset into one <name>_<year>.csv file per calendar year
// under outputDir. Rows without a parseable date are dropped.
func (s *Store) Split(input, outputDir, name string, schema []string) (map[int]string, error) {
	header, records, err := s.ReadAll(input)
	if err != nil {
		return nil, err
	}
	if schema == nil {
		schema = header
	}
	if !slices.Contains(header, FieldDate) {
		return nil, fmt.Errorf("%w: %s has no %q column", ErrRecordMismatch, input, FieldDate)
	}

	type dated struct {
		day time.Time
		rec Record
	}
	byYear := make(map[int][]dated)
	for _, rec := range records {
		day, err := ParseDate(rec[FieldDate])
		if err != nil {
			s.logger.Debug("dropping row with bad date", zap.String("date", rec[FieldDate]))
			continue
		}
		projected := make(Record, len(schema))
		for _, field := range schema {
			projected[field] = rec[field]
		}
		byYear[day.Year()] = append(byYear[day.Year()], dated{day: day, rec: projected})
	}

	files := make(map[int]string, len(byYear))
	for year, rows := range byYear {
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].day.Before(rows[j].day) })
		out := make([]Record, len(rows))
		for i, d := range rows {
			out[i] = d.rec
		}
		path := filepath.Join(outputDir, name+"_"+strconv.Itoa(year)+".csv")
		if err := s.WriteNew(path, schema, out); err != nil {
			return nil, err
		}
		files[year] = path
	}
	return files, nil
}
