package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Store reads and writes CSV datasets on the local filesystem.
type Store struct {
	logger *zap.Logger
	sync   bool
}

// Option customizes a Store.
type Option func(*Store)

// WithoutSync skips the fsync after each append. Only tests and offline tools
// that rewrite whole files should use it.
func WithoutSync() Option {
	return func(s *Store) { s.sync = false }
}

// NewStore returns a Store that fsyncs every append.
func NewStore(logger *zap.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{logger: logger, sync: true}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DefaultFilename derives the dataset path used when a run names no output.
func DefaultFilename(source string, start, end time.Time) string {
	return filepath.Join(
		source+"_dataset",
		fmt.Sprintf("%s-%s-to-%s.csv", source, start.Format(MergedDateLayout), end.Format(MergedDateLayout)),
	)
}

// Exists reports whether something already lives at destination.
func (s *Store) Exists(destination string) bool {
	_, err := os.Stat(destination)
	return err == nil
}

// Prepare creates destination (and its parent directories) and writes a fresh
// header, truncating anything that was there before.
func (s *Store) Prepare(destination string, schema []string) error {
	if len(schema) == 0 {
		return fmt.Errorf("%w: empty schema for %s", ErrStoreInit, destination)
	}
	if dir := filepath.Dir(destination); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("%w: create dir %s: %w", ErrStoreInit, dir, err)
		}
	}
	// #nosec G304 -- destination is operator supplied.
	f, err := os.OpenFile(destination, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", ErrStoreInit, destination, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(schema); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: write header to %s: %w", ErrStoreInit, destination, err)
	}
	if err := s.finish(w, f); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreInit, err)
	}
	s.logger.Debug("dataset prepared", zap.String("path", destination), zap.Strings("schema", schema))
	return nil
}

// Append writes records to the end of an existing dataset, one row per record.
// A nil schema is read from the dataset header.
func (s *Store) Append(destination string, schema []string, records ...Record) error {
	if schema == nil {
		header, err := s.Header(destination)
		if err != nil {
			return err
		}
		schema = header
	}

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		row, err := rec.Row(schema)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	// #nosec G304 -- destination is operator supplied.
	f, err := os.OpenFile(destination, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", ErrRecordMismatch, destination, err)
	}
	w := csv.NewWriter(f)
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			_ = f.Close()
			return fmt.Errorf("%w: write row to %s: %w", ErrRecordMismatch, destination, err)
		}
	}
	if err := s.finish(w, f); err != nil {
		return fmt.Errorf("%w: %w", ErrRecordMismatch, err)
	}
	return nil
}

// Header returns the schema declared by the dataset's first row. A file
// without any row is ErrEmptyStore.
func (s *Store) Header(destination string) ([]string, error) {
	// #nosec G304 -- destination is operator supplied.
	f, err := os.Open(destination)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrRecordMismatch, destination, err)
	}
	defer f.Close() //nolint:errcheck // read-only

	header, err := csv.NewReader(f).Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s is empty", ErrEmptyStore, destination)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read header of %s: %w", ErrRecordMismatch, destination, err)
	}
	return header, nil
}

// LastRecordDate returns the date column of the dataset's final record.
// A nil schema is read from the header.
func (s *Store) LastRecordDate(destination string, schema []string) (time.Time, error) {
	// #nosec G304 -- destination is operator supplied.
	f, err := os.Open(destination)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return time.Time{}, fmt.Errorf("%w: %s does not exist", ErrEmptyStore, destination)
		}
		return time.Time{}, fmt.Errorf("open %s: %w", destination, err)
	}
	defer f.Close() //nolint:errcheck // read-only

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return time.Time{}, fmt.Errorf("%w: %s is empty", ErrEmptyStore, destination)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("read header of %s: %w", destination, err)
	}
	if schema == nil {
		schema = header
	}
	idx := fieldIndex(schema, FieldDate)
	if idx < 0 {
		return time.Time{}, fmt.Errorf("%w: schema %v has no %s field", ErrRecordMismatch, schema, FieldDate)
	}

	// Quoted article text can span physical lines, so the last logical CSV
	// record is found by reading forward rather than seeking to the last line.
	var last []string
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return time.Time{}, fmt.Errorf("read %s: %w", destination, err)
		}
		last = row
	}
	if last == nil {
		return time.Time{}, fmt.Errorf("%w: %s has only a header", ErrEmptyStore, destination)
	}
	if idx >= len(last) {
		return time.Time{}, fmt.Errorf("%w: last row of %s has %d fields", ErrRecordMismatch, destination, len(last))
	}
	return ParseDate(last[idx])
}

// ReadAll loads every record of a dataset keyed by its header.
func (s *Store) ReadAll(destination string) ([]string, []Record, error) {
	// #nosec G304 -- destination is operator supplied.
	f, err := os.Open(destination)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", destination, err)
	}
	defer f.Close() //nolint:errcheck // read-only

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read header of %s: %w", ErrRecordMismatch, destination, err)
	}
	var records []Record
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%w: read %s: %w", ErrRecordMismatch, destination, err)
		}
		rec := make(Record, len(header))
		for i, field := range header {
			rec[field] = row[i]
		}
		records = append(records, rec)
	}
	return header, records, nil
}

// WriteNew replaces destination with a dataset holding exactly records.
func (s *Store) WriteNew(destination string, schema []string, records []Record) error {
	if err := s.Prepare(destination, schema); err != nil {
		return err
	}
	return s.Append(destination, schema, records...)
}

func (s *Store) finish(w *csv.Writer, f *os.File) error {
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("flush %s: %w", f.Name(), err)
	}
	if s.sync {
		if err := f.Sync(); err != nil {
			_ = f.Close()
			return fmt.Errorf("sync %s: %w", f.Name(), err)
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", f.Name(), err)
	}
	return nil
}
