package dataset

import (
	"fmt"
	"slices"
	"time"
)

// Date layouts used on either side of the per-run/merged boundary.
const (
	// RecordDateLayout is how a crawl run stamps the date column.
	RecordDateLayout = "2006/01/02"
	// MergedDateLayout is used by run invocation and by merged datasets.
	MergedDateLayout = "2006-01-02"
)

// Required schema fields.
const (
	FieldDate  = "date"
	FieldText  = "text"
	FieldTitle = "title"
)

// Record is one extracted article keyed by schema field name.
type Record map[string]string

// Row projects the record onto schema order. Fields missing from the record
// are written empty; fields outside the schema are rejected.
func (r Record) Row(schema []string) ([]string, error) {
	for field := range r {
		if !slices.Contains(schema, field) {
			return nil, fmt.Errorf("%w: field %q is not in schema %v", ErrRecordMismatch, field, schema)
		}
	}
	row := make([]string, len(schema))
	for i, field := range schema {
		row[i] = r[field]
	}
	return row, nil
}

// ParseDate accepts either the per-run or the merged date layout.
func ParseDate(raw string) (time.Time, error) {
	for _, layout := range []string{RecordDateLayout, MergedDateLayout} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("date %q matches neither %s nor %s", raw, RecordDateLayout, MergedDateLayout)
}

// ConvertDate rewrites a date in either layout into the target layout.
func ConvertDate(raw, layout string) (string, error) {
	t, err := ParseDate(raw)
	if err != nil {
		return "", err
	}
	return t.Format(layout), nil
}

func fieldIndex(schema []string, field string) int {
	return slices.Index(schema, field)
}
