package dataset

import "errors"

var (
	// ErrStoreInit signals that a fresh dataset could not be created.
	ErrStoreInit = errors.New("dataset init failed")
	// ErrRecordMismatch signals that records could not be written to a dataset,
	// either because it cannot be opened or because a record does not fit its schema.
	ErrRecordMismatch = errors.New("dataset record mismatch")
	// ErrEmptyStore signals that a dataset holds no data rows.
	ErrEmptyStore = errors.New("dataset has no records")
)
