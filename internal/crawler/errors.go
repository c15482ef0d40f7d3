package crawler

import "errors"

// ErrInvalidRun signals a run whose preconditions do not hold. Such runs never
// touch the dataset.
var ErrInvalidRun = errors.New("invalid run")
