package sinks

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/archive-crawler/internal/progress"
	"github.com/JakeFAU/archive-crawler/internal/store"
)

// ProgressRecorder is the part of store.RunLedger the sink writes to.
type ProgressRecorder interface {
	RecordProgress(ctx context.Context, id uuid.UUID, days, records int64) error
}

// LedgerSink folds DAY_DONE events into per-run deltas and writes one ledger
// update per run per batch.
type LedgerSink struct {
	ledger ProgressRecorder
	logger *zap.Logger
}

// NewLedgerSink constructs a LedgerSink for the provided ledger.
func NewLedgerSink(ledger ProgressRecorder, logger *zap.Logger) *LedgerSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerSink{ledger: ledger, logger: logger}
}

type runDelta struct {
	days    int64
	records int64
}

// Consume ignores every stage but DAY_DONE. A run missing from the ledger is
// skipped; the ledger may have failed to record its start.
func (s *LedgerSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.ledger == nil {
		return nil
	}
	deltas := make(map[uuid.UUID]*runDelta)
	var order []uuid.UUID
	for _, evt := range batch {
		if evt.Stage != progress.StageDayDone {
			continue
		}
		d, ok := deltas[evt.RunID]
		if !ok {
			d = &runDelta{}
			deltas[evt.RunID] = d
			order = append(order, evt.RunID)
		}
		d.days++
		d.records += evt.Records
	}

	for _, id := range order {
		d := deltas[id]
		err := s.ledger.RecordProgress(ctx, id, d.days, d.records)
		if errors.Is(err, store.ErrNotFound) {
			s.logger.Debug("run not in ledger, skipping checkpoint", zap.String("run_id", id.String()))
			continue
		}
		if err != nil {
			return fmt.Errorf("checkpoint run %s: %w", id, err)
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LedgerSink) Close(context.Context) error {
	return nil
}
