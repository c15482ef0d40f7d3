package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/archive-crawler/internal/store"
)

var runCols = []string{
	"id", "source", "output", "start_day", "end_day", "resume", "started_at", "finished_at",
	"status", "days_completed", "records_appended", "last_day", "error_message",
}

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *RunStore) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	s, err := NewRunStoreWithPool(mock, "")
	require.NoError(t, err)
	return mock, s
}

func TestStartRunInsertsRow(t *testing.T) {
	t.Parallel()
	mock, s := newMockStore(t)

	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	run := store.Run{
		ID:        uuid.New(),
		Source:    "lenta",
		Output:    "lenta_dataset/lenta.csv",
		StartDay:  day,
		EndDay:    day.AddDate(0, 0, 3),
		Resume:    true,
		StartedAt: day.Add(time.Hour),
	}
	mock.ExpectExec("INSERT INTO crawl_runs").
		WithArgs(run.ID, run.Source, run.Output, run.StartDay, run.EndDay, run.Resume, run.StartedAt, store.RunRunning).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.StartRun(context.Background(), run))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStartRunWrapsError(t *testing.T) {
	t.Parallel()
	mock, s := newMockStore(t)
	run := store.Run{ID: uuid.New()}
	mock.ExpectExec("INSERT INTO crawl_runs").
		WithArgs(run.ID, run.Source, run.Output, run.StartDay, run.EndDay, run.Resume, run.StartedAt, store.RunRunning).
		WillReturnError(errors.New("db down"))

	err := s.StartRun(context.Background(), run)
	require.ErrorContains(t, err, "insert run")
	require.ErrorContains(t, err, "db down")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteRun(t *testing.T) {
	t.Parallel()
	mock, s := newMockStore(t)
	id := uuid.New()
	msg := "append failed"
	lastDay := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	outcome := store.RunOutcome{
		FinishedAt:      time.Unix(1700000000, 0).UTC(),
		Status:          store.RunError,
		DaysCompleted:   3,
		RecordsAppended: 120,
		LastDay:         &lastDay,
		ErrorMessage:    &msg,
	}
	mock.ExpectExec("last_day = \\$5").
		WithArgs(outcome.FinishedAt, outcome.Status, outcome.DaysCompleted, outcome.RecordsAppended,
			outcome.LastDay, outcome.ErrorMessage, id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, s.CompleteRun(context.Background(), id, outcome))

	mock.ExpectExec("UPDATE crawl_runs").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	require.ErrorIs(t, s.CompleteRun(context.Background(), uuid.New(), outcome), store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRun(t *testing.T) {
	t.Parallel()
	mock, s := newMockStore(t)
	id := uuid.New()
	started := time.Unix(1700000000, 0).UTC()
	finished := started.Add(time.Minute)
	lastDay := time.Date(2023, 11, 14, 0, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows(runCols).AddRow(
		id, "kommersant", "out.csv", started, started, false, started, &finished,
		store.RunSuccess, int64(2), int64(40), &lastDay, (*string)(nil),
	)
	mock.ExpectQuery("SELECT .* FROM crawl_runs WHERE id").WithArgs(id).WillReturnRows(rows)

	run, err := s.GetRun(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, "kommersant", run.Source)
	require.Equal(t, store.RunSuccess, run.Status)
	require.Equal(t, int64(40), run.RecordsAppended)
	require.NotNil(t, run.FinishedAt)
	require.NotNil(t, run.LastDay)
	require.Equal(t, lastDay, *run.LastDay)
	require.Nil(t, run.ErrorMessage)

	mock.ExpectQuery("SELECT .* FROM crawl_runs WHERE id").WithArgs(id).WillReturnError(pgx.ErrNoRows)
	_, err = s.GetRun(context.Background(), id)
	require.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListRuns(t *testing.T) {
	t.Parallel()
	mock, s := newMockStore(t)
	started := time.Unix(1700000000, 0).UTC()

	rows := pgxmock.NewRows(runCols).
		AddRow(uuid.New(), "lenta", "a.csv", started, started, false, started, (*time.Time)(nil),
			store.RunRunning, int64(0), int64(0), (*time.Time)(nil), (*string)(nil)).
		AddRow(uuid.New(), "lenta", "b.csv", started, started, true, started, (*time.Time)(nil),
			store.RunRunning, int64(1), int64(5), (*time.Time)(nil), (*string)(nil))
	mock.ExpectQuery("SELECT .* FROM crawl_runs").
		WithArgs(pgxmock.AnyArg(), 10, 0).
		WillReturnRows(rows)

	status := store.RunRunning
	runs, err := s.ListRuns(context.Background(), &status, 10, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, "b.csv", runs[1].Output)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewRunStoreWithPoolValidation(t *testing.T) {
	t.Parallel()
	_, err := NewRunStoreWithPool(nil, "")
	require.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	_, err = NewRunStoreWithPool(mock, "runs; DROP TABLE x")
	require.ErrorContains(t, err, "invalid table name")
}

func TestNewRunStoreRequiresDSN(t *testing.T) {
	t.Parallel()
	_, err := NewRunStore(context.Background(), RunStoreConfig{})
	require.ErrorContains(t, err, "db.dsn")
}

func TestRecordProgress(t *testing.T) {
	t.Parallel()
	mock, s := newMockStore(t)
	id := uuid.New()

	mock.ExpectExec("days_completed = days_completed \\+ \\$1").
		WithArgs(int64(1), int64(42), id, store.RunRunning).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, s.RecordProgress(context.Background(), id, 1, 42))

	mock.ExpectExec("UPDATE crawl_runs").
		WithArgs(int64(1), int64(0), id, store.RunRunning).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	require.ErrorIs(t, s.RecordProgress(context.Background(), id, 1, 0), store.ErrNotFound)

	mock.ExpectExec("UPDATE crawl_runs").
		WithArgs(int64(1), int64(0), id, store.RunRunning).
		WillReturnError(errors.New("db down"))
	err := s.RecordProgress(context.Background(), id, 1, 0)
	require.ErrorContains(t, err, "record run progress: db down")
	require.NoError(t, mock.ExpectationsWereMet())
}
