package dataset_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/archive-crawler/internal/dataset"
)

var lentaSchema = []string{"date", "title", "text", "topic", "subtopic"}

func newStore() *dataset.Store {
	return dataset.NewStore(nil, dataset.WithoutSync())
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	// #nosec G304 -- test reads from the controlled temp directory.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestPrepare(t *testing.T) {
	t.Parallel()

	t.Run("CreatesParentsAndHeader", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "lenta_dataset", "nested", "out.csv")
		require.NoError(t, newStore().Prepare(path, lentaSchema))
		assert.Equal(t, "date,title,text,topic,subtopic\n", readFile(t, path))
	})

	t.Run("TruncatesExisting", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.csv")
		require.NoError(t, os.WriteFile(path, []byte("old,content\n1,2\n"), 0o600))
		require.NoError(t, newStore().Prepare(path, []string{"date", "text"}))
		assert.Equal(t, "date,text\n", readFile(t, path))
	})

	t.Run("ParentIsAFile", func(t *testing.T) {
		dir := t.TempDir()
		blocker := filepath.Join(dir, "blocker")
		require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))
		err := newStore().Prepare(filepath.Join(blocker, "out.csv"), lentaSchema)
		assert.ErrorIs(t, err, dataset.ErrStoreInit)
	})

	t.Run("EmptySchema", func(t *testing.T) {
		err := newStore().Prepare(filepath.Join(t.TempDir(), "out.csv"), nil)
		assert.ErrorIs(t, err, dataset.ErrStoreInit)
	})
}

func TestAppendKeepsSchemaOrderAndCallOrder(t *testing.T) {
	t.Parallel()

	store := newStore()
	path := filepath.Join(t.TempDir(), "out.csv")
	schema := []string{"date", "title", "text"}
	require.NoError(t, store.Prepare(path, schema))

	require.NoError(t, store.Append(path, schema,
		dataset.Record{"text": "body one", "date": "2021/01/01", "title": "first"},
		dataset.Record{"title": "second", "text": "body, with comma", "date": "2021/01/01"},
	))
	require.NoError(t, store.Append(path, schema,
		dataset.Record{"date": "2021/01/02", "text": "line one\nline two"},
	))

	want := "date,title,text\n" +
		"2021/01/01,first,body one\n" +
		"2021/01/01,second,\"body, with comma\"\n" +
		"2021/01/02,,\"line one\nline two\"\n"
	assert.Equal(t, want, readFile(t, path))

	header, records, err := store.ReadAll(path)
	require.NoError(t, err)
	assert.Equal(t, schema, header)
	require.Len(t, records, 3)
	assert.Equal(t, "first", records[0]["title"])
	assert.Equal(t, "second", records[1]["title"])
	assert.Equal(t, "line one\nline two", records[2]["text"])
}

func TestAppendInfersSchemaFromHeader(t *testing.T) {
	t.Parallel()

	store := newStore()
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, store.Prepare(path, []string{"text", "date"}))
	require.NoError(t, store.Append(path, nil, dataset.Record{"date": "2021/01/01", "text": "hello"}))
	assert.Equal(t, "text,date\nhello,2021/01/01\n", readFile(t, path))
}

func TestAppendRejectsUnknownField(t *testing.T) {
	t.Parallel()

	store := newStore()
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, store.Prepare(path, []string{"date", "text"}))

	err := store.Append(path, []string{"date", "text"}, dataset.Record{"date": "2021/01/01", "author": "x"})
	require.ErrorIs(t, err, dataset.ErrRecordMismatch)
	assert.Equal(t, "date,text\n", readFile(t, path), "no partial write on mismatch")
}

func TestAppendMissingDestination(t *testing.T) {
	t.Parallel()

	err := newStore().Append(filepath.Join(t.TempDir(), "missing.csv"), []string{"date", "text"},
		dataset.Record{"date": "2021/01/01", "text": "x"})
	assert.ErrorIs(t, err, dataset.ErrRecordMismatch)
}

func TestLastRecordDate(t *testing.T) {
	t.Parallel()

	store := newStore()
	schema := []string{"date", "title", "text"}

	t.Run("ReturnsFinalRow", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.csv")
		require.NoError(t, store.Prepare(path, schema))
		require.NoError(t, store.Append(path, schema,
			dataset.Record{"date": "2021/01/01", "text": "a"},
			dataset.Record{"date": "2021/01/02", "text": "multi\nline\n2021/01/09"},
		))
		got, err := store.LastRecordDate(path, schema)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2021, 1, 2, 0, 0, 0, 0, time.UTC), got)

		got, err = store.LastRecordDate(path, nil)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2021, 1, 2, 0, 0, 0, 0, time.UTC), got)
	})

	t.Run("HeaderOnly", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.csv")
		require.NoError(t, store.Prepare(path, schema))
		_, err := store.LastRecordDate(path, schema)
		assert.ErrorIs(t, err, dataset.ErrEmptyStore)
	})

	t.Run("Absent", func(t *testing.T) {
		_, err := store.LastRecordDate(filepath.Join(t.TempDir(), "nope.csv"), schema)
		assert.ErrorIs(t, err, dataset.ErrEmptyStore)
	})

	t.Run("ZeroBytes", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.csv")
		require.NoError(t, os.WriteFile(path, nil, 0o600))
		_, err := store.LastRecordDate(path, schema)
		assert.ErrorIs(t, err, dataset.ErrEmptyStore)
	})
}

func TestHeader(t *testing.T) {
	t.Parallel()

	store := newStore()
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, os.WriteFile(path, []byte("date,text,title\n2024/01/01,body,Title\n"), 0o600))
	header, err := store.Header(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"date", "text", "title"}, header)

	empty := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	_, err = store.Header(empty)
	assert.ErrorIs(t, err, dataset.ErrEmptyStore)

	_, err = store.Header(filepath.Join(t.TempDir(), "nope.csv"))
	assert.ErrorIs(t, err, dataset.ErrRecordMismatch)
}

func TestExists(t *testing.T) {
	t.Parallel()

	store := newStore()
	path := filepath.Join(t.TempDir(), "out.csv")
	assert.False(t, store.Exists(path))
	require.NoError(t, store.Prepare(path, lentaSchema))
	assert.True(t, store.Exists(path))
}

func TestDefaultFilename(t *testing.T) {
	t.Parallel()

	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2021, 12, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t,
		filepath.Join("lenta_dataset", "lenta-2021-01-01-to-2021-12-31.csv"),
		dataset.DefaultFilename("lenta", start, end),
	)
}

func TestParseAndConvertDate(t *testing.T) {
	t.Parallel()

	want := time.Date(2021, 3, 4, 0, 0, 0, 0, time.UTC)
	for _, raw := range []string{"2021/03/04", "2021-03-04"} {
		got, err := dataset.ParseDate(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got)
	}
	_, err := dataset.ParseDate("04.03.2021")
	assert.Error(t, err)

	converted, err := dataset.ConvertDate("2021/03/04", dataset.MergedDateLayout)
	require.NoError(t, err)
	assert.Equal(t, "2021-03-04", converted)
}
