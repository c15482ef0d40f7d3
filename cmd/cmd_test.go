package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/archive-crawler/internal/config"
	"github.com/JakeFAU/archive-crawler/internal/crawler"
)

type fakeCrawler struct {
	source    string
	run       crawler.RunConfig
	confirmed bool
	err       error
	closed    bool
}

func (f *fakeCrawler) Crawl(
	_ context.Context,
	x crawler.Extractor,
	run crawler.RunConfig,
	c crawler.Confirmer,
) (crawler.Summary, error) {
	f.source = x.Name()
	f.run = run
	f.confirmed = c.ConfirmOverwrite("existing.csv")
	return crawler.Summary{Source: x.Name(), Output: "out.csv", Days: 2, Counters: crawler.Counters{RecordsAppended: 7}}, f.err
}

func (f *fakeCrawler) Close() { f.closed = true }

// isolate keeps config files and CRAWLER_ variables of the host out of the test.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	t.Setenv("CRAWLER_LOGGING_LEVEL", "error")
	return dir
}

func useFakeApp(t *testing.T, fake *fakeCrawler) {
	t.Helper()
	orig := newApp
	newApp = func(context.Context, config.Config, *zap.Logger) (Crawler, error) { return fake, nil }
	t.Cleanup(func() { newApp = orig })
}

func execute(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestSources(t *testing.T) {
	isolate(t)
	code, out, _ := execute(t, "", "sources")
	require.Equal(t, 0, code)
	assert.Equal(t, "kommersant\thttps://www.kommersant.ru\nlenta\thttps://lenta.ru/news/\n", out)
}

func TestCrawl_UsesConfigDefaults(t *testing.T) {
	isolate(t)
	fake := &fakeCrawler{}
	useFakeApp(t, fake)

	code, out, stderr := execute(t, "y\n",
		"crawl", "--source", "Lenta", "--start", "2021-01-01", "--end", "2021-01-31", "--resume")
	require.Equal(t, 0, code, stderr)

	assert.Equal(t, "lenta", fake.source)
	assert.Equal(t, 10, fake.run.Fanout)
	assert.Equal(t, 4, fake.run.Concurrency)
	assert.True(t, fake.run.Resume)
	assert.False(t, fake.run.Overwrite)
	assert.Equal(t, "2021-01-31", fake.run.EndDay.Format(crawler.DayLayout))
	assert.True(t, fake.confirmed)
	assert.True(t, fake.closed)
	assert.Equal(t, "lenta: 2 day(s), 7 record(s) appended to out.csv\n", out)
	assert.Contains(t, stderr, "Overwrite it? [y/N]")
}

func TestCrawl_FlagsOverrideConfig(t *testing.T) {
	isolate(t)
	fake := &fakeCrawler{}
	useFakeApp(t, fake)

	code, _, stderr := execute(t, "",
		"crawl", "--source", "kommersant", "--start", "2021-01-01", "--end", "2021-01-02",
		"--fanout", "3", "--concurrency", "12", "--output", "k.csv", "--overwrite")
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, 3, fake.run.Fanout)
	assert.Equal(t, 12, fake.run.Concurrency)
	assert.Equal(t, "k.csv", fake.run.Output)
	assert.True(t, fake.run.Overwrite)
	// EOF on stdin declines.
	assert.False(t, fake.confirmed)
}

func TestCrawl_Failures(t *testing.T) {
	testCases := []struct {
		name    string
		args    []string
		crawl   error
		wantErr string
	}{
		{
			name:    "bad start day",
			args:    []string{"--source", "lenta", "--start", "2021-13-01", "--end", "2021-01-02"},
			wantErr: "invalid run: --start",
		},
		{
			name:    "unknown source",
			args:    []string{"--source", "pravda", "--start", "2021-01-01", "--end", "2021-01-02"},
			wantErr: "unknown source",
		},
		{
			name:    "missing flag",
			args:    []string{"--source", "lenta", "--start", "2021-01-01"},
			wantErr: `required flag(s) "end" not set`,
		},
		{
			name:    "run error",
			args:    []string{"--source", "lenta", "--start", "2021-01-01", "--end", "2021-01-02"},
			crawl:   errors.New("boom"),
			wantErr: "boom",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			isolate(t)
			useFakeApp(t, &fakeCrawler{err: tc.crawl})
			code, _, stderr := execute(t, "", append([]string{"crawl"}, tc.args...)...)
			assert.Equal(t, 1, code)
			assert.Contains(t, stderr, tc.wantErr)
		})
	}
}

func TestCrawl_BadConfigFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("crawl:\n  fanout: 0\n"), 0o600))

	code, _, stderr := execute(t, "", "--config", path, "sources")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "crawl.fanout must be > 0")
}

func TestDatasetCommands(t *testing.T) {
	dir := isolate(t)
	a := filepath.Join(dir, "a.csv")
	b := filepath.Join(dir, "b.csv")
	require.NoError(t, os.WriteFile(a, []byte("date,title,text,topic\n"+
		"2021/01/02,T2,second,x\n"+
		"2020/12/31,T0,old,x\n"), 0o600))
	require.NoError(t, os.WriteFile(b, []byte("date,title,text\n"+
		"2021/01/01,T1,first\n"+
		"2021/01/02,T2,second again\n"), 0o600))

	merged := filepath.Join(dir, "merged.csv")
	code, out, stderr := execute(t, "", "merge",
		"--inputs", a+","+b+","+filepath.Join(dir, "missing.csv"),
		"--start", "2020-12-31", "--end", "2021-01-02",
		"--output", merged, "--skip-missing")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "merged 4 record(s)")
	assert.Contains(t, stderr, "skipped missing input")

	deduped := filepath.Join(dir, "deduped.csv")
	code, out, stderr = execute(t, "", "dedupe", "--input", merged, "--output", deduped)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "removed 1 duplicate(s)")

	code, out, stderr = execute(t, "", "split", "--input", deduped, "--output-dir", dir, "--name", "news")
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, filepath.Join(dir, "news_2020.csv")+"\n"+filepath.Join(dir, "news_2021.csv")+"\n", out)

	data, err := os.ReadFile(filepath.Join(dir, "news_2021.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "date,title,text", lines[0])
	assert.Equal(t, "2021-01-01,T1,first", lines[1])
}

func TestPromptConfirmer(t *testing.T) {
	testCases := map[string]bool{
		"y\n":   true,
		"YES\n": true,
		" y ":   true,
		"n\n":   false,
		"\n":    false,
		"":      false,
		"maybe": false,
	}
	for input, want := range testCases {
		var out bytes.Buffer
		c := promptConfirmer(strings.NewReader(input), &out)
		assert.Equal(t, want, c.ConfirmOverwrite("d.csv"), "input %q", input)
		assert.Equal(t, "Dataset d.csv already exists. Overwrite it? [y/N]: ", out.String())
	}
}
