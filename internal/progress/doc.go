// Package progress carries run and day milestones from the crawl engine to
// pluggable sinks. Events are buffered and flushed in batches on a background
// goroutine so the engine never waits on a slow sink.
package progress
