// Package crawler implements the day-by-day archive crawl orchestrator.
//
// An Engine walks an inclusive window of calendar days. For each day it asks
// the source Extractor for archive listing locators, fetches them in bounded
// batches, discovers and deduplicates article locators, fetches those in
// bounded batches, extracts records, stamps them with the day and appends them
// one by one to the RecordStore before moving on to the next day.
package crawler
