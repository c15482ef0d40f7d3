// Package dataset implements the append-only CSV record store that crawl runs
// write into, together with the offline tools that merge, deduplicate and split
// finished datasets.
//
// A dataset file starts with a header naming the schema fields in order and is
// followed by one row per record. Rows are only ever appended; nothing in this
// package rewrites a row once it has been written to a live dataset.
package dataset
