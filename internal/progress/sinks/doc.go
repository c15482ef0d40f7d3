// Package sinks implements progress consumers: a structured log sink and a
// sink that checkpoints the run ledger as days complete.
package sinks
