// Package audit carries the engine's structured audit records from the
// saga hot path to a pluggable sink without blocking it. Records are
// buffered on a channel and drained by a single dispatcher goroutine;
// the channel either applies backpressure or drops under load, by
// configuration.
package audit
