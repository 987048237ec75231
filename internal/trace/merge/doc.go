// Package merge fans in per-worker trace streams into a single event feed.
//
// Each source gets its own reader goroutine that owns its decoder. Readers
// push batches of decoded events onto one shared bounded channel, which acts
// as the ready queue: whichever source has data makes progress, and the
// per-event cost does not grow with the number of sources. A source that
// reaches end of stream reports its decoder statistics and leaves the active
// set.
//
// The consumer callback runs on the caller's goroutine, so downstream
// aggregation state needs no locking. Events of one source are delivered in
// decode order; no order is imposed across sources.
//
// Cancellation and the optional cutoff close every open source, which
// unblocks pending reads. Events decoded before that point are still
// delivered and the result is marked truncated.
package merge
