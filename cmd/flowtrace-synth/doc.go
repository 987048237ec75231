// Package main is flowtrace-synth, a generator for synthetic multi-worker
// trace files.
//
// Every worker gets its own file containing the same dataflow topology
// with randomized activation times. Output can be damaged on purpose to
// exercise the reader's anomaly handling.
//
// Usage:
//
//	# Four workers, binary, into ./traces
//	./flowtrace-synth -dir traces
//
//	# JSON-lines, zstd compressed, larger program
//	./flowtrace-synth -dir traces -format json -compress zst -dataflows 8 -operators 20
//
//	# Garbage records and a cut-off tail
//	./flowtrace-synth -dir traces -garbage 0.01 -truncate
package main
