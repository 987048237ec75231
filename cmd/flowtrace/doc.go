// Package main is the flowtrace command line tool.
//
// flowtrace reads the per-worker trace streams of a dataflow program,
// reconstructs the dataflow graph, aggregates operator activation times
// and writes the resulting graph model as JSON for rendering.
//
// Pipeline:
//
//	trace files → concurrent readers → merged feed → topology + activations
//	            → palette → graph JSON (+ run summary, + metrics textfile)
//
// Configuration:
//   - Config file (-config or FLOWTRACE_CONFIG), YAML, TOML or JSON
//   - Environment variables (FLOWTRACE_*)
//   - CLI flags (override both)
//
// Usage:
//
//	# Analyze every trace file below a directory
//	./flowtrace -output graph.json traces/
//
//	# Globs, JSON-lines fixtures and stdin
//	./flowtrace -format json 'fixtures/**/*.jsonl'
//	cat worker-0.ftrace | ./flowtrace -
//
//	# Bounded run with a summary and metrics dump
//	./flowtrace -timeout 30s -summary summary.json -metrics flowtrace.prom traces/
//
// Signals:
//   - SIGINT, SIGTERM: stop reading, export what was read so far
//
// Exit status is 0 on success, 1 when the run failed or had no usable
// input, and 2 on invalid usage.
package main
