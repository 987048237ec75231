// Package config provides 12-factor configuration management for flowtrace.
//
// Configuration is layered: built-in defaults, then an optional YAML, TOML
// or JSON file, then environment variables. CLI flags override all three.
//
// Configuration Sections:
//   - Input: trace paths, record format and overall timeout
//   - Reader: batch size, queue depth and record size limit of the readers
//   - Analysis: edge classification rule, palette and activation retention
//   - Output: graph, summary and metrics artifact paths
//   - Logging: Log level and output format
//
// Example Usage:
//
//	cfg, err := config.Load("flowtrace.yaml")
//	if err != nil {
//		return err
//	}
//	fmt.Println(cfg.Input.Paths)
//
// Environment Variables:
//   - FLOWTRACE_CONFIG, FLOWTRACE_INPUTS, FLOWTRACE_FORMAT, FLOWTRACE_TIMEOUT
//   - FLOWTRACE_BATCH_SIZE, FLOWTRACE_QUEUE_DEPTH, FLOWTRACE_MAX_RECORD_SIZE
//   - FLOWTRACE_EDGE_RULE, FLOWTRACE_PALETTE, FLOWTRACE_PALETTE_SIZE
//   - FLOWTRACE_OUTPUT, FLOWTRACE_SUMMARY, FLOWTRACE_METRICS_FILE
//   - FLOWTRACE_LOG_LEVEL, FLOWTRACE_LOG_DEV
package config
