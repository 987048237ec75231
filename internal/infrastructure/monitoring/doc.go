/*
Package monitoring provides metrics collection for analysis runs.

# Overview

Every run gets its own Prometheus registry. Counters track decoded events,
consumed bytes, source outcomes and anomalies; histograms track activation
durations and the wall time of each pipeline stage.

# Usage

	metrics := monitoring.NewMetrics()

	metrics.AddEvents("operator", 12)
	metrics.AddAnomalies("decode", "unknown_kind", 1)

	timer := monitoring.NewTimer(metrics, "merge")
	// ... perform stage ...
	timer.Stop()

	// Dump for the node_exporter textfile collector
	metrics.WriteTextfile("/var/lib/node_exporter/flowtrace.prom")

A nil *Metrics is valid and records nothing.
*/
package monitoring
