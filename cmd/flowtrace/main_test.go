package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/flowtrace/internal/analysis"
	"github.com/GriffinCanCode/flowtrace/internal/graph/export"
	"github.com/GriffinCanCode/flowtrace/internal/trace/wire"
	"github.com/GriffinCanCode/flowtrace/tests/helpers/testutil"
)

func runCLI(t *testing.T, stdin []byte, args ...string) (int, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), append([]string{"-log-level", "error"}, args...), bytes.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String()
}

func TestRunWritesArtifacts(t *testing.T) {
	dir := t.TempDir()
	traces := filepath.Join(dir, "traces")
	require.NoError(t, os.MkdirAll(traces, 0o755))

	perWorker := testutil.ByWorker(testutil.Workload(2, 5))
	testutil.WriteTrace(t, traces, "worker-0.ftrace", perWorker[0])
	testutil.WriteTrace(t, traces, "worker-1.jsonl", perWorker[1])
	require.NoError(t, os.WriteFile(filepath.Join(traces, "README"), []byte("ignored"), 0o644))

	out := filepath.Join(dir, "out", "graph.json")
	summary := filepath.Join(dir, "out", "summary.json")
	metrics := filepath.Join(dir, "out", "flowtrace.prom")

	code, stdout := runCLI(t, nil,
		"-output", out, "-summary", summary, "-metrics", metrics, "-activations", traces)
	require.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "workers:   2")
	assert.Contains(t, stdout, "anomalies: none")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var model export.Model
	require.NoError(t, sonic.Unmarshal(data, &model))
	assert.Len(t, model.Nodes, 3)
	assert.Len(t, model.Subgraphs, 2)
	assert.Len(t, model.Edges, 3)
	assert.NotEmpty(t, model.TimelineEvents)

	data, err = os.ReadFile(summary)
	require.NoError(t, err)
	var s analysis.Summary
	require.NoError(t, sonic.Unmarshal(data, &s))
	assert.Len(t, s.Sources, 2)
	assert.Equal(t, "json", s.Sources[1].Format)

	data, err = os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(data), "flowtrace_events_decoded_total")
}

func TestRunReadsStdin(t *testing.T) {
	stream := testutil.Encode(t, wire.FormatBinary, testutil.ParentChildScenario(0))
	out := filepath.Join(t.TempDir(), "graph.json")

	code, stdout := runCLI(t, stream, "-output", out, "-")
	require.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "events:    8")
	assert.FileExists(t, out)
}

func TestRunFlagsOverrideEnvironment(t *testing.T) {
	stream := testutil.Encode(t, wire.FormatBinary, testutil.ParentChildScenario(0))
	out := filepath.Join(t.TempDir(), "graph.json")
	t.Setenv("FLOWTRACE_EDGE_RULE", "parent")
	t.Setenv("FLOWTRACE_PALETTE", "nonexistent")

	code, _ := runCLI(t, stream, "-output", out, "-palette", "viridis", "-")
	require.Equal(t, exitOK, code)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"edge_kind":"Crossing"`)
}

func TestRunWithoutUsableInput(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "graph.json")
	summary := filepath.Join(dir, "summary.json")

	code, _ := runCLI(t, nil, "-output", out, "-summary", summary, filepath.Join(dir, "missing.ftrace"))
	assert.Equal(t, exitError, code)
	assert.NoFileExists(t, out)

	data, err := os.ReadFile(summary)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"status": "fatal_io"`))
}

func TestRunUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"no inputs", nil, exitUsage},
		{"unknown flag", []string{"-frobnicate"}, exitUsage},
		{"bad log level", []string{"-log-level", "chatty", "x.ftrace"}, exitUsage},
		{"bad palette", []string{"-palette", "rainbow", "-"}, exitError},
		{"bad format", []string{"-format", "xml", "-"}, exitError},
		{"help", []string{"-h"}, exitOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := run(context.Background(), tt.args, bytes.NewReader(nil), &stdout, &stderr)
			assert.Equal(t, tt.want, code)
		})
	}
}
