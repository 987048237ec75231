package monitoring

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	m := NewMetrics()

	m.AddEvents("operator", 3)
	m.AddEvents("start", 5)
	m.AddEvents("stop", 0)
	m.AddAnomalies("decode", "unknown_kind", 2)
	m.RecordSource("ok")
	m.RecordSource("ok")
	m.RecordSource("fatal_io")
	m.ObserveActivation(40 * time.Microsecond)
	m.AddBytes(1024)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.EventsDecoded.WithLabelValues("operator")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.EventsDecoded.WithLabelValues("start")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Anomalies.WithLabelValues("decode", "unknown_kind")))
	assert.Equal(t, 1024.0, testutil.ToFloat64(m.BytesRead))

	snap := m.Snapshot()
	assert.Equal(t, int64(8), snap.Events)
	assert.Equal(t, int64(2), snap.Anomalies)
	assert.Equal(t, int64(1), snap.Activations)
	assert.Equal(t, map[string]int64{"ok": 2, "fatal_io": 1}, snap.Sources)
}

func TestRegistriesAreIndependent(t *testing.T) {
	a, b := NewMetrics(), NewMetrics()
	a.AddEvents("operator", 1)
	assert.Equal(t, 0.0, testutil.ToFloat64(b.EventsDecoded.WithLabelValues("operator")))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.AddEvents("operator", 1)
		m.AddAnomalies("timing", "orphan_stop", 1)
		m.RecordSource("ok")
		m.ObserveActivation(time.Millisecond)
		m.SetGraphEntities(1, 2, 3)
		NewTimer(m, "merge").Stop()
	})
	assert.Equal(t, Snapshot{}, m.Snapshot())
}

func TestWriteTextfile(t *testing.T) {
	m := NewMetrics()
	m.AddEvents("message", 7)
	m.SetGraphEntities(4, 2, 5)
	NewTimer(m, "export").Stop()

	path := filepath.Join(t.TempDir(), "flowtrace.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.True(t, strings.Contains(out, `flowtrace_events_decoded_total{kind="message"} 7`))
	assert.Contains(t, out, `flowtrace_graph_entities{type="edge"} 5`)
	assert.Contains(t, out, `flowtrace_stage_duration_seconds_count{stage="export"} 1`)
}
