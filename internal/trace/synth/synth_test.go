package synth

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/flowtrace/internal/trace/event"
	"github.com/GriffinCanCode/flowtrace/internal/trace/wire"
)

func decodeAll(t *testing.T, data []byte, format wire.Format) ([]event.Event, wire.Stats) {
	t.Helper()
	dec := wire.NewDecoder(bytes.NewReader(data), format)
	var out []event.Event
	for {
		ev, err := dec.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		out = append(out, ev)
	}
	return out, dec.Stats()
}

func TestGenerate(t *testing.T) {
	cfg := Config{Workers: 3, Dataflows: 2, Operators: 4, Activations: 5, Seed: 7}
	streams := Generate(cfg)
	require.Len(t, streams, 3)

	for worker, events := range streams {
		require.NotEmpty(t, events)
		assert.Equal(t, event.KindShutdown, events[len(events)-1].Kind)

		var (
			last      = events[0].Timestamp
			operators int
			open      = make(map[event.Key]int)
		)
		for _, ev := range events {
			assert.Equal(t, worker, ev.Worker)
			assert.NoError(t, ev.Validate())
			assert.GreaterOrEqual(t, ev.Timestamp, last)
			last = ev.Timestamp

			switch ev.Kind {
			case event.KindOperator:
				operators++
			case event.KindScheduleStart:
				open[ev.Addr.Key()]++
			case event.KindScheduleStop:
				open[ev.Addr.Key()]--
			}
		}
		// two dataflow roots, four children each, one region with two inner ops
		assert.Equal(t, 2*(1+4+2), operators)
		for key, n := range open {
			assert.Zero(t, n, "unbalanced activations at %s", key.Address())
		}
	}
}

func TestGenerateDeterministic(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Activations = 3
	assert.Equal(t, Generate(cfg), Generate(cfg))

	other := cfg
	other.Seed++
	assert.NotEqual(t, Generate(cfg)[0], Generate(other)[0])
}

func TestWrite(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workers = 1
	cfg.Activations = 4
	events := Generate(cfg)[0]

	tests := []struct {
		name          string
		format        wire.Format
		damage        Damage
		wantRecords   int
		wantAnomalies bool
		wantTruncated string
	}{
		{name: "binary clean", format: wire.FormatBinary, wantRecords: len(events)},
		{name: "json clean", format: wire.FormatJSON, wantRecords: len(events)},
		{name: "json ignores damage", format: wire.FormatJSON, damage: Damage{Garbage: 1, Truncate: true}, wantRecords: len(events)},
		{name: "garbage", format: wire.FormatBinary, damage: Damage{Garbage: 0.5}, wantRecords: len(events), wantAnomalies: true},
		{name: "truncated", format: wire.FormatBinary, damage: Damage{Truncate: true}, wantRecords: len(events) - 1, wantTruncated: wire.TruncPartialRecord},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Write(&buf, events, tt.format, tt.damage, 3))

			got, stats := decodeAll(t, buf.Bytes(), tt.format)
			assert.Len(t, got, tt.wantRecords)
			assert.Equal(t, events[:tt.wantRecords], got)
			assert.Equal(t, tt.wantAnomalies, stats.Anomalies > 0)
			assert.Equal(t, tt.wantTruncated != "", stats.Truncated)
			assert.Equal(t, tt.wantTruncated, stats.TruncatedReason)
		})
	}
}
