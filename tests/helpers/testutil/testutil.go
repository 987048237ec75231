// Package testutil provides testing utilities and helpers for flowtrace tests.
package testutil

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/flowtrace/internal/trace/event"
	"github.com/GriffinCanCode/flowtrace/internal/trace/source"
	"github.com/GriffinCanCode/flowtrace/internal/trace/wire"
)

// MockSource is a mock implementation of source.Source for testing.
type MockSource struct {
	mock.Mock
}

// Name mocks the Name method.
func (m *MockSource) Name() string {
	args := m.Called()
	return args.String(0)
}

// Format mocks the Format method.
func (m *MockSource) Format() wire.Format {
	args := m.Called()
	return args.Get(0).(wire.Format)
}

// Open mocks the Open method.
func (m *MockSource) Open(ctx context.Context) (io.ReadCloser, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

// NewFailingSource creates a mock source whose Open always fails with err.
func NewFailingSource(t *testing.T, name string, err error) *MockSource {
	t.Helper()
	m := new(MockSource)
	m.On("Name").Return(name).Maybe()
	m.On("Format").Return(wire.FormatBinary).Maybe()
	m.On("Open", mock.Anything).Return(nil, err)
	return m
}

// Encode serializes events in the given format.
func Encode(t *testing.T, format wire.Format, events []event.Event) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc := wire.NewEncoder(&buf, format)
	require.NoError(t, enc.EncodeAll(events))
	require.NoError(t, enc.Flush())
	return buf.Bytes()
}

// MemorySource wraps encoded events as an in-memory binary source.
func MemorySource(t *testing.T, name string, events []event.Event) source.Source {
	t.Helper()
	return source.NewReader(name, bytes.NewReader(Encode(t, wire.FormatBinary, events)), wire.FormatBinary)
}

// WriteTrace writes events to dir/name, choosing the format from the name.
func WriteTrace(t *testing.T, dir, name string, events []event.Event) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, Encode(t, source.FormatForPath(name), events), 0o644))
	return path
}

// ByWorker splits events into one slice per worker, keeping relative order.
func ByWorker(events []event.Event) map[uint32][]event.Event {
	out := make(map[uint32][]event.Event)
	for _, ev := range events {
		out[ev.Worker] = append(out[ev.Worker], ev)
	}
	return out
}

// ParentChildScenario is the canonical two-operator trace: a scope [1]
// containing operator [1,1], one channel [1] -> [1,1], and one activation
// of each.
func ParentChildScenario(worker uint32) []event.Event {
	return []event.Event{
		event.Operator(worker, 1, event.Address{1}, "Dataflow"),
		event.Operator(worker, 2, event.Address{1, 1}, "Map"),
		event.Channel(worker, 3, 0,
			event.Endpoint{Addr: event.Address{1}},
			event.Endpoint{Addr: event.Address{1, 1}}),
		event.Start(worker, 90, event.Address{1}),
		event.Start(worker, 100, event.Address{1, 1}),
		event.Stop(worker, 140, event.Address{1, 1}),
		event.Stop(worker, 200, event.Address{1}),
		event.Shutdown(worker, 210),
	}
}

// Workload builds a deterministic multi-worker trace with nested scopes,
// crossing channels and repeated activations.
func Workload(workers int, activations int) []event.Event {
	var events []event.Event
	for w := 0; w < workers; w++ {
		worker := uint32(w)
		events = append(events,
			event.Operator(worker, 1, event.Address{1}, "Dataflow"),
			event.Operator(worker, 2, event.Address{1, 1}, "Input"),
			event.Operator(worker, 3, event.Address{1, 2}, "Region"),
			event.Operator(worker, 4, event.Address{1, 2, 1}, "Filter"),
			event.Operator(worker, 5, event.Address{1, 3}, "Inspect"),
			event.Channel(worker, 6, 1,
				event.Endpoint{Addr: event.Address{1, 1}},
				event.Endpoint{Addr: event.Address{1, 2}}),
			event.Channel(worker, 7, 2,
				event.Endpoint{Addr: event.Address{1, 2}},
				event.Endpoint{Addr: event.Address{1, 2, 1}}),
			event.Channel(worker, 8, 3,
				event.Endpoint{Addr: event.Address{1, 2, 1}, Port: 0},
				event.Endpoint{Addr: event.Address{1, 3}, Port: 1}),
		)
		ts := int64(100)
		for i := 0; i < activations; i++ {
			for j, addr := range []event.Address{{1, 1}, {1, 2, 1}, {1, 3}} {
				d := int64((j+1)*10 + (i*7+w*3)%11)
				events = append(events,
					event.Start(worker, dur(ts), addr),
					event.Message(worker, dur(ts+1), uint64(j+1), true, uint64(i+1)),
					event.Stop(worker, dur(ts+d), addr),
				)
				ts += d + 5
			}
		}
		events = append(events, event.Shutdown(worker, dur(ts)))
	}
	return events
}

func dur(ns int64) time.Duration { return time.Duration(ns) }
