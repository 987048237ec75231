package wire

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/GriffinCanCode/flowtrace/internal/trace/event"
)

func sampleEvents() []event.Event {
	return []event.Event{
		event.Operator(1, 5, event.Address{1}, "Dataflow"),
		event.Operator(1, 6, event.Address{1, 2}, "Map"),
		event.Channel(1, 7, 3, event.Endpoint{Addr: event.Address{1, 1}}, event.Endpoint{Addr: event.Address{1, 2}, Port: 1}),
		event.Start(1, 100, event.Address{1, 2}),
		event.Message(1, 110, 3, true, 42),
		event.Stop(1, 140, event.Address{1, 2}),
		event.Shutdown(1, 200),
	}
}

func encode(t *testing.T, format Format, events []event.Event) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc := NewEncoder(&buf, format)
	require.NoError(t, enc.EncodeAll(events))
	require.NoError(t, enc.Flush())
	return buf.Bytes()
}

func decodeAll(t *testing.T, r io.Reader, format Format) ([]event.Event, Stats) {
	t.Helper()
	dec := NewDecoder(r, format)
	var out []event.Event
	for {
		ev, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		out = append(out, ev)
	}
	return out, dec.Stats()
}

func TestFormatsDecodeIdentically(t *testing.T) {
	events := sampleEvents()

	bin, binStats := decodeAll(t, bytes.NewReader(encode(t, FormatBinary, events)), FormatBinary)
	js, jsStats := decodeAll(t, bytes.NewReader(encode(t, FormatJSON, events)), FormatJSON)

	assert.Equal(t, events, bin)
	assert.Equal(t, events, js)
	assert.Equal(t, len(events), binStats.Records)
	assert.Equal(t, len(events), jsStats.Records)
	assert.False(t, binStats.Truncated)
	assert.False(t, jsStats.Truncated)
}

func TestBinarySkipsUnknownKindAndField(t *testing.T) {
	var unknownKind []byte
	unknownKind = protowire.AppendTag(unknownKind, fieldKind, protowire.VarintType)
	unknownKind = protowire.AppendVarint(unknownKind, 77)

	// a future field on an otherwise valid record
	withExtra := appendPayload(nil, event.Start(0, 10, event.Address{1}))
	withExtra = protowire.AppendTag(withExtra, 99, protowire.BytesType)
	withExtra = protowire.AppendString(withExtra, "future")

	var stream []byte
	stream = AppendRecord(stream, unknownKind)
	stream = AppendRecord(stream, withExtra)
	stream = append(stream, encode(t, FormatBinary, []event.Event{event.Stop(0, 20, event.Address{1})})...)

	events, stats := decodeAll(t, bytes.NewReader(stream), FormatBinary)
	require.Len(t, events, 2)
	assert.Equal(t, event.Start(0, 10, event.Address{1}), events[0])
	assert.Equal(t, 1, stats.Anomalies)
	assert.Equal(t, 1, stats.Reasons[ReasonUnknownKind])
	assert.False(t, stats.Truncated)
}

func TestBinarySkipsCorruptPayload(t *testing.T) {
	var stream []byte
	stream = AppendRecord(stream, []byte{0xff, 0xff, 0xff})
	// operator without an address fails validation
	stream = AppendRecord(stream, appendPayload(nil, event.Event{Kind: event.KindOperator, Name: "x"}))
	stream = append(stream, encode(t, FormatBinary, []event.Event{event.Shutdown(0, 1)})...)

	events, stats := decodeAll(t, bytes.NewReader(stream), FormatBinary)
	assert.Equal(t, []event.Event{event.Shutdown(0, 1)}, events)
	assert.Equal(t, 1, stats.Reasons[ReasonMalformed])
	assert.Equal(t, 1, stats.Reasons[ReasonInvalid])
}

func TestBinaryTruncation(t *testing.T) {
	full := encode(t, FormatBinary, sampleEvents())

	t.Run("partial trailing record", func(t *testing.T) {
		events, stats := decodeAll(t, bytes.NewReader(full[:len(full)-2]), FormatBinary)
		assert.Len(t, events, len(sampleEvents())-1)
		assert.True(t, stats.Truncated)
		assert.Equal(t, TruncPartialRecord, stats.TruncatedReason)
	})

	t.Run("corrupt length prefix", func(t *testing.T) {
		stream := encode(t, FormatBinary, sampleEvents()[:1])
		stream = append(stream, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01)
		stream = append(stream, full...)

		events, stats := decodeAll(t, bytes.NewReader(stream), FormatBinary)
		assert.Len(t, events, 1)
		assert.True(t, stats.Truncated)
		assert.Equal(t, TruncCorruptLength, stats.TruncatedReason)
	})

	t.Run("oversized length prefix", func(t *testing.T) {
		stream := AppendRecord(nil, make([]byte, 64))
		dec := NewDecoder(bytes.NewReader(stream), FormatBinary, WithMaxRecordSize(16))
		_, err := dec.Next()
		assert.ErrorIs(t, err, io.EOF)
		assert.Equal(t, TruncCorruptLength, dec.Stats().TruncatedReason)
	})
}

func TestJSONLines(t *testing.T) {
	input := `{"kind":"operator","worker":0,"ts":1,"addr":[1],"name":"Root"}

not json at all
{"kind":"teleport","worker":0}
{"kind":"start","worker":0,"ts":5,"addr":[1]}
{"kind":"stop","worker":0,"ts":9,"addr":[1]}
{"kind":"stop","worker":0,"ts":`

	events, stats := decodeAll(t, bytes.NewReader([]byte(input)), FormatJSON)
	require.Len(t, events, 3)
	assert.Equal(t, "Root", events[0].Name)
	assert.Equal(t, event.Stop(0, 9, event.Address{1}), events[2])
	assert.Equal(t, 1, stats.Reasons[ReasonMalformed])
	assert.Equal(t, 1, stats.Reasons[ReasonUnknownKind])
	assert.True(t, stats.Truncated)
	assert.Equal(t, TruncPartialRecord, stats.TruncatedReason)
}

func TestJSONLinesOversized(t *testing.T) {
	long := `{"kind":"operator","worker":0,"ts":2,"addr":[2],"name":"` + strings.Repeat("x", 200) + `"}`
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"in the middle", "{\"kind\":\"start\",\"worker\":0,\"ts\":5,\"addr\":[1]}\n" + long + "\n{\"kind\":\"stop\",\"worker\":0,\"ts\":9,\"addr\":[1]}\n", 2},
		{"final line", "{\"kind\":\"start\",\"worker\":0,\"ts\":5,\"addr\":[1]}\n" + long, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := NewDecoder(strings.NewReader(tt.input), FormatJSON, WithMaxRecordSize(64))
			var events []event.Event
			for {
				ev, err := dec.Next()
				if errors.Is(err, io.EOF) {
					break
				}
				require.NoError(t, err)
				events = append(events, ev)
			}
			stats := dec.Stats()
			assert.Len(t, events, tt.want)
			assert.Equal(t, event.Start(0, 5, event.Address{1}), events[0])
			assert.Equal(t, 1, stats.Anomalies)
			assert.Equal(t, map[string]int{ReasonOversized: 1}, stats.Reasons)
			assert.False(t, stats.Truncated)
		})
	}
}

func TestJSONFinalLineWithoutNewline(t *testing.T) {
	input := `{"kind":"shutdown","worker":2,"ts":50}`
	events, stats := decodeAll(t, bytes.NewReader([]byte(input)), FormatJSON)
	assert.Equal(t, []event.Event{event.Shutdown(2, 50)}, events)
	assert.False(t, stats.Truncated)
}

type failingReader struct {
	data []byte
	err  error
}

func (f *failingReader) Read(p []byte) (int, error) {
	if len(f.data) == 0 {
		return 0, f.err
	}
	n := copy(p, f.data)
	f.data = f.data[n:]
	return n, nil
}

func TestReadErrorIsReturned(t *testing.T) {
	boom := errors.New("disk on fire")
	full := encode(t, FormatBinary, sampleEvents()[:2])
	dec := NewDecoder(&failingReader{data: full, err: boom}, FormatBinary)

	for i := 0; i < 2; i++ {
		_, err := dec.Next()
		require.NoError(t, err)
	}
	_, err := dec.Next()
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, TruncReadError, dec.Stats().TruncatedReason)

	// the error is sticky
	_, err = dec.Next()
	assert.ErrorIs(t, err, boom)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("JSONL")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatAuto, f)

	_, err = ParseFormat("xml")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}
