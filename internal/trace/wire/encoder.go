package wire

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/GriffinCanCode/flowtrace/internal/trace/event"
)

// Encoder writes events in either trace format. Call Flush when done.
type Encoder struct {
	bw      *bufio.Writer
	format  Format
	payload []byte
	prefix  [binary.MaxVarintLen64]byte
}

// NewEncoder creates an encoder. FormatAuto writes binary.
func NewEncoder(w io.Writer, format Format) *Encoder {
	if format == FormatAuto {
		format = FormatBinary
	}
	return &Encoder{bw: bufio.NewWriter(w), format: format}
}

// Encode writes a single event.
func (e *Encoder) Encode(ev event.Event) error {
	if e.format == FormatJSON {
		line, err := encodeJSON(ev)
		if err != nil {
			return fmt.Errorf("encoding %s event: %w", ev.Kind, err)
		}
		if _, err := e.bw.Write(line); err != nil {
			return err
		}
		return e.bw.WriteByte('\n')
	}

	e.payload = appendPayload(e.payload[:0], ev)
	n := binary.PutUvarint(e.prefix[:], uint64(len(e.payload)))
	if _, err := e.bw.Write(e.prefix[:n]); err != nil {
		return err
	}
	_, err := e.bw.Write(e.payload)
	return err
}

// EncodeAll writes events in order.
func (e *Encoder) EncodeAll(events []event.Event) error {
	for _, ev := range events {
		if err := e.Encode(ev); err != nil {
			return err
		}
	}
	return nil
}

// WriteRaw writes an already framed chunk verbatim. Used to splice foreign
// records into a stream.
func (e *Encoder) WriteRaw(p []byte) error {
	_, err := e.bw.Write(p)
	return err
}

// Flush writes any buffered data to the underlying writer.
func (e *Encoder) Flush() error {
	return e.bw.Flush()
}

// AppendRecord frames a raw binary payload with its length prefix.
func AppendRecord(b, payload []byte) []byte {
	b = binary.AppendUvarint(b, uint64(len(payload)))
	return append(b, payload...)
}
