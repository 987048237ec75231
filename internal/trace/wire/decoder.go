package wire

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/flowtrace/internal/trace/event"
)

// Option configures a Decoder.
type Option func(*Decoder)

// WithMaxRecordSize overrides DefaultMaxRecordSize.
func WithMaxRecordSize(n int) Option {
	return func(d *Decoder) {
		if n > 0 {
			d.maxRecord = n
		}
	}
}

// WithLogger attaches a logger for per-record anomaly details.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Decoder) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// Decoder turns one worker's byte stream into a lazy sequence of events.
// It is not safe for concurrent use.
type Decoder struct {
	cr        *countingReader
	br        *bufio.Reader
	format    Format
	maxRecord int
	logger    *zap.Logger

	buf   []byte
	stats Stats
	done  bool
	err   error
}

// NewDecoder creates a decoder reading the given format. FormatAuto is
// treated as FormatBinary; callers that know the file name should resolve
// the format first.
func NewDecoder(r io.Reader, format Format, opts ...Option) *Decoder {
	if format == FormatAuto {
		format = FormatBinary
	}
	cr := &countingReader{r: r}
	d := &Decoder{
		cr:        cr,
		br:        bufio.NewReaderSize(cr, 64<<10),
		format:    format,
		maxRecord: DefaultMaxRecordSize,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Next returns the next valid event. It returns io.EOF once the stream is
// exhausted, including when it ended early on corruption; Stats tells the
// two apart. Any other error comes from the underlying reader and is final.
func (d *Decoder) Next() (event.Event, error) {
	for !d.done {
		var (
			ev  event.Event
			ok  bool
			err error
		)
		if d.format == FormatJSON {
			ev, ok, err = d.nextJSON()
		} else {
			ev, ok, err = d.nextBinary()
		}
		if err != nil {
			d.finish(err)
			break
		}
		if ok {
			d.stats.Records++
			return ev, nil
		}
	}
	if d.err != nil {
		return event.Event{}, d.err
	}
	return event.Event{}, io.EOF
}

// Stats returns a snapshot of the decoder counters.
func (d *Decoder) Stats() Stats {
	s := d.stats.Clone()
	s.Bytes = d.cr.n
	return s
}

func (d *Decoder) finish(err error) {
	d.done = true
	if errors.Is(err, io.EOF) {
		return
	}
	d.stats.truncate(TruncReadError)
	d.err = fmt.Errorf("reading trace stream: %w", err)
}

// nextBinary reads one length-prefixed record. ok is false when the record
// was skipped or the stream ended; a nil error with done set means the end
// was reached cleanly or through truncation.
func (d *Decoder) nextBinary() (event.Event, bool, error) {
	size, err := binary.ReadUvarint(d.br)
	switch {
	case err == io.EOF:
		return event.Event{}, false, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		d.truncated(TruncPartialRecord)
		return event.Event{}, false, nil
	case err != nil && isReadError(err):
		return event.Event{}, false, err
	case err != nil:
		d.truncated(TruncCorruptLength)
		return event.Event{}, false, nil
	}
	if size > uint64(d.maxRecord) {
		d.truncated(TruncCorruptLength)
		return event.Event{}, false, nil
	}

	if cap(d.buf) < int(size) {
		d.buf = make([]byte, size)
	}
	d.buf = d.buf[:size]
	if _, err := io.ReadFull(d.br, d.buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			d.truncated(TruncPartialRecord)
			return event.Event{}, false, nil
		}
		return event.Event{}, false, err
	}

	ev, err := decodePayload(d.buf)
	if err != nil {
		d.skip(ReasonMalformed, err)
		return event.Event{}, false, nil
	}
	return d.checked(ev)
}

// nextJSON reads one line. Blank lines are ignored.
func (d *Decoder) nextJSON() (event.Event, bool, error) {
	line, terminated, oversized, err := d.readLine()
	if err != nil && !errors.Is(err, io.EOF) {
		return event.Event{}, false, err
	}
	atEOF := err != nil

	if oversized {
		d.skip(ReasonOversized, nil)
		if atEOF {
			d.done = true
		}
		return event.Event{}, false, nil
	}
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		if atEOF {
			return event.Event{}, false, io.EOF
		}
		return event.Event{}, false, nil
	}

	ev, derr := decodeJSON(line)
	if atEOF {
		d.done = true
	}
	if derr != nil {
		if !terminated {
			d.truncated(TruncPartialRecord)
			return event.Event{}, false, nil
		}
		d.skip(ReasonMalformed, derr)
		return event.Event{}, false, nil
	}
	return d.checked(ev)
}

func (d *Decoder) readLine() (line []byte, terminated, oversized bool, err error) {
	d.buf = d.buf[:0]
	for {
		chunk, rerr := d.br.ReadSlice('\n')
		if !oversized && len(d.buf)+len(chunk) <= d.maxRecord {
			d.buf = append(d.buf, chunk...)
		} else {
			oversized = true
		}
		switch {
		case rerr == nil:
			return d.buf, true, oversized, nil
		case errors.Is(rerr, bufio.ErrBufferFull):
			continue
		default:
			return d.buf, false, oversized, rerr
		}
	}
}

func (d *Decoder) checked(ev event.Event) (event.Event, bool, error) {
	if ev.Kind == event.KindUnknown || ev.Kind > event.KindShutdown {
		d.skip(ReasonUnknownKind, nil)
		return event.Event{}, false, nil
	}
	if err := ev.Validate(); err != nil {
		d.skip(ReasonInvalid, err)
		return event.Event{}, false, nil
	}
	return ev, true, nil
}

func (d *Decoder) skip(reason string, err error) {
	d.stats.anomaly(reason)
	d.logger.Debug("skipping trace record",
		zap.String("reason", reason),
		zap.Int("record", d.stats.Records+d.stats.Anomalies),
		zap.Error(err))
}

func (d *Decoder) truncated(reason string) {
	d.done = true
	d.stats.truncate(reason)
	d.logger.Debug("trace stream truncated",
		zap.String("reason", reason),
		zap.Int64("offset", d.cr.n))
}

// readError marks failures of the underlying reader, as opposed to varint
// overflow reported by binary.ReadUvarint.
type readError struct{ err error }

func (e readError) Error() string { return e.err.Error() }
func (e readError) Unwrap() error { return e.err }

func isReadError(err error) bool {
	var re readError
	return errors.As(err, &re)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	if err != nil && err != io.EOF {
		err = readError{err: err}
	}
	return n, err
}
