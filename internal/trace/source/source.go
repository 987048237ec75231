// Package source locates worker trace streams and opens them for decoding.
package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/GriffinCanCode/flowtrace/internal/trace/wire"
)

// sniffSize is how much of a stream is inspected to detect compression.
const sniffSize = 3072

// Source is one worker's trace stream.
type Source interface {
	// Name identifies the source in logs and summaries.
	Name() string
	// Format is the record encoding of the decompressed stream.
	Format() wire.Format
	// Open returns a reader over the decompressed stream. Closing it must
	// unblock any pending Read.
	Open(ctx context.Context) (io.ReadCloser, error)
}

// File is a trace stream stored on disk, optionally gzip or zstd compressed.
type File struct {
	Path   string
	format wire.Format
}

// NewFile creates a file source. FormatAuto resolves the format from the
// file name.
func NewFile(path string, format wire.Format) *File {
	if format == wire.FormatAuto {
		format = FormatForPath(path)
	}
	return &File{Path: path, format: format}
}

func (f *File) Name() string        { return f.Path }
func (f *File) Format() wire.Format { return f.format }

// Open opens the file and wraps it in a decompressor when its header says so.
func (f *File) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace %s: %w", f.Path, err)
	}
	rc, err := Decompress(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to open trace %s: %w", f.Path, err)
	}
	return rc, nil
}

// Decompress sniffs rc and returns a reader over its decompressed contents.
// Closing the result closes rc.
func Decompress(rc io.ReadCloser) (io.ReadCloser, error) {
	br := bufio.NewReaderSize(rc, sniffSize)
	header, err := br.Peek(sniffSize)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, err
	}

	mtype := mimetype.Detect(header)
	switch {
	case mtype.Is("application/gzip"):
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("gzip header: %w", err)
		}
		return &stackedReader{Reader: zr, closers: []io.Closer{zr, rc}}, nil
	case mtype.Is("application/zstd"):
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("zstd header: %w", err)
		}
		return &stackedReader{Reader: zr, closers: []io.Closer{zstdCloser{zr}, rc}}, nil
	default:
		return &stackedReader{Reader: br, closers: []io.Closer{rc}}, nil
	}
}

// Reader adapts an arbitrary reader, such as stdin or an in-memory buffer.
type Reader struct {
	name   string
	r      io.Reader
	format wire.Format
}

// NewReader creates a reader source. If r implements io.Closer it is closed
// with the stream.
func NewReader(name string, r io.Reader, format wire.Format) *Reader {
	if format == wire.FormatAuto {
		format = FormatForPath(name)
	}
	return &Reader{name: name, r: r, format: format}
}

func (r *Reader) Name() string        { return r.name }
func (r *Reader) Format() wire.Format { return r.format }

func (r *Reader) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if rc, ok := r.r.(io.ReadCloser); ok {
		return rc, nil
	}
	return io.NopCloser(r.r), nil
}

// FormatForPath picks the encoding from a file name, ignoring compression
// suffixes. Unknown extensions are binary.
func FormatForPath(path string) wire.Format {
	name := strings.ToLower(filepath.Base(path))
	for _, suffix := range compressionSuffixes {
		name = strings.TrimSuffix(name, suffix)
	}
	switch filepath.Ext(name) {
	case ".jsonl", ".ndjson", ".json":
		return wire.FormatJSON
	default:
		return wire.FormatBinary
	}
}

var compressionSuffixes = []string{".gz", ".gzip", ".zst", ".zstd"}

var traceExtensions = []string{".ftrace", ".bin", ".jsonl", ".ndjson"}

// IsTraceFile reports whether a directory entry should be picked up when a
// whole directory is given as input.
func IsTraceFile(path string) bool {
	name := strings.ToLower(filepath.Base(path))
	for _, suffix := range compressionSuffixes {
		name = strings.TrimSuffix(name, suffix)
	}
	ext := filepath.Ext(name)
	for _, e := range traceExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

type stackedReader struct {
	io.Reader
	closers []io.Closer
}

func (s *stackedReader) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type zstdCloser struct{ d *zstd.Decoder }

func (z zstdCloser) Close() error {
	z.d.Close()
	return nil
}
