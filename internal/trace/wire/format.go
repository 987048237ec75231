package wire

import (
	"errors"
	"fmt"
	"strings"
)

// Format selects the record encoding of a trace stream.
type Format int

const (
	FormatAuto Format = iota
	FormatBinary
	FormatJSON
)

var ErrUnknownFormat = errors.New("unknown trace format")

// String returns the string representation of the format
func (f Format) String() string {
	switch f {
	case FormatBinary:
		return "binary"
	case FormatJSON:
		return "json"
	default:
		return "auto"
	}
}

// ParseFormat parses a format name as used in configuration.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return FormatAuto, nil
	case "binary", "bin", "ftrace":
		return FormatBinary, nil
	case "json", "jsonl", "ndjson":
		return FormatJSON, nil
	default:
		return FormatAuto, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Binary payload field numbers.
const (
	fieldKind      = 1
	fieldWorker    = 2
	fieldTimestamp = 3
	fieldAddr      = 4
	fieldName      = 5
	fieldChannel   = 6
	fieldSource    = 7
	fieldDest      = 8
	fieldIsSend    = 9
	fieldRecords   = 10

	endpointAddr = 1
	endpointPort = 2
)

// DefaultMaxRecordSize bounds a single record. A length prefix above it is
// treated as corruption.
const DefaultMaxRecordSize = 16 << 20
