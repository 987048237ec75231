package wire

// Anomaly reasons reported by the decoder.
const (
	ReasonUnknownKind = "unknown_kind"
	ReasonMalformed   = "malformed_payload"
	ReasonInvalid     = "invalid_event"
	ReasonOversized   = "oversized_record"
)

// Truncation reasons reported by the decoder.
const (
	TruncCorruptLength = "corrupt_length_prefix"
	TruncPartialRecord = "partial_record"
	TruncReadError     = "read_error"
)

// Stats describes what a decoder saw on its stream.
type Stats struct {
	Records   int            // events successfully decoded
	Anomalies int            // records skipped
	Reasons   map[string]int // anomalies by reason
	Bytes     int64          // bytes consumed from the source

	Truncated       bool
	TruncatedReason string
}

func (s *Stats) anomaly(reason string) {
	s.Anomalies++
	if s.Reasons == nil {
		s.Reasons = make(map[string]int)
	}
	s.Reasons[reason]++
}

func (s *Stats) truncate(reason string) {
	if s.Truncated {
		return
	}
	s.Truncated = true
	s.TruncatedReason = reason
}

// Clone returns a deep copy.
func (s Stats) Clone() Stats {
	out := s
	if s.Reasons != nil {
		out.Reasons = make(map[string]int, len(s.Reasons))
		for k, v := range s.Reasons {
			out.Reasons[k] = v
		}
	}
	return out
}
