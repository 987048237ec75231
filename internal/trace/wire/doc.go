// Package wire decodes and encodes per-worker trace streams.
//
// Two encodings are supported, both decoding to identical event.Event values:
//
//   - Binary: each record is a uvarint length prefix followed by a payload in
//     protobuf wire format. Unknown fields are skipped, so newer producers can
//     add fields without breaking older readers.
//   - JSON lines: one JSON object per line. Meant for fixtures and debugging.
//
// A Decoder never fails on bad data. A payload it cannot interpret is skipped
// and counted as an anomaly; a corrupt length prefix or a truncated trailing
// record ends the stream early and marks it truncated. Only errors returned by
// the underlying reader are surfaced from Next.
package wire
