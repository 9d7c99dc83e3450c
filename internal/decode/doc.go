// Package decode implements the frame decoding component.
//
// The frame decoder:
//   - Classifies raw frames as book events, liveness probes, or
//     ignorable protocol chatter
//   - Reports malformed frames as per-frame errors so callers can
//     count and skip them
//   - Expands compressed frames before decoding (gzip, flate)
//
// Wire formats are pluggable per source; ForFormat resolves the
// configured format name to a decoder.
package decode
