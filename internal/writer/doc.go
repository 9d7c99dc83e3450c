// Package writer implements the output sinks fed by the reader.
//
// Each writer delivers one poll cycle's quotes to a single destination:
//
//   - Console: human-readable lines on an io.Writer
//   - Redis: latest-value keys with TTL plus pub/sub notification
//   - Kafka: one message per quote, keyed by source
//
// Writers are synchronous; the reader fans out to them concurrently and
// contains their errors, so a failing sink never stalls the pipeline or
// the other sinks.
package writer
