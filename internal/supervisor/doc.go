// Package supervisor owns the lifecycle of the whole feed pipeline.
//
// The Supervisor:
//   - Builds the book store with one entry per configured source
//   - Resolves each source's wire format and compression up front, so a
//     misconfigured source fails at construction instead of mid-stream
//   - Runs one worker goroutine per source plus the reader
//   - Shuts down against a bounded deadline, force-closing laggards and
//     reporting which sources stopped cleanly and which were forced
package supervisor
