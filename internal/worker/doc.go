// Package worker implements the source worker component.
//
// A source worker:
//   - Owns one feed connection and its reconnect schedule
//   - Pumps frames through decompression and decode into its book entry
//   - Answers application-level liveness probes before the next receive
//   - Contains per-frame decode failures, reconnecting only past the
//     configured consecutive-failure limit
//   - Observes cancellation at every blocking point and closes its
//     connection on the way out
package worker
