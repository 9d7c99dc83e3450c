// Package reader implements the polling Reader component.
//
// The Reader:
//   - Polls the book store on a fixed cadence, never blocking writers
//   - Emits either every source per cycle (interval strategy) or only
//     sources whose book advanced since the last cycle (onchange)
//   - Fans each cycle out to all configured writers concurrently
//   - Contains writer failures so one sink never stalls the others
package reader
