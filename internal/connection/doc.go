// Package connection implements the feed transport component.
//
// The feed transport:
//   - Maintains one WebSocket connection per client, one client per
//     connection generation (reconnects build a new client)
//   - Answers transport-level pings inline and sends keepalive pings,
//     flagging connections that go silent
//   - Delivers raw frames with receive timestamps over a buffered
//     channel, dropping with a warning when the consumer lags
//   - Serializes writes so control replies and subscriptions never
//     interleave
package connection
