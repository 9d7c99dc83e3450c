// Package model defines shared data types used across bookfeed.
//
// Conventions:
//   - Prices and sizes: decimal.Decimal (feeds send either strings or
//     numbers; decimal accepts both without float drift)
//   - Timestamps: time.Time inside published snapshots, int64
//     microseconds since Unix epoch where read atomically
//   - IDs: SourceID, an opaque string per configured feed
package model
