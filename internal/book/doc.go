// Package book implements the shared order-book store component.
//
// The order-book store:
//   - Holds one entry per configured source; the key set never changes
//     after construction
//   - Partitions mutation: exactly one worker writes each entry
//   - Publishes best bid, best ask and the update stamp atomically as
//     one immutable snapshot
//   - Lets readers poll any entry without blocking writers
package book
