// Package bus is the in-process event channel between the Account and
// Authentication contexts. It provides topic-based publish/subscribe with
// synchronous, in-order delivery per subscriber and no request/response
// semantics of its own; correlation of requests to responses is layered on
// top by package correlation.
//
// # Architecture boundaries
//
// The bus owns the event envelope and the closed catalog of saga payload
// types. It knows nothing about sagas, accounts, or sessions.
//
// # What this package must NOT do
//
//   - Perform network I/O; delivery is in-process only.
//   - Let a subscriber panic reach the publisher. Handler panics are
//     recovered and logged.
//   - Reorder events for a single subscriber.
package bus
