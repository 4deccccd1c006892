// Package authsaga coordinates login, logout, and account-deactivation
// workflows across an Account context and an Authentication context
// over an in-process event bus.
//
// The two contexts never call each other directly. Requests and
// responses are correlated by opaque request ids through a
// [correlation.Registry]; each waiting saga step resolves exactly once,
// with success, failure, cancellation, or timeout.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// authsaga is the Authentication context's public surface. It exposes
// [Engine], [Builder], [Config], the [CredentialProvider] contract, and
// value types (LoginResult, MetricsSnapshot, AuditEvent). Flow
// orchestration and audit dispatch live under internal/ and are never
// exported. The Account context lives in the account subpackage and is
// reached only over the bus.
//
// # What this package must NOT do
//
//   - Import the account subpackage (the bus is the only coupling).
//   - Expose Redis clients, internal stores, or flow wiring in its
//     public API.
//   - Publish a timeout outcome on the wire: a verifying side that
//     times out answers with an explicit failed response.
package authsaga
