// Package session stores one record per authenticated device/browser
// context in Redis, with a per-account index set and an active-session
// counter kept consistent by small Lua scripts.
//
// # Key layout
//
//	<prefix>:sess:<sessionID>   JSON session record, TTL = session lifetime
//	<prefix>:acct:<accountID>   set of the account's session ids
//	<prefix>:cnt:<accountID>    active-session counter
//
// # What this package must NOT do
//
//   - Decide saga semantics. Whether a missing session is an error is the
//     caller's business; the store only reports what it found.
//   - Expose Redis details in returned values.
package session
