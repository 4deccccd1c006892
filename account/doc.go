// Package account is the Account bounded context. It owns the account
// aggregate and its status lifecycle, answers the Authentication
// context's lookup and status-verification requests over the bus, and
// runs the requesting side of the deactivation saga.
//
// The two contexts never call each other: everything crossing the
// boundary is an event payload, correlated by request id where a reply
// is expected.
package account
