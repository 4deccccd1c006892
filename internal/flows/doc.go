// Package flows holds the Authentication context's saga state machines:
// login, logout, and the verifying side of account deactivation. Each
// flow is a Run* function driven by a Deps struct of function fields;
// the root engine wires Deps once at build time and delegates.
//
// Flows publish domain events, await correlated responses through the
// registry, and report outcomes as typed results. They own sequencing,
// not state: accounts, credentials, and sessions belong to their
// aggregates and are reached only through Deps.
package flows
