package authsaga

import "errors"

// Sentinel errors returned by Engine operations. Callers branch with
// errors.Is; the public result Message carries the human-readable text.
var (
	// ErrAccountNotFound is returned when the username does not resolve
	// to an account or the account has no credential.
	ErrAccountNotFound = errors.New("account not found")

	// ErrInvalidCredentials is returned when the password does not match.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccountLocked is returned while the credential is inside its
	// lockout window. The password is not checked in that state.
	ErrAccountLocked = errors.New("account locked")

	// ErrAccountInactive is returned when the Account context reports a
	// status that does not permit login.
	ErrAccountInactive = errors.New("account inactive")

	// ErrSessionNotFound is returned when a session id is unknown.
	ErrSessionNotFound = errors.New("session not found")

	// ErrAlreadyLoggedOut is returned when the session exists but is no
	// longer active, or was terminated by a concurrent logout.
	ErrAlreadyLoggedOut = errors.New("already logged out")

	// ErrSagaTimeout is returned when a cross-context exchange did not
	// receive its response before the deadline.
	ErrSagaTimeout = errors.New("saga step timed out")

	// ErrInvalidToken is returned when an access token fails signature,
	// expiry, or claim checks.
	ErrInvalidToken = errors.New("invalid access token")

	// ErrSystemError is returned for infrastructure failures: storage,
	// token issuance, malformed responses.
	ErrSystemError = errors.New("system error")

	// ErrEngineClosed is returned by operations after Close.
	ErrEngineClosed = errors.New("engine closed")
)
