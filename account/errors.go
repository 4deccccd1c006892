package account

import "errors"

var (
	// ErrNotFound means the target account does not exist.
	ErrNotFound = errors.New("account not found")
	// ErrAlreadyDeactivated means the account reached its terminal
	// status before this request; no new saga is started.
	ErrAlreadyDeactivated = errors.New("account already deactivated")
	// ErrPermissionDenied means a user-initiated request targeted an
	// account other than the requester's own.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrVerificationFailed means the Authentication context rejected
	// the verification step.
	ErrVerificationFailed = errors.New("deactivation verification failed")
	// ErrVerificationCancelled means the user declined interactively.
	ErrVerificationCancelled = errors.New("deactivation verification cancelled")
	// ErrVerificationTimeout means no verification response arrived
	// within the saga deadline.
	ErrVerificationTimeout = errors.New("deactivation verification timed out")
	// ErrRepository wraps persistence failures in the Account context.
	ErrRepository = errors.New("account repository unavailable")
)
