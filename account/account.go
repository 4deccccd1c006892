package account

import "time"

// Status is the lifecycle state of an account.
type Status uint8

const (
	// StatusActive allows login.
	StatusActive Status = iota
	// StatusPendingVerification is a new account that has not completed
	// verification.
	StatusPendingVerification
	// StatusSuspended is an account disabled by an administrator.
	StatusSuspended
	// StatusLocked is an account locked by the Account context itself.
	StatusLocked
	// StatusDeactivated is terminal; a deactivated account never logs in
	// again and never re-enters a deactivation saga.
	StatusDeactivated
)

// String implements fmt.Stringer with the wire-level status vocabulary.
func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusPendingVerification:
		return "pending_verification"
	case StatusSuspended:
		return "suspended"
	case StatusLocked:
		return "locked"
	case StatusDeactivated:
		return "deactivated"
	}
	return "unknown"
}

// LoginAllowed reports whether an account in this status may log in.
func (s Status) LoginAllowed() bool {
	return s == StatusActive
}

// Message is the human-readable reason attached to a disallowed status.
func (s Status) Message() string {
	switch s {
	case StatusActive:
		return ""
	case StatusPendingVerification:
		return "account pending verification"
	case StatusSuspended:
		return "account suspended"
	case StatusLocked:
		return "account locked"
	case StatusDeactivated:
		return "account deactivated"
	}
	return "account status unknown"
}

// Account is the aggregate root of the Account context. The saga layer
// references it; it never crosses the context boundary itself, only its
// derived event payloads do.
type Account struct {
	AccountID string
	Username  string
	Status    Status

	CreatedAt int64

	DeactivatedAt      int64
	DeactivatedBy      string
	DeactivationReason string
}

// Deactivate transitions the account into its terminal status.
func (a *Account) Deactivate(by, reason string, now time.Time) {
	a.Status = StatusDeactivated
	a.DeactivatedAt = now.Unix()
	a.DeactivatedBy = by
	a.DeactivationReason = reason
}
