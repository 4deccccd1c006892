package bus

import "time"

// EventType names a topic on the bus. The catalog of types is closed:
// every payload shape crossing the context boundary is declared in this
// package.
type EventType string

const (
	// TypeAccountIDLookupRequested asks the Account context to resolve a
	// username to an account id.
	TypeAccountIDLookupRequested EventType = "AccountIdGetterRequested"
	// TypeAccountIDLookupResponse answers an id lookup request.
	TypeAccountIDLookupResponse EventType = "AccountIdGetterResponse"
	// TypeAccountStatusVerificationRequested asks the Account context
	// whether an account may log in.
	TypeAccountStatusVerificationRequested EventType = "AccountStatusVerificationRequested"
	// TypeAccountStatusVerificationResponse answers a status verification
	// request.
	TypeAccountStatusVerificationResponse EventType = "AccountStatusVerificationResponse"
	// TypeLoginCredentialVerification records the outcome of a local
	// credential check during login.
	TypeLoginCredentialVerification EventType = "LoginCredentialVerification"
	// TypeLoginAttempt records one login attempt, successful or not.
	TypeLoginAttempt EventType = "LoginAttempt"
	// TypeUserLoggedIn records a completed login with its session.
	TypeUserLoggedIn EventType = "UserLoggedIn"

	// TypeDeactivationVerificationRequested asks the Authentication
	// context to verify an account deactivation.
	TypeDeactivationVerificationRequested EventType = "AccountDeactivationVerificationRequested"
	// TypeDeactivationVerificationResponse answers a deactivation
	// verification request.
	TypeDeactivationVerificationResponse EventType = "AccountDeactivationVerificationResponse"
	// TypeDeactivationVerificationPrompt asks the interactive surface to
	// collect a verification method from the user.
	TypeDeactivationVerificationPrompt EventType = "AccountDeactivationVerificationPrompt"
	// TypeDeactivationVerificationSubmitted carries the user-supplied
	// verification method back from the interactive surface.
	TypeDeactivationVerificationSubmitted EventType = "AccountDeactivationVerificationSubmitted"
	// TypeDeactivationConfirmed is the terminal event of a successful
	// deactivation.
	TypeDeactivationConfirmed EventType = "AccountDeactivationConfirmed"

	// TypeSessionTerminated records termination of a single session.
	TypeSessionTerminated EventType = "SessionTerminated"
	// TypeAllSessionsTerminated records termination of every session of
	// an account.
	TypeAllSessionsTerminated EventType = "AllSessionsTerminated"
	// TypeUserLoggedOut records one session leaving an account.
	TypeUserLoggedOut EventType = "UserLoggedOut"
)

// Event is the envelope published on the bus. Payload holds exactly one
// of the catalog structs declared in payloads.go.
type Event struct {
	Type        EventType `json:"type"`
	AggregateID string    `json:"aggregate_id"`
	OccurredOn  time.Time `json:"occurred_on"`
	Payload     any       `json:"payload"`
}

// As narrows an event payload to a concrete catalog type. The second
// return is false when the payload does not carry T; handlers treat that
// as a decode failure at the bus boundary.
func As[T any](evt Event) (T, bool) {
	payload, ok := evt.Payload.(T)
	return payload, ok
}
