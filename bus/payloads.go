package bus

// InitiatorRole tells the receiving context who started a saga. The role
// decides, among other things, whether deactivation verification may be
// skipped.
type InitiatorRole string

const (
	// RoleUser is a request made by the account owner themselves.
	RoleUser InitiatorRole = "user"
	// RoleAdmin is an administrative request on someone else's account.
	RoleAdmin InitiatorRole = "admin"
	// RoleSystem is an automated request carrying system authority.
	RoleSystem InitiatorRole = "system"
)

// Valid reports whether the role is one of the three known initiators.
func (r InitiatorRole) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSystem:
		return true
	}
	return false
}

// VerificationResult is the wire-level outcome of a verification exchange.
// Timeouts never appear here; a responder that gives up answers failed or
// cancelled instead.
type VerificationResult string

const (
	// VerificationSuccess is an exported wire outcome value.
	VerificationSuccess VerificationResult = "success"
	// VerificationFailed is an exported wire outcome value.
	VerificationFailed VerificationResult = "failed"
	// VerificationCancelled is an exported wire outcome value.
	VerificationCancelled VerificationResult = "cancelled"
)

// VerificationMethod names how a deactivation request was verified.
type VerificationMethod string

const (
	// MethodPassword verifies by password re-entry.
	MethodPassword VerificationMethod = "password"
	// MethodMFA verifies by an MFA code; evaluation belongs to the
	// interactive collaborator, the saga layer only transports the tag.
	MethodMFA VerificationMethod = "mfa"
	// MethodCancelled is an explicit user decline.
	MethodCancelled VerificationMethod = "cancelled"
	// MethodOverride is administrative or system authority standing in
	// for interactive verification.
	MethodOverride VerificationMethod = "override"
)

// ClientInfo is optional caller context attached to request events.
type ClientInfo struct {
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	DeviceID  string `json:"device_id,omitempty"`
}

// AccountIDLookupRequested asks for the account id behind a username.
type AccountIDLookupRequested struct {
	RequestID string     `json:"request_id"`
	Username  string     `json:"username"`
	Client    ClientInfo `json:"client,omitempty"`
}

// AccountIDLookupResponse answers AccountIDLookupRequested.
type AccountIDLookupResponse struct {
	RequestID string `json:"request_id"`
	Username  string `json:"username"`
	AccountID string `json:"account_id,omitempty"`
	Found     bool   `json:"found"`
}

// AccountStatusVerificationRequested asks whether an account may log in.
type AccountStatusVerificationRequested struct {
	RequestID string `json:"request_id"`
	AccountID string `json:"account_id"`
}

// AccountStatusVerificationResponse answers a status verification
// request. Status carries the Account context's own status vocabulary;
// the Authentication context branches on LoginAllowed and Status only.
type AccountStatusVerificationResponse struct {
	RequestID     string `json:"request_id"`
	AccountID     string `json:"account_id"`
	Status        string `json:"account_status"`
	LoginAllowed  bool   `json:"is_login_allowed"`
	StatusMessage string `json:"status_message,omitempty"`
}

// LoginCredentialVerification records the local credential check of one
// login attempt.
type LoginCredentialVerification struct {
	AccountID     string             `json:"account_id"`
	CredentialID  string             `json:"credential_id"`
	Result        VerificationResult `json:"verification_result"`
	FailureReason string             `json:"failure_reason,omitempty"`
}

// LoginAttempt is the terminal audit event of one login attempt.
type LoginAttempt struct {
	Username      string     `json:"username"`
	AccountID     string     `json:"account_id,omitempty"`
	Result        VerificationResult `json:"result"`
	FailureReason string     `json:"failure_reason,omitempty"`
	Client        ClientInfo `json:"client,omitempty"`
}

// UserLoggedIn records a completed login.
type UserLoggedIn struct {
	AccountID string `json:"account_id"`
	Username  string `json:"username"`
	SessionID string `json:"session_id"`
	LoginAt   int64  `json:"login_at"`
}

// DeactivationVerificationRequested asks the Authentication context to
// verify a deactivation before it is confirmed.
type DeactivationVerificationRequested struct {
	RequestID   string        `json:"request_id"`
	AccountID   string        `json:"account_id"`
	Username    string        `json:"username"`
	RequestedBy InitiatorRole `json:"requested_by"`
	Reason      string        `json:"reason,omitempty"`
	Client      ClientInfo    `json:"client,omitempty"`
}

// DeactivationVerificationResponse answers a deactivation verification
// request with a wire outcome.
type DeactivationVerificationResponse struct {
	RequestID string             `json:"request_id"`
	AccountID string             `json:"account_id"`
	Result    VerificationResult `json:"verification_result"`
	Method    VerificationMethod `json:"verification_method,omitempty"`
	Reason    string             `json:"reason,omitempty"`
}

// DeactivationVerificationPrompt asks the interactive surface to collect
// a verification method from the user.
type DeactivationVerificationPrompt struct {
	RequestID string `json:"request_id"`
	AccountID string `json:"account_id"`
	Username  string `json:"username"`
}

// DeactivationVerificationSubmitted is the user's answer to a prompt,
// keyed by the original request id.
type DeactivationVerificationSubmitted struct {
	RequestID string             `json:"request_id"`
	Method    VerificationMethod `json:"method"`
	Secret    string             `json:"secret,omitempty"`
}

// DeactivationConfirmed is the terminal event of a successful
// deactivation. AuthDataCleanup reports whether credential data was
// removed in the Authentication context.
type DeactivationConfirmed struct {
	RequestID               string        `json:"request_id"`
	AccountID               string        `json:"account_id"`
	DeactivatedBy           InitiatorRole `json:"deactivated_by"`
	Reason                  string        `json:"reason,omitempty"`
	AuthDataCleanup         bool          `json:"auth_data_cleanup"`
	SessionTerminationCount int           `json:"session_termination_count"`
}

// SessionTerminated records termination of one session together with the
// number of sessions the account still has.
type SessionTerminated struct {
	SessionID               string `json:"session_id"`
	AccountID               string `json:"account_id"`
	TerminationType         string `json:"termination_type"`
	RemainingActiveSessions int    `json:"remaining_active_sessions"`
}

// AllSessionsTerminated records a full session wipe for an account.
type AllSessionsTerminated struct {
	AccountID              string `json:"account_id"`
	TerminationType        string `json:"termination_type"`
	TerminatedSessionCount int    `json:"terminated_session_count"`
}

// UserLoggedOut records one session leaving an account.
type UserLoggedOut struct {
	AccountID    string `json:"account_id"`
	SessionID    string `json:"session_id"`
	LogoutType   string `json:"logout_type"`
	LogoutReason string `json:"logout_reason,omitempty"`
}
