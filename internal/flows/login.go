package flows

import (
	"context"
	"time"

	"github.com/gongxingwei/authsaga/bus"
	"github.com/gongxingwei/authsaga/correlation"
	"github.com/gongxingwei/authsaga/internal/metrics"
	"github.com/gongxingwei/authsaga/session"
)

// LoginResult is the flow-local login response shape.
type LoginResult struct {
	AccountID   string
	Username    string
	SessionID   string
	AccessToken string
	Err         error
}

// CredentialRecord is the flow-local view of the credential aggregate.
type CredentialRecord struct {
	CredentialID   string
	AccountID      string
	PasswordHash   string
	FailedAttempts int
	LockedUntil    int64
}

// Locked reports whether the credential is inside its lock window.
func (c *CredentialRecord) Locked(now time.Time) bool {
	return c.LockedUntil > 0 && now.Unix() < c.LockedUntil
}

// LoginErrors carries host-level sentinel errors used by the login flow.
type LoginErrors struct {
	AccountNotFound    error
	InvalidCredentials error
	AccountLocked      error
	AccountInactive    error
	SagaTimeout        error
	System             error
}

// LoginEvents carries audit event names used by the login flow.
type LoginEvents struct {
	Success string
	Failure string
	Lockout string
}

// LoginDeps captures login saga dependencies.
type LoginDeps struct {
	LookupTimeout   time.Duration
	StatusTimeout   time.Duration
	SessionLifetime time.Duration

	Now          func() time.Time
	NewRequestID func() string
	NewSessionID func() string

	ClientInfoFromContext func(context.Context) bus.ClientInfo

	Publish  func(context.Context, bus.Event)
	Exchange func(ctx context.Context, id string, deadline time.Duration, publish func()) correlation.Outcome

	// AccountStatusError maps a disallowed account status from the
	// status verification response to a sentinel error.
	AccountStatusError func(status string) error

	GetCredential  func(context.Context, string) (*CredentialRecord, error)
	RecordFailure  func(context.Context, string) (bool, error)
	ResetFailures  func(context.Context, string) error
	VerifyPassword func(password, hash string) (bool, error)

	SaveSession       func(context.Context, *session.Session, time.Duration) error
	SetCurrentSession func(accountID, sessionID string)
	IssueAccessToken  func(accountID, sessionID string) (string, error)

	MetricInc func(metrics.MetricID)
	EmitAudit func(ctx context.Context, eventType string, success bool, accountID, sessionID, requestID string, err error, meta func() map[string]string)

	Errors LoginErrors
	Events LoginEvents
}

// RunLogin executes the login saga. The audit/bus ordering for one
// attempt is fixed: status verification exchange, credential
// verification, then the terminal outcome events.
func RunLogin(ctx context.Context, username, password string, deps LoginDeps) LoginResult {
	client := deps.ClientInfoFromContext(ctx)

	fail := func(accountID, requestID, reason string, err error) LoginResult {
		deps.MetricInc(metrics.MetricLoginFailure)
		deps.Publish(ctx, bus.Event{
			Type:        bus.TypeLoginAttempt,
			AggregateID: accountID,
			Payload: bus.LoginAttempt{
				Username:      username,
				AccountID:     accountID,
				Result:        bus.VerificationFailed,
				FailureReason: reason,
				Client:        client,
			},
		})
		deps.EmitAudit(ctx, deps.Events.Failure, false, accountID, "", requestID, err, func() map[string]string {
			return map[string]string{"username": username, "reason": reason}
		})
		return LoginResult{Username: username, AccountID: accountID, Err: err}
	}

	// Step 1: resolve the account id across the context boundary.
	lookupID := deps.NewRequestID()
	out := deps.Exchange(ctx, lookupID, deps.LookupTimeout, func() {
		deps.Publish(ctx, bus.Event{
			Type:        bus.TypeAccountIDLookupRequested,
			AggregateID: username,
			Payload: bus.AccountIDLookupRequested{
				RequestID: lookupID,
				Username:  username,
				Client:    client,
			},
		})
	})

	switch out.Kind {
	case correlation.OutcomeTimeout:
		deps.MetricInc(metrics.MetricCorrelationTimeout)
		return fail("", lookupID, "account lookup timed out", deps.Errors.SagaTimeout)
	case correlation.OutcomeCancelled:
		return fail("", lookupID, "login aborted", deps.Errors.System)
	}
	deps.MetricInc(metrics.MetricCorrelationResolved)

	lookup, ok := correlationPayload[bus.AccountIDLookupResponse](out)
	if !ok {
		return fail("", lookupID, "malformed lookup response", deps.Errors.System)
	}
	if !lookup.Found {
		return fail("", lookupID, "unknown username", deps.Errors.AccountNotFound)
	}
	accountID := lookup.AccountID

	// Step 2: credential load is local to the Authentication context.
	cred, err := deps.GetCredential(ctx, accountID)
	if err != nil {
		return fail(accountID, lookupID, "credential lookup failed", deps.Errors.System)
	}
	if cred == nil {
		return fail(accountID, lookupID, "no credential", deps.Errors.AccountNotFound)
	}

	// Step 3: verify account status in the Account context. A disallowed
	// status never reaches the password check.
	statusID := deps.NewRequestID()
	out = deps.Exchange(ctx, statusID, deps.StatusTimeout, func() {
		deps.Publish(ctx, bus.Event{
			Type:        bus.TypeAccountStatusVerificationRequested,
			AggregateID: accountID,
			Payload: bus.AccountStatusVerificationRequested{
				RequestID: statusID,
				AccountID: accountID,
			},
		})
	})

	switch out.Kind {
	case correlation.OutcomeTimeout:
		deps.MetricInc(metrics.MetricCorrelationTimeout)
		return fail(accountID, statusID, "status verification timed out", deps.Errors.SagaTimeout)
	case correlation.OutcomeCancelled:
		return fail(accountID, statusID, "login aborted", deps.Errors.System)
	}
	deps.MetricInc(metrics.MetricCorrelationResolved)

	status, ok := correlationPayload[bus.AccountStatusVerificationResponse](out)
	if !ok {
		return fail(accountID, statusID, "malformed status response", deps.Errors.System)
	}
	if !status.LoginAllowed {
		reason := status.StatusMessage
		if reason == "" {
			reason = "login not allowed"
		}
		return fail(accountID, statusID, reason, deps.AccountStatusError(status.Status))
	}

	// Step 4: local credential verification. A locked credential skips
	// the password comparison entirely.
	now := deps.Now()
	if cred.Locked(now) {
		deps.Publish(ctx, bus.Event{
			Type:        bus.TypeLoginCredentialVerification,
			AggregateID: accountID,
			Payload: bus.LoginCredentialVerification{
				AccountID:     accountID,
				CredentialID:  cred.CredentialID,
				Result:        bus.VerificationFailed,
				FailureReason: "credential locked",
			},
		})
		return fail(accountID, "", "credential locked", deps.Errors.AccountLocked)
	}

	match, err := deps.VerifyPassword(password, cred.PasswordHash)
	if err != nil {
		return fail(accountID, "", "password verification error", deps.Errors.System)
	}
	if !match {
		deps.Publish(ctx, bus.Event{
			Type:        bus.TypeLoginCredentialVerification,
			AggregateID: accountID,
			Payload: bus.LoginCredentialVerification{
				AccountID:     accountID,
				CredentialID:  cred.CredentialID,
				Result:        bus.VerificationFailed,
				FailureReason: "invalid password",
			},
		})
		locked, recErr := deps.RecordFailure(ctx, accountID)
		if recErr == nil && locked {
			deps.MetricInc(metrics.MetricAccountLockout)
			deps.EmitAudit(ctx, deps.Events.Lockout, false, accountID, "", "", deps.Errors.AccountLocked, func() map[string]string {
				return map[string]string{"username": username}
			})
		}
		return fail(accountID, "", "invalid password", deps.Errors.InvalidCredentials)
	}

	// Step 5: issue the session and announce success.
	deps.Publish(ctx, bus.Event{
		Type:        bus.TypeLoginCredentialVerification,
		AggregateID: accountID,
		Payload: bus.LoginCredentialVerification{
			AccountID:    accountID,
			CredentialID: cred.CredentialID,
			Result:       bus.VerificationSuccess,
		},
	})

	if err := deps.ResetFailures(ctx, accountID); err != nil {
		return fail(accountID, "", "credential update failed", deps.Errors.System)
	}

	sessionID := deps.NewSessionID()
	sess := &session.Session{
		SessionID:    sessionID,
		AccountID:    accountID,
		IP:           client.IP,
		UserAgent:    client.UserAgent,
		DeviceID:     client.DeviceID,
		Active:       true,
		CreatedAt:    now.Unix(),
		LastActiveAt: now.Unix(),
		ExpiresAt:    now.Add(deps.SessionLifetime).Unix(),
	}
	if err := deps.SaveSession(ctx, sess, deps.SessionLifetime); err != nil {
		return fail(accountID, "", "session creation failed", deps.Errors.System)
	}
	deps.SetCurrentSession(accountID, sessionID)
	deps.MetricInc(metrics.MetricSessionCreated)

	token, err := deps.IssueAccessToken(accountID, sessionID)
	if err != nil {
		return fail(accountID, "", "token issuance failed", deps.Errors.System)
	}

	deps.Publish(ctx, bus.Event{
		Type:        bus.TypeUserLoggedIn,
		AggregateID: accountID,
		Payload: bus.UserLoggedIn{
			AccountID: accountID,
			Username:  username,
			SessionID: sessionID,
			LoginAt:   now.Unix(),
		},
	})
	deps.Publish(ctx, bus.Event{
		Type:        bus.TypeLoginAttempt,
		AggregateID: accountID,
		Payload: bus.LoginAttempt{
			Username:  username,
			AccountID: accountID,
			Result:    bus.VerificationSuccess,
			Client:    client,
		},
	})

	deps.MetricInc(metrics.MetricLoginSuccess)
	deps.EmitAudit(ctx, deps.Events.Success, true, accountID, sessionID, "", nil, func() map[string]string {
		return map[string]string{"username": username}
	})

	return LoginResult{
		AccountID:   accountID,
		Username:    username,
		SessionID:   sessionID,
		AccessToken: token,
	}
}

// correlationPayload narrows an outcome payload the same way bus.As
// narrows an event payload.
func correlationPayload[T any](out correlation.Outcome) (T, bool) {
	payload, ok := out.Payload.(T)
	return payload, ok
}
