package authsaga

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gongxingwei/authsaga/bus"
	"github.com/gongxingwei/authsaga/correlation"
	"github.com/gongxingwei/authsaga/internal/audit"
	"github.com/gongxingwei/authsaga/internal/flows"
	"github.com/gongxingwei/authsaga/internal/metrics"
	"github.com/gongxingwei/authsaga/jwt"
	"github.com/gongxingwei/authsaga/password"
	"github.com/gongxingwei/authsaga/session"
)

// Engine is the Authentication context's saga surface. It owns the
// credential checks, session storage, token issuance, and the verifying
// side of account deactivation; account lookups and status checks cross
// the bus to the Account context.
type Engine struct {
	config Config

	bus          *bus.Bus
	registry     *correlation.Registry
	sessionStore *session.Store
	passwordHash *password.Hasher
	jwtManager   *jwt.Manager
	credentials  CredentialProvider
	audit        *audit.Dispatcher
	metrics      *metrics.Metrics
	logger       *slog.Logger

	flows flows.Service

	// current tracks live session ids per account for introspection.
	// Redis stays the source of truth; this cache only mirrors sessions
	// created through this Engine instance.
	currentMu sync.Mutex
	current   map[string]map[string]struct{}

	closed    atomic.Bool
	closeOnce sync.Once
}

// AccessClaims is the claim set carried by engine-issued tokens.
type AccessClaims = jwt.AccessClaims

// timeNow is swapped in tests that need a fixed clock.
var timeNow = time.Now

// Login runs the login saga for one username/password pair. The result
// is non-nil in every case; on failure err is one of the package
// sentinels and result.Message explains it.
func (e *Engine) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	if e.closed.Load() {
		return &LoginResult{Message: "engine closed"}, ErrEngineClosed
	}
	if username == "" || password == "" {
		return &LoginResult{Message: "username and password required"}, ErrInvalidCredentials
	}

	res := e.flows.Login(ctx, username, password)
	if res.Err != nil {
		return &LoginResult{
			Message:   loginFailureMessage(res.Err),
			AccountID: res.AccountID,
			Username:  res.Username,
		}, res.Err
	}

	return &LoginResult{
		Success:     true,
		Message:     "login successful",
		AccountID:   res.AccountID,
		Username:    res.Username,
		SessionID:   res.SessionID,
		AccessToken: res.AccessToken,
	}, nil
}

// Logout terminates one session.
func (e *Engine) Logout(ctx context.Context, sessionID string) (*LogoutResult, error) {
	if e.closed.Load() {
		return &LogoutResult{Message: "engine closed"}, ErrEngineClosed
	}

	res := e.flows.Logout(ctx, sessionID, "single", "user logout")
	return logoutResult(res, "session terminated")
}

// LogoutAll terminates every active session of an account.
func (e *Engine) LogoutAll(ctx context.Context, accountID string) (*LogoutResult, error) {
	if e.closed.Load() {
		return &LogoutResult{Message: "engine closed"}, ErrEngineClosed
	}

	res := e.flows.LogoutAll(ctx, accountID, "all", "user logout all")
	return logoutResult(res, "all sessions terminated")
}

// ForceLogout terminates every session of an account on administrative
// authority. The reason is recorded on the emitted events.
func (e *Engine) ForceLogout(ctx context.Context, accountID, adminID, reason string) (*LogoutResult, error) {
	if e.closed.Load() {
		return &LogoutResult{Message: "engine closed"}, ErrEngineClosed
	}

	annotated := fmt.Sprintf("forced by %s: %s", adminID, reason)
	res := e.flows.LogoutAll(ctx, accountID, "forced", annotated)
	return logoutResult(res, "all sessions terminated")
}

// Authenticate validates an access token against its session. The
// session must still exist, be active, and be unexpired; a valid call
// slides the session's last-active time.
func (e *Engine) Authenticate(ctx context.Context, token string) (*AccessClaims, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}

	claims, err := e.jwtManager.ParseAccess(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	sess, err := e.sessionStore.Get(ctx, claims.SessionID)
	if errors.Is(err, session.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSystemError, err)
	}
	if sess.AccountID != claims.AccountID {
		return nil, ErrInvalidToken
	}
	if !sess.Active || sess.Expired(timeNow()) {
		return nil, ErrAlreadyLoggedOut
	}

	if err := e.sessionStore.Touch(ctx, claims.SessionID, timeNow()); err != nil {
		e.logger.Warn("session_touch_failed", "session_id", claims.SessionID, "err", err)
	}

	return claims, nil
}

// CurrentSessions lists the cached session ids for an account.
func (e *Engine) CurrentSessions(accountID string) []string {
	e.currentMu.Lock()
	defer e.currentMu.Unlock()

	set := e.current[accountID]
	out := make([]string, 0, len(set))
	for sid := range set {
		out = append(out, sid)
	}
	return out
}

// Metrics returns a snapshot of the engine's counters.
func (e *Engine) Metrics() MetricsSnapshot {
	return e.metrics.Snapshot()
}

// AuditDropped reports audit events discarded under backpressure.
func (e *Engine) AuditDropped() uint64 {
	return e.audit.Dropped()
}

// Close stops the correlation registry and the audit dispatcher.
// In-flight exchanges resolve as cancelled. Close is idempotent.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		e.registry.Close()
		e.audit.Close()
	})
}

/*
====================================
CURRENT SESSION CACHE
====================================
*/

func (e *Engine) setCurrentSession(accountID, sessionID string) {
	e.currentMu.Lock()
	defer e.currentMu.Unlock()

	set, ok := e.current[accountID]
	if !ok {
		set = make(map[string]struct{})
		e.current[accountID] = set
	}
	set[sessionID] = struct{}{}
}

func (e *Engine) clearCurrentSession(accountID, sessionID string) {
	e.currentMu.Lock()
	defer e.currentMu.Unlock()

	if set, ok := e.current[accountID]; ok {
		delete(set, sessionID)
		if len(set) == 0 {
			delete(e.current, accountID)
		}
	}
}

func (e *Engine) clearCurrentAccount(accountID string) {
	e.currentMu.Lock()
	defer e.currentMu.Unlock()

	delete(e.current, accountID)
}

/*
====================================
CREDENTIAL OPERATIONS
====================================
*/

func (e *Engine) getCredential(ctx context.Context, accountID string) (*flows.CredentialRecord, error) {
	cred, err := e.credentials.FindByAccountID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, nil
	}
	return &flows.CredentialRecord{
		CredentialID:   cred.CredentialID,
		AccountID:      cred.AccountID,
		PasswordHash:   cred.PasswordHash,
		FailedAttempts: cred.FailedAttempts,
		LockedUntil:    cred.LockedUntil,
	}, nil
}

// recordFailure increments the failed-attempt counter and reports
// whether this failure locked the credential.
func (e *Engine) recordFailure(ctx context.Context, accountID string) (bool, error) {
	cred, err := e.credentials.FindByAccountID(ctx, accountID)
	if err != nil || cred == nil {
		return false, err
	}

	cred.FailedAttempts++
	locked := cred.FailedAttempts >= e.config.Lockout.MaxFailedAttempts
	if locked {
		cred.LockedUntil = timeNow().Add(e.config.Lockout.LockWindow).Unix()
	}

	if err := e.credentials.Save(ctx, cred); err != nil {
		return false, err
	}
	return locked, nil
}

func (e *Engine) resetFailures(ctx context.Context, accountID string) error {
	cred, err := e.credentials.FindByAccountID(ctx, accountID)
	if err != nil || cred == nil {
		return err
	}
	if cred.FailedAttempts == 0 && cred.LockedUntil == 0 {
		return nil
	}

	cred.FailedAttempts = 0
	cred.LockedUntil = 0
	return e.credentials.Save(ctx, cred)
}

/*
====================================
BUS HANDLERS
====================================
*/

// handleLookupResponse resolves the login flow waiting on the Account
// context's id lookup.
func (e *Engine) handleLookupResponse(_ context.Context, evt bus.Event) {
	resp, ok := bus.As[bus.AccountIDLookupResponse](evt)
	if !ok {
		e.logger.Error("malformed_lookup_response", "aggregate_id", evt.AggregateID)
		return
	}
	if !e.registry.Resolve(resp.RequestID, correlation.Outcome{
		Kind:    correlation.OutcomeSuccess,
		Payload: resp,
	}) {
		e.metrics.Inc(metrics.MetricCorrelationIgnored)
	}
}

func (e *Engine) handleStatusResponse(_ context.Context, evt bus.Event) {
	resp, ok := bus.As[bus.AccountStatusVerificationResponse](evt)
	if !ok {
		e.logger.Error("malformed_status_response", "aggregate_id", evt.AggregateID)
		return
	}
	if !e.registry.Resolve(resp.RequestID, correlation.Outcome{
		Kind:    correlation.OutcomeSuccess,
		Payload: resp,
	}) {
		e.metrics.Inc(metrics.MetricCorrelationIgnored)
	}
}

// handleVerificationRequested runs the verifying side of the
// deactivation saga. It executes on the publisher's goroutine; for
// user-initiated requests it blocks there until the interactive
// submission arrives or times out.
func (e *Engine) handleVerificationRequested(ctx context.Context, evt bus.Event) {
	req, ok := bus.As[bus.DeactivationVerificationRequested](evt)
	if !ok {
		e.logger.Error("malformed_verification_request", "aggregate_id", evt.AggregateID)
		return
	}

	e.emitAudit(ctx, eventDeactivationRequested, true, req.AccountID, "", req.RequestID, nil, func() map[string]string {
		return map[string]string{
			"requested_by": string(req.RequestedBy),
			"reason":       req.Reason,
		}
	})

	e.flows.VerifyDeactivation(ctx, req)
}

// handleVerificationSubmitted resolves the interactive wait inside a
// running deactivation verification.
func (e *Engine) handleVerificationSubmitted(_ context.Context, evt bus.Event) {
	submitted, ok := bus.As[bus.DeactivationVerificationSubmitted](evt)
	if !ok {
		e.logger.Error("malformed_verification_submission", "aggregate_id", evt.AggregateID)
		return
	}
	if !e.registry.Resolve(submitted.RequestID, correlation.Outcome{
		Kind:    correlation.OutcomeSuccess,
		Payload: submitted,
	}) {
		e.metrics.Inc(metrics.MetricCorrelationIgnored)
		e.logger.Debug("verification_submission_ignored", "request_id", submitted.RequestID)
	}
}

/*
====================================
RESULT MAPPING
====================================
*/

func loginFailureMessage(err error) string {
	switch {
	case errors.Is(err, ErrAccountNotFound):
		return "account not found"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid credentials"
	case errors.Is(err, ErrAccountLocked):
		return "account locked"
	case errors.Is(err, ErrAccountInactive):
		return "account is not active"
	case errors.Is(err, ErrSagaTimeout):
		return "verification timed out"
	default:
		return "login failed"
	}
}

func logoutResult(res flows.LogoutResult, successMessage string) (*LogoutResult, error) {
	out := &LogoutResult{
		AccountID:       res.AccountID,
		SessionIDs:      res.SessionIDs,
		TerminatedCount: res.Terminated,
	}
	if res.Err != nil {
		switch {
		case errors.Is(res.Err, ErrSessionNotFound):
			out.Message = "session not found"
		case errors.Is(res.Err, ErrAlreadyLoggedOut):
			out.Message = "already logged out"
		default:
			out.Message = "logout failed"
		}
		return out, res.Err
	}

	out.Success = true
	out.Message = successMessage
	return out, nil
}
