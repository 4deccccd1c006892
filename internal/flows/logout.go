package flows

import (
	"context"
	"errors"
	"time"

	"github.com/gongxingwei/authsaga/bus"
	"github.com/gongxingwei/authsaga/internal/metrics"
	"github.com/gongxingwei/authsaga/session"
)

// LogoutResult is the flow-local logout response shape. Terminated is
// the number of sessions actually removed.
type LogoutResult struct {
	AccountID  string
	SessionIDs []string
	Terminated int
	Err        error
}

// LogoutErrors carries host-level sentinel errors used by logout flows.
type LogoutErrors struct {
	SessionNotFound  error
	AlreadyLoggedOut error
	System           error
}

// LogoutEvents carries audit event names used by logout flows.
type LogoutEvents struct {
	Logout    string
	LogoutAll string
}

// LogoutDeps captures logout flow dependencies. Logout has no
// cross-context round trip, so there is no Exchange here; every call is
// local to the Authentication context.
type LogoutDeps struct {
	Now func() time.Time

	Publish func(context.Context, bus.Event)

	GetSession        func(context.Context, string) (*session.Session, error)
	DeleteSession     func(ctx context.Context, accountID, sessionID string) (bool, error)
	ListSessions      func(context.Context, string) ([]*session.Session, error)
	ActiveCount       func(context.Context, string) (int, error)
	ClearCurrentSession func(accountID, sessionID string)

	MetricInc func(metrics.MetricID)
	MetricAdd func(metrics.MetricID, uint64)
	EmitAudit func(ctx context.Context, eventType string, success bool, accountID, sessionID, requestID string, err error, meta func() map[string]string)

	Errors LogoutErrors
	Events LogoutEvents
}

// RunLogout terminates one session.
func RunLogout(ctx context.Context, sessionID, logoutType, reason string, deps LogoutDeps) LogoutResult {
	sess, err := deps.GetSession(ctx, sessionID)
	if errors.Is(err, session.ErrNotFound) {
		return LogoutResult{Err: deps.Errors.SessionNotFound}
	}
	if err != nil {
		return LogoutResult{Err: deps.Errors.System}
	}

	if !sess.Active || sess.Expired(deps.Now()) {
		return LogoutResult{AccountID: sess.AccountID, Err: deps.Errors.AlreadyLoggedOut}
	}

	existed, err := deps.DeleteSession(ctx, sess.AccountID, sessionID)
	if err != nil {
		return LogoutResult{AccountID: sess.AccountID, Err: deps.Errors.System}
	}
	if !existed {
		// Lost a race with another terminator.
		return LogoutResult{AccountID: sess.AccountID, Err: deps.Errors.AlreadyLoggedOut}
	}

	deps.ClearCurrentSession(sess.AccountID, sessionID)

	remaining, err := deps.ActiveCount(ctx, sess.AccountID)
	if err != nil {
		remaining = 0
	}

	deps.Publish(ctx, bus.Event{
		Type:        bus.TypeSessionTerminated,
		AggregateID: sess.AccountID,
		Payload: bus.SessionTerminated{
			SessionID:               sessionID,
			AccountID:               sess.AccountID,
			TerminationType:         logoutType,
			RemainingActiveSessions: remaining,
		},
	})
	deps.Publish(ctx, bus.Event{
		Type:        bus.TypeUserLoggedOut,
		AggregateID: sess.AccountID,
		Payload: bus.UserLoggedOut{
			AccountID:    sess.AccountID,
			SessionID:    sessionID,
			LogoutType:   logoutType,
			LogoutReason: reason,
		},
	})

	deps.MetricInc(metrics.MetricLogout)
	deps.MetricInc(metrics.MetricSessionTerminated)
	deps.EmitAudit(ctx, deps.Events.Logout, true, sess.AccountID, sessionID, "", nil, func() map[string]string {
		return map[string]string{"logout_type": logoutType, "reason": reason}
	})

	return LogoutResult{
		AccountID:  sess.AccountID,
		SessionIDs: []string{sessionID},
		Terminated: 1,
	}
}

// RunLogoutAll terminates every active session of an account: one
// AllSessionsTerminated event, then one UserLoggedOut per session that
// was active.
func RunLogoutAll(ctx context.Context, accountID, logoutType, reason string, deps LogoutDeps) LogoutResult {
	sessions, err := deps.ListSessions(ctx, accountID)
	if err != nil {
		return LogoutResult{AccountID: accountID, Err: deps.Errors.System}
	}

	now := deps.Now()
	var terminated []string
	for _, sess := range sessions {
		existed, err := deps.DeleteSession(ctx, accountID, sess.SessionID)
		if err != nil {
			return LogoutResult{AccountID: accountID, SessionIDs: terminated, Terminated: len(terminated), Err: deps.Errors.System}
		}
		deps.ClearCurrentSession(accountID, sess.SessionID)
		if existed && sess.Active && !sess.Expired(now) {
			terminated = append(terminated, sess.SessionID)
		}
	}

	deps.Publish(ctx, bus.Event{
		Type:        bus.TypeAllSessionsTerminated,
		AggregateID: accountID,
		Payload: bus.AllSessionsTerminated{
			AccountID:              accountID,
			TerminationType:        logoutType,
			TerminatedSessionCount: len(terminated),
		},
	})
	for _, sid := range terminated {
		deps.Publish(ctx, bus.Event{
			Type:        bus.TypeUserLoggedOut,
			AggregateID: accountID,
			Payload: bus.UserLoggedOut{
				AccountID:    accountID,
				SessionID:    sid,
				LogoutType:   logoutType,
				LogoutReason: reason,
			},
		})
	}

	deps.MetricInc(metrics.MetricLogoutAll)
	deps.MetricAdd(metrics.MetricSessionTerminated, uint64(len(terminated)))
	deps.EmitAudit(ctx, deps.Events.LogoutAll, true, accountID, "", "", nil, func() map[string]string {
		return map[string]string{"logout_type": logoutType, "reason": reason}
	})

	return LogoutResult{
		AccountID:  accountID,
		SessionIDs: terminated,
		Terminated: len(terminated),
	}
}
