package authsaga

import (
	"context"
	"time"

	"github.com/gongxingwei/authsaga/internal/audit"
)

// Audit event names emitted by the engine.
const (
	eventLoginSuccess   = "login.success"
	eventLoginFailure   = "login.failure"
	eventAccountLockout = "account.lockout"

	eventLogout    = "logout"
	eventLogoutAll = "logout.all"

	eventDeactivationRequested = "deactivation.requested"
	eventDeactivationConfirmed = "deactivation.confirmed"
	eventDeactivationDenied    = "deactivation.denied"
)

// emitAudit assembles one audit record and hands it to the dispatcher.
// meta runs only when audit is enabled so every call site builds its
// metadata map lazily.
func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	accountID, sessionID, requestID string,
	err error,
	meta func() map[string]string,
) {
	if e.audit == nil {
		return
	}

	event := audit.Event{
		Timestamp: time.Now(),
		EventType: eventType,
		AccountID: accountID,
		SessionID: sessionID,
		RequestID: requestID,
		Success:   success,
		IP:        clientInfoFromContext(ctx).IP,
	}
	if err != nil {
		event.Error = err.Error()
	}
	if meta != nil {
		event.Metadata = meta()
	}

	e.audit.Emit(ctx, event)
}
