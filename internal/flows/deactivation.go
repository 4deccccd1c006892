package flows

import (
	"context"
	"time"

	"github.com/gongxingwei/authsaga/bus"
	"github.com/gongxingwei/authsaga/correlation"
	"github.com/gongxingwei/authsaga/internal/metrics"
)

// VerifyEvents carries audit event names used by the verifying side of
// the deactivation saga.
type VerifyEvents struct {
	Confirmed string
	Failed    string
}

// VerifyDeps captures the dependencies of the deactivation verifying
// side, which lives in the Authentication context and never calls the
// Account context directly.
type VerifyDeps struct {
	InteractiveTimeout time.Duration

	Now func() time.Time

	Publish  func(context.Context, bus.Event)
	Exchange func(ctx context.Context, id string, deadline time.Duration, publish func()) correlation.Outcome

	GetCredential    func(context.Context, string) (*CredentialRecord, error)
	DeleteCredential func(context.Context, string) (bool, error)
	VerifyPassword   func(password, hash string) (bool, error)

	DeleteAllSessions   func(context.Context, string) (int, error)
	ClearCurrentAccount func(accountID string)

	MetricInc func(metrics.MetricID)
	MetricAdd func(metrics.MetricID, uint64)
	EmitAudit func(ctx context.Context, eventType string, success bool, accountID, sessionID, requestID string, err error, meta func() map[string]string)

	Events VerifyEvents
}

// RunVerifyDeactivation handles one AccountDeactivationVerificationRequested
// event. It always publishes exactly one verification response; timeouts
// on the interactive exchange become an explicit failed response, never
// a timeout outcome on the wire. Confirmation (credential deletion,
// session termination, the confirmed event) runs iff the outcome is
// success.
func RunVerifyDeactivation(ctx context.Context, req bus.DeactivationVerificationRequested, deps VerifyDeps) {
	respond := func(result bus.VerificationResult, method bus.VerificationMethod, reason string) {
		deps.Publish(ctx, bus.Event{
			Type:        bus.TypeDeactivationVerificationResponse,
			AggregateID: req.AccountID,
			Payload: bus.DeactivationVerificationResponse{
				RequestID: req.RequestID,
				AccountID: req.AccountID,
				Result:    result,
				Method:    method,
				Reason:    reason,
			},
		})
	}

	cred, err := deps.GetCredential(ctx, req.AccountID)
	if err != nil {
		respond(bus.VerificationFailed, "", "credential lookup failed")
		deps.EmitAudit(ctx, deps.Events.Failed, false, req.AccountID, "", req.RequestID, err, nil)
		return
	}
	if cred == nil {
		respond(bus.VerificationFailed, "", "no credential")
		deps.EmitAudit(ctx, deps.Events.Failed, false, req.AccountID, "", req.RequestID, nil, func() map[string]string {
			return map[string]string{"reason": "no credential"}
		})
		return
	}

	result := bus.VerificationFailed
	method := bus.VerificationMethod("")
	reason := ""

	switch req.RequestedBy {
	case bus.RoleAdmin, bus.RoleSystem:
		// Administrative or system authority is itself a successful
		// verification method; no interactive step.
		result = bus.VerificationSuccess
		method = bus.MethodOverride
	default:
		result, method, reason = verifyInteractively(ctx, req, cred, deps)
	}

	respond(result, method, reason)

	if result != bus.VerificationSuccess {
		deps.MetricInc(metrics.MetricDeactivationFailed)
		deps.EmitAudit(ctx, deps.Events.Failed, false, req.AccountID, "", req.RequestID, nil, func() map[string]string {
			return map[string]string{"result": string(result), "reason": reason}
		})
		return
	}

	confirm(ctx, req, method, deps)
}

// verifyInteractively prompts the interactive surface and evaluates the
// user-supplied method: explicit cancellation maps to cancelled,
// password re-entry is verified against the credential, and anything
// unrecognized fails.
func verifyInteractively(
	ctx context.Context,
	req bus.DeactivationVerificationRequested,
	cred *CredentialRecord,
	deps VerifyDeps,
) (bus.VerificationResult, bus.VerificationMethod, string) {
	out := deps.Exchange(ctx, req.RequestID, deps.InteractiveTimeout, func() {
		deps.Publish(ctx, bus.Event{
			Type:        bus.TypeDeactivationVerificationPrompt,
			AggregateID: req.AccountID,
			Payload: bus.DeactivationVerificationPrompt{
				RequestID: req.RequestID,
				AccountID: req.AccountID,
				Username:  req.Username,
			},
		})
	})

	switch out.Kind {
	case correlation.OutcomeTimeout:
		deps.MetricInc(metrics.MetricCorrelationTimeout)
		return bus.VerificationFailed, "", "verification timed out"
	case correlation.OutcomeCancelled:
		return bus.VerificationCancelled, bus.MethodCancelled, "verification aborted"
	}
	deps.MetricInc(metrics.MetricCorrelationResolved)

	submitted, ok := correlationPayload[bus.DeactivationVerificationSubmitted](out)
	if !ok {
		return bus.VerificationFailed, "", "malformed verification submission"
	}

	switch submitted.Method {
	case bus.MethodCancelled:
		return bus.VerificationCancelled, bus.MethodCancelled, "cancelled by user"
	case bus.MethodPassword:
		match, err := deps.VerifyPassword(submitted.Secret, cred.PasswordHash)
		if err != nil {
			return bus.VerificationFailed, bus.MethodPassword, "password verification error"
		}
		if !match {
			return bus.VerificationFailed, bus.MethodPassword, "invalid password"
		}
		return bus.VerificationSuccess, bus.MethodPassword, ""
	default:
		return bus.VerificationFailed, submitted.Method, "unsupported verification method"
	}
}

// confirm performs the auth-side cleanup and publishes the terminal
// event. Cleanup is best-effort: a failed credential delete is reported
// through AuthDataCleanup rather than aborting the saga, because the
// requesting side has already been answered.
func confirm(ctx context.Context, req bus.DeactivationVerificationRequested, method bus.VerificationMethod, deps VerifyDeps) {
	cleaned, err := deps.DeleteCredential(ctx, req.AccountID)
	if err != nil {
		cleaned = false
	}

	terminated, err := deps.DeleteAllSessions(ctx, req.AccountID)
	if err != nil {
		terminated = 0
	}
	deps.ClearCurrentAccount(req.AccountID)

	deps.Publish(ctx, bus.Event{
		Type:        bus.TypeDeactivationConfirmed,
		AggregateID: req.AccountID,
		Payload: bus.DeactivationConfirmed{
			RequestID:               req.RequestID,
			AccountID:               req.AccountID,
			DeactivatedBy:           req.RequestedBy,
			Reason:                  req.Reason,
			AuthDataCleanup:         cleaned,
			SessionTerminationCount: terminated,
		},
	})

	deps.MetricInc(metrics.MetricDeactivationConfirmed)
	deps.MetricAdd(metrics.MetricSessionTerminated, uint64(terminated))
	deps.EmitAudit(ctx, deps.Events.Confirmed, true, req.AccountID, "", req.RequestID, nil, func() map[string]string {
		return map[string]string{
			"deactivated_by": string(req.RequestedBy),
			"method":         string(method),
			"reason":         req.Reason,
		}
	})
}
