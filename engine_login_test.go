package authsaga

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gongxingwei/authsaga/account"
	"github.com/gongxingwei/authsaga/bus"
)

func TestLoginSuccess(t *testing.T) {
	h := newHarness(t, testConfig(t), true)
	accountID := h.seedAccount(t, "alice", "correct horse battery", account.StatusActive)

	ctx := WithClientIP(context.Background(), "203.0.113.1")
	res, err := h.engine.Login(ctx, "alice", "correct horse battery")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if !res.Success || res.AccountID != accountID || res.SessionID == "" || res.AccessToken == "" {
		t.Fatalf("unexpected result: %+v", res)
	}

	loggedIn := h.recorder.ofType(bus.TypeUserLoggedIn)
	if len(loggedIn) != 1 {
		t.Fatalf("expected one UserLoggedIn event, got %d", len(loggedIn))
	}
	payload, ok := bus.As[bus.UserLoggedIn](loggedIn[0])
	if !ok || payload.SessionID != res.SessionID || payload.Username != "alice" {
		t.Fatalf("unexpected UserLoggedIn payload: %+v", payload)
	}

	snap := h.engine.Metrics()
	if snap.Get(MetricLoginSuccess) != 1 || snap.Get(MetricSessionCreated) != 1 {
		t.Fatalf("unexpected metrics: %+v", snap)
	}
}

func TestLoginEventOrdering(t *testing.T) {
	h := newHarness(t, testConfig(t), true)
	h.seedAccount(t, "alice", "correct horse battery", account.StatusActive)

	if _, err := h.engine.Login(context.Background(), "alice", "correct horse battery"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	want := []bus.EventType{
		bus.TypeAccountIDLookupRequested,
		bus.TypeAccountIDLookupResponse,
		bus.TypeAccountStatusVerificationRequested,
		bus.TypeAccountStatusVerificationResponse,
		bus.TypeLoginCredentialVerification,
		bus.TypeUserLoggedIn,
		bus.TypeLoginAttempt,
	}
	got := h.recorder.types()
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d: expected %s, got %s (full order %v)", i, want[i], got[i], got)
		}
	}

	verification, _ := bus.As[bus.LoginCredentialVerification](h.recorder.ofType(bus.TypeLoginCredentialVerification)[0])
	if verification.Result != bus.VerificationSuccess {
		t.Fatalf("expected successful credential verification, got %+v", verification)
	}
	attempt, _ := bus.As[bus.LoginAttempt](h.recorder.ofType(bus.TypeLoginAttempt)[0])
	if attempt.Result != bus.VerificationSuccess {
		t.Fatalf("expected successful login attempt, got %+v", attempt)
	}
}

func TestLoginUnknownUsername(t *testing.T) {
	h := newHarness(t, testConfig(t), true)

	_, err := h.engine.Login(context.Background(), "nobody", "whatever password")
	if !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}

	attempts := h.recorder.ofType(bus.TypeLoginAttempt)
	if len(attempts) != 1 {
		t.Fatalf("expected one LoginAttempt event, got %d", len(attempts))
	}
	attempt, _ := bus.As[bus.LoginAttempt](attempts[0])
	if attempt.Result != bus.VerificationFailed || attempt.AccountID != "" {
		t.Fatalf("unexpected attempt payload: %+v", attempt)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	h := newHarness(t, testConfig(t), true)
	accountID := h.seedAccount(t, "alice", "correct horse battery", account.StatusActive)

	_, err := h.engine.Login(context.Background(), "alice", "wrong password!")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	cred, err := h.creds.FindByAccountID(context.Background(), accountID)
	if err != nil {
		t.Fatalf("FindByAccountID failed: %v", err)
	}
	if cred.FailedAttempts != 1 {
		t.Fatalf("expected 1 failed attempt recorded, got %d", cred.FailedAttempts)
	}
	if cred.LockedUntil != 0 {
		t.Fatal("expected credential not locked after a single failure")
	}
}

func TestLoginInactiveAccount(t *testing.T) {
	h := newHarness(t, testConfig(t), true)
	h.seedAccount(t, "alice", "correct horse battery", account.StatusSuspended)

	_, err := h.engine.Login(context.Background(), "alice", "correct horse battery")
	if !errors.Is(err, ErrAccountInactive) {
		t.Fatalf("expected ErrAccountInactive, got %v", err)
	}

	// The password must not be evaluated for a disallowed status, so no
	// credential verification event is published.
	if got := h.recorder.ofType(bus.TypeLoginCredentialVerification); len(got) != 0 {
		t.Fatalf("expected no credential verification events, got %d", len(got))
	}
}

func TestLoginLockoutAfterRepeatedFailures(t *testing.T) {
	cfg := testConfig(t)
	cfg.Lockout.MaxFailedAttempts = 3
	h := newHarness(t, cfg, true)
	accountID := h.seedAccount(t, "alice", "correct horse battery", account.StatusActive)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := h.engine.Login(ctx, "alice", "wrong password!"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i, err)
		}
	}

	cred, err := h.creds.FindByAccountID(ctx, accountID)
	if err != nil {
		t.Fatalf("FindByAccountID failed: %v", err)
	}
	if cred.LockedUntil == 0 {
		t.Fatal("expected credential locked after reaching the attempt limit")
	}

	// The correct password is rejected without being compared while the
	// lock window holds.
	_, err = h.engine.Login(ctx, "alice", "correct horse battery")
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked, got %v", err)
	}

	snap := h.engine.Metrics()
	if snap.Get(MetricAccountLockout) != 1 {
		t.Fatalf("expected one lockout metric, got %d", snap.Get(MetricAccountLockout))
	}
}

func TestLoginAfterLockWindowExpires(t *testing.T) {
	h := newHarness(t, testConfig(t), true)
	accountID := h.seedAccount(t, "alice", "correct horse battery", account.StatusActive)

	ctx := context.Background()
	cred, err := h.creds.FindByAccountID(ctx, accountID)
	if err != nil {
		t.Fatalf("FindByAccountID failed: %v", err)
	}
	cred.FailedAttempts = 3
	cred.LockedUntil = time.Now().Add(-time.Minute).Unix()
	if err := h.creds.Save(ctx, cred); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	res, err := h.engine.Login(ctx, "alice", "correct horse battery")
	if err != nil {
		t.Fatalf("expected login after expired lock window, got %v", err)
	}
	if !res.Success {
		t.Fatalf("unexpected result: %+v", res)
	}

	cred, err = h.creds.FindByAccountID(ctx, accountID)
	if err != nil {
		t.Fatalf("FindByAccountID failed: %v", err)
	}
	if cred.FailedAttempts != 0 || cred.LockedUntil != 0 {
		t.Fatalf("expected counters reset on success, got %+v", cred)
	}
}

func TestLoginLookupTimeout(t *testing.T) {
	cfg := testConfig(t)
	cfg.Saga.LookupTimeout = 50 * time.Millisecond

	// No Account context: the lookup request is never answered.
	h := newHarness(t, cfg, false)

	start := time.Now()
	_, err := h.engine.Login(context.Background(), "alice", "correct horse battery")
	if !errors.Is(err, ErrSagaTimeout) {
		t.Fatalf("expected ErrSagaTimeout, got %v", err)
	}
	if time.Since(start) < 50*time.Millisecond {
		t.Fatal("login returned before the lookup deadline")
	}

	snap := h.engine.Metrics()
	if snap.Get(MetricCorrelationTimeout) != 1 {
		t.Fatalf("expected one correlation timeout, got %d", snap.Get(MetricCorrelationTimeout))
	}
}

func TestLoginEmptyInput(t *testing.T) {
	h := newHarness(t, testConfig(t), true)

	if _, err := h.engine.Login(context.Background(), "", "password!"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for empty username, got %v", err)
	}
	if _, err := h.engine.Login(context.Background(), "alice", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for empty password, got %v", err)
	}
	if got := h.recorder.types(); len(got) != 0 {
		t.Fatalf("expected no events for rejected input, got %v", got)
	}
}

func TestAuthenticateIssuedToken(t *testing.T) {
	h := newHarness(t, testConfig(t), true)
	accountID := h.seedAccount(t, "alice", "correct horse battery", account.StatusActive)

	res, err := h.engine.Login(context.Background(), "alice", "correct horse battery")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	claims, err := h.engine.Authenticate(context.Background(), res.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if claims.AccountID != accountID || claims.SessionID != res.SessionID {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	// A token for a terminated session no longer authenticates.
	if _, err := h.engine.Logout(context.Background(), res.SessionID); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if _, err := h.engine.Authenticate(context.Background(), res.AccessToken); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after logout, got %v", err)
	}
}
