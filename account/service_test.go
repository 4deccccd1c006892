package account

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/gongxingwei/authsaga/bus"
	"github.com/gongxingwei/authsaga/correlation"
)

func newServiceUnderTest(t *testing.T) (*Service, *bus.Bus, *MemoryRepository) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eventBus := bus.New(logger)
	registry := correlation.NewRegistry(correlation.Config{
		SweepInterval: time.Hour,
		SweepGrace:    time.Hour,
	}, logger)
	t.Cleanup(registry.Close)

	repo := NewMemoryRepository()
	svc, err := NewService(Options{
		Bus:        eventBus,
		Repository: repo,
		Registry:   registry,
		Logger:     logger,
	})
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return svc, eventBus, repo
}

func captureOne[T any](t *testing.T, eventBus *bus.Bus, eventType bus.EventType) *T {
	t.Helper()

	out := new(T)
	eventBus.Subscribe(eventType, func(_ context.Context, evt bus.Event) {
		payload, ok := bus.As[T](evt)
		if !ok {
			t.Errorf("unexpected payload type for %s: %T", eventType, evt.Payload)
			return
		}
		*out = payload
	})
	return out
}

func TestIDLookupFound(t *testing.T) {
	_, eventBus, repo := newServiceUnderTest(t)
	ctx := context.Background()

	if err := repo.Save(ctx, &Account{AccountID: "a1", Username: "alice", Status: StatusActive}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	resp := captureOne[bus.AccountIDLookupResponse](t, eventBus, bus.TypeAccountIDLookupResponse)

	eventBus.Publish(ctx, bus.Event{
		Type:        bus.TypeAccountIDLookupRequested,
		AggregateID: "alice",
		Payload:     bus.AccountIDLookupRequested{RequestID: "r1", Username: "alice"},
	})

	if !resp.Found || resp.AccountID != "a1" || resp.RequestID != "r1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestIDLookupUnknownUsername(t *testing.T) {
	_, eventBus, _ := newServiceUnderTest(t)

	resp := captureOne[bus.AccountIDLookupResponse](t, eventBus, bus.TypeAccountIDLookupResponse)

	eventBus.Publish(context.Background(), bus.Event{
		Type:        bus.TypeAccountIDLookupRequested,
		AggregateID: "nobody",
		Payload:     bus.AccountIDLookupRequested{RequestID: "r2", Username: "nobody"},
	})

	if resp.Found || resp.AccountID != "" || resp.RequestID != "r2" {
		t.Fatalf("expected a negative response, got %+v", resp)
	}
}

func TestStatusVerificationForActiveAccount(t *testing.T) {
	_, eventBus, repo := newServiceUnderTest(t)
	ctx := context.Background()

	if err := repo.Save(ctx, &Account{AccountID: "a1", Username: "alice", Status: StatusActive}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	resp := captureOne[bus.AccountStatusVerificationResponse](t, eventBus, bus.TypeAccountStatusVerificationResponse)

	eventBus.Publish(ctx, bus.Event{
		Type:        bus.TypeAccountStatusVerificationRequested,
		AggregateID: "a1",
		Payload:     bus.AccountStatusVerificationRequested{RequestID: "r3", AccountID: "a1"},
	})

	if !resp.LoginAllowed || resp.Status != "active" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestStatusVerificationForMissingAccount(t *testing.T) {
	_, eventBus, _ := newServiceUnderTest(t)

	resp := captureOne[bus.AccountStatusVerificationResponse](t, eventBus, bus.TypeAccountStatusVerificationResponse)

	eventBus.Publish(context.Background(), bus.Event{
		Type:        bus.TypeAccountStatusVerificationRequested,
		AggregateID: "missing",
		Payload:     bus.AccountStatusVerificationRequested{RequestID: "r4", AccountID: "missing"},
	})

	if resp.LoginAllowed {
		t.Fatal("expected login disallowed for missing account")
	}
	if resp.Status != "not_found" {
		t.Fatalf("unexpected status: %q", resp.Status)
	}
}

func TestStatusVerificationForSuspendedAccount(t *testing.T) {
	_, eventBus, repo := newServiceUnderTest(t)
	ctx := context.Background()

	if err := repo.Save(ctx, &Account{AccountID: "a1", Username: "alice", Status: StatusSuspended}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	resp := captureOne[bus.AccountStatusVerificationResponse](t, eventBus, bus.TypeAccountStatusVerificationResponse)

	eventBus.Publish(ctx, bus.Event{
		Type:        bus.TypeAccountStatusVerificationRequested,
		AggregateID: "a1",
		Payload:     bus.AccountStatusVerificationRequested{RequestID: "r5", AccountID: "a1"},
	})

	if resp.LoginAllowed || resp.Status != "suspended" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.StatusMessage == "" {
		t.Fatal("expected a status message for a disallowed status")
	}
}
