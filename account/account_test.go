package account

import (
	"context"
	"testing"
	"time"
)

func TestStatusLoginAllowed(t *testing.T) {
	cases := []struct {
		status Status
		want   bool
	}{
		{StatusActive, true},
		{StatusPendingVerification, false},
		{StatusSuspended, false},
		{StatusLocked, false},
		{StatusDeactivated, false},
	}
	for _, tc := range cases {
		if got := tc.status.LoginAllowed(); got != tc.want {
			t.Errorf("%s: LoginAllowed = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestDeactivateStampsAccount(t *testing.T) {
	acct := &Account{
		AccountID: "a1",
		Username:  "alice",
		Status:    StatusActive,
	}
	now := time.Unix(1700000000, 0)

	acct.Deactivate("admin", "abuse", now)

	if acct.Status != StatusDeactivated {
		t.Fatalf("expected deactivated status, got %v", acct.Status)
	}
	if acct.DeactivatedAt != now.Unix() || acct.DeactivatedBy != "admin" || acct.DeactivationReason != "abuse" {
		t.Fatalf("unexpected stamp: %+v", acct)
	}
}

func TestMemoryRepositoryUsernameLookupIsCaseInsensitive(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	if err := repo.Save(ctx, &Account{AccountID: "a1", Username: "Alice", Status: StatusActive}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	acct, err := repo.FindByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("FindByUsername failed: %v", err)
	}
	if acct == nil || acct.AccountID != "a1" {
		t.Fatalf("expected lookup to ignore case, got %+v", acct)
	}
}

func TestMemoryRepositoryClonesOnRead(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	if err := repo.Save(ctx, &Account{AccountID: "a1", Username: "alice", Status: StatusActive}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	first, err := repo.FindByID(ctx, "a1")
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	first.Status = StatusSuspended

	second, err := repo.FindByID(ctx, "a1")
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if second.Status != StatusActive {
		t.Fatal("expected stored account unaffected by caller mutation")
	}
}

func TestMemoryRepositoryAbsentIsNilNil(t *testing.T) {
	repo := NewMemoryRepository()

	acct, err := repo.FindByID(context.Background(), "missing")
	if err != nil || acct != nil {
		t.Fatalf("expected (nil, nil) for absent account, got %v, %v", acct, err)
	}
	acct, err = repo.FindByUsername(context.Background(), "missing")
	if err != nil || acct != nil {
		t.Fatalf("expected (nil, nil) for absent username, got %v, %v", acct, err)
	}
}
