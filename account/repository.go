package account

import (
	"context"
	"strings"
	"sync"
)

// Repository is the Account context's persistence boundary. Lookups
// return (nil, nil) for absent accounts; errors mean the backend itself
// failed.
type Repository interface {
	FindByID(ctx context.Context, accountID string) (*Account, error)
	FindByUsername(ctx context.Context, username string) (*Account, error)
	Save(ctx context.Context, acct *Account) error
}

// MemoryRepository is a mutex-guarded in-memory Repository. Account
// persistence is an external collaborator concern; this implementation
// backs tests and the demo binary.
type MemoryRepository struct {
	mu         sync.RWMutex
	byID       map[string]*Account
	byUsername map[string]string
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:       make(map[string]*Account),
		byUsername: make(map[string]string),
	}
}

// FindByID implements Repository.
func (r *MemoryRepository) FindByID(_ context.Context, accountID string) (*Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	acct, ok := r.byID[accountID]
	if !ok {
		return nil, nil
	}
	clone := *acct
	return &clone, nil
}

// FindByUsername implements Repository. Usernames are matched
// case-insensitively.
func (r *MemoryRepository) FindByUsername(_ context.Context, username string) (*Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUsername[strings.ToLower(username)]
	if !ok {
		return nil, nil
	}
	clone := *r.byID[id]
	return &clone, nil
}

// Save implements Repository.
func (r *MemoryRepository) Save(_ context.Context, acct *Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *acct
	r.byID[acct.AccountID] = &clone
	r.byUsername[strings.ToLower(acct.Username)] = acct.AccountID
	return nil
}
