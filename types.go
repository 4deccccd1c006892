package authsaga

import (
	"context"
	"io"
	"sync"

	"github.com/gongxingwei/authsaga/internal/audit"
	"github.com/gongxingwei/authsaga/internal/metrics"
)

// Credential is the Authentication context's record for one account.
// LockedUntil and CreatedAt are unix seconds; zero LockedUntil means not
// locked.
type Credential struct {
	CredentialID   string
	AccountID      string
	PasswordHash   string
	FailedAttempts int
	LockedUntil    int64
	CreatedAt      int64
}

// CredentialProvider is the host-supplied credential storage. FindByAccountID
// returns (nil, nil) when no credential exists; Delete reports whether a
// credential was removed.
type CredentialProvider interface {
	FindByAccountID(ctx context.Context, accountID string) (*Credential, error)
	Save(ctx context.Context, cred *Credential) error
	Delete(ctx context.Context, accountID string) (bool, error)
}

// MemoryCredentialProvider is an in-memory CredentialProvider for tests
// and demos. Values are cloned on read and write.
type MemoryCredentialProvider struct {
	mu    sync.RWMutex
	creds map[string]*Credential
}

// NewMemoryCredentialProvider returns an empty provider.
func NewMemoryCredentialProvider() *MemoryCredentialProvider {
	return &MemoryCredentialProvider{creds: make(map[string]*Credential)}
}

// FindByAccountID implements CredentialProvider.
func (p *MemoryCredentialProvider) FindByAccountID(_ context.Context, accountID string) (*Credential, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	cred, ok := p.creds[accountID]
	if !ok {
		return nil, nil
	}
	clone := *cred
	return &clone, nil
}

// Save implements CredentialProvider.
func (p *MemoryCredentialProvider) Save(_ context.Context, cred *Credential) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	clone := *cred
	p.creds[cred.AccountID] = &clone
	return nil
}

// Delete implements CredentialProvider.
func (p *MemoryCredentialProvider) Delete(_ context.Context, accountID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, ok := p.creds[accountID]
	delete(p.creds, accountID)
	return ok, nil
}

// LoginResult is the public outcome of Engine.Login.
type LoginResult struct {
	Success     bool
	Message     string
	AccountID   string
	Username    string
	SessionID   string
	AccessToken string
}

// LogoutResult is the public outcome of logout operations.
type LogoutResult struct {
	Success         bool
	Message         string
	AccountID       string
	SessionIDs      []string
	TerminatedCount int
}

// Audit surface re-exports. Hosts implement AuditSink or use one of the
// provided sinks.
type (
	AuditEvent = audit.Event
	AuditSink  = audit.Sink

	NoOpAuditSink    = audit.NoOpSink
	ChannelAuditSink = audit.ChannelSink
)

// NewChannelAuditSink returns a sink delivering events over a buffered
// channel.
func NewChannelAuditSink(buffer int) *ChannelAuditSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONAuditSink returns a sink writing one JSON line per event to w.
func NewJSONAuditSink(w io.Writer) AuditSink {
	return audit.NewJSONWriterSink(w)
}

// Metrics surface re-exports.
type (
	MetricID        = metrics.MetricID
	MetricsSnapshot = metrics.Snapshot
)

const (
	MetricLoginSuccess          = metrics.MetricLoginSuccess
	MetricLoginFailure          = metrics.MetricLoginFailure
	MetricAccountLockout        = metrics.MetricAccountLockout
	MetricSessionCreated        = metrics.MetricSessionCreated
	MetricSessionTerminated     = metrics.MetricSessionTerminated
	MetricLogout                = metrics.MetricLogout
	MetricLogoutAll             = metrics.MetricLogoutAll
	MetricDeactivationRequested = metrics.MetricDeactivationRequested
	MetricDeactivationConfirmed = metrics.MetricDeactivationConfirmed
	MetricDeactivationFailed    = metrics.MetricDeactivationFailed
	MetricCorrelationResolved   = metrics.MetricCorrelationResolved
	MetricCorrelationTimeout    = metrics.MetricCorrelationTimeout
	MetricCorrelationIgnored    = metrics.MetricCorrelationIgnored
)
