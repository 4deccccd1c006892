package authsaga

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/gongxingwei/authsaga/account"
	"github.com/gongxingwei/authsaga/bus"
	"github.com/gongxingwei/authsaga/correlation"
	"github.com/gongxingwei/authsaga/password"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T) Config {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}

	return Config{
		JWT: JWTConfig{
			AccessTTL:  15 * time.Minute,
			PrivateKey: priv,
			PublicKey:  pub,
		},
		Session: SessionConfig{
			RedisPrefix: "test",
			Lifetime:    time.Hour,
		},
		Password: PasswordConfig{
			Memory:      16 * 1024,
			Time:        1,
			Parallelism: 1,
			SaltLength:  16,
			KeyLength:   32,
		},
		Saga: SagaConfig{
			LookupTimeout:       2 * time.Second,
			StatusTimeout:       2 * time.Second,
			DeactivationTimeout: 5 * time.Second,
			InteractiveTimeout:  2 * time.Second,
			SweepInterval:       time.Hour,
			SweepGrace:          time.Hour,
		},
		Lockout: LockoutConfig{
			MaxFailedAttempts: 3,
			LockWindow:        15 * time.Minute,
		},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// eventRecorder captures every published event in publish order. It is
// subscribed before any context handler so nested publishes interleave
// in cause-then-effect order.
type eventRecorder struct {
	mu     sync.Mutex
	events []bus.Event
}

func (r *eventRecorder) record(_ context.Context, evt bus.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *eventRecorder) types() []bus.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]bus.EventType, len(r.events))
	for i, evt := range r.events {
		out[i] = evt.Type
	}
	return out
}

func (r *eventRecorder) ofType(t bus.EventType) []bus.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []bus.Event
	for _, evt := range r.events {
		if evt.Type == t {
			out = append(out, evt)
		}
	}
	return out
}

func (r *eventRecorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

var recordedTypes = []bus.EventType{
	bus.TypeAccountIDLookupRequested,
	bus.TypeAccountIDLookupResponse,
	bus.TypeAccountStatusVerificationRequested,
	bus.TypeAccountStatusVerificationResponse,
	bus.TypeLoginCredentialVerification,
	bus.TypeLoginAttempt,
	bus.TypeUserLoggedIn,
	bus.TypeDeactivationVerificationRequested,
	bus.TypeDeactivationVerificationResponse,
	bus.TypeDeactivationVerificationPrompt,
	bus.TypeDeactivationVerificationSubmitted,
	bus.TypeDeactivationConfirmed,
	bus.TypeSessionTerminated,
	bus.TypeAllSessionsTerminated,
	bus.TypeUserLoggedOut,
}

type harness struct {
	bus      *bus.Bus
	engine   *Engine
	accounts *account.Service
	repo     *account.MemoryRepository
	creds    *MemoryCredentialProvider
	recorder *eventRecorder
	hasher   *password.Hasher
}

func newTestRedis(t *testing.T) redis.UniversalClient {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// newHarness wires both contexts over one bus. When withAccountContext
// is false the Account side never answers, which is how timeout paths
// are exercised.
func newHarness(t *testing.T, cfg Config, withAccountContext bool) *harness {
	t.Helper()
	return newHarnessWithSink(t, cfg, withAccountContext, nil)
}

func newHarnessWithSink(t *testing.T, cfg Config, withAccountContext bool, sink AuditSink) *harness {
	t.Helper()

	logger := testLogger()
	eventBus := bus.New(logger)

	recorder := &eventRecorder{}
	for _, eventType := range recordedTypes {
		eventBus.Subscribe(eventType, recorder.record)
	}

	h := &harness{
		bus:      eventBus,
		repo:     account.NewMemoryRepository(),
		creds:    NewMemoryCredentialProvider(),
		recorder: recorder,
	}

	if withAccountContext {
		registry := correlation.NewRegistry(correlation.Config{
			SweepInterval: time.Hour,
			SweepGrace:    time.Hour,
		}, logger)
		t.Cleanup(registry.Close)

		accounts, err := account.NewService(account.Options{
			Bus:                 eventBus,
			Repository:          h.repo,
			Registry:            registry,
			Logger:              logger,
			VerificationTimeout: cfg.Saga.DeactivationTimeout,
		})
		if err != nil {
			t.Fatalf("account.NewService failed: %v", err)
		}
		h.accounts = accounts
	}

	engine, err := New().
		WithConfig(cfg).
		WithRedis(newTestRedis(t)).
		WithBus(eventBus).
		WithCredentialProvider(h.creds).
		WithAuditSink(sink).
		WithLogger(logger).
		WithMetricsEnabled(true).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	h.engine = engine

	hasher, err := password.NewHasher(password.Config{
		Memory:      16 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}
	h.hasher = hasher

	return h
}

// seedAccount creates an account with a credential and returns its id.
func (h *harness) seedAccount(t *testing.T, username, pass string, status account.Status) string {
	t.Helper()

	ctx := context.Background()
	accountID := uuid.NewString()

	if err := h.repo.Save(ctx, &account.Account{
		AccountID: accountID,
		Username:  username,
		Status:    status,
		CreatedAt: time.Now().Unix(),
	}); err != nil {
		t.Fatalf("repo.Save failed: %v", err)
	}

	hash, err := h.hasher.Hash(pass)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if err := h.creds.Save(ctx, &Credential{
		CredentialID: uuid.NewString(),
		AccountID:    accountID,
		PasswordHash: hash,
		CreatedAt:    time.Now().Unix(),
	}); err != nil {
		t.Fatalf("creds.Save failed: %v", err)
	}

	return accountID
}

// answerPrompts subscribes an interactive surface that submits the given
// method and secret for every verification prompt.
func (h *harness) answerPrompts(method bus.VerificationMethod, secret string) {
	h.bus.Subscribe(bus.TypeDeactivationVerificationPrompt, func(ctx context.Context, evt bus.Event) {
		prompt, ok := bus.As[bus.DeactivationVerificationPrompt](evt)
		if !ok {
			return
		}
		h.bus.Publish(ctx, bus.Event{
			Type:        bus.TypeDeactivationVerificationSubmitted,
			AggregateID: prompt.AccountID,
			Payload: bus.DeactivationVerificationSubmitted{
				RequestID: prompt.RequestID,
				Method:    method,
				Secret:    secret,
			},
		})
	})
}
