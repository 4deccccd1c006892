package authsaga

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/gongxingwei/authsaga/bus"
	"github.com/gongxingwei/authsaga/correlation"
	"github.com/gongxingwei/authsaga/internal/audit"
	"github.com/gongxingwei/authsaga/internal/flows"
	"github.com/gongxingwei/authsaga/internal/metrics"
	"github.com/gongxingwei/authsaga/jwt"
	"github.com/gongxingwei/authsaga/password"
	"github.com/gongxingwei/authsaga/session"
)

// Builder assembles an Engine. Configure it during initialization and
// call Build once.
type Builder struct {
	config Config

	redis       redis.UniversalClient
	eventBus    *bus.Bus
	credentials CredentialProvider
	auditSink   audit.Sink
	logger      *slog.Logger

	built bool
}

// New returns a builder seeded with the default configuration.
func New() *Builder {
	return &Builder{config: defaultConfig()}
}

// WithConfig replaces the configuration. Zero fields keep their
// defaults.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = mergeDefaults(cloneConfig(cfg))
	return b
}

// WithRedis sets the session storage backend.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithBus sets the event bus shared with the Account context.
func (b *Builder) WithBus(eventBus *bus.Bus) *Builder {
	b.eventBus = eventBus
	return b
}

// WithCredentialProvider sets the host's credential storage.
func (b *Builder) WithCredentialProvider(provider CredentialProvider) *Builder {
	b.credentials = provider
	return b
}

// WithAuditSink sets the destination for audit events.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the structured logger.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithMetricsEnabled toggles the counter set.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the wiring, constructs the Engine, and subscribes its
// bus handlers.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.eventBus == nil {
		return nil, errors.New("event bus required")
	}
	if b.credentials == nil {
		return nil, errors.New("credential provider required")
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}

	ph, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Leeway:        cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:       cfg,
		bus:          b.eventBus,
		sessionStore: session.NewStore(b.redis, cfg.Session.RedisPrefix),
		passwordHash: ph,
		jwtManager:   jm,
		credentials:  b.credentials,
		logger:       b.logger,
		metrics:      metrics.New(metrics.Config{Enabled: cfg.Metrics.Enabled}),
		current:      make(map[string]map[string]struct{}),
	}
	engine.registry = correlation.NewRegistry(correlation.Config{
		SweepInterval: cfg.Saga.SweepInterval,
		SweepGrace:    cfg.Saga.SweepGrace,
	}, b.logger)
	engine.audit = audit.NewDispatcher(audit.DispatcherConfig{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	engine.flows = flows.New(flows.Deps{
		Login: flows.LoginDeps{
			LookupTimeout:   cfg.Saga.LookupTimeout,
			StatusTimeout:   cfg.Saga.StatusTimeout,
			SessionLifetime: cfg.Session.Lifetime,

			Now:          timeNow,
			NewRequestID: uuid.NewString,
			NewSessionID: uuid.NewString,

			ClientInfoFromContext: clientInfoFromContext,

			Publish:  engine.bus.Publish,
			Exchange: engine.registry.Exchange,

			AccountStatusError: accountStatusError,

			GetCredential:  engine.getCredential,
			RecordFailure:  engine.recordFailure,
			ResetFailures:  engine.resetFailures,
			VerifyPassword: ph.Verify,

			SaveSession:       engine.sessionStore.Save,
			SetCurrentSession: engine.setCurrentSession,
			IssueAccessToken:  jm.CreateAccess,

			MetricInc: engine.metrics.Inc,
			EmitAudit: engine.emitAudit,

			Errors: flows.LoginErrors{
				AccountNotFound:    ErrAccountNotFound,
				InvalidCredentials: ErrInvalidCredentials,
				AccountLocked:      ErrAccountLocked,
				AccountInactive:    ErrAccountInactive,
				SagaTimeout:        ErrSagaTimeout,
				System:             ErrSystemError,
			},
			Events: flows.LoginEvents{
				Success: eventLoginSuccess,
				Failure: eventLoginFailure,
				Lockout: eventAccountLockout,
			},
		},
		Logout: flows.LogoutDeps{
			Now: timeNow,

			Publish: engine.bus.Publish,

			GetSession:          engine.sessionStore.Get,
			DeleteSession:       engine.sessionStore.Delete,
			ListSessions:        engine.sessionStore.ListForAccount,
			ActiveCount:         engine.sessionStore.ActiveCount,
			ClearCurrentSession: engine.clearCurrentSession,

			MetricInc: engine.metrics.Inc,
			MetricAdd: engine.metrics.Add,
			EmitAudit: engine.emitAudit,

			Errors: flows.LogoutErrors{
				SessionNotFound:  ErrSessionNotFound,
				AlreadyLoggedOut: ErrAlreadyLoggedOut,
				System:           ErrSystemError,
			},
			Events: flows.LogoutEvents{
				Logout:    eventLogout,
				LogoutAll: eventLogoutAll,
			},
		},
		Verify: flows.VerifyDeps{
			InteractiveTimeout: cfg.Saga.InteractiveTimeout,

			Now: timeNow,

			Publish:  engine.bus.Publish,
			Exchange: engine.registry.Exchange,

			GetCredential:    engine.getCredential,
			DeleteCredential: b.credentials.Delete,
			VerifyPassword:   ph.Verify,

			DeleteAllSessions:   engine.sessionStore.DeleteAllForAccount,
			ClearCurrentAccount: engine.clearCurrentAccount,

			MetricInc: engine.metrics.Inc,
			MetricAdd: engine.metrics.Add,
			EmitAudit: engine.emitAudit,

			Events: flows.VerifyEvents{
				Confirmed: eventDeactivationConfirmed,
				Failed:    eventDeactivationDenied,
			},
		},
	})

	engine.bus.Subscribe(bus.TypeAccountIDLookupResponse, engine.handleLookupResponse)
	engine.bus.Subscribe(bus.TypeAccountStatusVerificationResponse, engine.handleStatusResponse)
	engine.bus.Subscribe(bus.TypeDeactivationVerificationRequested, engine.handleVerificationRequested)
	engine.bus.Subscribe(bus.TypeDeactivationVerificationSubmitted, engine.handleVerificationSubmitted)

	b.built = true

	return engine, nil
}

// accountStatusError maps a disallowed status reported by the Account
// context to a login sentinel.
func accountStatusError(status string) error {
	switch status {
	case "not_found":
		return ErrAccountNotFound
	case "locked":
		return ErrAccountLocked
	default:
		return ErrAccountInactive
	}
}
