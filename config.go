package authsaga

import (
	"errors"
	"time"
)

// Config carries all engine tuning. Zero values fall back to the
// defaults from defaultConfig during Build.
type Config struct {
	JWT      JWTConfig
	Session  SessionConfig
	Password PasswordConfig
	Saga     SagaConfig
	Lockout  LockoutConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

// JWTConfig carries access token parameters. PrivateKey/PublicKey hold
// the Ed25519 pair; for hs256 PrivateKey is the shared secret.
type JWTConfig struct {
	AccessTTL     time.Duration
	SigningMethod string // "ed25519" (default), "hs256" optional
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Leeway        time.Duration
}

// SessionConfig carries session storage parameters.
type SessionConfig struct {
	RedisPrefix string
	Lifetime    time.Duration
}

// PasswordConfig carries argon2id parameters. Memory is in KiB.
type PasswordConfig struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// SagaConfig bounds the cross-context exchanges. Each timeout covers one
// request/response pair; SweepInterval/SweepGrace tune the registry's
// background eviction of leaked waiters.
type SagaConfig struct {
	LookupTimeout       time.Duration
	StatusTimeout       time.Duration
	DeactivationTimeout time.Duration
	InteractiveTimeout  time.Duration
	SweepInterval       time.Duration
	SweepGrace          time.Duration
}

// LockoutConfig controls credential lockout on repeated failures.
// Reaching MaxFailedAttempts locks the credential for LockWindow.
type LockoutConfig struct {
	MaxFailedAttempts int
	LockWindow        time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the counter set.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL: 15 * time.Minute,
		},
		Session: SessionConfig{
			RedisPrefix: "authsaga",
			Lifetime:    24 * time.Hour,
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Saga: SagaConfig{
			LookupTimeout:       10 * time.Second,
			StatusTimeout:       10 * time.Second,
			DeactivationTimeout: 30 * time.Second,
			InteractiveTimeout:  30 * time.Second,
			SweepInterval:       2 * time.Minute,
			SweepGrace:          time.Minute,
		},
		Lockout: LockoutConfig{
			MaxFailedAttempts: 5,
			LockWindow:        15 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
		},
	}
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT.AccessTTL must be positive")
	}
	if c.Session.Lifetime <= 0 {
		return errors.New("Session.Lifetime must be positive")
	}
	if c.Session.RedisPrefix == "" {
		return errors.New("Session.RedisPrefix must be set")
	}
	if c.Saga.LookupTimeout <= 0 || c.Saga.StatusTimeout <= 0 {
		return errors.New("Saga lookup and status timeouts must be positive")
	}
	if c.Saga.DeactivationTimeout <= 0 || c.Saga.InteractiveTimeout <= 0 {
		return errors.New("Saga deactivation timeouts must be positive")
	}
	if c.Saga.InteractiveTimeout >= c.Saga.DeactivationTimeout+c.Saga.SweepGrace {
		// The verifying side must answer before the requesting side's
		// sweep would evict the waiter.
		return errors.New("Saga.InteractiveTimeout too large for DeactivationTimeout")
	}
	if c.Lockout.MaxFailedAttempts <= 0 {
		return errors.New("Lockout.MaxFailedAttempts must be positive")
	}
	if c.Lockout.LockWindow <= 0 {
		return errors.New("Lockout.LockWindow must be positive")
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit.BufferSize must be positive when audit is enabled")
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// mergeDefaults fills zero fields from defaultConfig so hosts only set
// what they care about.
func mergeDefaults(cfg Config) Config {
	def := defaultConfig()

	if cfg.JWT.AccessTTL == 0 {
		cfg.JWT.AccessTTL = def.JWT.AccessTTL
	}
	if cfg.Session.RedisPrefix == "" {
		cfg.Session.RedisPrefix = def.Session.RedisPrefix
	}
	if cfg.Session.Lifetime == 0 {
		cfg.Session.Lifetime = def.Session.Lifetime
	}
	if cfg.Password.Memory == 0 {
		cfg.Password = def.Password
	}
	if cfg.Saga.LookupTimeout == 0 {
		cfg.Saga.LookupTimeout = def.Saga.LookupTimeout
	}
	if cfg.Saga.StatusTimeout == 0 {
		cfg.Saga.StatusTimeout = def.Saga.StatusTimeout
	}
	if cfg.Saga.DeactivationTimeout == 0 {
		cfg.Saga.DeactivationTimeout = def.Saga.DeactivationTimeout
	}
	if cfg.Saga.InteractiveTimeout == 0 {
		cfg.Saga.InteractiveTimeout = def.Saga.InteractiveTimeout
	}
	if cfg.Saga.SweepInterval == 0 {
		cfg.Saga.SweepInterval = def.Saga.SweepInterval
	}
	if cfg.Saga.SweepGrace == 0 {
		cfg.Saga.SweepGrace = def.Saga.SweepGrace
	}
	if cfg.Lockout.MaxFailedAttempts == 0 {
		cfg.Lockout.MaxFailedAttempts = def.Lockout.MaxFailedAttempts
	}
	if cfg.Lockout.LockWindow == 0 {
		cfg.Lockout.LockWindow = def.Lockout.LockWindow
	}
	if cfg.Audit.Enabled && cfg.Audit.BufferSize == 0 {
		cfg.Audit.BufferSize = def.Audit.BufferSize
	}

	return cfg
}
