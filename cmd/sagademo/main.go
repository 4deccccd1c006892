// Command sagademo wires both contexts over one in-process bus and
// walks the three sagas end to end: a login, a failed login, an
// interactive account deactivation, and a logout.
package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/gongxingwei/authsaga"
	"github.com/gongxingwei/authsaga/account"
	"github.com/gongxingwei/authsaga/bus"
	"github.com/gongxingwei/authsaga/correlation"
	"github.com/gongxingwei/authsaga/password"
)

type demoConfig struct {
	RedisAddr string        `env:"REDIS_ADDR"`
	Username  string        `env:"DEMO_USERNAME" envDefault:"alice"`
	Password  string        `env:"DEMO_PASSWORD" envDefault:"correct horse battery"`
	AccessTTL time.Duration `env:"ACCESS_TTL" envDefault:"15m"`
	AuditJSON bool          `env:"AUDIT_JSON" envDefault:"true"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "sagademo: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var cfg demoConfig
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	ctx := context.Background()

	client, cleanup, err := redisClient(cfg.RedisAddr, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("generate signing key: %w", err)
	}

	eventBus := bus.New(logger)

	var auditSink authsaga.AuditSink
	if cfg.AuditJSON {
		auditSink = authsaga.NewJSONAuditSink(os.Stdout)
	}

	creds := authsaga.NewMemoryCredentialProvider()

	engine, err := authsaga.New().
		WithConfig(authsaga.Config{
			JWT: authsaga.JWTConfig{
				AccessTTL:  cfg.AccessTTL,
				PrivateKey: priv,
				PublicKey:  pub,
			},
		}).
		WithRedis(client).
		WithBus(eventBus).
		WithCredentialProvider(creds).
		WithAuditSink(auditSink).
		WithLogger(logger).
		WithMetricsEnabled(true).
		Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	accountRegistry := correlation.NewRegistry(correlation.Config{}, logger)
	defer accountRegistry.Close()

	repo := account.NewMemoryRepository()
	accounts, err := account.NewService(account.Options{
		Bus:        eventBus,
		Repository: repo,
		Registry:   accountRegistry,
		Logger:     logger,
		Metrics:    nil,
	})
	if err != nil {
		return fmt.Errorf("build account service: %w", err)
	}

	accountID, err := seed(ctx, repo, creds, cfg)
	if err != nil {
		return fmt.Errorf("seed demo data: %w", err)
	}

	// Simulated interactive surface: answer every verification prompt
	// with the demo password.
	eventBus.Subscribe(bus.TypeDeactivationVerificationPrompt, func(ctx context.Context, evt bus.Event) {
		prompt, ok := bus.As[bus.DeactivationVerificationPrompt](evt)
		if !ok {
			return
		}
		logger.Info("prompt_answered", "request_id", prompt.RequestID, "username", prompt.Username)
		eventBus.Publish(ctx, bus.Event{
			Type:        bus.TypeDeactivationVerificationSubmitted,
			AggregateID: prompt.AccountID,
			Payload: bus.DeactivationVerificationSubmitted{
				RequestID: prompt.RequestID,
				Method:    bus.MethodPassword,
				Secret:    cfg.Password,
			},
		})
	})

	loginCtx := authsaga.WithClientIP(authsaga.WithUserAgent(ctx, "sagademo/1.0"), "127.0.0.1")

	// A failed attempt first, then a successful login.
	if _, err := engine.Login(loginCtx, cfg.Username, "wrong password"); err != nil {
		logger.Info("login_rejected", "err", err)
	}
	login, err := engine.Login(loginCtx, cfg.Username, cfg.Password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	logger.Info("logged_in", "session_id", login.SessionID)

	claims, err := engine.Authenticate(ctx, login.AccessToken)
	if err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	logger.Info("token_validated", "account_id", claims.AccountID, "session_id", claims.SessionID)

	logout, err := engine.Logout(ctx, login.SessionID)
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	logger.Info("logged_out", "terminated", logout.TerminatedCount)

	// Log back in so deactivation has a live session to terminate.
	login, err = engine.Login(loginCtx, cfg.Username, cfg.Password)
	if err != nil {
		return fmt.Errorf("second login: %w", err)
	}

	result := accounts.RequestDeactivation(ctx, account.DeactivationRequest{
		AccountID:   accountID,
		RequestorID: accountID,
		RequestedBy: bus.RoleUser,
		Reason:      "demo run",
	})
	if result.Err != nil {
		return fmt.Errorf("deactivation: %w", result.Err)
	}
	logger.Info("deactivated", "message", result.Message)

	// The deactivated account can no longer log in.
	if _, err := engine.Login(loginCtx, cfg.Username, cfg.Password); err != nil {
		logger.Info("post_deactivation_login_rejected", "err", err)
	}

	snap := engine.Metrics()
	logger.Info("metrics",
		"login_success", snap.Get(authsaga.MetricLoginSuccess),
		"login_failure", snap.Get(authsaga.MetricLoginFailure),
		"deactivation_confirmed", snap.Get(authsaga.MetricDeactivationConfirmed),
		"sessions_terminated", snap.Get(authsaga.MetricSessionTerminated),
	)

	return nil
}

func redisClient(addr string, logger *slog.Logger) (redis.UniversalClient, func(), error) {
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		logger.Info("using_miniredis", "addr", mr.Addr())
		return client, func() {
			_ = client.Close()
			mr.Close()
		}, nil
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	logger.Info("using_redis", "addr", addr)
	return client, func() { _ = client.Close() }, nil
}

func seed(ctx context.Context, repo *account.MemoryRepository, creds *authsaga.MemoryCredentialProvider, cfg demoConfig) (string, error) {
	accountID := uuid.NewString()

	if err := repo.Save(ctx, &account.Account{
		AccountID: accountID,
		Username:  cfg.Username,
		Status:    account.StatusActive,
		CreatedAt: time.Now().Unix(),
	}); err != nil {
		return "", err
	}

	hasher, err := password.NewHasher(password.Config{
		Memory:      16 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		return "", err
	}
	hash, err := hasher.Hash(cfg.Password)
	if err != nil {
		return "", err
	}

	if err := creds.Save(ctx, &authsaga.Credential{
		CredentialID: uuid.NewString(),
		AccountID:    accountID,
		PasswordHash: hash,
		CreatedAt:    time.Now().Unix(),
	}); err != nil {
		return "", err
	}

	return accountID, nil
}
