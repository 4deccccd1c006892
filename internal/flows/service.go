package flows

import (
	"context"

	"github.com/gongxingwei/authsaga/bus"
)

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Login.Publish != nil
}

func (s Service) Login(ctx context.Context, username, password string) LoginResult {
	return RunLogin(ctx, username, password, s.deps.Login)
}

func (s Service) Logout(ctx context.Context, sessionID, logoutType, reason string) LogoutResult {
	return RunLogout(ctx, sessionID, logoutType, reason, s.deps.Logout)
}

func (s Service) LogoutAll(ctx context.Context, accountID, logoutType, reason string) LogoutResult {
	return RunLogoutAll(ctx, accountID, logoutType, reason, s.deps.Logout)
}

func (s Service) VerifyDeactivation(ctx context.Context, req bus.DeactivationVerificationRequested) {
	RunVerifyDeactivation(ctx, req, s.deps.Verify)
}
