package account

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gongxingwei/authsaga/bus"
	"github.com/gongxingwei/authsaga/correlation"
	"github.com/gongxingwei/authsaga/internal/metrics"
)

const defaultVerificationTimeout = 30 * time.Second

// DeactivationRequest starts the requesting side of the deactivation
// saga. RequestorID identifies who is asking; for user-initiated
// requests it must match AccountID.
type DeactivationRequest struct {
	AccountID   string
	RequestorID string
	RequestedBy bus.InitiatorRole
	Reason      string
	Client      bus.ClientInfo
}

// DeactivationResult is the terminal answer of one deactivation
// request. Callers always get one, even on timeout.
type DeactivationResult struct {
	Success   bool
	Message   string
	AccountID string
	Err       error
}

// Options wires a Service. Bus, Repository, and Registry are required.
type Options struct {
	Bus        *bus.Bus
	Repository Repository
	Registry   *correlation.Registry
	Logger     *slog.Logger
	Metrics    *metrics.Metrics

	// VerificationTimeout bounds the wait for the Authentication
	// context's verification response. Defaults to 30s.
	VerificationTimeout time.Duration

	// NewRequestID overrides correlation id generation; tests use it for
	// deterministic ids.
	NewRequestID func() string
}

// Service is the Account context's saga surface. It answers the
// Authentication context's lookup and status requests and runs the
// requesting side of account deactivation.
type Service struct {
	bus      *bus.Bus
	repo     Repository
	registry *correlation.Registry
	logger   *slog.Logger
	metrics  *metrics.Metrics

	verificationTimeout time.Duration
	newRequestID        func() string
}

// NewService validates opts, subscribes the context's bus handlers, and
// returns the service.
func NewService(opts Options) (*Service, error) {
	if opts.Bus == nil {
		return nil, fmt.Errorf("account service requires a bus")
	}
	if opts.Repository == nil {
		return nil, fmt.Errorf("account service requires a repository")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("account service requires a correlation registry")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.VerificationTimeout <= 0 {
		opts.VerificationTimeout = defaultVerificationTimeout
	}
	if opts.NewRequestID == nil {
		opts.NewRequestID = uuid.NewString
	}

	s := &Service{
		bus:                 opts.Bus,
		repo:                opts.Repository,
		registry:            opts.Registry,
		logger:              opts.Logger,
		metrics:             opts.Metrics,
		verificationTimeout: opts.VerificationTimeout,
		newRequestID:        opts.NewRequestID,
	}

	s.bus.Subscribe(bus.TypeAccountIDLookupRequested, s.onIDLookupRequested)
	s.bus.Subscribe(bus.TypeAccountStatusVerificationRequested, s.onStatusVerificationRequested)
	s.bus.Subscribe(bus.TypeDeactivationVerificationResponse, s.onVerificationResponse)
	s.bus.Subscribe(bus.TypeDeactivationConfirmed, s.onDeactivationConfirmed)

	return s, nil
}

// RequestDeactivation runs the requesting side of the deactivation saga:
// local checks, a correlated verification exchange with the
// Authentication context, and a terminal result in every case.
func (s *Service) RequestDeactivation(ctx context.Context, req DeactivationRequest) *DeactivationResult {
	acct, err := s.repo.FindByID(ctx, req.AccountID)
	if err != nil {
		return &DeactivationResult{
			Message:   "account lookup failed",
			AccountID: req.AccountID,
			Err:       fmt.Errorf("%w: %v", ErrRepository, err),
		}
	}
	if acct == nil {
		return &DeactivationResult{
			Message:   "account not found",
			AccountID: req.AccountID,
			Err:       ErrNotFound,
		}
	}
	if acct.Status == StatusDeactivated {
		return &DeactivationResult{
			Message:   "account already deactivated",
			AccountID: req.AccountID,
			Err:       ErrAlreadyDeactivated,
		}
	}

	if req.RequestedBy == bus.RoleUser && req.RequestorID != req.AccountID {
		return &DeactivationResult{
			Message:   "users may only deactivate their own account",
			AccountID: req.AccountID,
			Err:       ErrPermissionDenied,
		}
	}

	requestID := s.newRequestID()
	s.metrics.Inc(metrics.MetricDeactivationRequested)

	out := s.registry.Exchange(ctx, requestID, s.verificationTimeout, func() {
		s.bus.Publish(ctx, bus.Event{
			Type:        bus.TypeDeactivationVerificationRequested,
			AggregateID: req.AccountID,
			Payload: bus.DeactivationVerificationRequested{
				RequestID:   requestID,
				AccountID:   req.AccountID,
				Username:    acct.Username,
				RequestedBy: req.RequestedBy,
				Reason:      req.Reason,
				Client:      req.Client,
			},
		})
	})

	switch out.Kind {
	case correlation.OutcomeSuccess:
		return &DeactivationResult{
			Success:   true,
			Message:   "account deactivated",
			AccountID: req.AccountID,
		}
	case correlation.OutcomeCancelled:
		s.metrics.Inc(metrics.MetricDeactivationFailed)
		return &DeactivationResult{
			Message:   reasonOrDefault(out.Reason, "deactivation cancelled"),
			AccountID: req.AccountID,
			Err:       ErrVerificationCancelled,
		}
	case correlation.OutcomeTimeout:
		s.metrics.Inc(metrics.MetricDeactivationFailed)
		s.logger.Warn("deactivation_verification_timeout",
			"account_id", req.AccountID,
			"request_id", requestID,
		)
		return &DeactivationResult{
			Message:   "verification timed out",
			AccountID: req.AccountID,
			Err:       ErrVerificationTimeout,
		}
	default:
		s.metrics.Inc(metrics.MetricDeactivationFailed)
		return &DeactivationResult{
			Message:   reasonOrDefault(out.Reason, "verification failed"),
			AccountID: req.AccountID,
			Err:       ErrVerificationFailed,
		}
	}
}

func (s *Service) onIDLookupRequested(ctx context.Context, evt bus.Event) {
	req, ok := bus.As[bus.AccountIDLookupRequested](evt)
	if !ok {
		s.logger.Error("malformed_id_lookup_request", "aggregate_id", evt.AggregateID)
		return
	}

	resp := bus.AccountIDLookupResponse{
		RequestID: req.RequestID,
		Username:  req.Username,
	}

	acct, err := s.repo.FindByUsername(ctx, req.Username)
	if err != nil {
		s.logger.Error("id_lookup_repository_error", "username", req.Username, "err", err)
	} else if acct != nil {
		resp.AccountID = acct.AccountID
		resp.Found = true
	}

	s.bus.Publish(ctx, bus.Event{
		Type:        bus.TypeAccountIDLookupResponse,
		AggregateID: resp.AccountID,
		Payload:     resp,
	})
}

func (s *Service) onStatusVerificationRequested(ctx context.Context, evt bus.Event) {
	req, ok := bus.As[bus.AccountStatusVerificationRequested](evt)
	if !ok {
		s.logger.Error("malformed_status_request", "aggregate_id", evt.AggregateID)
		return
	}

	resp := bus.AccountStatusVerificationResponse{
		RequestID: req.RequestID,
		AccountID: req.AccountID,
	}

	acct, err := s.repo.FindByID(ctx, req.AccountID)
	switch {
	case err != nil:
		s.logger.Error("status_repository_error", "account_id", req.AccountID, "err", err)
		resp.Status = "unknown"
		resp.StatusMessage = "account status unavailable"
	case acct == nil:
		resp.Status = "not_found"
		resp.StatusMessage = "account not found"
	default:
		resp.Status = acct.Status.String()
		resp.LoginAllowed = acct.Status.LoginAllowed()
		resp.StatusMessage = acct.Status.Message()
	}

	s.bus.Publish(ctx, bus.Event{
		Type:        bus.TypeAccountStatusVerificationResponse,
		AggregateID: req.AccountID,
		Payload:     resp,
	})
}

// onVerificationResponse resolves the waiter of a pending deactivation
// request. Stray responses (late, duplicate, unknown id) are discarded
// by the registry.
func (s *Service) onVerificationResponse(_ context.Context, evt bus.Event) {
	resp, ok := bus.As[bus.DeactivationVerificationResponse](evt)
	if !ok {
		s.logger.Error("malformed_verification_response", "aggregate_id", evt.AggregateID)
		return
	}

	out := correlation.Outcome{Reason: resp.Reason, Payload: resp}
	switch resp.Result {
	case bus.VerificationSuccess:
		out.Kind = correlation.OutcomeSuccess
	case bus.VerificationCancelled:
		out.Kind = correlation.OutcomeCancelled
	default:
		out.Kind = correlation.OutcomeFailed
	}

	if !s.registry.Resolve(resp.RequestID, out) {
		s.metrics.Inc(metrics.MetricCorrelationIgnored)
		s.logger.Debug("verification_response_ignored", "request_id", resp.RequestID)
	}
}

// onDeactivationConfirmed marks the aggregate deactivated. This is the
// transition that makes a retried deactivation request short-circuit
// with ErrAlreadyDeactivated instead of confirming twice.
func (s *Service) onDeactivationConfirmed(ctx context.Context, evt bus.Event) {
	confirmed, ok := bus.As[bus.DeactivationConfirmed](evt)
	if !ok {
		s.logger.Error("malformed_deactivation_confirmed", "aggregate_id", evt.AggregateID)
		return
	}

	acct, err := s.repo.FindByID(ctx, confirmed.AccountID)
	if err != nil || acct == nil {
		s.logger.Error("deactivation_confirm_lookup_failed",
			"account_id", confirmed.AccountID,
			"err", err,
		)
		return
	}
	if acct.Status == StatusDeactivated {
		return
	}

	acct.Deactivate(string(confirmed.DeactivatedBy), confirmed.Reason, time.Now())
	if err := s.repo.Save(ctx, acct); err != nil {
		s.logger.Error("deactivation_confirm_save_failed",
			"account_id", confirmed.AccountID,
			"err", err,
		)
		return
	}

	s.logger.Info("account_deactivated",
		"account_id", confirmed.AccountID,
		"deactivated_by", string(confirmed.DeactivatedBy),
		"sessions_terminated", confirmed.SessionTerminationCount,
	)
}

func reasonOrDefault(reason, fallback string) string {
	if reason != "" {
		return reason
	}
	return fallback
}
