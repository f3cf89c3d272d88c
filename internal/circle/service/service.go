package service

import (
	"context"
	"errors"
	"log/slog"

	"susu/internal/capabilities"
	circlemetrics "susu/internal/circle/metrics"
	"susu/internal/circle/models"
	"susu/internal/events"
	"susu/pkg/domain"
	dErrors "susu/pkg/domain-errors"
	"susu/pkg/platform/sentinel"
	"susu/pkg/requestcontext"
)

// CircleStore is the persistence boundary for circle aggregates. Execute
// holds the record lock (mutex or FOR UPDATE) across both callbacks so every
// entry point is all-or-nothing: a failure in validate or mutate leaves the
// committed record untouched.
type CircleStore interface {
	Create(ctx context.Context, c *models.Circle) (domain.CircleID, error)
	FindByID(ctx context.Context, id domain.CircleID) (*models.Circle, error)
	Execute(ctx context.Context, id domain.CircleID, validate func(c *models.Circle) error, mutate func(c *models.Circle) error) (*models.Circle, error)
	CircleOfMember(ctx context.Context, acct domain.Account) (domain.CircleID, error)
}

// FeePolicy supplies the active protocol fee configuration. The protocol
// module owns it; the payout engine only reads.
type FeePolicy interface {
	FeeConfig(ctx context.Context) (basisPoints uint32, treasury domain.Account, err error)
}

// Service orchestrates the circle lifecycle: membership, rounds, the payout
// engine, rollover, exits, and dissolution governance. Fund movements go
// through the Ledger capability against the protocol pool account; queue
// permutations come from the RandomSource.
type Service struct {
	circles    CircleStore
	ledger     capabilities.Ledger
	authorizer capabilities.Authorizer
	random     capabilities.RandomSource
	fees       FeePolicy
	pool       domain.Account

	badge     capabilities.Badge
	publisher events.Publisher
	logger    *slog.Logger
	metrics   *circlemetrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithPublisher(publisher events.Publisher) Option {
	return func(s *Service) {
		s.publisher = publisher
	}
}

func WithBadge(badge capabilities.Badge) Option {
	return func(s *Service) {
		s.badge = badge
	}
}

func WithMetrics(m *circlemetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs a Service. The pool account is the protocol-owned holding
// account that receives contributions and pays out recipients and refunds.
func New(circles CircleStore, ledger capabilities.Ledger, authorizer capabilities.Authorizer, random capabilities.RandomSource, fees FeePolicy, pool domain.Account, opts ...Option) *Service {
	s := &Service{
		circles:    circles,
		ledger:     ledger,
		authorizer: authorizer,
		random:     random,
		fees:       fees,
		pool:       pool,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// wrapCircleErr translates store sentinels into domain errors and passes
// already-coded errors through.
func wrapCircleErr(err error) error {
	if err == nil {
		return nil
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeCircleNotFound, "circle not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "circle store failure")
}

// translateLedgerErr maps capability transfer failures to wire codes.
func translateLedgerErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, capabilities.ErrInsufficientAllowance) {
		return dErrors.Wrap(err, dErrors.CodeInsufficientAllowance, "transfer allowance is insufficient")
	}
	if errors.Is(err, capabilities.ErrInsufficientBalance) {
		return dErrors.Wrap(err, dErrors.CodeConflict, "account balance is insufficient")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "asset transfer failed")
}

// requireAdmin fails with Unauthorized unless caller is the circle admin.
func requireAdmin(c *models.Circle, caller domain.Account) error {
	if c.Admin != caller {
		return dErrors.New(dErrors.CodeUnauthorized, "operation is restricted to the circle admin")
	}
	return nil
}

func (s *Service) logEvent(ctx context.Context, msg string, attributes ...any) {
	if s.logger == nil {
		return
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	s.logger.InfoContext(ctx, msg, attributes...)
}

// emit publishes a signal after the state mutation has committed. Delivery
// failures are logged, never propagated: circle state is already final.
func (s *Service) emit(ctx context.Context, eventType string, payload any) {
	if s.publisher == nil {
		return
	}
	event := events.NewEvent(eventType, requestcontext.Now(ctx), payload)
	if err := s.publisher.Emit(ctx, event); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "event emission failed",
			"event_type", eventType, "error", err)
	}
}
