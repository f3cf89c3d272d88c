package service

import (
	"context"
	"log/slog"
	"time"

	"susu/internal/capabilities"
	"susu/internal/protocol/models"
	"susu/pkg/domain"
	dErrors "susu/pkg/domain-errors"
	"susu/pkg/requestcontext"
)

// ProtocolStore is the persistence boundary for the singleton protocol
// record. Execute holds the record lock across validate and mutate.
type ProtocolStore interface {
	Get(ctx context.Context) (*models.Protocol, error)
	Execute(ctx context.Context, validate func(p *models.Protocol) error, mutate func(p *models.Protocol) error) (*models.Protocol, error)
}

// Service owns protocol governance: one-time initialization, the fee
// configuration the payout engine reads, protocol-level fund custody, and
// the admin-inactivity escape hatch.
type Service struct {
	protocol   ProtocolStore
	ledger     capabilities.Ledger
	authorizer capabilities.Authorizer
	pool       domain.Account
	logger     *slog.Logger
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// New constructs a Service. The pool account custodies protocol-level user
// deposits, the same account the circle module pools contributions in.
func New(protocol ProtocolStore, ledger capabilities.Ledger, authorizer capabilities.Authorizer, pool domain.Account, opts ...Option) *Service {
	s := &Service{
		protocol:   protocol,
		ledger:     ledger,
		authorizer: authorizer,
		pool:       pool,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize installs the protocol admin. Runs exactly once; the treasury
// defaults to the admin and the fee to zero until SetProtocolFee changes
// them.
func (s *Service) Initialize(ctx context.Context, admin domain.Account) (*models.Protocol, error) {
	if err := s.authorizer.Verify(ctx, admin); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	p, err := s.protocol.Execute(ctx,
		func(p *models.Protocol) error {
			return p.CanInitialize(admin)
		},
		func(p *models.Protocol) error {
			p.ApplyInitialize(admin, now)
			return nil
		},
	)
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, "protocol initialized", "admin", admin)
	return p, nil
}

// SetProtocolFee updates the fee basis points and treasury address. Admin
// only; refreshes admin liveness.
func (s *Service) SetProtocolFee(ctx context.Context, caller domain.Account, basisPoints uint32, treasury domain.Account) (*models.Protocol, error) {
	if err := s.authorizer.Verify(ctx, caller); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	p, err := s.protocol.Execute(ctx,
		func(p *models.Protocol) error {
			return p.CanSetFee(caller, basisPoints, treasury)
		},
		func(p *models.Protocol) error {
			p.ApplySetFee(basisPoints, treasury, now)
			return nil
		},
	)
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, "protocol fee updated",
		"basis_points", basisPoints, "treasury", treasury)
	return p, nil
}

// AdminAction is a privileged no-op whose only effect is refreshing the
// admin liveness timestamp, resetting the emergency withdrawal clock.
func (s *Service) AdminAction(ctx context.Context, caller domain.Account) (*models.Protocol, error) {
	if err := s.authorizer.Verify(ctx, caller); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	p, err := s.protocol.Execute(ctx,
		func(p *models.Protocol) error {
			return p.RequireAdmin(caller)
		},
		func(p *models.Protocol) error {
			p.Touch(now)
			return nil
		},
	)
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, "admin liveness refreshed", "admin", caller)
	return p, nil
}

// DepositFunds moves funds from the caller into protocol custody and
// credits the caller's protocol balance.
func (s *Service) DepositFunds(ctx context.Context, acct domain.Account, asset domain.Asset, amount domain.Amount) (*models.Protocol, error) {
	if err := s.authorizer.Verify(ctx, acct); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	p, err := s.protocol.Execute(ctx,
		func(p *models.Protocol) error {
			return p.CanDepositFunds(acct, amount)
		},
		func(p *models.Protocol) error {
			if err := s.ledger.Transfer(ctx, asset, acct, s.pool, amount); err != nil {
				return translateLedgerErr(err)
			}
			p.ApplyDepositFunds(acct, asset, amount, now)
			return nil
		},
	)
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, "funds deposited", "account", acct, "asset", asset, "amount", amount)
	return p, nil
}

// EmergencyWithdraw returns the caller's exact protocol balance once the
// admin has been inactive past the threshold. The balance record is deleted
// on withdrawal.
func (s *Service) EmergencyWithdraw(ctx context.Context, acct domain.Account, asset domain.Asset) (domain.Amount, error) {
	if err := s.authorizer.Verify(ctx, acct); err != nil {
		return 0, err
	}

	now := requestcontext.Now(ctx)
	var amount domain.Amount
	_, err := s.protocol.Execute(ctx,
		func(p *models.Protocol) error {
			return p.CanEmergencyWithdraw(acct, asset, now)
		},
		func(p *models.Protocol) error {
			amount = p.ApplyEmergencyWithdraw(acct, asset, now)
			if err := s.ledger.Transfer(ctx, asset, s.pool, acct, amount); err != nil {
				return translateLedgerErr(err)
			}
			return nil
		},
	)
	if err != nil {
		return 0, err
	}

	s.logEvent(ctx, "emergency withdrawal", "account", acct, "asset", asset, "amount", amount)
	return amount, nil
}

// FeeConfig satisfies the circle module's FeePolicy: the active fee basis
// points and treasury address.
func (s *Service) FeeConfig(ctx context.Context) (uint32, domain.Account, error) {
	p, err := s.protocol.Get(ctx)
	if err != nil {
		return 0, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load protocol record")
	}
	return p.FeeBasisPoints, p.Treasury, nil
}

// FeeBasisPoints returns the active fee rate.
func (s *Service) FeeBasisPoints(ctx context.Context) (uint32, error) {
	bps, _, err := s.FeeConfig(ctx)
	return bps, err
}

// TreasuryAddress returns the active treasury account.
func (s *Service) TreasuryAddress(ctx context.Context) (domain.Account, error) {
	_, treasury, err := s.FeeConfig(ctx)
	return treasury, err
}

// LastActiveTimestamp returns the admin liveness timestamp the emergency
// gate measures from.
func (s *Service) LastActiveTimestamp(ctx context.Context) (time.Time, error) {
	p, err := s.protocol.Get(ctx)
	if err != nil {
		return time.Time{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load protocol record")
	}
	return p.LastActive, nil
}

// UserBalance returns an account's protocol-held balance for an asset.
func (s *Service) UserBalance(ctx context.Context, acct domain.Account, asset domain.Asset) (domain.Amount, error) {
	p, err := s.protocol.Get(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load protocol record")
	}
	return p.Balance(acct, asset), nil
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
