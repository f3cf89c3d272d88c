package service

import (
	"context"

	"susu/internal/circle/models"
	"susu/pkg/domain"
	dErrors "susu/pkg/domain-errors"
	"susu/pkg/requestcontext"
)

// KickMember ejects a member before the queue is finalized. The member is
// refunded their principal minus the penalty; the penalty goes to the
// treasury. Admin only.
func (s *Service) KickMember(ctx context.Context, circleID domain.CircleID, caller, member domain.Account, penalty domain.Amount) (*models.Circle, error) {
	if err := s.authorizer.Verify(ctx, caller); err != nil {
		return nil, err
	}

	_, treasury, err := s.fees.FeeConfig(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load fee configuration")
	}

	now := requestcontext.Now(ctx)
	var refund domain.Amount
	c, err := s.circles.Execute(ctx, circleID,
		func(c *models.Circle) error {
			if err := requireAdmin(c, caller); err != nil {
				return err
			}
			return c.CanKick(member, penalty)
		},
		func(c *models.Circle) error {
			slot := c.MemberByAccount(member).JoinIndex
			refund = c.ApplyKick(member, penalty, now)
			if refund > 0 {
				if err := s.ledger.Transfer(ctx, c.Asset, s.pool, member, refund); err != nil {
					return translateLedgerErr(err)
				}
			}
			if penalty > 0 {
				if err := s.ledger.Transfer(ctx, c.Asset, s.pool, treasury, penalty); err != nil {
					return translateLedgerErr(err)
				}
			}
			return s.burnBadge(ctx, circleID, slot, member)
		},
	)
	if err != nil {
		return nil, wrapCircleErr(err)
	}

	s.logEvent(ctx, "member kicked",
		"circle_id", circleID, "member", member, "penalty", penalty, "refund", refund)
	return c, nil
}

// ProposeDissolution opens a dissolution vote with the proposer's vote
// already counted. Proposing again is a no-op.
func (s *Service) ProposeDissolution(ctx context.Context, circleID domain.CircleID, acct domain.Account) (*models.Circle, error) {
	if err := s.authorizer.Verify(ctx, acct); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	c, err := s.circles.Execute(ctx, circleID,
		func(c *models.Circle) error {
			return c.CanProposeDissolution(acct)
		},
		func(c *models.Circle) error {
			c.ApplyProposeDissolution(acct, now)
			return nil
		},
	)
	if err != nil {
		return nil, wrapCircleErr(err)
	}

	s.logEvent(ctx, "dissolution proposed",
		"circle_id", circleID, "account", acct, "votes", len(c.DissolutionVotes))
	return c, nil
}

// VoteDissolve casts a dissolution vote. A strict majority of the member
// count dissolves the circle; every lifecycle operation is rejected
// afterwards and members recover principal through WithdrawProRata.
func (s *Service) VoteDissolve(ctx context.Context, circleID domain.CircleID, acct domain.Account) (*models.Circle, error) {
	if err := s.authorizer.Verify(ctx, acct); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	c, err := s.circles.Execute(ctx, circleID,
		func(c *models.Circle) error {
			return c.CanVoteDissolve(acct)
		},
		func(c *models.Circle) error {
			c.ApplyVoteDissolve(acct, now)
			return nil
		},
	)
	if err != nil {
		return nil, wrapCircleErr(err)
	}

	s.logEvent(ctx, "dissolution vote cast",
		"circle_id", circleID, "account", acct,
		"votes", len(c.DissolutionVotes), "dissolved", c.Dissolved)
	return c, nil
}

// WithdrawProRata refunds a member's recoverable principal from a dissolved
// circle: contributed principal minus the credit for a payout already
// received this cycle, never negative. The claim zeroes on withdrawal.
func (s *Service) WithdrawProRata(ctx context.Context, circleID domain.CircleID, acct domain.Account) (domain.Amount, error) {
	if err := s.authorizer.Verify(ctx, acct); err != nil {
		return 0, err
	}

	now := requestcontext.Now(ctx)
	var refund domain.Amount
	_, err := s.circles.Execute(ctx, circleID,
		func(c *models.Circle) error {
			return c.CanWithdrawProRata(acct)
		},
		func(c *models.Circle) error {
			refund = c.ApplyWithdrawProRata(acct, now)
			if refund > 0 {
				if err := s.ledger.Transfer(ctx, c.Asset, s.pool, acct, refund); err != nil {
					return translateLedgerErr(err)
				}
			}
			return nil
		},
	)
	if err != nil {
		return 0, wrapCircleErr(err)
	}

	s.logEvent(ctx, "pro-rata withdrawal",
		"circle_id", circleID, "account", acct, "amount", refund)
	return refund, nil
}

func (s *Service) burnBadge(ctx context.Context, circleID domain.CircleID, slot int, owner domain.Account) error {
	if s.badge == nil {
		return nil
	}
	if err := s.badge.Burn(ctx, circleID, slot, owner); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to burn membership badge")
	}
	return nil
}
