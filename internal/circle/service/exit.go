package service

import (
	"context"
	"errors"

	"susu/internal/circle/models"
	"susu/pkg/domain"
	dErrors "susu/pkg/domain-errors"
	"susu/pkg/platform/sentinel"
	"susu/pkg/requestcontext"
)

// RequestExit marks the caller as awaiting replacement. The member's queue
// slot locks (no payout targets it) and the refund freezes at the member's
// contributed principal. No funds move until a replacement fills the
// vacancy.
func (s *Service) RequestExit(ctx context.Context, circleID domain.CircleID, acct domain.Account) (*models.PendingExit, error) {
	if err := s.authorizer.Verify(ctx, acct); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	var exit *models.PendingExit
	_, err := s.circles.Execute(ctx, circleID,
		func(c *models.Circle) error {
			return c.CanRequestExit(acct)
		},
		func(c *models.Circle) error {
			exit = c.ApplyRequestExit(acct, now)
			return nil
		},
	)
	if err != nil {
		return nil, wrapCircleErr(err)
	}

	s.logEvent(ctx, "exit requested",
		"circle_id", circleID, "account", acct,
		"queue_index", exit.QueueIndex, "refund", exit.RefundAmount)
	return exit, nil
}

// FillVacancy installs the caller as the replacement for a member awaiting
// exit. The replacement buys in for the exiting member's frozen principal,
// the pool refunds the exiting member the same amount, and the membership
// badge moves to the replacement. The replacement inherits the slot's
// queue position, payout flag, and contribution flag as-is.
func (s *Service) FillVacancy(ctx context.Context, circleID domain.CircleID, exiting, replacement domain.Account) (*models.Circle, error) {
	if err := s.authorizer.Verify(ctx, replacement); err != nil {
		return nil, err
	}

	if _, err := s.circles.CircleOfMember(ctx, replacement); err == nil {
		return nil, dErrors.New(dErrors.CodeAlreadyJoined, "replacement already belongs to a circle")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "membership lookup failed")
	}

	now := requestcontext.Now(ctx)
	c, err := s.circles.Execute(ctx, circleID,
		func(c *models.Circle) error {
			return c.CanFillVacancy(exiting, replacement)
		},
		func(c *models.Circle) error {
			// Badges are keyed by the join slot, which the replacement inherits.
			slot := c.MemberByAccount(exiting).JoinIndex
			exit := c.ApplyFillVacancy(exiting, replacement, now)

			// Buy-in covers the exiting member's position, so the pool stays
			// whole and the refund settles from it immediately.
			if exit.RefundAmount > 0 {
				if err := s.ledger.Transfer(ctx, c.Asset, replacement, s.pool, exit.RefundAmount); err != nil {
					return translateLedgerErr(err)
				}
				if err := s.ledger.Transfer(ctx, c.Asset, s.pool, exiting, exit.RefundAmount); err != nil {
					return translateLedgerErr(err)
				}
				c.MemberByAccount(replacement).RecordContribution(exit.RefundAmount)
			}
			return s.transferBadge(ctx, circleID, slot, exiting, replacement)
		},
	)
	if err != nil {
		return nil, wrapCircleErr(err)
	}

	s.logEvent(ctx, "vacancy filled",
		"circle_id", circleID, "exiting", exiting, "replacement", replacement)
	return c, nil
}

func (s *Service) transferBadge(ctx context.Context, circleID domain.CircleID, slot int, from, to domain.Account) error {
	if s.badge == nil {
		return nil
	}
	if err := s.badge.Transfer(ctx, circleID, slot, from, to); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to transfer membership badge")
	}
	return nil
}
