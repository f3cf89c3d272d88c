package service

import (
	"context"
	"errors"
	"time"

	"susu/internal/circle/models"
	"susu/pkg/domain"
	dErrors "susu/pkg/domain-errors"
	"susu/pkg/platform/sentinel"
	"susu/pkg/requestcontext"
)

// CreateCircle registers a new circle with the given admin and terms. The
// admin is not automatically a member; joining is a separate, explicit act.
func (s *Service) CreateCircle(ctx context.Context, admin domain.Account, contribution domain.Amount, maxMembers int, asset domain.Asset, isRandomQueue bool) (*models.Circle, error) {
	if err := s.authorizer.Verify(ctx, admin); err != nil {
		return nil, err
	}

	c, err := models.NewCircle(0, admin, contribution, maxMembers, asset, isRandomQueue, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	id, err := s.circles.Create(ctx, c)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create circle")
	}
	c.ID = id

	if s.metrics != nil {
		s.metrics.IncrementCircleCreated()
	}
	s.logEvent(ctx, "circle created",
		"circle_id", c.ID, "admin", admin, "contribution", contribution,
		"max_members", maxMembers, "random_queue", isRandomQueue)
	return c, nil
}

// JoinCircle adds the caller's account to the circle. An account may belong
// to at most one circle at a time; prior ejection from a different circle
// does not block joining this one.
func (s *Service) JoinCircle(ctx context.Context, circleID domain.CircleID, acct domain.Account) (*models.Circle, error) {
	if err := s.authorizer.Verify(ctx, acct); err != nil {
		return nil, err
	}

	if existing, err := s.circles.CircleOfMember(ctx, acct); err == nil {
		if existing == circleID {
			return nil, dErrors.New(dErrors.CodeAlreadyJoined, "account already belongs to this circle")
		}
		return nil, dErrors.New(dErrors.CodeAlreadyJoined, "account already belongs to another circle")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "membership lookup failed")
	}

	now := requestcontext.Now(ctx)
	c, err := s.circles.Execute(ctx, circleID,
		func(c *models.Circle) error {
			return c.CanJoin(acct)
		},
		func(c *models.Circle) error {
			m := c.ApplyJoin(acct, now)
			return s.mintBadge(ctx, circleID, m.JoinIndex, acct)
		},
	)
	if err != nil {
		return nil, wrapCircleErr(err)
	}

	s.logEvent(ctx, "member joined",
		"circle_id", circleID, "account", acct, "member_count", len(c.Members), "state", c.State)
	return c, nil
}

// StartRound opens the collection phase for the next cycle. Admin only; all
// members must be in good standing with no unresolved exits.
func (s *Service) StartRound(ctx context.Context, circleID domain.CircleID, caller domain.Account) (*models.Circle, error) {
	if err := s.authorizer.Verify(ctx, caller); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	c, err := s.circles.Execute(ctx, circleID,
		func(c *models.Circle) error {
			if err := requireAdmin(c, caller); err != nil {
				return err
			}
			return c.CanStartRound()
		},
		func(c *models.Circle) error {
			c.ApplyStartRound(now)
			return nil
		},
	)
	if err != nil {
		return nil, wrapCircleErr(err)
	}

	s.logEvent(ctx, "round started", "circle_id", circleID, "cycle", c.CycleNumber)
	return c, nil
}

// Deposit collects the caller's contribution for the current cycle. The
// funds move from the member to the protocol pool; a transfer shortfall
// aborts without recording the contribution.
func (s *Service) Deposit(ctx context.Context, circleID domain.CircleID, acct domain.Account) (*models.Circle, error) {
	if err := s.authorizer.Verify(ctx, acct); err != nil {
		return nil, err
	}

	start := time.Now()
	now := requestcontext.Now(ctx)
	c, err := s.circles.Execute(ctx, circleID,
		func(c *models.Circle) error {
			return c.CanRecordDeposit(acct)
		},
		func(c *models.Circle) error {
			if err := s.ledger.Transfer(ctx, c.Asset, acct, s.pool, c.Contribution); err != nil {
				return translateLedgerErr(err)
			}
			c.ApplyRecordDeposit(acct, now)
			return nil
		},
	)
	if err != nil {
		return nil, wrapCircleErr(err)
	}

	if s.metrics != nil {
		s.metrics.ObserveDeposit(start)
	}
	s.logEvent(ctx, "contribution recorded",
		"circle_id", circleID, "account", acct, "cycle", c.CycleNumber, "state", c.State)
	return c, nil
}

// FinalizeCircle freezes the payout order. Sequential circles pay in join
// order; random circles draw an unbiased permutation. Admin only, once per
// circle.
func (s *Service) FinalizeCircle(ctx context.Context, circleID domain.CircleID, caller domain.Account) (*models.Circle, error) {
	if err := s.authorizer.Verify(ctx, caller); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	c, err := s.circles.Execute(ctx, circleID,
		func(c *models.Circle) error {
			if err := requireAdmin(c, caller); err != nil {
				return err
			}
			return c.CanFinalize()
		},
		func(c *models.Circle) error {
			c.ApplyFinalize(s.random.Shuffle, now)
			return nil
		},
	)
	if err != nil {
		return nil, wrapCircleErr(err)
	}

	s.logEvent(ctx, "payout queue finalized",
		"circle_id", circleID, "queue_length", len(c.PayoutQueue), "random", c.IsRandomQueue)
	return c, nil
}

func (s *Service) mintBadge(ctx context.Context, circleID domain.CircleID, slot int, owner domain.Account) error {
	if s.badge == nil {
		return nil
	}
	if err := s.badge.Mint(ctx, circleID, slot, owner); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to mint membership badge")
	}
	return nil
}
