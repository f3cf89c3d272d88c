package service

import (
	"context"
	"time"

	"susu/internal/circle/models"
	"susu/internal/events"
	"susu/pkg/domain"
	dErrors "susu/pkg/domain-errors"
	"susu/pkg/requestcontext"
)

// PayoutResult reports a processed payout: who was paid, the split, and
// whether the payment drained the cycle.
type PayoutResult struct {
	Circle         *models.Circle
	Recipient      domain.Account
	Gross          domain.Amount
	Fee            domain.Amount
	Net            domain.Amount
	CycleCompleted bool
}

// ProcessPayout pays recipient, who must hold the next unpaid queue slot.
// An empty recipient pays whoever holds that slot. Gross equals the circle
// contribution amount; the protocol fee is floor(gross * bps / 10000), the
// remainder goes to the recipient, the fee to the treasury. Admin only.
//
// When the final slot is paid the circle completes its cycle and a
// CycleCompleted signal carries the gross volume distributed.
func (s *Service) ProcessPayout(ctx context.Context, circleID domain.CircleID, caller, recipient domain.Account) (*PayoutResult, error) {
	if err := s.authorizer.Verify(ctx, caller); err != nil {
		return nil, err
	}

	basisPoints, treasury, err := s.fees.FeeConfig(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load fee configuration")
	}

	start := time.Now()
	now := requestcontext.Now(ctx)
	result := &PayoutResult{}
	c, err := s.circles.Execute(ctx, circleID,
		func(c *models.Circle) error {
			if err := requireAdmin(c, caller); err != nil {
				return err
			}
			if !c.IsFinalized() {
				return dErrors.New(dErrors.CodeCircleNotFinalized, "payout queue has not been finalized")
			}
			next := c.NextUnpaidIndex()
			if next < 0 {
				return dErrors.New(dErrors.CodeCycleNotComplete, "cycle has no unpaid slots pending rollover")
			}
			if recipient.IsNil() {
				recipient = c.PayoutQueue[next]
			}
			return c.CanProcessPayout(recipient)
		},
		func(c *models.Circle) error {
			gross := c.Contribution
			fee := gross * domain.Amount(basisPoints) / 10000
			net := gross - fee

			if err := s.ledger.Transfer(ctx, c.Asset, s.pool, recipient, net); err != nil {
				return translateLedgerErr(err)
			}
			if fee > 0 {
				if err := s.ledger.Transfer(ctx, c.Asset, s.pool, treasury, fee); err != nil {
					return translateLedgerErr(err)
				}
			}

			result.Recipient = recipient
			result.Gross = gross
			result.Fee = fee
			result.Net = net
			result.CycleCompleted = c.ApplyPayout(now)
			return nil
		},
	)
	if err != nil {
		return nil, wrapCircleErr(err)
	}
	result.Circle = c

	if s.metrics != nil {
		s.metrics.ObservePayout(start, int64(result.Gross))
	}
	s.logEvent(ctx, "payout processed",
		"circle_id", circleID, "recipient", result.Recipient,
		"gross", result.Gross, "fee", result.Fee, "net", result.Net,
		"cycle", c.CycleNumber, "cycle_completed", result.CycleCompleted)

	if result.CycleCompleted {
		if s.metrics != nil {
			s.metrics.IncrementCycleCompleted()
		}
		s.emit(ctx, events.TypeCycleCompleted, models.CycleCompleted{
			GroupID:                uint64(circleID),
			TotalVolumeDistributed: int64(c.TotalVolumeDistributed),
		})
	}
	return result, nil
}
