package service

import (
	"context"

	"susu/internal/circle/models"
	"susu/pkg/domain"
	dErrors "susu/pkg/domain-errors"
)

// CycleInfo is a read-model snapshot of a circle's current cycle.
type CycleInfo struct {
	CycleNumber            uint32             `json:"cycle_number"`
	CurrentPayoutIndex     int                `json:"current_payout_index"`
	TotalVolumeDistributed domain.Amount      `json:"total_volume_distributed"`
	State                  models.CircleState `json:"state"`
}

// GetCircle returns the full circle record.
func (s *Service) GetCircle(ctx context.Context, circleID domain.CircleID) (*models.Circle, error) {
	c, err := s.circles.FindByID(ctx, circleID)
	if err != nil {
		return nil, wrapCircleErr(err)
	}
	return c, nil
}

// GetMembers returns the circle's membership ledger.
func (s *Service) GetMembers(ctx context.Context, circleID domain.CircleID) ([]*models.Member, error) {
	c, err := s.GetCircle(ctx, circleID)
	if err != nil {
		return nil, err
	}
	return c.Members, nil
}

// GetPayoutQueue returns the frozen payout order, failing before finalize.
func (s *Service) GetPayoutQueue(ctx context.Context, circleID domain.CircleID) ([]domain.Account, error) {
	c, err := s.GetCircle(ctx, circleID)
	if err != nil {
		return nil, err
	}
	if !c.IsFinalized() {
		return nil, dErrors.New(dErrors.CodeCircleNotFinalized, "payout queue has not been finalized")
	}
	return c.PayoutQueue, nil
}

// GetCycleNumber returns the current cycle number, starting at 1.
func (s *Service) GetCycleNumber(ctx context.Context, circleID domain.CircleID) (uint32, error) {
	c, err := s.GetCircle(ctx, circleID)
	if err != nil {
		return 0, err
	}
	return c.CycleNumber, nil
}

// GetPayoutStatus reports whether the account's queue slot has been paid
// this cycle.
func (s *Service) GetPayoutStatus(ctx context.Context, circleID domain.CircleID, acct domain.Account) (bool, error) {
	c, err := s.GetCircle(ctx, circleID)
	if err != nil {
		return false, err
	}
	if !c.IsFinalized() {
		return false, dErrors.New(dErrors.CodeCircleNotFinalized, "payout queue has not been finalized")
	}
	for i, a := range c.PayoutQueue {
		if a == acct {
			return c.HasReceivedPayout[i], nil
		}
	}
	return false, dErrors.New(dErrors.CodeMemberNotFound, "account is not in the payout queue")
}

// GetContributionStatus reports whether the account has contributed this
// cycle.
func (s *Service) GetContributionStatus(ctx context.Context, circleID domain.CircleID, acct domain.Account) (bool, error) {
	c, err := s.GetCircle(ctx, circleID)
	if err != nil {
		return false, err
	}
	if c.MemberByAccount(acct) == nil {
		return false, dErrors.New(dErrors.CodeMemberNotFound, "account is not a member of this circle")
	}
	return c.ContributionStatus[acct], nil
}

// GetCycleInfo returns the cycle-scoped counters in one read.
func (s *Service) GetCycleInfo(ctx context.Context, circleID domain.CircleID) (*CycleInfo, error) {
	c, err := s.GetCircle(ctx, circleID)
	if err != nil {
		return nil, err
	}
	return &CycleInfo{
		CycleNumber:            c.CycleNumber,
		CurrentPayoutIndex:     c.CurrentPayoutIndex,
		TotalVolumeDistributed: c.TotalVolumeDistributed,
		State:                  c.State,
	}, nil
}
