package service

import (
	"context"

	"susu/internal/circle/models"
	"susu/internal/events"
	"susu/pkg/domain"
	"susu/pkg/requestcontext"
)

// RolloverGroup starts the next cycle once every queue slot has been paid.
// Per-cycle state resets, the cycle number advances by exactly one, and
// random circles reshuffle their queue. Admin only.
func (s *Service) RolloverGroup(ctx context.Context, circleID domain.CircleID, caller domain.Account) (*models.Circle, error) {
	if err := s.authorizer.Verify(ctx, caller); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	c, err := s.circles.Execute(ctx, circleID,
		func(c *models.Circle) error {
			if err := requireAdmin(c, caller); err != nil {
				return err
			}
			return c.CanRollover()
		},
		func(c *models.Circle) error {
			c.ApplyRollover(s.random.Shuffle, now)
			return nil
		},
	)
	if err != nil {
		return nil, wrapCircleErr(err)
	}

	if s.metrics != nil {
		s.metrics.IncrementRollover()
	}
	s.logEvent(ctx, "cycle rolled over", "circle_id", circleID, "cycle", c.CycleNumber)
	s.emit(ctx, events.TypeGroupRollover, models.GroupRollover{
		GroupID:        uint64(circleID),
		NewCycleNumber: c.CycleNumber,
	})
	return c, nil
}
