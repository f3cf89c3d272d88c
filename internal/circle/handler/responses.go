package handler

import (
	"time"

	"susu/internal/circle/models"
	"susu/pkg/domain"
)

// CircleResponse is the HTTP representation of a circle.
type CircleResponse struct {
	ID                     uint64           `json:"id"`
	Admin                  string           `json:"admin"`
	Contribution           int64            `json:"contribution"`
	Asset                  string           `json:"asset"`
	MaxMembers             int              `json:"max_members"`
	State                  string           `json:"state"`
	RandomQueue            bool             `json:"random_queue"`
	Members                []MemberResponse `json:"members"`
	PayoutQueue            []string         `json:"payout_queue,omitempty"`
	CycleNumber            uint32           `json:"cycle_number"`
	CurrentPayoutIndex     int              `json:"current_payout_index"`
	TotalVolumeDistributed int64            `json:"total_volume_distributed"`
	Dissolved              bool             `json:"dissolved"`
	CreatedAt              time.Time        `json:"created_at"`
}

// MemberResponse is one membership ledger entry.
type MemberResponse struct {
	Account          string    `json:"account"`
	Status           string    `json:"status"`
	TotalContributed int64     `json:"total_contributed"`
	JoinIndex        int       `json:"join_index"`
	JoinedAt         time.Time `json:"joined_at"`
}

// PayoutResponse reports a processed payout.
type PayoutResponse struct {
	Recipient      string `json:"recipient"`
	Gross          int64  `json:"gross"`
	Fee            int64  `json:"fee"`
	Net            int64  `json:"net"`
	CycleCompleted bool   `json:"cycle_completed"`
}

// ExitResponse reports a recorded exit request.
type ExitResponse struct {
	Member     string `json:"member"`
	QueueIndex int    `json:"queue_index"`
	Refund     int64  `json:"refund"`
}

// WithdrawResponse reports a pro-rata withdrawal.
type WithdrawResponse struct {
	Amount int64 `json:"amount"`
}

// StatusResponse reports a per-member boolean status.
type StatusResponse struct {
	Account string `json:"account"`
	Value   bool   `json:"value"`
}

// FromCircle converts a circle to its HTTP representation.
func FromCircle(c *models.Circle) *CircleResponse {
	members := make([]MemberResponse, len(c.Members))
	for i, m := range c.Members {
		members[i] = MemberResponse{
			Account:          m.Account.String(),
			Status:           string(m.Status),
			TotalContributed: int64(m.TotalContributed),
			JoinIndex:        m.JoinIndex,
			JoinedAt:         m.JoinedAt,
		}
	}
	return &CircleResponse{
		ID:                     uint64(c.ID),
		Admin:                  c.Admin.String(),
		Contribution:           int64(c.Contribution),
		Asset:                  c.Asset.String(),
		MaxMembers:             c.MaxMembers,
		State:                  string(c.State),
		RandomQueue:            c.IsRandomQueue,
		Members:                members,
		PayoutQueue:            accountsToStrings(c.PayoutQueue),
		CycleNumber:            c.CycleNumber,
		CurrentPayoutIndex:     c.CurrentPayoutIndex,
		TotalVolumeDistributed: int64(c.TotalVolumeDistributed),
		Dissolved:              c.Dissolved,
		CreatedAt:              c.CreatedAt,
	}
}

func accountsToStrings(accounts []domain.Account) []string {
	if len(accounts) == 0 {
		return nil
	}
	out := make([]string, len(accounts))
	for i, a := range accounts {
		out[i] = a.String()
	}
	return out
}
