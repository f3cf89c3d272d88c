package models

import (
	"time"

	"susu/pkg/domain"
)

// Member is a participant's ledger entry within a circle.
//
// Invariants:
//   - Account is unique within the circle
//   - JoinIndex is the original join position and never changes; a
//     replacement member inherits it
//   - TotalContributed records principal only and is monotonically
//     increasing until exit; fee deductions never alter it
type Member struct {
	Account          domain.Account `json:"account"`
	Status           MemberStatus   `json:"status"`
	TotalContributed domain.Amount  `json:"total_contributed"`
	JoinIndex        int            `json:"join_index"`
	JoinedAt         time.Time      `json:"joined_at"`
}

// IsActive reports whether the member participates normally.
func (m *Member) IsActive() bool {
	return m.Status == MemberActive
}

// RecordContribution adds principal to the member's running total.
func (m *Member) RecordContribution(amount domain.Amount) {
	m.TotalContributed += amount
}
