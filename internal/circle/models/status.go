package models

// CircleState is the lifecycle state of a circle. States are matched
// exhaustively at every transition site; no boolean flags shadow them.
type CircleState string

const (
	// StateOpen: created, accepting members, below the minimum member count.
	StateOpen CircleState = "open"
	// StateActive: minimum membership reached, waiting for the admin to
	// start a round.
	StateActive CircleState = "active"
	// StateCollection: deposits are being recorded for the current cycle.
	StateCollection CircleState = "collection"
	// StatePayout: contributions complete, payouts in progress.
	StatePayout CircleState = "payout"
	// StateCompleted: every queue slot paid for the current cycle; eligible
	// for rollover.
	StateCompleted CircleState = "completed"
)

// validCircleTransitions captures the state machine:
//
//	Open → Active → Collection → Payout → (Collection | Completed)
//	Completed → Collection (rollover under an incremented cycle number)
var validCircleTransitions = map[CircleState][]CircleState{
	StateOpen:       {StateActive},
	StateActive:     {StateCollection},
	StateCollection: {StatePayout},
	StatePayout:     {StateCollection, StateCompleted},
	StateCompleted:  {StateCollection},
}

// CanTransitionTo reports whether moving from s to target is legal.
func (s CircleState) CanTransitionTo(target CircleState) bool {
	for _, next := range validCircleTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// IsValid reports whether s is a known state.
func (s CircleState) IsValid() bool {
	switch s {
	case StateOpen, StateActive, StateCollection, StatePayout, StateCompleted:
		return true
	}
	return false
}

// MemberStatus is the status of a member within a circle.
type MemberStatus string

const (
	// MemberActive: participating normally.
	MemberActive MemberStatus = "active"
	// MemberAwaitingReplacement: requested a graceful exit; the queue slot is
	// locked until a replacement is installed.
	MemberAwaitingReplacement MemberStatus = "awaiting_replacement"
	// MemberEjected: left the circle. Terminal; an ejected member can never
	// return to this circle.
	MemberEjected MemberStatus = "ejected"
)

// validMemberTransitions: Active → AwaitingReplacement → Ejected only.
// There is no path back from AwaitingReplacement to Active; fill_vacancy is
// the sole exit from that state.
var validMemberTransitions = map[MemberStatus][]MemberStatus{
	MemberActive:              {MemberAwaitingReplacement, MemberEjected},
	MemberAwaitingReplacement: {MemberEjected},
	MemberEjected:             {},
}

// CanTransitionTo reports whether moving from s to target is legal.
func (s MemberStatus) CanTransitionTo(target MemberStatus) bool {
	for _, next := range validMemberTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}
