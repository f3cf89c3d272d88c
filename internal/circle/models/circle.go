package models

import (
	"math"
	"time"

	"susu/pkg/domain"
	dErrors "susu/pkg/domain-errors"
)

const (
	// MinMembers is the membership threshold that moves a circle from Open
	// to Active.
	MinMembers = 2
	// MaxMembersCap is the protocol-wide ceiling on circle size.
	MaxMembersCap = 50
	// MaxContribution bounds the per-cycle amount so basis-point fee math
	// (contribution * bps, bps <= 10000) stays inside int64.
	MaxContribution = domain.Amount(math.MaxInt64 / 10000)
)

// Circle is the aggregate root for a savings circle. It owns the membership
// ledger, the payout queue, the per-cycle payout flags, and any pending exit
// records; there is no cross-circle aliasing.
//
// Invariants:
//   - Member accounts are unique within the circle
//   - After finalize, PayoutQueue is a permutation of the member set and
//     HasReceivedPayout has exactly one entry per queue position
//   - Rollover is permitted only when every HasReceivedPayout entry is true
//   - CurrentPayoutIndex and TotalVolumeDistributed reset to zero on rollover
//   - A member in AwaitingReplacement retains its queue slot; no payout
//     targets that slot until fill_vacancy installs a replacement
//   - An Ejected account can never become Active in this circle again
//
// TotalVolumeDistributed and HasReceivedPayout are scoped to
// (circle, cycle_number); only the latest cycle's values are retained in
// place. Historical cycles are recoverable from emitted signals only.
type Circle struct {
	ID            domain.CircleID `json:"id"`
	Admin         domain.Account  `json:"admin"`
	Contribution  domain.Amount   `json:"contribution"`
	Asset         domain.Asset    `json:"asset"`
	MaxMembers    int             `json:"max_members"`
	State         CircleState     `json:"state"`
	IsRandomQueue bool            `json:"is_random_queue"`

	Members            []*Member               `json:"members"`
	PayoutQueue        []domain.Account        `json:"payout_queue"`
	HasReceivedPayout  []bool                  `json:"has_received_payout"`
	ContributionStatus map[domain.Account]bool `json:"contribution_status"`

	CycleNumber            uint32        `json:"cycle_number"`
	CurrentPayoutIndex     int           `json:"current_payout_index"`
	TotalVolumeDistributed domain.Amount `json:"total_volume_distributed"`

	PendingExits map[domain.Account]*PendingExit `json:"pending_exits"`
	Ejected      map[domain.Account]bool         `json:"ejected"`

	Dissolved        bool             `json:"dissolved"`
	DissolutionVotes []domain.Account `json:"dissolution_votes"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewCircle constructs an Open circle with no members.
func NewCircle(id domain.CircleID, admin domain.Account, contribution domain.Amount, maxMembers int, asset domain.Asset, isRandomQueue bool, now time.Time) (*Circle, error) {
	if admin.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "circle admin is required")
	}
	if contribution <= 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "contribution amount must be positive")
	}
	if contribution > MaxContribution {
		return nil, dErrors.Newf(dErrors.CodeBadRequest, "contribution amount cannot exceed %d", MaxContribution)
	}
	if asset == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "asset is required")
	}
	if maxMembers < MinMembers {
		return nil, dErrors.Newf(dErrors.CodeBadRequest, "max_members must be at least %d", MinMembers)
	}
	if maxMembers > MaxMembersCap {
		return nil, dErrors.Newf(dErrors.CodeBadRequest, "max_members must not exceed %d", MaxMembersCap)
	}
	return &Circle{
		ID:                 id,
		Admin:              admin,
		Contribution:       contribution,
		Asset:              asset,
		MaxMembers:         maxMembers,
		State:              StateOpen,
		IsRandomQueue:      isRandomQueue,
		ContributionStatus: make(map[domain.Account]bool),
		PendingExits:       make(map[domain.Account]*PendingExit),
		Ejected:            make(map[domain.Account]bool),
		CycleNumber:        1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// MemberByAccount returns the member entry for an account, or nil.
func (c *Circle) MemberByAccount(acct domain.Account) *Member {
	for _, m := range c.Members {
		if m.Account == acct {
			return m
		}
	}
	return nil
}

// IsFinalized reports whether the payout queue has been built for the
// current cycle series.
func (c *Circle) IsFinalized() bool {
	return len(c.PayoutQueue) > 0
}

// queueIndexOf returns the queue position of an account, or -1.
func (c *Circle) queueIndexOf(acct domain.Account) int {
	for i, a := range c.PayoutQueue {
		if a == acct {
			return i
		}
	}
	return -1
}

// NextUnpaidIndex returns the first queue position not yet paid this cycle,
// or -1 when the cycle is fully drained.
func (c *Circle) NextUnpaidIndex() int {
	for i, paid := range c.HasReceivedPayout {
		if !paid {
			return i
		}
	}
	return -1
}

// ContributionsComplete reports whether every Active member has contributed
// in the current cycle. Members awaiting replacement do not block the round.
func (c *Circle) ContributionsComplete() bool {
	for _, m := range c.Members {
		if m.Status == MemberActive && !c.ContributionStatus[m.Account] {
			return false
		}
	}
	return true
}

func (c *Circle) requireNotDissolved() error {
	if c.Dissolved {
		return dErrors.New(dErrors.CodeAlreadyDissolved, "circle has been dissolved")
	}
	return nil
}

// -----------------------------------------------------------------------------
// Membership
// -----------------------------------------------------------------------------

// CanJoin checks whether an account may join the circle.
func (c *Circle) CanJoin(acct domain.Account) error {
	if err := c.requireNotDissolved(); err != nil {
		return err
	}
	if c.Ejected[acct] {
		return dErrors.New(dErrors.CodeConflict, "account was ejected from this circle and cannot rejoin")
	}
	if c.MemberByAccount(acct) != nil {
		return dErrors.New(dErrors.CodeAlreadyJoined, "account already belongs to this circle")
	}
	switch c.State {
	case StateOpen, StateActive:
	default:
		return dErrors.Newf(dErrors.CodeInvalidCircleState, "cannot join a circle in state %s", c.State)
	}
	if len(c.Members) >= c.MaxMembers {
		return dErrors.New(dErrors.CodeMaxMembersReached, "circle is full")
	}
	return nil
}

// ApplyJoin appends the member at the next free join index and promotes the
// circle to Active once the minimum member count is reached. It returns the
// new ledger entry so callers can read the assigned index.
func (c *Circle) ApplyJoin(acct domain.Account, now time.Time) *Member {
	m := &Member{
		Account:   acct,
		Status:    MemberActive,
		JoinIndex: c.nextJoinIndex(),
		JoinedAt:  now,
	}
	c.Members = append(c.Members, m)
	c.ContributionStatus[acct] = false
	if c.State == StateOpen && len(c.Members) >= MinMembers {
		c.State = StateActive
	}
	c.UpdatedAt = now
	return m
}

// nextJoinIndex is one past the highest index ever assigned. Kicks leave
// holes, so len(Members) alone could collide with a surviving member.
func (c *Circle) nextJoinIndex() int {
	next := 0
	for _, m := range c.Members {
		if m.JoinIndex >= next {
			next = m.JoinIndex + 1
		}
	}
	return next
}

// -----------------------------------------------------------------------------
// Round lifecycle
// -----------------------------------------------------------------------------

// CanStartRound checks whether the admin may open the collection phase.
// All current members must be confirmed (no exits pending).
func (c *Circle) CanStartRound() error {
	if err := c.requireNotDissolved(); err != nil {
		return err
	}
	if c.State != StateActive {
		return dErrors.Newf(dErrors.CodeInvalidCircleState, "round can only start from state %s, circle is %s", StateActive, c.State)
	}
	for _, m := range c.Members {
		if m.Status != MemberActive {
			return dErrors.Newf(dErrors.CodeInvalidCircleState, "member %s has an unresolved exit request", m.Account)
		}
	}
	return nil
}

// ApplyStartRound moves the circle into collection and clears the
// contribution ledger for the new cycle.
func (c *Circle) ApplyStartRound(now time.Time) {
	c.State = StateCollection
	for acct := range c.ContributionStatus {
		c.ContributionStatus[acct] = false
	}
	c.UpdatedAt = now
}

// CanRecordDeposit checks whether a member's contribution may be recorded.
func (c *Circle) CanRecordDeposit(acct domain.Account) error {
	if err := c.requireNotDissolved(); err != nil {
		return err
	}
	m := c.MemberByAccount(acct)
	if m == nil {
		return dErrors.New(dErrors.CodeMemberNotFound, "account is not a member of this circle")
	}
	if m.Status != MemberActive {
		return dErrors.New(dErrors.CodeInvalidCircleState, "only active members may contribute")
	}
	if c.State != StateCollection {
		return dErrors.Newf(dErrors.CodeInvalidCircleState, "deposits are only accepted during collection, circle is %s", c.State)
	}
	if c.ContributionStatus[acct] {
		return dErrors.New(dErrors.CodeConflict, "contribution already recorded for this cycle")
	}
	return nil
}

// ApplyRecordDeposit marks the contribution, accumulates principal, and
// promotes the circle to the payout phase once the last contribution lands.
func (c *Circle) ApplyRecordDeposit(acct domain.Account, now time.Time) {
	c.ContributionStatus[acct] = true
	c.MemberByAccount(acct).RecordContribution(c.Contribution)
	if c.ContributionsComplete() {
		c.State = StatePayout
	}
	c.UpdatedAt = now
}

// -----------------------------------------------------------------------------
// Payout queue
// -----------------------------------------------------------------------------

// CanFinalize checks whether the payout queue may be built.
func (c *Circle) CanFinalize() error {
	if err := c.requireNotDissolved(); err != nil {
		return err
	}
	if c.IsFinalized() {
		return dErrors.New(dErrors.CodeConflict, "payout queue is already finalized")
	}
	if len(c.Members) < MinMembers {
		return dErrors.Newf(dErrors.CodeInvalidCircleState, "cannot finalize with fewer than %d members", MinMembers)
	}
	return nil
}

// ApplyFinalize freezes the payout order. In random mode the supplied
// shuffle rearranges the join-order queue in place; in sequential mode the
// queue equals join order. HasReceivedPayout starts all-false, one entry per
// queue position.
func (c *Circle) ApplyFinalize(shuffle func(n int, swap func(i, j int)), now time.Time) {
	queue := make([]domain.Account, len(c.Members))
	for i, m := range c.Members {
		queue[i] = m.Account
	}
	if c.IsRandomQueue && shuffle != nil {
		shuffle(len(queue), func(i, j int) {
			queue[i], queue[j] = queue[j], queue[i]
		})
	}
	c.PayoutQueue = queue
	c.HasReceivedPayout = make([]bool, len(queue))
	c.UpdatedAt = now
}

// -----------------------------------------------------------------------------
// Payout engine
// -----------------------------------------------------------------------------

// CanProcessPayout checks that the recipient occupies the next unpaid queue
// slot, that the slot is not locked by a pending exit, and that the round's
// contributions are complete.
func (c *Circle) CanProcessPayout(recipient domain.Account) error {
	if err := c.requireNotDissolved(); err != nil {
		return err
	}
	if !c.IsFinalized() {
		return dErrors.New(dErrors.CodeCircleNotFinalized, "payout queue has not been finalized")
	}
	switch c.State {
	case StatePayout:
	case StateCollection:
		// Consecutive payouts within a cycle re-enter from collection; the
		// round is promotable when its contributions are already complete.
		if !c.ContributionsComplete() {
			return dErrors.New(dErrors.CodeContributionsIncomplete, "payout attempted before all contributions received")
		}
	default:
		return dErrors.Newf(dErrors.CodeInvalidCircleState, "payouts are not allowed while circle is %s", c.State)
	}

	slot := c.queueIndexOf(recipient)
	if slot < 0 {
		return dErrors.New(dErrors.CodeMemberNotFound, "recipient is not in the payout queue")
	}
	if c.HasReceivedPayout[slot] {
		return dErrors.New(dErrors.CodePayoutAlreadyReceived, "recipient already received a payout this cycle")
	}
	next := c.NextUnpaidIndex()
	if slot != next {
		return dErrors.Newf(dErrors.CodeInvalidCircleState, "recipient holds queue slot %d but slot %d is next", slot, next)
	}
	if m := c.MemberByAccount(recipient); m == nil || m.Status != MemberActive {
		return dErrors.New(dErrors.CodeInvalidCircleState, "queue slot is locked pending replacement")
	}
	return nil
}

// ApplyPayout marks the next slot paid and advances the cycle. It returns
// true when the final slot was paid and the circle completed its cycle.
func (c *Circle) ApplyPayout(now time.Time) bool {
	slot := c.NextUnpaidIndex()
	c.HasReceivedPayout[slot] = true
	c.CurrentPayoutIndex++
	c.TotalVolumeDistributed += c.Contribution

	if c.NextUnpaidIndex() == -1 {
		c.State = StateCompleted
		c.UpdatedAt = now
		return true
	}
	c.State = StateCollection
	c.UpdatedAt = now
	return false
}

// -----------------------------------------------------------------------------
// Rollover
// -----------------------------------------------------------------------------

// CanRollover checks that the queue exists and the cycle is fully drained.
func (c *Circle) CanRollover() error {
	if err := c.requireNotDissolved(); err != nil {
		return err
	}
	if !c.IsFinalized() {
		return dErrors.New(dErrors.CodeCircleNotFinalized, "circle has not been finalized")
	}
	for _, paid := range c.HasReceivedPayout {
		if !paid {
			return dErrors.New(dErrors.CodeCycleNotComplete, "cycle has unpaid queue slots")
		}
	}
	return nil
}

// ApplyRollover resets per-cycle state, increments the cycle number by
// exactly one, and reshuffles the queue in random mode. The member list and
// contribution rules are untouched.
func (c *Circle) ApplyRollover(shuffle func(n int, swap func(i, j int)), now time.Time) {
	c.CycleNumber++
	c.CurrentPayoutIndex = 0
	c.TotalVolumeDistributed = 0
	for i := range c.HasReceivedPayout {
		c.HasReceivedPayout[i] = false
	}
	for acct := range c.ContributionStatus {
		c.ContributionStatus[acct] = false
	}
	if c.IsRandomQueue && shuffle != nil {
		shuffle(len(c.PayoutQueue), func(i, j int) {
			c.PayoutQueue[i], c.PayoutQueue[j] = c.PayoutQueue[j], c.PayoutQueue[i]
		})
	}
	c.State = StateCollection
	c.UpdatedAt = now
}

// -----------------------------------------------------------------------------
// Graceful exit
// -----------------------------------------------------------------------------

// CanRequestExit checks whether a member may request a graceful exit.
func (c *Circle) CanRequestExit(acct domain.Account) error {
	if err := c.requireNotDissolved(); err != nil {
		return err
	}
	m := c.MemberByAccount(acct)
	if m == nil {
		return dErrors.New(dErrors.CodeMemberNotFound, "account is not a member of this circle")
	}
	if !m.Status.CanTransitionTo(MemberAwaitingReplacement) {
		return dErrors.Newf(dErrors.CodeInvalidCircleState, "member is %s and cannot request exit", m.Status)
	}
	return nil
}

// ApplyRequestExit locks the member's queue slot and records the pending
// exit with the refund frozen at the member's current principal.
func (c *Circle) ApplyRequestExit(acct domain.Account, now time.Time) *PendingExit {
	m := c.MemberByAccount(acct)
	m.Status = MemberAwaitingReplacement

	slot := m.JoinIndex
	if c.IsFinalized() {
		slot = c.queueIndexOf(acct)
	}
	exit := &PendingExit{
		CircleID:     c.ID,
		Member:       acct,
		QueueIndex:   slot,
		RefundAmount: m.TotalContributed,
		RequestedAt:  now,
	}
	c.PendingExits[acct] = exit
	c.UpdatedAt = now
	return exit
}

// CanFillVacancy checks that a pending exit exists for the exiting member
// and that the replacement is not already in this circle. Cross-circle
// membership of the replacement is checked at the service layer.
func (c *Circle) CanFillVacancy(exiting, replacement domain.Account) error {
	if err := c.requireNotDissolved(); err != nil {
		return err
	}
	if _, ok := c.PendingExits[exiting]; !ok {
		return dErrors.New(dErrors.CodeExitNotPending, "no pending exit for this member")
	}
	m := c.MemberByAccount(exiting)
	if m == nil || m.Status != MemberAwaitingReplacement {
		return dErrors.New(dErrors.CodeExitNotPending, "member is no longer awaiting replacement")
	}
	if c.Ejected[replacement] {
		return dErrors.New(dErrors.CodeConflict, "replacement was ejected from this circle and cannot rejoin")
	}
	if c.MemberByAccount(replacement) != nil {
		return dErrors.New(dErrors.CodeMemberAlreadyExists, "replacement already belongs to this circle")
	}
	return nil
}

// ApplyFillVacancy installs the replacement at the exiting member's exact
// join index and queue position, preserving the slot's has_received_payout
// value, and consumes the pending exit record. It returns the consumed
// record so the service can settle the refund.
func (c *Circle) ApplyFillVacancy(exiting, replacement domain.Account, now time.Time) *PendingExit {
	exit := c.PendingExits[exiting]
	old := c.MemberByAccount(exiting)

	for i, m := range c.Members {
		if m.Account == exiting {
			c.Members[i] = &Member{
				Account:   replacement,
				Status:    MemberActive,
				JoinIndex: old.JoinIndex,
				JoinedAt:  now,
			}
			break
		}
	}
	if c.IsFinalized() {
		// The recorded index is stale when the exit predates a random
		// finalize; the live queue position is authoritative.
		slot := c.queueIndexOf(exiting)
		exit.QueueIndex = slot
		c.PayoutQueue[slot] = replacement
	}

	// The pool already holds the exiting member's deposit for this cycle, so
	// the replacement inherits the contribution flag as-is.
	c.ContributionStatus[replacement] = c.ContributionStatus[exiting]
	delete(c.ContributionStatus, exiting)

	old.Status = MemberEjected
	c.Ejected[exiting] = true
	delete(c.PendingExits, exiting)
	c.UpdatedAt = now
	return exit
}

// -----------------------------------------------------------------------------
// Admin ejection
// -----------------------------------------------------------------------------

// CanKick checks whether the admin may eject a member with a penalty.
// Ejection is only allowed before the payout queue is frozen; afterwards the
// graceful exit path is the sole way out, so the queue permutation holds.
func (c *Circle) CanKick(member domain.Account, penalty domain.Amount) error {
	if err := c.requireNotDissolved(); err != nil {
		return err
	}
	m := c.MemberByAccount(member)
	if m == nil {
		return dErrors.New(dErrors.CodeMemberNotFound, "account is not a member of this circle")
	}
	if c.IsFinalized() {
		return dErrors.New(dErrors.CodeInvalidCircleState, "members cannot be kicked after the queue is finalized")
	}
	if penalty < 0 {
		return dErrors.New(dErrors.CodeBadRequest, "penalty cannot be negative")
	}
	if penalty > m.TotalContributed {
		return dErrors.New(dErrors.CodePenaltyExceedsContribution, "penalty exceeds the member's contributed principal")
	}
	return nil
}

// ApplyKick removes the member and returns the refund owed (principal minus
// penalty). Surviving members keep their join indexes; badges are keyed by
// join slot, so renumbering would orphan them.
func (c *Circle) ApplyKick(member domain.Account, penalty domain.Amount, now time.Time) domain.Amount {
	m := c.MemberByAccount(member)
	refund := m.TotalContributed - penalty

	kept := c.Members[:0]
	for _, cur := range c.Members {
		if cur.Account != member {
			kept = append(kept, cur)
		}
	}
	c.Members = kept
	delete(c.ContributionStatus, member)
	delete(c.PendingExits, member)
	c.Ejected[member] = true
	if c.State == StateActive && len(c.Members) < MinMembers {
		c.State = StateOpen
	}
	c.UpdatedAt = now
	return refund
}

// -----------------------------------------------------------------------------
// Dissolution
// -----------------------------------------------------------------------------

// CanProposeDissolution checks whether a member may open a dissolution vote.
func (c *Circle) CanProposeDissolution(acct domain.Account) error {
	if err := c.requireNotDissolved(); err != nil {
		return err
	}
	if c.MemberByAccount(acct) == nil {
		return dErrors.New(dErrors.CodeMemberNotFound, "account is not a member of this circle")
	}
	return nil
}

// ApplyProposeDissolution records the proposer's vote. Proposing twice is a
// no-op rather than an error.
func (c *Circle) ApplyProposeDissolution(acct domain.Account, now time.Time) {
	for _, v := range c.DissolutionVotes {
		if v == acct {
			return
		}
	}
	c.DissolutionVotes = append(c.DissolutionVotes, acct)
	c.UpdatedAt = now
}

// CanVoteDissolve checks whether a member may cast a dissolution vote.
func (c *Circle) CanVoteDissolve(acct domain.Account) error {
	if err := c.requireNotDissolved(); err != nil {
		return err
	}
	if c.MemberByAccount(acct) == nil {
		return dErrors.New(dErrors.CodeMemberNotFound, "account is not a member of this circle")
	}
	for _, v := range c.DissolutionVotes {
		if v == acct {
			return dErrors.New(dErrors.CodeAlreadyVoted, "member already voted to dissolve")
		}
	}
	return nil
}

// ApplyVoteDissolve casts the vote and dissolves the circle on a strict
// majority. Returns true if the circle dissolved.
func (c *Circle) ApplyVoteDissolve(acct domain.Account, now time.Time) bool {
	c.DissolutionVotes = append(c.DissolutionVotes, acct)
	if 2*len(c.DissolutionVotes) > len(c.Members) {
		c.Dissolved = true
	}
	c.UpdatedAt = now
	return c.Dissolved
}

// CanWithdrawProRata checks whether a member may recover principal from a
// dissolved circle.
func (c *Circle) CanWithdrawProRata(acct domain.Account) error {
	if !c.Dissolved {
		return dErrors.New(dErrors.CodeNotDissolved, "circle is not dissolved")
	}
	if c.MemberByAccount(acct) == nil {
		return dErrors.New(dErrors.CodeMemberNotFound, "account is not a member of this circle")
	}
	return nil
}

// ApplyWithdrawProRata zeroes the member's principal and returns the
// refundable amount: contributed principal minus the contribution credit for
// a payout already received this cycle, never negative.
func (c *Circle) ApplyWithdrawProRata(acct domain.Account, now time.Time) domain.Amount {
	m := c.MemberByAccount(acct)
	var received domain.Amount
	if slot := c.queueIndexOf(acct); slot >= 0 && c.HasReceivedPayout[slot] {
		received = c.Contribution
	}
	refundable := m.TotalContributed - received
	if refundable < 0 {
		refundable = 0
	}
	if refundable > 0 {
		m.TotalContributed = 0
	}
	c.UpdatedAt = now
	return refundable
}

// -----------------------------------------------------------------------------
// Copying
// -----------------------------------------------------------------------------

// Clone deep-copies the circle. The memory store hands clones to Execute
// callbacks so a failed validation can never leak partial mutations into
// committed state.
func (c *Circle) Clone() *Circle {
	cp := *c
	cp.Members = make([]*Member, len(c.Members))
	for i, m := range c.Members {
		mc := *m
		cp.Members[i] = &mc
	}
	cp.PayoutQueue = append([]domain.Account(nil), c.PayoutQueue...)
	cp.HasReceivedPayout = append([]bool(nil), c.HasReceivedPayout...)
	cp.DissolutionVotes = append([]domain.Account(nil), c.DissolutionVotes...)
	cp.ContributionStatus = make(map[domain.Account]bool, len(c.ContributionStatus))
	for k, v := range c.ContributionStatus {
		cp.ContributionStatus[k] = v
	}
	cp.PendingExits = make(map[domain.Account]*PendingExit, len(c.PendingExits))
	for k, v := range c.PendingExits {
		pe := *v
		cp.PendingExits[k] = &pe
	}
	cp.Ejected = make(map[domain.Account]bool, len(c.Ejected))
	for k, v := range c.Ejected {
		cp.Ejected[k] = v
	}
	return &cp
}
