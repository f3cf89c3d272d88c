package models

import (
	"time"

	"susu/pkg/domain"
	dErrors "susu/pkg/domain-errors"
)

const (
	// MaxFeeBasisPoints caps the protocol fee at 100%.
	MaxFeeBasisPoints = 10000
	// EmergencyThreshold is how long the protocol admin must be inactive
	// before users may pull their deposited funds unilaterally.
	EmergencyThreshold = 7 * 24 * time.Hour
)

// balanceKey scopes a user balance to an asset.
type balanceKey struct {
	Account domain.Account
	Asset   domain.Asset
}

// Protocol is the singleton protocol-level record: admin identity, fee
// configuration, the admin liveness timestamp, and user fund balances held
// outside any circle.
//
// Invariants:
//   - FeeBasisPoints never exceeds MaxFeeBasisPoints
//   - Every privileged admin operation refreshes LastActive
//   - A user balance is deleted, not zeroed, on emergency withdrawal
type Protocol struct {
	Initialized    bool           `json:"initialized"`
	Admin          domain.Account `json:"admin"`
	Treasury       domain.Account `json:"treasury"`
	FeeBasisPoints uint32         `json:"fee_basis_points"`
	LastActive     time.Time      `json:"last_active"`

	balances map[balanceKey]domain.Amount

	UpdatedAt time.Time `json:"updated_at"`
}

// NewProtocol returns an uninitialized protocol record.
func NewProtocol() *Protocol {
	return &Protocol{balances: make(map[balanceKey]domain.Amount)}
}

// CanInitialize checks that initialization happens exactly once.
func (p *Protocol) CanInitialize(admin domain.Account) error {
	if p.Initialized {
		return dErrors.New(dErrors.CodeConflict, "protocol is already initialized")
	}
	if admin.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "protocol admin is required")
	}
	return nil
}

// ApplyInitialize installs the admin. The treasury defaults to the admin
// and the fee to zero until set_protocol_fee changes them.
func (p *Protocol) ApplyInitialize(admin domain.Account, now time.Time) {
	p.Initialized = true
	p.Admin = admin
	p.Treasury = admin
	p.FeeBasisPoints = 0
	p.LastActive = now
	p.UpdatedAt = now
}

func (p *Protocol) requireInitialized() error {
	if !p.Initialized {
		return dErrors.New(dErrors.CodeInvalidCircleState, "protocol is not initialized")
	}
	return nil
}

// RequireAdmin fails with Unauthorized unless caller is the protocol admin.
func (p *Protocol) RequireAdmin(caller domain.Account) error {
	if err := p.requireInitialized(); err != nil {
		return err
	}
	if caller != p.Admin {
		return dErrors.New(dErrors.CodeUnauthorized, "operation is restricted to the protocol admin")
	}
	return nil
}

// CanSetFee validates a fee configuration change.
func (p *Protocol) CanSetFee(caller domain.Account, basisPoints uint32, treasury domain.Account) error {
	if err := p.RequireAdmin(caller); err != nil {
		return err
	}
	if basisPoints > MaxFeeBasisPoints {
		return dErrors.Newf(dErrors.CodeInvalidFeeConfig, "fee basis points must not exceed %d", MaxFeeBasisPoints)
	}
	if treasury.IsNil() {
		return dErrors.New(dErrors.CodeInvalidFeeConfig, "treasury address is required")
	}
	return nil
}

// ApplySetFee installs the fee configuration and refreshes admin liveness.
func (p *Protocol) ApplySetFee(basisPoints uint32, treasury domain.Account, now time.Time) {
	p.FeeBasisPoints = basisPoints
	p.Treasury = treasury
	p.Touch(now)
}

// Touch refreshes the admin liveness timestamp.
func (p *Protocol) Touch(now time.Time) {
	p.LastActive = now
	p.UpdatedAt = now
}

// CanDepositFunds validates a protocol-level fund deposit.
func (p *Protocol) CanDepositFunds(acct domain.Account, amount domain.Amount) error {
	if err := p.requireInitialized(); err != nil {
		return err
	}
	if acct.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "account is required")
	}
	if amount <= 0 {
		return dErrors.New(dErrors.CodeBadRequest, "deposit amount must be positive")
	}
	return nil
}

// ApplyDepositFunds credits the user's protocol balance.
func (p *Protocol) ApplyDepositFunds(acct domain.Account, asset domain.Asset, amount domain.Amount, now time.Time) {
	p.balances[balanceKey{acct, asset}] += amount
	p.UpdatedAt = now
}

// Balance reports a user's protocol-held balance for an asset.
func (p *Protocol) Balance(acct domain.Account, asset domain.Asset) domain.Amount {
	return p.balances[balanceKey{acct, asset}]
}

// CanEmergencyWithdraw checks the escape hatch: a user may pull deposited
// funds unilaterally only once the admin's inactivity strictly exceeds the
// emergency threshold.
func (p *Protocol) CanEmergencyWithdraw(acct domain.Account, asset domain.Asset, now time.Time) error {
	if err := p.requireInitialized(); err != nil {
		return err
	}
	if p.balances[balanceKey{acct, asset}] <= 0 {
		return dErrors.New(dErrors.CodeBadRequest, "no funds on deposit for this account")
	}
	if now.Sub(p.LastActive) <= EmergencyThreshold {
		return dErrors.New(dErrors.CodeEmergencyNotAvailable, "emergency withdrawal requires admin inactivity for the threshold period")
	}
	return nil
}

// ApplyEmergencyWithdraw removes and returns the user's exact balance.
func (p *Protocol) ApplyEmergencyWithdraw(acct domain.Account, asset domain.Asset, now time.Time) domain.Amount {
	key := balanceKey{acct, asset}
	amount := p.balances[key]
	delete(p.balances, key)
	p.UpdatedAt = now
	return amount
}

// Clone deep-copies the record for the store's validate-then-mutate cycle.
func (p *Protocol) Clone() *Protocol {
	cp := *p
	cp.balances = make(map[balanceKey]domain.Amount, len(p.balances))
	for k, v := range p.balances {
		cp.balances[k] = v
	}
	return &cp
}

// BalanceEntry is the serialized form of one user balance.
type BalanceEntry struct {
	Account domain.Account `json:"account"`
	Asset   domain.Asset   `json:"asset"`
	Amount  domain.Amount  `json:"amount"`
}

// BalanceEntries exports the balance map for persistence.
func (p *Protocol) BalanceEntries() []BalanceEntry {
	out := make([]BalanceEntry, 0, len(p.balances))
	for k, v := range p.balances {
		out = append(out, BalanceEntry{Account: k.Account, Asset: k.Asset, Amount: v})
	}
	return out
}

// SetBalanceEntries rebuilds the balance map from its serialized form.
func (p *Protocol) SetBalanceEntries(entries []BalanceEntry) {
	p.balances = make(map[balanceKey]domain.Amount, len(entries))
	for _, e := range entries {
		p.balances[balanceKey{e.Account, e.Asset}] = e.Amount
	}
}
