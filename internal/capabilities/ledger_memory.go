package capabilities

import (
	"context"
	"fmt"
	"sync"

	"susu/pkg/domain"
)

type assetAccount struct {
	asset   domain.Asset
	account domain.Account
}

// InMemoryLedger is a Ledger fake with balances and standing approvals.
// Transfers out of an account other than the protocol's own pool account
// consume that account's allowance, mirroring host token semantics.
type InMemoryLedger struct {
	mu         sync.Mutex
	pool       domain.Account
	balances   map[assetAccount]domain.Amount
	allowances map[assetAccount]domain.Amount
}

// NewInMemoryLedger creates a ledger whose pool account moves freely.
func NewInMemoryLedger(pool domain.Account) *InMemoryLedger {
	return &InMemoryLedger{
		pool:       pool,
		balances:   make(map[assetAccount]domain.Amount),
		allowances: make(map[assetAccount]domain.Amount),
	}
}

// Mint credits an account, for test setup.
func (l *InMemoryLedger) Mint(asset domain.Asset, account domain.Account, amount domain.Amount) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[assetAccount{asset, account}] += amount
}

// Approve sets the standing allowance the protocol may spend from account.
func (l *InMemoryLedger) Approve(asset domain.Asset, account domain.Account, amount domain.Amount) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.allowances[assetAccount{asset, account}] = amount
}

// Balance reports an account's balance, for assertions.
func (l *InMemoryLedger) Balance(asset domain.Asset, account domain.Account) domain.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[assetAccount{asset, account}]
}

// Transfer moves amount from one account to another. Transfers from any
// account except the pool consume allowance first, so an unapproved pull
// fails with ErrInsufficientAllowance and no balance changes.
func (l *InMemoryLedger) Transfer(_ context.Context, asset domain.Asset, from, to domain.Account, amount domain.Amount) error {
	if amount < 0 {
		return fmt.Errorf("transfer amount cannot be negative")
	}
	if amount == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	fromKey := assetAccount{asset, from}
	if from != l.pool {
		if l.allowances[fromKey] < amount {
			return fmt.Errorf("%w: %s has approved %d of %s, need %d",
				ErrInsufficientAllowance, from, l.allowances[fromKey], asset, amount)
		}
	}
	if l.balances[fromKey] < amount {
		return fmt.Errorf("%w: %s holds %d of %s, need %d",
			ErrInsufficientBalance, from, l.balances[fromKey], asset, amount)
	}

	if from != l.pool {
		l.allowances[fromKey] -= amount
	}
	l.balances[fromKey] -= amount
	l.balances[assetAccount{asset, to}] += amount
	return nil
}
