package domain

import (
	"fmt"
	"strings"
)

// Domain primitives shared across modules. Accounts and assets are opaque
// host-level identifiers; the service never interprets their contents beyond
// non-emptiness, so external address formats stay out of the core.

// Account identifies a participant, admin, or treasury on the host ledger.
type Account string

// ParseAccount validates and returns an Account.
func ParseAccount(s string) (Account, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("account cannot be empty")
	}
	return Account(s), nil
}

// String returns the string representation of the account.
func (a Account) String() string {
	return string(a)
}

// IsNil returns true if the account is empty.
func (a Account) IsNil() bool {
	return a == ""
}

// Asset identifies the token a circle settles in.
type Asset string

// ParseAsset validates and returns an Asset.
func ParseAsset(s string) (Asset, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("asset cannot be empty")
	}
	return Asset(s), nil
}

// String returns the string representation of the asset.
func (a Asset) String() string {
	return string(a)
}

// CircleID identifies a savings circle. IDs are assigned by the circle store
// from a monotonically increasing counter, starting at 1.
type CircleID uint64

// String returns the decimal representation of the circle ID.
func (id CircleID) String() string {
	return fmt.Sprintf("%d", id)
}

// IsNil returns true for the zero circle ID, which is never assigned.
func (id CircleID) IsNil() bool {
	return id == 0
}

// Amount is a ledger amount in the asset's smallest unit. Contribution
// amounts, fees, and balances are integer-only; division rounds toward zero.
type Amount int64
