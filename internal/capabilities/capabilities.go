// Package capabilities defines the external collaborators the circle core
// consumes: asset transfers, caller verification, randomness, and membership
// badges. Each is an injected interface so production adapters and
// deterministic test fakes are interchangeable; the core never embeds a
// specific transfer-standard's wire format.
package capabilities

import (
	"context"
	"errors"

	"susu/pkg/domain"
)

// Infrastructure facts reported by capability adapters. Services translate
// these into domain errors with stable wire codes.
var (
	ErrInsufficientAllowance = errors.New("insufficient transfer allowance")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrBadgeNotFound         = errors.New("badge not found")
)

// Ledger moves asset amounts between accounts with allowance semantics:
// moving funds out of an account the protocol does not own consumes that
// account's standing approval.
type Ledger interface {
	Transfer(ctx context.Context, asset domain.Asset, from, to domain.Account, amount domain.Amount) error
}

// Authorizer verifies that the current caller's signed intent binds to a
// specific account.
type Authorizer interface {
	Verify(ctx context.Context, account domain.Account) error
}

// RandomSource supplies uniform permutations. Shuffle must be an unbiased
// Fisher–Yates over the host's secure randomness; tests substitute a seeded
// deterministic source.
type RandomSource interface {
	Shuffle(n int, swap func(i, j int))
}

// Badge manages the membership badge tied one-to-one to a queue slot.
// Minting happens on join, transfer on vacancy fill, burn on ejection
// without replacement.
type Badge interface {
	Mint(ctx context.Context, circleID domain.CircleID, slot int, owner domain.Account) error
	Transfer(ctx context.Context, circleID domain.CircleID, slot int, from, to domain.Account) error
	Burn(ctx context.Context, circleID domain.CircleID, slot int, owner domain.Account) error
}
