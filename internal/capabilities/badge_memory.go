package capabilities

import (
	"context"
	"fmt"
	"sync"

	"susu/pkg/domain"
)

type badgeKey struct {
	circle domain.CircleID
	slot   int
}

// InMemoryBadges is a Badge fake tracking slot ownership per circle.
type InMemoryBadges struct {
	mu     sync.Mutex
	owners map[badgeKey]domain.Account
}

// NewInMemoryBadges creates an empty badge registry.
func NewInMemoryBadges() *InMemoryBadges {
	return &InMemoryBadges{owners: make(map[badgeKey]domain.Account)}
}

// Mint issues the badge for a slot to its first owner.
func (b *InMemoryBadges) Mint(_ context.Context, circleID domain.CircleID, slot int, owner domain.Account) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := badgeKey{circleID, slot}
	if cur, ok := b.owners[key]; ok {
		return fmt.Errorf("badge for circle %d slot %d already minted to %s", circleID, slot, cur)
	}
	b.owners[key] = owner
	return nil
}

// Transfer moves a slot's badge between accounts.
func (b *InMemoryBadges) Transfer(_ context.Context, circleID domain.CircleID, slot int, from, to domain.Account) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := badgeKey{circleID, slot}
	cur, ok := b.owners[key]
	if !ok {
		return fmt.Errorf("%w: circle %d slot %d", ErrBadgeNotFound, circleID, slot)
	}
	if cur != from {
		return fmt.Errorf("badge for circle %d slot %d is owned by %s, not %s", circleID, slot, cur, from)
	}
	b.owners[key] = to
	return nil
}

// Burn destroys a slot's badge.
func (b *InMemoryBadges) Burn(_ context.Context, circleID domain.CircleID, slot int, owner domain.Account) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := badgeKey{circleID, slot}
	cur, ok := b.owners[key]
	if !ok {
		return fmt.Errorf("%w: circle %d slot %d", ErrBadgeNotFound, circleID, slot)
	}
	if cur != owner {
		return fmt.Errorf("badge for circle %d slot %d is owned by %s, not %s", circleID, slot, cur, owner)
	}
	delete(b.owners, key)
	return nil
}

// OwnerOf reports a slot's badge owner, for assertions.
func (b *InMemoryBadges) OwnerOf(circleID domain.CircleID, slot int) (domain.Account, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	owner, ok := b.owners[badgeKey{circleID, slot}]
	return owner, ok
}
