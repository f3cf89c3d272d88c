package store

import (
	"context"
	"sync"

	"susu/internal/circle/models"
	"susu/pkg/domain"
	"susu/pkg/platform/sentinel"
)

// InMemoryCircleStore is the single owned registry of circle records, keyed
// by circle id. Records never alias: reads return deep copies and Execute
// works on a clone that only replaces committed state on success, so a
// failure at any step leaves previously committed state untouched.
type InMemoryCircleStore struct {
	mu      sync.RWMutex
	circles map[domain.CircleID]*models.Circle
	nextID  domain.CircleID
}

// NewInMemoryCircleStore creates an empty circle registry.
func NewInMemoryCircleStore() *InMemoryCircleStore {
	return &InMemoryCircleStore{
		circles: make(map[domain.CircleID]*models.Circle),
	}
}

// Create assigns the next circle id, persists the record, and returns the id.
func (s *InMemoryCircleStore) Create(_ context.Context, c *models.Circle) (domain.CircleID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	c.ID = s.nextID
	s.circles[c.ID] = c.Clone()
	return c.ID, nil
}

// FindByID returns a copy of the circle, or sentinel.ErrNotFound.
func (s *InMemoryCircleStore) FindByID(_ context.Context, id domain.CircleID) (*models.Circle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.circles[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return c.Clone(), nil
}

// Execute runs validate then mutate against a clone of the latest committed
// record while holding the store lock, committing the clone only if both
// succeed. Mutate may fail (a capability call mid-mutation); the clone is
// discarded and committed state is unchanged.
func (s *InMemoryCircleStore) Execute(
	_ context.Context,
	id domain.CircleID,
	validate func(c *models.Circle) error,
	mutate func(c *models.Circle) error,
) (*models.Circle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	committed, ok := s.circles[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}

	working := committed.Clone()
	if err := validate(working); err != nil {
		return nil, err
	}
	if err := mutate(working); err != nil {
		return nil, err
	}

	s.circles[id] = working
	return working.Clone(), nil
}

// CircleOfMember returns the id of the circle an account currently belongs
// to with non-ejected status, or sentinel.ErrNotFound. A member may belong
// to at most one circle at a time; this is the lookup that enforces it.
func (s *InMemoryCircleStore) CircleOfMember(_ context.Context, acct domain.Account) (domain.CircleID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, c := range s.circles {
		m := c.MemberByAccount(acct)
		if m != nil && m.Status != models.MemberEjected {
			return id, nil
		}
	}
	return 0, sentinel.ErrNotFound
}
