package store

import (
	"context"
	"sync"

	"susu/internal/protocol/models"
)

// InMemoryProtocolStore holds the singleton protocol record. Execute works
// the same way as the circle store: validate and mutate run against a clone
// under the lock and the clone commits only when both succeed.
type InMemoryProtocolStore struct {
	mu       sync.RWMutex
	protocol *models.Protocol
}

// NewInMemoryProtocolStore creates a store holding an uninitialized record.
func NewInMemoryProtocolStore() *InMemoryProtocolStore {
	return &InMemoryProtocolStore{protocol: models.NewProtocol()}
}

// Get returns a copy of the protocol record.
func (s *InMemoryProtocolStore) Get(_ context.Context) (*models.Protocol, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.protocol.Clone(), nil
}

// Execute runs validate then mutate against a clone of the record while
// holding the store lock, committing only on success.
func (s *InMemoryProtocolStore) Execute(
	_ context.Context,
	validate func(p *models.Protocol) error,
	mutate func(p *models.Protocol) error,
) (*models.Protocol, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.protocol.Clone()
	if err := validate(working); err != nil {
		return nil, err
	}
	if err := mutate(working); err != nil {
		return nil, err
	}

	s.protocol = working
	return working.Clone(), nil
}
