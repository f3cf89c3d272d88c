package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"susu/internal/circle/models"
	"susu/pkg/platform/sentinel"
)

func newStoredCircle(t *testing.T, s *InMemoryCircleStore) *models.Circle {
	t.Helper()
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	c, err := models.NewCircle(0, "admin", 100, 5, "USDC", false, now)
	require.NoError(t, err)
	c.ApplyJoin("alice", now)
	c.ApplyJoin("bob", now)
	_, err = s.Create(context.Background(), c)
	require.NoError(t, err)
	return c
}

func TestInMemoryCircleStore_Create(t *testing.T) {
	s := NewInMemoryCircleStore()
	ctx := context.Background()

	first := newStoredCircle(t, s)
	second := newStoredCircle(t, s)

	assert.EqualValues(t, 1, first.ID)
	assert.EqualValues(t, 2, second.ID)

	found, err := s.FindByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)
}

func TestInMemoryCircleStore_FindByID_NotFound(t *testing.T) {
	s := NewInMemoryCircleStore()
	_, err := s.FindByID(context.Background(), 99)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemoryCircleStore_Execute(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("commits on success", func(t *testing.T) {
		s := NewInMemoryCircleStore()
		c := newStoredCircle(t, s)

		updated, err := s.Execute(ctx, c.ID,
			func(c *models.Circle) error { return c.CanJoin("carol") },
			func(c *models.Circle) error { c.ApplyJoin("carol", now); return nil },
		)
		require.NoError(t, err)
		assert.NotNil(t, updated.MemberByAccount("carol"))

		persisted, err := s.FindByID(ctx, c.ID)
		require.NoError(t, err)
		assert.NotNil(t, persisted.MemberByAccount("carol"))
	})

	t.Run("failed validation leaves committed state untouched", func(t *testing.T) {
		s := NewInMemoryCircleStore()
		c := newStoredCircle(t, s)

		boom := errors.New("validation failed")
		_, err := s.Execute(ctx, c.ID,
			func(c *models.Circle) error { c.ApplyJoin("sneaky", now); return boom },
			func(c *models.Circle) error { return nil },
		)
		assert.ErrorIs(t, err, boom)

		persisted, err := s.FindByID(ctx, c.ID)
		require.NoError(t, err)
		assert.Nil(t, persisted.MemberByAccount("sneaky"))
	})

	t.Run("failed mutation leaves committed state untouched", func(t *testing.T) {
		s := NewInMemoryCircleStore()
		c := newStoredCircle(t, s)

		boom := errors.New("transfer failed")
		_, err := s.Execute(ctx, c.ID,
			func(c *models.Circle) error { return nil },
			func(c *models.Circle) error { c.ApplyJoin("halfway", now); return boom },
		)
		assert.ErrorIs(t, err, boom)

		persisted, err := s.FindByID(ctx, c.ID)
		require.NoError(t, err)
		assert.Nil(t, persisted.MemberByAccount("halfway"))
	})

	t.Run("unknown id", func(t *testing.T) {
		s := NewInMemoryCircleStore()
		_, err := s.Execute(ctx, 42,
			func(c *models.Circle) error { return nil },
			func(c *models.Circle) error { return nil },
		)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}

func TestInMemoryCircleStore_CircleOfMember(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryCircleStore()
	c := newStoredCircle(t, s)

	id, err := s.CircleOfMember(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, c.ID, id)

	_, err = s.CircleOfMember(ctx, "nobody")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	t.Run("ejected membership does not count", func(t *testing.T) {
		now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
		_, err := s.Execute(ctx, c.ID,
			func(c *models.Circle) error { return c.CanRequestExit("alice") },
			func(c *models.Circle) error { c.ApplyRequestExit("alice", now); return nil },
		)
		require.NoError(t, err)
		_, err = s.Execute(ctx, c.ID,
			func(c *models.Circle) error { return c.CanFillVacancy("alice", "dora") },
			func(c *models.Circle) error { c.ApplyFillVacancy("alice", "dora", now); return nil },
		)
		require.NoError(t, err)

		_, err = s.CircleOfMember(ctx, "alice")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}
