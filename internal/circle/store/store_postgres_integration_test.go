//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"susu/internal/circle/models"
	"susu/pkg/domain"
	"susu/pkg/platform/sentinel"
	"susu/pkg/testutil/containers"
)

func newPostgresStore(t *testing.T) *PostgresCircleStore {
	t.Helper()
	pg := containers.NewPostgresContainer(t)
	s := NewPostgres(pg.DB)
	require.NoError(t, s.EnsureSchema(context.Background()))
	return s
}

func newTestCircle(t *testing.T) *models.Circle {
	t.Helper()
	c, err := models.NewCircle(0, "admin", 100, 5, "USDC", false, time.Now().UTC())
	require.NoError(t, err)
	return c
}

func TestPostgresCircleStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	s := newPostgresStore(t)
	ctx := context.Background()

	t.Run("create assigns sequential ids", func(t *testing.T) {
		first, err := s.Create(ctx, newTestCircle(t))
		require.NoError(t, err)
		second, err := s.Create(ctx, newTestCircle(t))
		require.NoError(t, err)
		assert.Equal(t, first+1, second)
	})

	t.Run("round trips the aggregate", func(t *testing.T) {
		c := newTestCircle(t)
		now := time.Now().UTC()
		c.ApplyJoin("alice", now)
		c.ApplyJoin("bob", now)

		id, err := s.Create(ctx, c)
		require.NoError(t, err)

		loaded, err := s.FindByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, c.Admin, loaded.Admin)
		assert.Equal(t, c.State, loaded.State)
		require.Len(t, loaded.Members, 2)
		assert.Equal(t, domain.Account("alice"), loaded.Members[0].Account)
		assert.Equal(t, 0, loaded.Members[0].JoinIndex)
	})

	t.Run("missing circle is not found", func(t *testing.T) {
		_, err := s.FindByID(ctx, 999999)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("execute commits only when validate and mutate pass", func(t *testing.T) {
		id, err := s.Create(ctx, newTestCircle(t))
		require.NoError(t, err)

		_, err = s.Execute(ctx, id,
			func(c *models.Circle) error { return assert.AnError },
			func(c *models.Circle) error {
				c.ApplyJoin("alice", time.Now().UTC())
				return nil
			},
		)
		require.ErrorIs(t, err, assert.AnError)

		loaded, err := s.FindByID(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, loaded.Members, "failed validate must not commit the mutation")

		_, err = s.Execute(ctx, id,
			func(c *models.Circle) error { return nil },
			func(c *models.Circle) error {
				c.ApplyJoin("alice", time.Now().UTC())
				return nil
			},
		)
		require.NoError(t, err)

		loaded, err = s.FindByID(ctx, id)
		require.NoError(t, err)
		assert.Len(t, loaded.Members, 1)
	})

	t.Run("membership index tracks joins and ejections", func(t *testing.T) {
		id, err := s.Create(ctx, newTestCircle(t))
		require.NoError(t, err)

		_, err = s.CircleOfMember(ctx, "carol")
		require.ErrorIs(t, err, sentinel.ErrNotFound)

		_, err = s.Execute(ctx, id,
			func(c *models.Circle) error { return nil },
			func(c *models.Circle) error {
				c.ApplyJoin("carol", time.Now().UTC())
				return nil
			},
		)
		require.NoError(t, err)

		got, err := s.CircleOfMember(ctx, "carol")
		require.NoError(t, err)
		assert.Equal(t, id, got)
	})
}
