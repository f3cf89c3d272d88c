package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"susu/internal/circle/models"
)

func TestNewEvent(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	e := NewEvent(TypeCycleCompleted, at, models.CycleCompleted{GroupID: 9, TotalVolumeDistributed: 500})

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, TypeCycleCompleted, e.Type)
	assert.Equal(t, at, e.Timestamp)

	other := NewEvent(TypeGroupRollover, at, nil)
	assert.NotEqual(t, e.ID, other.ID)
}

// The wire schema is consumed by downstream indexers; pin the field names.
func TestEventWireSchema(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("cycle_completed", func(t *testing.T) {
		e := NewEvent(TypeCycleCompleted, at, models.CycleCompleted{GroupID: 7, TotalVolumeDistributed: 300})
		raw, err := json.Marshal(e)
		require.NoError(t, err)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(raw, &decoded))
		assert.Equal(t, "cycle_completed", decoded["type"])

		payload, ok := decoded["payload"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, float64(7), payload["group_id"])
		assert.Equal(t, float64(300), payload["total_volume_distributed"])
	})

	t.Run("group_rollover", func(t *testing.T) {
		e := NewEvent(TypeGroupRollover, at, models.GroupRollover{GroupID: 7, NewCycleNumber: 3})
		raw, err := json.Marshal(e)
		require.NoError(t, err)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(raw, &decoded))

		payload, ok := decoded["payload"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, float64(7), payload["group_id"])
		assert.Equal(t, float64(3), payload["new_cycle_number"])
	})
}

func TestMemoryPublisher(t *testing.T) {
	p := NewMemoryPublisher()
	ctx := context.Background()
	at := time.Now()

	require.NoError(t, p.Emit(ctx, NewEvent(TypeCycleCompleted, at, nil)))
	require.NoError(t, p.Emit(ctx, NewEvent(TypeGroupRollover, at, nil)))
	require.NoError(t, p.Emit(ctx, NewEvent(TypeCycleCompleted, at, nil)))

	assert.Len(t, p.Events(), 3)
	assert.Len(t, p.ByType(TypeCycleCompleted), 2)
	assert.Len(t, p.ByType(TypeGroupRollover), 1)

	// Events returns a copy, not the live slice
	snapshot := p.Events()
	require.NoError(t, p.Emit(ctx, NewEvent(TypeCycleCompleted, at, nil)))
	assert.Len(t, snapshot, 3)
	assert.Len(t, p.Events(), 4)
}
