package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/docchat/internal/models"
)

func TestMemoryStore_ListByUser(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	t0 := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	for i, id := range []string{"c1", "c2", "c3"} {
		require.NoError(t, s.Create(ctx, &models.ChatRecord{
			ID: id, UserID: "u1", Query: "q", Response: "a", Timestamp: t0.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, s.Create(ctx, &models.ChatRecord{ID: "x", UserID: "u2", Timestamp: t0}))

	got, err := s.ListByUser(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c3", got[0].ID)
	assert.Equal(t, "c2", got[1].ID)

	got, err = s.ListByUser(ctx, "u2", 0)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
