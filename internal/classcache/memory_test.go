package classcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finance-wrapped/internal/pipeline"
)

func TestMemoryStore_GetPut(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(10, 0)

	_, ok, err := s.Get(ctx, "shell")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, "shell", pipeline.Classification{Category: "transport", Reasoning: "fuel"}))
	got, ok, err := s.Get(ctx, "shell")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "transport", got.Category)

	require.NoError(t, s.Put(ctx, "shell", pipeline.Classification{Category: "other"}))
	got, _, _ = s.Get(ctx, "shell")
	assert.Equal(t, "other", got.Category)
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStore_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2, 0)

	require.NoError(t, s.Put(ctx, "a", pipeline.Classification{Category: "food"}))
	require.NoError(t, s.Put(ctx, "b", pipeline.Classification{Category: "food"}))
	_, _, _ = s.Get(ctx, "a")
	require.NoError(t, s.Put(ctx, "c", pipeline.Classification{Category: "food"}))

	_, ok, _ := s.Get(ctx, "b")
	assert.False(t, ok, "b was least recently used")
	_, ok, _ = s.Get(ctx, "a")
	assert.True(t, ok)
	assert.Equal(t, 2, s.Len())
}

func TestMemoryStore_TTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryStore(10, time.Hour)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Put(ctx, "a", pipeline.Classification{Category: "food"}))
	now = now.Add(30 * time.Minute)
	_, ok, _ := s.Get(ctx, "a")
	assert.True(t, ok)

	now = now.Add(2 * time.Hour)
	_, ok, _ = s.Get(ctx, "a")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestNewMemoryStore_DefaultSize(t *testing.T) {
	s := NewMemoryStore(0, 0)
	assert.Equal(t, DefaultMemorySize, s.maxSize)
}
