package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/canopy-network/stakedrop/pkg/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type brokenTier struct{}

func (brokenTier) Get(context.Context, uint64) (time.Time, bool, error) {
	return time.Time{}, false, errors.New("down")
}

func (brokenTier) Put(context.Context, uint64, time.Time) error { return errors.New("down") }

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := cache.NewMemory()
	_, ok, err := m.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	ts := time.Unix(1700000000, 0).UTC()
	require.NoError(t, m.Put(ctx, 1, ts))
	got, ok, err := m.Get(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, ts, got)
	assert.Equal(t, 1, m.Len())
}

func TestTieredBackfillsFrontTier(t *testing.T) {
	ctx := context.Background()
	front, back := cache.NewMemory(), cache.NewMemory()
	ts := time.Unix(1700000100, 0).UTC()
	require.NoError(t, back.Put(ctx, 9, ts))

	tiered := cache.NewTiered(zaptest.NewLogger(t), front, back)
	got, ok, err := tiered.Get(ctx, 9)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ts, got)

	_, ok, _ = front.Get(ctx, 9)
	assert.True(t, ok, "hit in the back tier is copied forward")
}

func TestTieredTreatsErrorsAsMisses(t *testing.T) {
	ctx := context.Background()
	front := cache.NewMemory()
	tiered := cache.NewTiered(zaptest.NewLogger(t), front, brokenTier{})

	_, ok, err := tiered.Get(ctx, 3)
	require.NoError(t, err)
	assert.False(t, ok)

	err = tiered.Put(ctx, 3, time.Now())
	require.Error(t, err)
	_, ok, _ = front.Get(ctx, 3)
	assert.True(t, ok, "healthy tiers are still written")
}
