package types

import (
	"context"
	"errors"
	"testing"

	"github.com/canopy-network/stakedrop/pkg/airdrop"
	"github.com/canopy-network/stakedrop/pkg/db/postgres/snapshots"
	"github.com/canopy-network/stakedrop/pkg/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubStore struct {
	manifests map[string]*airdrop.Manifest
	list      []snapshots.Snapshot
	reads     int
}

func (s *stubStore) ListSnapshots(context.Context, uint64, int) ([]snapshots.Snapshot, error) {
	return s.list, nil
}

func (s *stubStore) GetSnapshot(context.Context, uint64, string) (*snapshots.Snapshot, error) {
	return nil, snapshots.ErrNotFound
}

func (s *stubStore) GetManifest(_ context.Context, _ uint64, root string) (*airdrop.Manifest, error) {
	s.reads++
	if m, ok := s.manifests[root]; ok {
		return m, nil
	}
	return nil, snapshots.ErrNotFound
}

func (s *stubStore) Health(context.Context) error { return nil }

func TestHandlePublished(t *testing.T) {
	store := &stubStore{manifests: map[string]*airdrop.Manifest{"0xabc": {ChainID: 3}}}
	app := NewApp(store, zaptest.NewLogger(t))
	ctx := context.Background()

	err := app.HandlePublished(ctx, redis.Message{Values: map[string]interface{}{
		"chain_id": "3", "root": "0xabc", "payload": "{}",
	}})
	require.NoError(t, err)

	root, err := app.LatestRoot(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "0xabc", root)

	_, err = app.Manifest(ctx, 3, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, 1, store.reads, "published manifest is served from cache")
}

func TestHandlePublishedRejectsIncompleteEntry(t *testing.T) {
	app := NewApp(&stubStore{}, zaptest.NewLogger(t))
	err := app.HandlePublished(context.Background(), redis.Message{Values: map[string]interface{}{"root": "0xabc"}})
	require.Error(t, err)
}

func TestHandlePublishedUnknownManifest(t *testing.T) {
	app := NewApp(&stubStore{}, zaptest.NewLogger(t))
	err := app.HandlePublished(context.Background(), redis.Message{Values: map[string]interface{}{
		"chain_id": "3", "root": "0xdef",
	}})
	require.True(t, errors.Is(err, snapshots.ErrNotFound))
}

func TestLatestRootFallsBackToStore(t *testing.T) {
	app := NewApp(&stubStore{list: []snapshots.Snapshot{{ID: "0x01"}}}, zaptest.NewLogger(t))
	root, err := app.LatestRoot(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "0x01", root)

	empty := NewApp(&stubStore{}, zaptest.NewLogger(t))
	_, err = empty.LatestRoot(context.Background(), 1)
	require.ErrorIs(t, err, snapshots.ErrNotFound)
}
