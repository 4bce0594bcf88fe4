package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/canopy-network/stakedrop/pkg/redis"
)

// Redis stores block times as unix microseconds under stakedrop:<chain>:blocktime:<height>,
// without a TTL.
type Redis struct {
	client  *redis.Client
	chainID uint64
}

func NewRedis(client *redis.Client, chainID uint64) *Redis {
	return &Redis{client: client, chainID: chainID}
}

func (r *Redis) key(height uint64) string {
	return fmt.Sprintf("stakedrop:%d:blocktime:%d", r.chainID, height)
}

func (r *Redis) Get(ctx context.Context, height uint64) (time.Time, bool, error) {
	raw, err := r.client.GetClient().Get(ctx, r.key(height)).Result()
	if redis.IsNil(err) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	micros, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("corrupt block time for height %d: %w", height, err)
	}
	return time.UnixMicro(micros).UTC(), true, nil
}

func (r *Redis) Put(ctx context.Context, height uint64, t time.Time) error {
	return r.client.GetClient().Set(ctx, r.key(height), strconv.FormatInt(t.UnixMicro(), 10), 0).Err()
}
