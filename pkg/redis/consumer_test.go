package redis_test

import (
	"testing"

	"github.com/canopy-network/stakedrop/pkg/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStreamConsumerValidation(t *testing.T) {
	_, err := redis.NewStreamConsumer(nil, redis.StreamConsumerConfig{Stream: "s"})
	require.Error(t, err)

	client := &redis.Client{}
	_, err = redis.NewStreamConsumer(client, redis.StreamConsumerConfig{})
	require.Error(t, err)

	_, err = redis.NewStreamConsumer(client, redis.StreamConsumerConfig{Stream: "s", Group: "g"})
	require.Error(t, err)

	_, err = redis.NewStreamConsumer(client, redis.StreamConsumerConfig{Stream: "s", Group: "g", Consumer: "c"})
	require.NoError(t, err)
}

func TestMessageFields(t *testing.T) {
	msg := redis.Message{Values: map[string]interface{}{
		"snapshotId": "0x01",
		"chainId":    "42",
		"raw":        []byte("bytes"),
	}}
	assert.Equal(t, "0x01", msg.String("snapshotId"))
	assert.Equal(t, "bytes", msg.String("raw"))
	assert.Equal(t, uint64(42), msg.Uint64("chainId"))
	assert.Zero(t, msg.Uint64("missing"))
	assert.Empty(t, msg.String("chainIdx"))
}
