package snapshot

import (
	"context"
	"fmt"

	"github.com/canopy-network/stakedrop/pkg/airdrop"
	"github.com/canopy-network/stakedrop/pkg/redis"
	"github.com/go-jose/go-jose/v4/json"
)

const (
	// Stream is the Redis stream every published snapshot is appended to.
	Stream = "stakedrop:snapshots"
	// ChannelPattern matches the per-chain publish channels.
	ChannelPattern = "stakedrop:*:snapshot.published"
)

// Channel is the pub/sub channel of chainID.
func Channel(chainID uint64) string {
	return fmt.Sprintf("stakedrop:%d:snapshot.published", chainID)
}

// Published is the notification sent when a snapshot is stored.
type Published struct {
	ChainID        uint64 `json:"chainId"`
	Subject        string `json:"subject"`
	Root           string `json:"root"`
	StartHeight    uint64 `json:"startBlockHeight"`
	EndHeight      uint64 `json:"endBlockHeight"`
	Claims         int    `json:"claims"`
	TotalClaimable string `json:"totalClaimable"`
}

func NewPublished(subject string, m *airdrop.Manifest) Published {
	return Published{
		ChainID:        m.ChainID,
		Subject:        subject,
		Root:           m.MerkleTree.Root.Hex(),
		StartHeight:    m.StartHeight,
		EndHeight:      m.EndHeight,
		Claims:         len(m.MerkleTree.Claims),
		TotalClaimable: m.TotalClaimable.String(),
	}
}

// Publisher announces snapshots on Redis. Delivery is best effort.
type Publisher struct {
	redis *redis.Client
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{redis: client}
}

// Publish sends p to the chain channel and appends it to Stream. It returns the stream entry id,
// "" when the append failed.
func (p *Publisher) Publish(ctx context.Context, msg Published) (string, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}
	p.redis.Publish(ctx, Channel(msg.ChainID), string(payload))
	return p.redis.XAdd(ctx, Stream, map[string]interface{}{
		"chain_id": msg.ChainID,
		"root":     msg.Root,
		"payload":  string(payload),
	}), nil
}
