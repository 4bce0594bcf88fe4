package rpc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrBlockNotReady is returned when the node answers for a height it has not committed yet.
var ErrBlockNotReady = errors.New("rpc: block not ready")

// headResponse is the body of /v1/query/height.
type headResponse struct {
	Height uint64 `json:"height"`
}

// blockResponse keeps only the header fields a snapshot needs from /v1/query/block-by-height.
type blockResponse struct {
	BlockHeader struct {
		Height          uint64 `json:"height"`
		Hash            string `json:"hash"`
		Time            int64  `json:"time"`
		LastBlockHash   string `json:"lastBlockHash"`
		ProposerAddress string `json:"proposerAddress"`
	} `json:"blockHeader"`
	Meta struct {
		Size int `json:"size"`
	} `json:"meta"`
}

// Block is a committed block header.
type Block struct {
	Height          uint64
	Hash            string
	Time            time.Time
	LastBlockHash   string
	ProposerAddress string
}

// ChainHead returns the height of the chain head.
func (c *HTTPClient) ChainHead(ctx context.Context) (uint64, error) {
	var resp headResponse
	if err := c.doJSON(ctx, http.MethodPost, headPath, map[string]any{}, &resp); err != nil {
		return 0, fmt.Errorf("cannot probe head: %w", err)
	}
	if resp.Height == 0 {
		return 0, fmt.Errorf("cannot probe head: %w", ErrBlockNotReady)
	}
	return resp.Height, nil
}

// BlockByHeight returns the header at h. Block time is encoded by Canopy as unix microseconds.
func (c *HTTPClient) BlockByHeight(ctx context.Context, h uint64) (*Block, error) {
	var out blockResponse
	if err := c.doJSON(ctx, http.MethodPost, blockByHeightPath, HeightRequest{Height: h}, &out); err != nil {
		return nil, err
	}
	if out.BlockHeader.Height != h || out.Meta.Size == 0 {
		return nil, fmt.Errorf("height %d: %w", h, ErrBlockNotReady)
	}
	return &Block{
		Height:          out.BlockHeader.Height,
		Hash:            out.BlockHeader.Hash,
		Time:            time.UnixMicro(out.BlockHeader.Time).UTC(),
		LastBlockHash:   out.BlockHeader.LastBlockHash,
		ProposerAddress: out.BlockHeader.ProposerAddress,
	}, nil
}

// BlockTime returns the timestamp of the block at h.
func (c *HTTPClient) BlockTime(ctx context.Context, h uint64) (time.Time, error) {
	b, err := c.BlockByHeight(ctx, h)
	if err != nil {
		return time.Time{}, err
	}
	return b.Time, nil
}
