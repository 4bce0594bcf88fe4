package rpc

import (
	"context"
	"fmt"

	"github.com/canopy-network/canopy/fsm"
)

// ValidatorsByHeight returns every validator at height, fetching pages in parallel.
func (c *HTTPClient) ValidatorsByHeight(ctx context.Context, height uint64) ([]*fsm.Validator, error) {
	validators, err := ListPaged[*fsm.Validator](ctx, c, validatorsPath, NewPageRequest(height))
	if err != nil {
		return nil, fmt.Errorf("fetch validators at height %d: %w", height, err)
	}
	return validators, nil
}
