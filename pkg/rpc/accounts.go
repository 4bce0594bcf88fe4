package rpc

import (
	"context"
	"fmt"
)

// Account is an entry of /v1/query/accounts.
type Account struct {
	Address string `json:"address"`
	Amount  uint64 `json:"amount"`
}

// AccountsByHeight returns every account at height, fetching pages in parallel.
func (c *HTTPClient) AccountsByHeight(ctx context.Context, height uint64) ([]*Account, error) {
	accounts, err := ListPaged[*Account](ctx, c, accountsByHeightPath, NewPageRequest(height))
	if err != nil {
		return nil, fmt.Errorf("fetch accounts at height %d: %w", height, err)
	}
	return accounts, nil
}
