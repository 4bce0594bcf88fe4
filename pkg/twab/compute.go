package twab

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"runtime"
	"slices"

	"github.com/alitto/pond/v2"
)

// Result is the average of one address.
type Result struct {
	Address string
	Average *big.Int
}

// ComputeAverages averages every address of a Normalize output over iv using up to workers
// goroutines. Results come back sorted by address and include zero averages.
func ComputeAverages(ctx context.Context, grouped map[string][]ChangeEvent, iv Interval, workers int) ([]Result, error) {
	if err := iv.Validate(); err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	addresses := make([]string, 0, len(grouped))
	for addr := range grouped {
		addresses = append(addresses, addr)
	}
	slices.Sort(addresses)

	// each task owns exactly one slot
	results := make([]Result, len(addresses))

	pool := pond.NewPool(workers)
	defer pool.StopAndWait()

	group := pool.NewGroupContext(ctx)
	for i, addr := range addresses {
		group.SubmitErr(func() error {
			avg, err := Average(grouped[addr], iv)
			if err != nil {
				return fmt.Errorf("average %s: %w", addr, err)
			}
			results[i] = Result{Address: addr, Average: avg}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		if errors.Is(err, pond.ErrGroupStopped) && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// ComputeFromEvents runs Normalize followed by ComputeAverages.
func ComputeFromEvents(ctx context.Context, events []ChangeEvent, iv Interval, workers int) ([]Result, error) {
	if err := iv.Validate(); err != nil {
		return nil, err
	}
	grouped, err := Normalize(events)
	if err != nil {
		return nil, err
	}
	return ComputeAverages(ctx, grouped, iv, workers)
}
