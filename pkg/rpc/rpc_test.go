package rpc_test

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/canopy-network/stakedrop/pkg/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type page struct {
	Results    any `json:"results"`
	PageNumber int `json:"pageNumber"`
	PerPage    int `json:"perPage"`
	TotalPages int `json:"totalPages"`
	TotalCount int `json:"totalCount"`
}

func TestAccountsByHeightFetchesAllPagesInOrder(t *testing.T) {
	pages := map[int][]*rpc.Account{
		1: {{Address: "01", Amount: 100}, {Address: "02", Amount: 200}},
		2: {{Address: "03", Amount: 300}},
		3: {{Address: "04", Amount: 400}},
	}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/query/accounts", r.URL.Path)
		var req rpc.PageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, uint64(100), req.Height)
		assert.Equal(t, rpc.DefaultPerPage, req.PerPage)
		_ = json.NewEncoder(w).Encode(page{Results: pages[req.PageNumber], PageNumber: req.PageNumber, TotalPages: 3, TotalCount: 4})
	})

	accounts, err := newTestRPCClient(handler).AccountsByHeight(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, accounts, 4)
	for i, a := range accounts {
		assert.Equal(t, fmt.Sprintf("%02d", i+1), a.Address)
	}
}

func TestAccountsByHeightPageFailure(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpc.PageRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.PageNumber == 2 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(page{Results: []*rpc.Account{}, TotalPages: 2})
	})
	_, err := newTestRPCClient(handler).AccountsByHeight(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "page 2")
}

func TestValidatorsByHeight(t *testing.T) {
	addr := strings.Repeat("ab", 20)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/query/validators", r.URL.Path)
		_, _ = fmt.Fprintf(w, `{"results":[{"address":%q,"stakedAmount":5000,"committees":[1]}],"pageNumber":1,"totalPages":1,"totalCount":1}`, addr)
	})
	validators, err := newTestRPCClient(handler).ValidatorsByHeight(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, validators, 1)
	assert.Equal(t, addr, hex.EncodeToString(validators[0].Address))
	assert.Equal(t, uint64(5000), validators[0].StakedAmount)
}

func TestBlockTime(t *testing.T) {
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/query/height":
			_, _ = w.Write([]byte(`{"height":77}`))
		case "/v1/query/block-by-height":
			var req rpc.HeightRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			_, _ = fmt.Fprintf(w, `{"blockHeader":{"height":%d,"hash":"h","time":%d},"meta":{"size":10}}`, req.Height, ts.UnixMicro())
		}
	})
	client := newTestRPCClient(handler)

	head, err := client.ChainHead(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(77), head)

	got, err := client.BlockTime(context.Background(), 42)
	require.NoError(t, err)
	assert.True(t, ts.Equal(got))
}

func TestBlockByHeightNotReady(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"blockHeader":{"height":0},"meta":{"size":0}}`))
	})
	_, err := newTestRPCClient(handler).BlockByHeight(context.Background(), 5)
	require.ErrorIs(t, err, rpc.ErrBlockNotReady)
}

func TestFailoverAndBreaker(t *testing.T) {
	var badCalls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Host == "bad" {
			badCalls.Add(1)
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"height":9}`))
	})
	client := newTestRPCClientWithOpts(handler, rpc.Opts{
		Endpoints:       []string{"http://bad", "http://good"},
		BreakerFailures: 2,
		BreakerCooldown: time.Minute,
	})

	for i := 0; i < 6; i++ {
		head, err := client.ChainHead(context.Background())
		require.NoError(t, err)
		assert.Equal(t, uint64(9), head)
	}
	assert.LessOrEqual(t, badCalls.Load(), int32(2), "breaker stops traffic to the failing endpoint")
}

func TestNoEndpoints(t *testing.T) {
	client := rpc.NewHTTPWithOpts(rpc.Opts{})
	_, err := client.ChainHead(context.Background())
	require.ErrorIs(t, err, rpc.ErrNoEndpoints)
}

func TestCancelledContext(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"height":9}`))
	})
	client := newTestRPCClientWithOpts(handler, rpc.Opts{RPS: 1, Burst: 1})
	_, err := client.ChainHead(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = client.ChainHead(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
