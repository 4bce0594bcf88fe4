package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/canopy-network/stakedrop/pkg/utils"
)

// ErrNoEndpoints is returned when every endpoint is missing or has an open breaker.
var ErrNoEndpoints = errors.New("rpc: no endpoint available")

// HTTPClient talks JSON to a set of Canopy RPC endpoints. Requests are throttled by a token
// bucket and every endpoint has its own circuit breaker.
type HTTPClient struct {
	endpoints []string
	client    *http.Client
	next      atomic.Uint64

	// token-bucket
	tokens      int64
	maxTokens   int64
	refillEvery time.Duration
	lastRefill  atomic.Value // time.Time

	// circuit-breaker
	mu       sync.Mutex
	failures map[string]int
	opened   map[string]time.Time

	breakerThreshold int
	breakerCooldown  time.Duration
}

// Opts is the set of options for a new HTTPClient.
type Opts struct {
	Endpoints       []string
	Timeout         time.Duration
	RPS             int
	Burst           int
	BreakerFailures int
	BreakerCooldown time.Duration
	HTTPClient      *http.Client
}

// OptsFromEnv reads RPC_ENDPOINTS, RPC_TIMEOUT, RPC_RPS and RPC_BURST.
func OptsFromEnv() Opts {
	return Opts{
		Endpoints:       utils.EnvList("RPC_ENDPOINTS", []string{"http://localhost:50002"}),
		Timeout:         utils.EnvDuration("RPC_TIMEOUT", 15*time.Second),
		RPS:             utils.EnvInt("RPC_RPS", 20),
		Burst:           utils.EnvInt("RPC_BURST", 40),
		BreakerFailures: utils.EnvInt("RPC_BREAKER_FAILURES", 3),
		BreakerCooldown: utils.EnvDuration("RPC_BREAKER_COOLDOWN", 5*time.Second),
	}
}

// NewHTTPWithOpts creates a new HTTPClient with the given options.
func NewHTTPWithOpts(o Opts) *HTTPClient {
	if o.RPS <= 0 {
		o.RPS = 20
	}
	if o.Burst <= 0 {
		o.Burst = 40
	}
	if o.Timeout <= 0 {
		o.Timeout = 15 * time.Second
	}
	if o.BreakerFailures <= 0 {
		o.BreakerFailures = 3
	}
	if o.BreakerCooldown <= 0 {
		o.BreakerCooldown = 5 * time.Second
	}

	client := o.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: o.Timeout}
	} else if client.Timeout == 0 {
		client.Timeout = o.Timeout
	}

	c := &HTTPClient{
		endpoints:        utils.Dedup(o.Endpoints),
		client:           client,
		maxTokens:        int64(o.Burst),
		refillEvery:      time.Second / time.Duration(o.RPS),
		failures:         map[string]int{},
		opened:           map[string]time.Time{},
		breakerThreshold: o.BreakerFailures,
		breakerCooldown:  o.BreakerCooldown,
	}
	c.tokens = c.maxTokens
	c.lastRefill.Store(time.Now())
	return c
}

// Endpoints returns the deduplicated endpoint list.
func (c *HTTPClient) Endpoints() []string {
	return append([]string(nil), c.endpoints...)
}

func (c *HTTPClient) refill() {
	last := c.lastRefill.Load().(time.Time)
	now := time.Now()
	if elapsed := now.Sub(last); elapsed >= c.refillEvery {
		add := int64(elapsed / c.refillEvery)
		for {
			cur := atomic.LoadInt64(&c.tokens)
			n := min(cur+add, c.maxTokens)
			if atomic.CompareAndSwapInt64(&c.tokens, cur, n) {
				break
			}
		}
		c.lastRefill.Store(now)
	}
}

// acquire takes a token, waiting for a refill when the bucket is empty.
func (c *HTTPClient) acquire(ctx context.Context) error {
	for {
		c.refill()
		if cur := atomic.LoadInt64(&c.tokens); cur > 0 && atomic.CompareAndSwapInt64(&c.tokens, cur, cur-1) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.refillEvery / 2):
		}
	}
}

// isOpen reports whether the breaker of ep is currently open.
func (c *HTTPClient) isOpen(ep string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	until, ok := c.opened[ep]
	if !ok {
		return false
	}
	if time.Now().After(until) {
		delete(c.opened, ep)
		c.failures[ep] = 0
		return false
	}
	return true
}

func (c *HTTPClient) noteFailure(ep string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[ep]++
	if c.failures[ep] >= c.breakerThreshold {
		c.opened[ep] = time.Now().Add(c.breakerCooldown)
	}
}

func (c *HTTPClient) noteSuccess(ep string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[ep] = 0
}

// doJSON posts payload to path and decodes the response into out. Endpoints are tried round
// robin starting after the last one used; transport errors and 5xx count against the breaker.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, payload any, out any) error {
	if len(c.endpoints) == 0 {
		return ErrNoEndpoints
	}

	var body []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = b
	}

	lastErr := ErrNoEndpoints
	start := int(c.next.Add(1))
	for i := 0; i < len(c.endpoints); i++ {
		ep := c.endpoints[(start+i)%len(c.endpoints)]
		if c.isOpen(ep) {
			continue
		}
		if err := c.acquire(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, method, ep+path, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			c.noteFailure(ep)
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("%s%s: server %d", ep, path, resp.StatusCode)
			c.noteFailure(ep)
			_ = utils.DrainAndClose(resp.Body)
			continue
		}
		if resp.StatusCode >= 300 {
			lastErr = fmt.Errorf("%s%s: http %d", ep, path, resp.StatusCode)
			_ = utils.DrainAndClose(resp.Body)
			continue
		}

		var decodeErr error
		if out != nil {
			decodeErr = json.NewDecoder(resp.Body).Decode(out)
		}
		_ = utils.DrainAndClose(resp.Body)
		if decodeErr != nil {
			lastErr = fmt.Errorf("decode %s: %w", path, decodeErr)
			continue
		}
		c.noteSuccess(ep)
		return nil
	}

	return lastErr
}

// pageResp is the envelope of every paginated query.
type pageResp[T any] struct {
	PageNumber int `json:"pageNumber"`
	PerPage    int `json:"perPage"`
	Results    []T `json:"results"`
	Count      int `json:"count"`
	TotalPages int `json:"totalPages"`
	TotalCount int `json:"totalCount"`
}

// ListPaged fetches the first page of path, then the remaining pages concurrently.
// Results keep page order.
func ListPaged[T any](ctx context.Context, c *HTTPClient, path string, req PageRequest) ([]T, error) {
	req.PageNumber = 1
	var first pageResp[T]
	if err := c.doJSON(ctx, http.MethodPost, path, req, &first); err != nil {
		return nil, err
	}
	if first.TotalPages <= 1 {
		return first.Results, nil
	}

	pages := make([][]T, first.TotalPages+1)
	pages[1] = first.Results
	errs := make([]error, first.TotalPages+1)

	var wg sync.WaitGroup
	for p := 2; p <= first.TotalPages; p++ {
		wg.Add(1)
		go func(page int) {
			defer wg.Done()
			pr := req
			pr.PageNumber = page
			var resp pageResp[T]
			if err := c.doJSON(ctx, http.MethodPost, path, pr, &resp); err != nil {
				errs[page] = fmt.Errorf("page %d: %w", page, err)
				return
			}
			pages[page] = resp.Results
		}(p)
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	all := make([]T, 0, first.TotalCount)
	for _, items := range pages {
		all = append(all, items...)
	}
	return all, nil
}
