package controller

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/canopy-network/stakedrop/pkg/snapshot"
	"github.com/go-jose/go-jose/v4/json"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ClientMessage is sent by clients to pick the chains they hear about.
type ClientMessage struct {
	Action  string `json:"action"`  // "subscribe" or "unsubscribe"
	ChainID string `json:"chainId"` // chain id, or "*" for all chains
}

type ServerMessage struct {
	Type    string      `json:"type"` // "snapshot.published", "subscribed", "unsubscribed", "info", "error"
	Payload interface{} `json:"payload"`
}

type clientSubscriptions struct {
	mu     sync.RWMutex
	chains map[string]bool
}

func NewClientSubscriptions() *clientSubscriptions {
	return &clientSubscriptions{chains: make(map[string]bool)}
}

func (cs *clientSubscriptions) Subscribe(chainID string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.chains[chainID] = true
}

func (cs *clientSubscriptions) Unsubscribe(chainID string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	delete(cs.chains, chainID)
}

// IsSubscribed reports whether chainID is followed; "*" follows every chain.
func (cs *clientSubscriptions) IsSubscribed(chainID string) bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.chains["*"] || cs.chains[chainID]
}

// HandleWebSocket streams snapshot publications to the client.
//
// Client sends {"action": "subscribe", "chainId": "1"} or "*" for all chains, and
// {"action": "unsubscribe", "chainId": "1"}. Server sends {"type": "snapshot.published",
// "payload": {...}} for every followed chain.
func (c *Controller) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if c.App.RedisClient == nil {
		http.Error(w, "Real-time events not available (Redis disabled)", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.App.Logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}
	defer func() {
		if err := conn.Close(); err != nil {
			c.App.Logger.Debug("Failed to close WebSocket connection", zap.Error(err))
		}
	}()
	c.App.Logger.Info("WebSocket client connected", zap.String("remote_addr", r.RemoteAddr))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	subs := NewClientSubscriptions()
	send := make(chan ServerMessage, 256)

	// producers write to send; the writer drains it and must outlive them
	var producers, writer sync.WaitGroup
	run := func(wg *sync.WaitGroup, name string, fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					c.App.Logger.Error("Panic in WebSocket goroutine",
						zap.String("goroutine", name),
						zap.Any("panic", rec),
						zap.String("stack", string(debug.Stack())),
						zap.String("remote_addr", r.RemoteAddr))
					cancel()
				}
			}()
			fn()
		}()
	}
	run(&producers, "redis", func() { c.subscribeToRedis(ctx, send, subs) })
	run(&producers, "ping", func() { c.sendPings(ctx, conn) })
	run(&writer, "writer", func() { c.writeMessages(conn, send) })

	// blocks until the connection closes
	c.readClientMessages(ctx, conn, cancel, subs, send)

	cancel()
	producers.Wait()
	close(send)
	writer.Wait()
	c.App.Logger.Info("WebSocket client disconnected", zap.String("remote_addr", r.RemoteAddr))
}

// subscribeToRedis follows snapshot.ChannelPattern and forwards publications of followed chains,
// resubscribing with jittered exponential backoff when Redis drops the subscription.
func (c *Controller) subscribeToRedis(ctx context.Context, send chan<- ServerMessage, subs *clientSubscriptions) {
	const (
		initialBackoff = time.Second
		maxBackoff     = 30 * time.Second
		backoffFactor  = 2.0
		jitterFactor   = 0.1
	)
	backoff := initialBackoff

	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			return
		}
		err := c.attemptRedisSubscription(ctx, snapshot.ChannelPattern, send, subs, attempt)
		if ctx.Err() != nil {
			return
		}
		c.App.Logger.Warn("Redis subscription ended, will retry",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff))

		select {
		case send <- ServerMessage{Type: "error", Payload: map[string]interface{}{
			"message":     "Redis connection lost, attempting to reconnect...",
			"retryIn":     backoff.Seconds(),
			"attempt":     attempt,
			"recoverable": true,
		}}:
		case <-ctx.Done():
			return
		}

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
		backoff = CalculateNextBackoff(backoff, maxBackoff, backoffFactor, jitterFactor)
	}
}

func (c *Controller) attemptRedisSubscription(
	ctx context.Context,
	pattern string,
	send chan<- ServerMessage,
	subs *clientSubscriptions,
	attempt int,
) error {
	pubsub := c.App.RedisClient.PSubscribe(ctx, pattern)
	defer func() { _ = pubsub.Close() }()

	receiveCtx, receiveCancel := context.WithTimeout(ctx, 5*time.Second)
	defer receiveCancel()
	if _, err := pubsub.Receive(receiveCtx); err != nil {
		return fmt.Errorf("failed to confirm Redis subscription: %w", err)
	}
	c.App.Logger.Debug("Subscribed to Redis pattern", zap.String("pattern", pattern), zap.Int("attempt", attempt))

	select {
	case send <- ServerMessage{Type: "info", Payload: map[string]interface{}{
		"message": "Redis connection established",
		"attempt": attempt,
	}}:
	case <-ctx.Done():
		return ctx.Err()
	}
	return c.processRedisMessages(ctx, pubsub.Channel(), send, subs)
}

// processRedisMessages forwards messages until ch closes (nil) or ctx ends (ctx error).
func (c *Controller) processRedisMessages(
	ctx context.Context,
	ch <-chan *redis.Message,
	send chan<- ServerMessage,
	subs *clientSubscriptions,
) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			chainID := ExtractChainIDFromChannel(msg.Channel)
			if chainID == "" {
				c.App.Logger.Warn("Failed to extract chainID from channel", zap.String("channel", msg.Channel))
				continue
			}
			if !subs.IsSubscribed(chainID) {
				continue
			}
			var payload snapshot.Published
			if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
				c.App.Logger.Error("Failed to parse Redis message", zap.Error(err), zap.String("channel", msg.Channel))
				continue
			}
			select {
			case send <- ServerMessage{Type: "snapshot.published", Payload: payload}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// CalculateNextBackoff grows current by factor, caps it at max and applies +/- jitterFactor
// jitter without going below current.
func CalculateNextBackoff(current, max time.Duration, factor, jitterFactor float64) time.Duration {
	next := time.Duration(float64(current) * factor)
	if next > max {
		next = max
	}
	jitter := float64(next) * jitterFactor * (2*rand.Float64() - 1)
	next = time.Duration(float64(next) + jitter)
	if next < current {
		next = current
	}
	if next > max {
		next = max
	}
	return next
}

// ExtractChainIDFromChannel returns the chain id of "stakedrop:<id>:snapshot.published".
func ExtractChainIDFromChannel(channel string) string {
	parts := strings.Split(channel, ":")
	if len(parts) != 3 {
		return ""
	}
	return parts[1]
}

func (c *Controller) sendPings(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
				c.App.Logger.Debug("Failed to send ping", zap.Error(err))
				return
			}
		}
	}
}

func (c *Controller) writeMessages(conn *websocket.Conn, send <-chan ServerMessage) {
	for msg := range send {
		if err := conn.WriteJSON(msg); err != nil {
			c.App.Logger.Debug("Failed to write WebSocket message", zap.Error(err))
			return
		}
	}
}

func (c *Controller) readClientMessages(ctx context.Context, conn *websocket.Conn, cancel context.CancelFunc, subs *clientSubscriptions, send chan<- ServerMessage) {
	resetDeadline := func() error { return conn.SetReadDeadline(time.Now().Add(60 * time.Second)) }
	if err := resetDeadline(); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error { return resetDeadline() })

	for ctx.Err() == nil {
		var msg ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.App.Logger.Debug("WebSocket read error", zap.Error(err))
			}
			cancel()
			return
		}
		if err := resetDeadline(); err != nil {
			return
		}
		select {
		case send <- c.handleClientMessage(msg, subs):
		case <-ctx.Done():
			return
		}
	}
}

func (c *Controller) handleClientMessage(msg ClientMessage, subs *clientSubscriptions) ServerMessage {
	if msg.Action != "subscribe" && msg.Action != "unsubscribe" {
		return ServerMessage{Type: "error", Payload: map[string]string{"message": "unknown action: " + msg.Action}}
	}
	if msg.ChainID == "" {
		return ServerMessage{Type: "error", Payload: map[string]string{"message": "chainId is required"}}
	}
	if msg.Action == "subscribe" {
		subs.Subscribe(msg.ChainID)
		return ServerMessage{Type: "subscribed", Payload: map[string]string{"chainId": msg.ChainID}}
	}
	subs.Unsubscribe(msg.ChainID)
	return ServerMessage{Type: "unsubscribed", Payload: map[string]string{"chainId": msg.ChainID}}
}
