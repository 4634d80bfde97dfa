package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/neynartodes/contesthub/pkg/kv"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: In production, restrict to specific origins
		return true
	},
}

// ClientMessage represents messages sent by WebSocket clients.
type ClientMessage struct {
	Action string `json:"action"` // "subscribe" or "unsubscribe"
	Season string `json:"season"` // Season ID to subscribe to, or "*" for all seasons
}

// ServerMessage represents messages sent to WebSocket clients.
type ServerMessage struct {
	Type    string `json:"type"`    // "leaderboard.invalidated", "subscribed", "unsubscribed", "error", "info"
	Payload any    `json:"payload"` // Event-specific data
}

// clientSubscriptions tracks which seasons a client is subscribed to.
type clientSubscriptions struct {
	mu      sync.RWMutex
	seasons map[string]bool
}

// NewClientSubscriptions creates a new clientSubscriptions tracker.
// Exported for testing.
func NewClientSubscriptions() *clientSubscriptions {
	return &clientSubscriptions{
		seasons: make(map[string]bool),
	}
}

// Subscribe adds a season to the subscription list.
// Exported for testing.
func (cs *clientSubscriptions) Subscribe(season string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.seasons[season] = true
}

// Unsubscribe removes a season from the subscription list.
// Exported for testing.
func (cs *clientSubscriptions) Unsubscribe(season string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	delete(cs.seasons, season)
}

// IsSubscribed checks if a season is subscribed. Wildcard (*) matches all.
// Exported for testing.
func (cs *clientSubscriptions) IsSubscribed(season string) bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	if cs.seasons["*"] {
		return true
	}
	return cs.seasons[season]
}

// HandleWebSocket upgrades the connection and streams leaderboard
// invalidation events published at contest finalization.
//
// Protocol:
// Client sends: {"action": "subscribe", "season": "3"}  // one season
// Client sends: {"action": "subscribe", "season": "*"}  // all seasons
// Client sends: {"action": "unsubscribe", "season": "3"}
//
// Server sends:
// - {"type": "leaderboard.invalidated", "payload": {...}}
// - {"type": "subscribed", "payload": {"season": "3"}}
// - {"type": "unsubscribed", "payload": {"season": "3"}}
// - {"type": "error", "payload": {"message": "..."}}
//
// IMPORTANT: All goroutines have panic recovery to prevent crashes.
func (c *Controller) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if c.App.Redis == nil {
		http.Error(w, "Real-time events not available on the in-memory store", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.App.Logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}
	defer func(conn *websocket.Conn) {
		if closeErr := conn.Close(); closeErr != nil {
			c.App.Logger.Error("Failed to close WebSocket connection", zap.Error(closeErr))
		}
	}(conn)

	c.App.Logger.Info("WebSocket client connected", zap.String("remote_addr", r.RemoteAddr))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	subs := NewClientSubscriptions()
	send := make(chan ServerMessage, 256)

	var wg sync.WaitGroup

	spawn := func(name string, fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					c.App.Logger.Error("Panic in websocket goroutine",
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

	spawn("redis-subscriber", func() { c.subscribeToInvalidations(ctx, send, subs) })
	spawn("ping-ticker", func() { c.sendPings(ctx, conn) })
	spawn("writer", func() { c.writeMessages(conn, send) })

	// Blocks until the connection closes.
	c.readClientMessages(ctx, conn, cancel, subs, send)

	close(send)
	wg.Wait()

	c.App.Logger.Info("WebSocket client disconnected", zap.String("remote_addr", r.RemoteAddr))
}

// subscribeToInvalidations forwards leaderboard invalidation events matching
// the client's season subscriptions. Lost redis connections are retried with
// exponential backoff and the client is told while the feed is down.
func (c *Controller) subscribeToInvalidations(ctx context.Context, send chan<- ServerMessage, subs *clientSubscriptions) {
	const (
		initialBackoff = 1 * time.Second
		maxBackoff     = 30 * time.Second
		backoffFactor  = 2.0
		jitterFactor   = 0.1
	)

	backoff := initialBackoff
	attemptNum := 0

	for {
		select {
		case <-ctx.Done():
			c.App.Logger.Info("Redis subscription cancelled")
			return
		default:
		}

		attemptNum++
		subscriptionErr := c.attemptSubscription(ctx, send, subs, attemptNum)

		if ctx.Err() != nil {
			c.App.Logger.Info("Redis subscription cancelled")
			return
		}

		if subscriptionErr != nil {
			c.App.Logger.Warn("Redis subscription failed, will retry",
				zap.Error(subscriptionErr),
				zap.Int("attempt", attemptNum),
				zap.Duration("backoff", backoff))
		} else {
			c.App.Logger.Warn("Redis subscription channel closed, will retry",
				zap.Int("attempt", attemptNum),
				zap.Duration("backoff", backoff))
		}

		select {
		case send <- ServerMessage{
			Type: "error",
			Payload: map[string]any{
				"message":     "Event feed lost, attempting to reconnect...",
				"retryIn":     backoff.Seconds(),
				"attempt":     attemptNum,
				"recoverable": true,
			},
		}:
		case <-ctx.Done():
			return
		}

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			c.App.Logger.Info("Redis subscription cancelled during backoff")
			return
		}

		backoff = CalculateNextBackoff(backoff, maxBackoff, backoffFactor, jitterFactor)
	}
}

// attemptSubscription holds one redis pattern subscription open and pumps
// its messages. Returns an error when setup fails, nil when the channel
// closed after a successful subscribe.
func (c *Controller) attemptSubscription(ctx context.Context, send chan<- ServerMessage, subs *clientSubscriptions, attemptNum int) error {
	c.App.Logger.Info("Attempting Redis subscription",
		zap.String("pattern", kv.LeaderboardChannelPattern),
		zap.Int("attempt", attemptNum))

	pubsub := c.App.Redis.Client().PSubscribe(ctx, kv.LeaderboardChannelPattern)
	defer func() {
		if err := pubsub.Close(); err != nil {
			c.App.Logger.Error("Error closing Redis subscription", zap.Error(err))
		}
	}()

	receiveCtx, receiveCancel := context.WithTimeout(ctx, 5*time.Second)
	defer receiveCancel()

	if _, err := pubsub.Receive(receiveCtx); err != nil {
		return fmt.Errorf("failed to confirm Redis subscription: %w", err)
	}

	select {
	case send <- ServerMessage{
		Type:    "info",
		Payload: map[string]any{"message": "Event feed established", "attempt": attemptNum},
	}:
	case <-ctx.Done():
		return ctx.Err()
	}

	return c.processInvalidations(ctx, pubsub, send, subs)
}

func (c *Controller) processInvalidations(ctx context.Context, pubsub *redis.PubSub, send chan<- ServerMessage, subs *clientSubscriptions) error {
	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			season := ExtractSeasonFromChannel(msg.Channel)
			if season == "" {
				c.App.Logger.Warn("Failed to extract season from channel",
					zap.String("channel", msg.Channel))
				continue
			}
			if !subs.IsSubscribed(season) {
				continue
			}

			var payload map[string]any
			if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
				c.App.Logger.Error("Failed to parse Redis message",
					zap.Error(err),
					zap.String("channel", msg.Channel))
				continue
			}

			select {
			case send <- ServerMessage{Type: "leaderboard.invalidated", Payload: payload}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// CalculateNextBackoff calculates the next backoff duration with exponential growth and jitter.
// Exported for testing.
func CalculateNextBackoff(current, max time.Duration, factor, jitterFactor float64) time.Duration {
	next := time.Duration(float64(current) * factor)
	if next > max {
		next = max
	}

	// Jitter keeps a fleet of clients from retrying in lockstep.
	jitter := float64(next) * jitterFactor * (2*rand.Float64() - 1)
	nextWithJitter := time.Duration(float64(next) + jitter)

	if nextWithJitter < current {
		nextWithJitter = current
	}
	if nextWithJitter > max {
		nextWithJitter = max
	}

	return nextWithJitter
}

// ExtractSeasonFromChannel extracts the season id from a channel shaped
// "contests:{season}:leaderboard.invalidated".
// Exported for testing.
func ExtractSeasonFromChannel(channel string) string {
	parts := strings.Split(channel, ":")
	if len(parts) != 3 {
		return ""
	}
	return parts[1]
}

// sendPings keeps the connection alive; pong responses reset the read
// deadline in readClientMessages.
func (c *Controller) sendPings(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
				c.App.Logger.Error("Failed to send ping", zap.Error(err))
				return
			}
		}
	}
}

// writeMessages writes messages from the send channel to the WebSocket connection.
func (c *Controller) writeMessages(conn *websocket.Conn, send <-chan ServerMessage) {
	for msg := range send {
		if err := conn.WriteJSON(msg); err != nil {
			c.App.Logger.Error("Failed to write WebSocket message", zap.Error(err))
			return
		}
	}
}

// readClientMessages reads subscription commands until the connection closes.
func (c *Controller) readClientMessages(ctx context.Context, conn *websocket.Conn, cancel context.CancelFunc, subs *clientSubscriptions, send chan<- ServerMessage) {
	if err := conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
		c.App.Logger.Error("Failed to set read deadline", zap.Error(err))
		return
	}

	conn.SetPongHandler(func(string) error {
		if err := conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
			c.App.Logger.Error("Failed to reset read deadline", zap.Error(err))
			return err
		}
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			var msg ClientMessage
			if err := conn.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					c.App.Logger.Error("WebSocket read error", zap.Error(err))
				}
				cancel()
				return
			}

			if err := conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
				c.App.Logger.Error("Failed to reset read deadline", zap.Error(err))
				return
			}

			switch msg.Action {
			case "subscribe":
				if msg.Season == "" {
					send <- ServerMessage{Type: "error", Payload: map[string]string{"message": "season is required"}}
					continue
				}
				subs.Subscribe(msg.Season)
				c.App.Logger.Debug("Client subscribed", zap.String("season", msg.Season))
				send <- ServerMessage{Type: "subscribed", Payload: map[string]string{"season": msg.Season}}

			case "unsubscribe":
				if msg.Season == "" {
					send <- ServerMessage{Type: "error", Payload: map[string]string{"message": "season is required"}}
					continue
				}
				subs.Unsubscribe(msg.Season)
				c.App.Logger.Debug("Client unsubscribed", zap.String("season", msg.Season))
				send <- ServerMessage{Type: "unsubscribed", Payload: map[string]string{"season": msg.Season}}

			default:
				send <- ServerMessage{Type: "error", Payload: map[string]string{"message": "unknown action: " + msg.Action}}
			}
		}
	}
}
