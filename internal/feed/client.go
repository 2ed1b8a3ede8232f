package feed

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/moarbaz01/aiexch-livefeed/internal/registry"
	"github.com/moarbaz01/aiexch-livefeed/internal/topic"
)

// State is the connection lifecycle state
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	}
	return "unknown"
}

// Subscriptions is the registry surface the client needs: fan-out of
// inbound updates, and the online/offline transitions that replay live
// subscriptions under the registry lock so no register or unregister
// can interleave wire traffic with them.
type Subscriptions interface {
	Dispatch(t topic.Type, scope topic.Scope, payload json.RawMessage)
	Resume(send func(registry.Subscription))
	Suspend(send func(registry.Subscription))
}

// Config holds the connection parameters
type Config struct {
	URL                string
	HandshakeTimeout   time.Duration
	ReconnectBaseDelay time.Duration
	ReconnectMaxDelay  time.Duration
}

// Client owns the single WebSocket connection to the feed server. It
// runs the state machine Disconnected -> Connecting -> Open, drops back
// to Reconnecting with exponential backoff on any transport failure,
// and replays every live subscription after each successful open.
//
// All connection state sits behind one mutex. A generation counter is
// bumped on every desired-state flip and every (re)connect start, so a
// stale dial result, read loop, or backoff timer observes the mismatch
// and abandons: at most one connect attempt and one pending retry timer
// exist at any time.
type Client struct {
	cfg    Config
	subs   Subscriptions
	logger zerolog.Logger

	mu      sync.Mutex
	state   State
	desired bool
	conn    *websocket.Conn
	attempt int
	retry   *time.Timer
	gen     uint64

	writeMu sync.Mutex
}

// NewClient creates a client for the given feed endpoint. Zero config
// values fall back to defaults (10s handshake, 1s base / 30s max
// backoff).
func NewClient(cfg Config, subs Subscriptions, logger zerolog.Logger) *Client {
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.ReconnectBaseDelay == 0 {
		cfg.ReconnectBaseDelay = time.Second
	}
	if cfg.ReconnectMaxDelay == 0 {
		cfg.ReconnectMaxDelay = 30 * time.Second
	}
	return &Client{
		cfg:    cfg,
		subs:   subs,
		logger: logger.With().Str("component", "feed").Logger(),
	}
}

// State returns the current connection state
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Desired reports whether the gate currently wants a connection
func (c *Client) Desired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.desired
}

// SetDesired switches the connection on or off. Turning on from idle
// starts a connect attempt; turning off cancels any pending reconnect
// timer, sends an explicit unsubscribe for every live subscription, and
// closes the connection. Redundant calls are no-ops.
func (c *Client) SetDesired(on bool) {
	c.mu.Lock()
	if c.desired == on {
		c.mu.Unlock()
		return
	}
	c.desired = on

	if on {
		c.gen++
		gen := c.gen
		c.state = StateConnecting
		c.mu.Unlock()
		c.logger.Info().Msg("feed connection desired")
		go c.connect(gen)
		return
	}

	c.gen++
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	conn := c.conn
	c.conn = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	c.logger.Info().Msg("feed connection no longer desired")
	if conn != nil {
		c.teardown(conn)
		conn.Close()
	}
}

// teardown takes the registry offline and sends best-effort
// unsubscribe messages for every live subscription before the
// connection closes. Both happen in one registry critical section, so
// a concurrent unregister cannot produce a second unsubscribe.
func (c *Client) teardown(conn *websocket.Conn) {
	n := 0
	c.subs.Suspend(func(s registry.Subscription) {
		c.writeFrame(conn, registry.ActionUnsubscribe, s.Type, s.Scope)
		n++
	})
	if n > 0 {
		c.logger.Info().Int("count", n).Msg("sent teardown unsubscribes")
	}
}

func (c *Client) connect(gen uint64) {
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	c.logger.Info().Str("url", c.cfg.URL).Msg("feed connecting")
	conn, _, err := dialer.Dial(c.cfg.URL, nil)

	c.mu.Lock()
	if gen != c.gen || !c.desired {
		c.mu.Unlock()
		if err == nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		c.scheduleRetryLocked()
		c.mu.Unlock()
		c.logger.Warn().Err(err).Msg("feed connect failed")
		return
	}
	c.conn = conn
	c.state = StateOpen
	c.attempt = 0
	c.mu.Unlock()

	c.logger.Info().Msg("feed connected")
	go c.readLoop(conn, gen)
	c.replay(conn)
}

// replay resends a subscribe message for every live subscription with
// its original scope fields, writing on the connection directly. The
// registry holds its lock across the replay and only then starts
// routing register/unregister traffic through Send, so per connection
// each key yields at most one subscribe frame.
func (c *Client) replay(conn *websocket.Conn) {
	n := 0
	c.subs.Resume(func(s registry.Subscription) {
		c.writeFrame(conn, registry.ActionSubscribe, s.Type, s.Scope)
		n++
	})
	if n > 0 {
		c.logger.Info().Int("count", n).Msg("replayed subscriptions")
	}
}

func (c *Client) readLoop(conn *websocket.Conn, gen uint64) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			if gen != c.gen {
				c.mu.Unlock()
				return
			}
			c.conn = nil
			if !c.desired {
				c.state = StateDisconnected
				c.mu.Unlock()
				c.subs.Suspend(nil)
				return
			}
			c.scheduleRetryLocked()
			c.mu.Unlock()
			c.subs.Suspend(nil)
			c.logger.Warn().Err(err).Msg("feed connection lost")
			conn.Close()
			return
		}
		c.handleFrame(data)
	}
}

// scheduleRetryLocked arms the backoff timer. Caller holds c.mu. At
// most one timer is pending at any time.
func (c *Client) scheduleRetryLocked() {
	if c.retry != nil {
		return
	}
	delay := backoffDelay(c.attempt, c.cfg.ReconnectBaseDelay, c.cfg.ReconnectMaxDelay)
	c.attempt++
	c.state = StateReconnecting
	c.retry = time.AfterFunc(delay, c.retryFired)
	c.logger.Info().Int("attempt", c.attempt).Dur("delay", delay).Msg("feed reconnect scheduled")
}

func (c *Client) retryFired() {
	c.mu.Lock()
	c.retry = nil
	if !c.desired {
		c.state = StateDisconnected
		c.mu.Unlock()
		return
	}
	c.gen++
	gen := c.gen
	c.state = StateConnecting
	c.mu.Unlock()
	c.connect(gen)
}

// backoffDelay computes min(base << attempt, max)
func backoffDelay(attempt int, base, max time.Duration) time.Duration {
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

// Send implements registry.Sender. While the connection is not open the
// message is silently dropped: the registry has already recorded the
// subscription, so it gets replayed on the next successful connect.
func (c *Client) Send(action registry.Action, t topic.Type, scope topic.Scope) {
	c.mu.Lock()
	conn := c.conn
	open := c.state == StateOpen
	c.mu.Unlock()

	if !open || conn == nil {
		c.logger.Debug().Str("action", string(action)).Str("type", string(t)).Msg("feed not open, message dropped")
		return
	}
	c.writeFrame(conn, action, t, scope)
}

func (c *Client) writeFrame(conn *websocket.Conn, action registry.Action, t topic.Type, scope topic.Scope) {
	data, err := encodeOutbound(action, t, scope)
	if err != nil {
		c.logger.Warn().Err(err).Str("action", string(action)).Msg("failed to encode frame")
		return
	}
	c.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		c.logger.Debug().Err(err).Str("action", string(action)).Msg("feed write failed")
	}
}

// handleFrame parses one inbound frame. Acknowledgements are logged and
// discarded; update frames are dispatched through the registry; any
// malformed or unexpected frame is dropped without error, so nothing on
// the wire can crash the dispatch loop.
func (c *Client) handleFrame(data []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		c.logger.Warn().Err(err).Int("len", len(data)).Msg("feed frame parse error")
		return
	}

	switch frame.Type {
	case "":
		c.logger.Debug().Msg("feed frame without type, dropped")
		return
	case ackSubscribed, ackUnsubscribed:
		c.logger.Debug().Str("ack", frame.Type).Msg("feed acknowledgement")
		return
	}

	t, ok := updateTopic(frame.Type)
	if !ok {
		c.logger.Debug().Str("type", frame.Type).Msg("unexpected feed frame, dropped")
		return
	}
	if frame.Subscription == nil {
		c.logger.Debug().Str("type", frame.Type).Msg("update frame without subscription, dropped")
		return
	}
	c.subs.Dispatch(t, *frame.Subscription, frame.Data)
}
