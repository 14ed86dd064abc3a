// Package signalws implements core.SignalChannel over a gorilla/websocket
// connection to the control-plane endpoint.
//
// Outage policy: Send writes synchronously and fails fast with
// core.ErrSignalingUnavailable once a transport loss has been detected.
// Nothing is buffered across an outage. A successful Send means the frame
// was handed to the local socket in order; a write racing a not-yet-detected
// loss can still vanish, which is why SubscribeState observers re-announce
// their state after every reconnect instead of trusting past writes.
package signalws

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/sentinelops/ptt/internal/core"
	"github.com/sentinelops/ptt/internal/protocol"
)

const (
	defaultPingPeriod   = 54 * time.Second
	defaultWriteTimeout = 5 * time.Second
	defaultReadLimit    = 32768
	defaultBackoffMin   = 500 * time.Millisecond
	defaultBackoffMax   = 30 * time.Second
)

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	// URL of the signaling endpoint, ws:// or wss://.
	URL string

	PingPeriod   time.Duration
	WriteTimeout time.Duration
	ReadLimit    int64
	BackoffMin   time.Duration
	BackoffMax   time.Duration

	// OnDecodeError receives the typed error for every inbound frame that
	// is malformed or of unknown type. Unset means log-only.
	OnDecodeError func(error)
}

func (o *Options) fillDefaults() {
	if o.PingPeriod <= 0 {
		o.PingPeriod = defaultPingPeriod
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = defaultWriteTimeout
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = defaultReadLimit
	}
	if o.BackoffMin <= 0 {
		o.BackoffMin = defaultBackoffMin
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = defaultBackoffMax
	}
}

// Client is a durable signaling connection. It owns its reconnect policy:
// on unexpected transport loss it redials with capped exponential backoff
// while subscriptions stay registered.
type Client struct {
	opts   Options
	dialer *websocket.Dialer

	stateMu   sync.RWMutex
	conn      *websocket.Conn
	connected bool
	closed    bool
	token     string

	writeMu sync.Mutex

	subMu     sync.RWMutex
	subs      map[string]map[int]func(protocol.Inbound)
	stateSubs map[int]func(bool)
	nextSub   int

	done chan struct{}
}

func New(opts Options) *Client {
	opts.fillDefaults()
	return &Client{
		opts:      opts,
		dialer:    websocket.DefaultDialer,
		subs:      make(map[string]map[int]func(protocol.Inbound)),
		stateSubs: make(map[int]func(bool)),
		done:      make(chan struct{}),
	}
}

// Connect establishes the connection and starts the read and heartbeat
// loops. The identity token is opaque here; it rides along as a query
// parameter for the endpoint's authorizer.
func (c *Client) Connect(ctx context.Context, identityToken string) error {
	c.stateMu.Lock()
	if c.closed {
		c.stateMu.Unlock()
		return fmt.Errorf("%w: client closed", core.ErrSignalingUnavailable)
	}
	if c.connected {
		c.stateMu.Unlock()
		return fmt.Errorf("%w: already connected", core.ErrSignalingUnavailable)
	}
	c.token = identityToken
	c.stateMu.Unlock()

	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}

	c.stateMu.Lock()
	c.conn = conn
	c.connected = true
	c.stateMu.Unlock()

	go c.readLoop(conn)
	go c.heartbeat()
	log.Info().Str("module", "signalws").Str("url", c.opts.URL).Msg("signaling connected")
	return nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(c.opts.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: bad endpoint url: %v", core.ErrSignalingUnavailable, err)
	}
	q := u.Query()
	q.Set("token", c.currentToken())
	u.RawQuery = q.Encode()

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: status %d", core.ErrAuthenticationRejected, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: %v", core.ErrSignalingUnavailable, err)
	}
	conn.SetReadLimit(c.opts.ReadLimit)
	return conn, nil
}

func (c *Client) currentToken() string {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.token
}

// Send publishes one control message. Synchronous and fail-fast: an error
// means the frame did not reach the transport.
func (c *Client) Send(msg protocol.Outbound) error {
	frame, err := protocol.Encode(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Action(), err)
	}

	c.stateMu.RLock()
	conn, ok := c.conn, c.connected && !c.closed
	c.stateMu.RUnlock()
	if !ok || conn == nil {
		return fmt.Errorf("%w: not connected", core.ErrSignalingUnavailable)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)); err != nil {
		return fmt.Errorf("%w: %v", core.ErrSignalingUnavailable, err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("%w: %v", core.ErrSignalingUnavailable, err)
	}
	return nil
}

// Subscribe registers a handler for one inbound message type. Handlers run
// on the read loop goroutine, once per message, in arrival order.
func (c *Client) Subscribe(messageType string, handler func(protocol.Inbound)) func() {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	set, ok := c.subs[messageType]
	if !ok {
		set = make(map[int]func(protocol.Inbound))
		c.subs[messageType] = set
	}
	set[id] = handler
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		if set, ok := c.subs[messageType]; ok {
			delete(set, id)
		}
		c.subMu.Unlock()
	}
}

// SubscribeState registers an observer of transport loss and recovery.
// Handlers run on the read loop goroutine: false when the transport drops
// unexpectedly, true once the reconnect lands. The initial Connect does not
// notify; its outcome is the return value.
func (c *Client) SubscribeState(handler func(connected bool)) func() {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.stateSubs[id] = handler
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		delete(c.stateSubs, id)
		c.subMu.Unlock()
	}
}

func (c *Client) notifyState(connected bool) {
	c.subMu.RLock()
	handlers := make([]func(bool), 0, len(c.stateSubs))
	for _, h := range c.stateSubs {
		handlers = append(handlers, h)
	}
	c.subMu.RUnlock()
	for _, h := range handlers {
		h(connected)
	}
}

// Close tears the connection down and stops reconnecting.
func (c *Client) Close() error {
	c.stateMu.Lock()
	if c.closed {
		c.stateMu.Unlock()
		return nil
	}
	c.closed = true
	c.connected = false
	conn := c.conn
	c.conn = nil
	c.stateMu.Unlock()

	close(c.done)
	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (c *Client) isClosed() bool {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.closed
}
