package signalws

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/sentinelops/ptt/internal/protocol"
)

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if c.isClosed() {
				log.Info().Str("module", "signalws").Msg("read loop done")
				return
			}
			log.Warn().Err(err).Str("module", "signalws").Msg("transport lost, reconnecting")
			c.markDisconnected(conn)
			c.notifyState(false)
			conn = c.reconnect()
			if conn == nil {
				return
			}
			c.notifyState(true)
			continue
		}
		c.dispatch(data)
	}
}

func (c *Client) markDisconnected(conn *websocket.Conn) {
	_ = conn.Close()
	c.stateMu.Lock()
	if c.conn == conn {
		c.conn = nil
		c.connected = false
	}
	c.stateMu.Unlock()
}

// reconnect redials with capped exponential backoff until it succeeds or
// the client is closed. Returns the fresh connection, or nil when closed.
func (c *Client) reconnect() *websocket.Conn {
	backoff := c.opts.BackoffMin
	for {
		select {
		case <-c.done:
			return nil
		case <-time.After(backoff):
		}

		ctx, cancel := context.WithTimeout(context.Background(), c.opts.WriteTimeout)
		conn, err := c.dial(ctx)
		cancel()
		if err == nil {
			c.stateMu.Lock()
			if c.closed {
				c.stateMu.Unlock()
				_ = conn.Close()
				return nil
			}
			c.conn = conn
			c.connected = true
			c.stateMu.Unlock()
			log.Info().Str("module", "signalws").Msg("signaling reconnected")
			return conn
		}
		log.Warn().Err(err).Str("module", "signalws").Dur("backoff", backoff).Msg("reconnect failed")

		backoff *= 2
		if backoff > c.opts.BackoffMax {
			backoff = c.opts.BackoffMax
		}
	}
}

func (c *Client) heartbeat() {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.Send(protocol.Ping{Timestamp: time.Now().UnixMilli()}); err != nil {
				log.Debug().Err(err).Str("module", "signalws").Msg("heartbeat skipped")
			}
		}
	}
}

func (c *Client) dispatch(data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		if c.opts.OnDecodeError != nil {
			c.opts.OnDecodeError(err)
			return
		}
		log.Warn().Err(err).Str("module", "signalws").Msg("undecodable frame")
		return
	}

	c.subMu.RLock()
	set := c.subs[msg.Type()]
	handlers := make([]func(protocol.Inbound), 0, len(set))
	for _, h := range set {
		handlers = append(handlers, h)
	}
	c.subMu.RUnlock()

	for _, h := range handlers {
		h(msg)
	}
}
