package signald

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/sentinelops/ptt/internal/domain"
	"github.com/sentinelops/ptt/internal/protocol"
)

var ErrBackpressure = errors.New("backpressure")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsConn struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func (c *wsConn) TrySend(frame []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- frame:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// Controller routes signaling actions between connected clients.
type Controller struct {
	Registry *Registry
	Catalog  domain.Catalog
}

func NewController(reg *Registry, catalog domain.Catalog) *Controller {
	return &Controller{Registry: reg, Catalog: catalog}
}

// HandleSignal upgrades the request and runs the connection's pumps. The
// identity token was validated by middleware; here it doubles as the
// participant id, opaque end to end.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	pid := domain.ParticipantID(c.GetString("identity_token"))
	id := ConnID(uuid.NewString())
	log.Info().Str("module", "signald").Str("conn", string(id)).Str("participant", string(pid)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signald").Msg("ws upgrade")
		return
	}

	conn := &wsConn{
		conn: ws,
		send: make(chan []byte, 32),
	}

	ctx, cancel := context.WithCancel(ctx)
	ctl.Registry.Bind(id, pid, conn, cancel)

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, id, conn)
}

func (ctl *Controller) writePump(ctx context.Context, c *wsConn) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Warn().Err(err).Str("module", "signald").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, id ConnID, c *wsConn) {
	defer func() {
		ctl.onDisconnect(id)
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Info().Err(err).Str("module", "signald").Str("conn", string(id)).Msg("readPump closing")
				return
			}
			ctl.route(id, c, data)
		}
	}
}

// onDisconnect is the presence signal for abrupt socket loss: peers get a
// userLeft even when the client never sent leaveChannel, so their speaker
// trackers drop the departed participant.
func (ctl *Controller) onDisconnect(id ConnID) {
	pid, ch, ok := ctl.Registry.Unbind(id)
	if !ok || ch == "" {
		return
	}
	ctl.broadcast(ch, id, protocol.UserLeft{UserID: pid, ChannelID: ch})
	log.Info().Str("module", "signald").Str("participant", string(pid)).Str("channel", string(ch)).Msg("abrupt disconnect, presence broadcast")
}

func (ctl *Controller) route(id ConnID, c *wsConn, data []byte) {
	var env struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signald").Msg("bad json")
		ctl.sendError(c, "bad_payload")
		return
	}

	switch env.Action {
	case protocol.ActionJoinChannel:
		ctl.handleJoin(id, c, data)
	case protocol.ActionLeaveChannel:
		ctl.handleLeave(id, c, data)
	case protocol.ActionUpdatePTTState:
		ctl.handlePTTState(id, c, data)
	case protocol.ActionPing:
		ctl.handlePing(c)
	default:
		log.Warn().Str("module", "signald").Str("action", env.Action).Msg("unknown action")
		ctl.sendError(c, "unknown action: "+env.Action)
	}
}

func (ctl *Controller) handleJoin(id ConnID, c *wsConn, data []byte) {
	var p protocol.JoinChannel
	if err := json.Unmarshal(data, &p); err != nil || p.ChannelID == "" {
		ctl.sendError(c, "bad_payload")
		return
	}
	if _, ok := ctl.Catalog.Lookup(p.ChannelID); !ok {
		ctl.sendError(c, "unknown channel")
		return
	}

	pid, _, ok := ctl.Registry.Get(id)
	if !ok {
		return
	}
	previous, _ := ctl.Registry.SetChannel(id, p.ChannelID)
	if previous != "" && previous != p.ChannelID {
		ctl.broadcast(previous, id, protocol.UserLeft{UserID: pid, ChannelID: previous})
	}
	ctl.broadcast(p.ChannelID, id, protocol.UserJoined{UserID: pid, ChannelID: p.ChannelID})
	log.Info().Str("module", "signald").Str("participant", string(pid)).Str("channel", string(p.ChannelID)).Msg("joined channel")
}

func (ctl *Controller) handleLeave(id ConnID, c *wsConn, data []byte) {
	var p protocol.LeaveChannel
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(c, "bad_payload")
		return
	}
	pid, ch, ok := ctl.Registry.Get(id)
	if !ok || ch == "" {
		return
	}
	ctl.Registry.SetChannel(id, "")
	ctl.broadcast(ch, id, protocol.UserLeft{UserID: pid, ChannelID: ch})
	log.Info().Str("module", "signald").Str("participant", string(pid)).Str("channel", string(ch)).Msg("left channel")
}

func (ctl *Controller) handlePTTState(id ConnID, c *wsConn, data []byte) {
	var p protocol.UpdatePTTState
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(c, "bad_payload")
		return
	}
	pid, ch, ok := ctl.Registry.Get(id)
	if !ok || ch == "" || ch != p.ChannelID {
		ctl.sendError(c, "not in channel")
		return
	}
	ctl.broadcast(ch, id, protocol.PTTStateUpdate{UserID: pid, ChannelID: ch, IsSpeaking: p.IsSpeaking})
}

func (ctl *Controller) handlePing(c *wsConn) {
	ctl.sendJSON(c, map[string]any{
		"type":      protocol.TypePong,
		"timestamp": time.Now().UnixMilli(),
	})
}

// broadcast fans a message out to every connection in the channel except the
// sender. Slow consumers are skipped, not blocked on.
func (ctl *Controller) broadcast(ch domain.ChannelID, from ConnID, msg protocol.Inbound) {
	frame, err := encodeInbound(msg)
	if err != nil {
		log.Error().Err(err).Str("module", "signald").Msg("broadcast marshal")
		return
	}
	for _, snap := range ctl.Registry.MembersOf(ch) {
		if snap.ID == from {
			continue
		}
		if err := snap.Conn.TrySend(frame); err != nil {
			log.Warn().Err(err).Str("module", "signald").Str("conn", string(snap.ID)).Msg("broadcast dropped")
		}
	}
}

func encodeInbound(msg protocol.Inbound) ([]byte, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, err
	}
	fields["type"] = msg.Type()
	return json.Marshal(fields)
}

func (ctl *Controller) sendError(c *wsConn, msg string) {
	ctl.sendJSON(c, map[string]any{
		"type":  protocol.TypeError,
		"error": msg,
	})
}

func (ctl *Controller) sendJSON(c *wsConn, v any) {
	frame, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signald").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(frame)
}
