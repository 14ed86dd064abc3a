// Package signald is the dev control plane: the WebSocket signaling router
// plus the session-issuance API. It mirrors the production message-router
// semantics: action routing, per-channel fan-out excluding the sender, and
// presence broadcasts when a socket drops without a leaveChannel.
package signald

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/sentinelops/ptt/internal/domain"
)

// ConnID identifies one live socket. One participant may hold several.
type ConnID string

type connEntry struct {
	Participant domain.ParticipantID
	Channel     domain.ChannelID
	Conn        *wsConn
	Cancel      context.CancelFunc
}

type connSnap struct {
	ID          ConnID
	Participant domain.ParticipantID
	Conn        *wsConn
}

// Registry is the mutable connection table: which socket belongs to which
// participant, and which channel it has joined.
type Registry struct {
	mu     sync.RWMutex
	byConn map[ConnID]*connEntry
}

func NewRegistry() *Registry {
	return &Registry{byConn: make(map[ConnID]*connEntry)}
}

func (r *Registry) Bind(id ConnID, pid domain.ParticipantID, conn *wsConn, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byConn[id] = &connEntry{Participant: pid, Conn: conn, Cancel: cancel}
	log.Info().Str("module", "signald.registry").Str("conn", string(id)).Str("participant", string(pid)).Msg("connection bound")
}

// Unbind removes the connection and returns its last known entry so the
// caller can broadcast presence for the channel it was in.
func (r *Registry) Unbind(id ConnID) (domain.ParticipantID, domain.ChannelID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byConn[id]
	if !ok {
		return "", "", false
	}
	delete(r.byConn, id)
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "signald.registry").Str("conn", string(id)).Msg("connection unbound")
	return e.Participant, e.Channel, true
}

// SetChannel moves the connection to a channel and returns the channel it
// was in before, if any.
func (r *Registry) SetChannel(id ConnID, ch domain.ChannelID) (previous domain.ChannelID, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, found := r.byConn[id]
	if !found {
		return "", false
	}
	previous = e.Channel
	e.Channel = ch
	return previous, true
}

func (r *Registry) Get(id ConnID) (domain.ParticipantID, domain.ChannelID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byConn[id]
	if !ok {
		return "", "", false
	}
	return e.Participant, e.Channel, true
}

// MembersOf snapshots every connection currently joined to the channel.
func (r *Registry) MembersOf(ch domain.ChannelID) []connSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]connSnap, 0, len(r.byConn))
	for id, e := range r.byConn {
		if e.Channel == ch && ch != "" {
			out = append(out, connSnap{ID: id, Participant: e.Participant, Conn: e.Conn})
		}
	}
	return out
}
