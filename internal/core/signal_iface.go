package core

import (
	"context"

	"github.com/sentinelops/ptt/internal/protocol"
)

// SignalChannel is the durable control-plane transport, independent of the
// media-carrying audio session. Owned by the adapter; the adapter must
// Close() it.
type SignalChannel interface {
	// Connect establishes the connection using the opaque identity token.
	// Fails with ErrSignalingUnavailable or ErrAuthenticationRejected.
	Connect(ctx context.Context, identityToken string) error

	// Send publishes one typed control message. While the transport is
	// down, Send fails fast with ErrSignalingUnavailable; it never buffers
	// silently (dropped leaveChannel/updatePTTState frames corrupt peers).
	Send(msg protocol.Outbound) error

	// Subscribe registers a handler for one inbound message type, invoked
	// once per message in arrival order. Multiple subscribers to the same
	// type are each invoked. The returned func removes the registration.
	Subscribe(messageType string, handler func(protocol.Inbound)) (unsubscribe func())

	// SubscribeState registers an observer of transport-level state: false
	// when the connection is lost unexpectedly, true when the automatic
	// reconnect restores it. The control plane forgets channel membership
	// across a loss, so a connected caller must re-announce itself on every
	// true transition. The returned func removes the registration.
	SubscribeState(handler func(connected bool)) (unsubscribe func())

	Close() error
}
