package core

import (
	"context"

	"github.com/sentinelops/ptt/internal/domain"
)

// AudioTransport opens media sessions against the managed conferencing
// backend. The media path itself is opaque to this layer.
type AudioTransport interface {
	// Join dials the session named by the descriptor using the
	// registration's join token and binds the given devices. Fails with
	// ErrAudioSessionJoinFailed (wrapped, backend error attached).
	Join(ctx context.Context, desc domain.SessionDescriptor, reg domain.ParticipantRegistration, input, output domain.Device) (AudioSession, error)
}

// AudioSession is one live media session. Exactly one exists per connected
// coordinator; the selected devices are exclusively bound to it.
type AudioSession interface {
	// SwitchInput/SwitchOutput rebind a device on the live session, or fail
	// with ErrDeviceSwitchUnsupported. Never a silent no-op.
	SwitchInput(dev domain.Device) error
	SwitchOutput(dev domain.Device) error

	// Leave tears the session down. Best-effort on the disconnect path:
	// callers log failures but never block on them.
	Leave() error
}
