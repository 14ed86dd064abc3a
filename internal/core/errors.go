package core

import "errors"

// Failure taxonomy of the coordination layer. Callers decide retryability
// with errors.Is; the coordinator never retries on its own.
var (
	// ErrChannelNotPermitted: policy violation. Not retryable without a
	// clearance change.
	ErrChannelNotPermitted = errors.New("channel not permitted for clearance")

	// Signaling layer. Retryable with backoff.
	ErrSignalingUnavailable   = errors.New("signaling endpoint unavailable")
	ErrAuthenticationRejected = errors.New("identity token rejected by signaling endpoint")

	// Credential layer. Retryable from the failing step only.
	ErrSessionCreationFailed = errors.New("session creation failed")
	ErrRegistrationFailed    = errors.New("participant registration failed")

	// Device layer. User-actionable.
	ErrDeviceEnumeration       = errors.New("device enumeration denied or failed")
	ErrDeviceSwitchUnsupported = errors.New("live device switch not supported by session")
	ErrNoDeviceSelected        = errors.New("no input or output device selected")

	// Transport layer, surfaced verbatim from the audio backend.
	ErrAudioSessionJoinFailed = errors.New("audio session join failed")

	// Coordinator lifecycle.
	ErrSwitchInProgress = errors.New("channel switch already in progress")
	ErrFailedNotAcked   = errors.New("previous failure not acknowledged")
	ErrConnectCancelled = errors.New("connect attempt cancelled")
	ErrNotConnected     = errors.New("not connected to a channel")
)
