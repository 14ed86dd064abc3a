package domain

// SessionDescriptor is the control-plane's handle for the conferencing
// instance bound to one channel. Opaque to the coordinator and never cached
// beyond the connection attempt that acquired it.
type SessionDescriptor struct {
	SessionID         string `json:"sessionId"`
	ExternalSessionID string `json:"externalSessionId"`
	Region            string `json:"region"`
	MediaPlacement    string `json:"mediaPlacement"`
}

// ParticipantRegistration binds the local client to one session. A fresh
// registration is required on every (re)join; join tokens are single-use.
type ParticipantRegistration struct {
	ParticipantID         ParticipantID `json:"participantId"`
	ExternalParticipantID string        `json:"externalParticipantId"`
	JoinToken             string        `json:"joinToken"`
}
