package core

import (
	"context"

	"github.com/sentinelops/ptt/internal/domain"
)

// CredentialClient performs the two-step exchange with the session-issuance
// service. Each step is idempotent-safe to retry on transient failure, but
// a partially completed exchange must be discarded (never resumed) before
// retrying from step one. Failures are distinct per step so the coordinator
// can pick the retry point: ErrSessionCreationFailed vs ErrRegistrationFailed.
type CredentialClient interface {
	AcquireSession(ctx context.Context, channelID domain.ChannelID) (domain.SessionDescriptor, error)
	RegisterParticipant(ctx context.Context, desc domain.SessionDescriptor, participant domain.Participant) (domain.ParticipantRegistration, error)
}
