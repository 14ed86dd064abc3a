package domain

import (
	"errors"

	"github.com/google/uuid"
)

const MaxParticipantIDLen = 64

var (
	ErrParticipantIDEmpty   = errors.New("participant id empty")
	ErrParticipantIDTooLong = errors.New("participant id too long")
)

type ParticipantID string

// Participant is the local client's identity as the coordination layer sees
// it: an opaque id plus an integer clearance tier. Identity issuance happens
// elsewhere; nothing here verifies the token that produced these values.
type Participant struct {
	ID        ParticipantID `json:"id"`
	Clearance int           `json:"clearance"`
}

// NewParticipant mints a participant with a fresh random id. Used when the
// caller has no externally issued id, e.g. in dev deployments.
func NewParticipant(clearance int) Participant {
	return Participant{ID: ParticipantID(uuid.NewString()), Clearance: clearance}
}

func (p ParticipantID) Validate() error {
	if p == "" {
		return ErrParticipantIDEmpty
	}
	if len(p) > MaxParticipantIDLen {
		return ErrParticipantIDTooLong
	}
	return nil
}
