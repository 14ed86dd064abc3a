// Package protocol defines the control-plane message shapes exchanged over
// the signaling socket. The set of variants is closed: anything the decoder
// does not recognize is a typed error, never a silently ignored frame.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sentinelops/ptt/internal/domain"
)

// Outbound actions (client -> control plane).
const (
	ActionJoinChannel    = "joinChannel"
	ActionLeaveChannel   = "leaveChannel"
	ActionUpdatePTTState = "updatePTTState"
	ActionPing           = "ping"
)

// Inbound types (control plane -> client).
const (
	TypePTTStateUpdate = "pttStateUpdate"
	TypeUserJoined     = "userJoined"
	TypeUserLeft       = "userLeft"
	TypePong           = "pong"
	TypeError          = "error"
)

var (
	ErrUnknownMessage   = errors.New("unknown signaling message type")
	ErrMalformedMessage = errors.New("malformed signaling message")
)

// Outbound is implemented by every message the client may publish.
type Outbound interface {
	Action() string
}

type JoinChannel struct {
	ChannelID domain.ChannelID `json:"channelId"`
}

type LeaveChannel struct {
	ChannelID domain.ChannelID `json:"channelId"`
}

type UpdatePTTState struct {
	ChannelID  domain.ChannelID `json:"channelId"`
	IsSpeaking bool             `json:"isSpeaking"`
}

type Ping struct {
	Timestamp int64 `json:"timestamp"`
}

func (JoinChannel) Action() string    { return ActionJoinChannel }
func (LeaveChannel) Action() string   { return ActionLeaveChannel }
func (UpdatePTTState) Action() string { return ActionUpdatePTTState }
func (Ping) Action() string           { return ActionPing }

// Encode renders an outbound message as one wire frame with the action tag
// folded into the payload object.
func Encode(m Outbound) ([]byte, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, err
	}
	fields["action"] = m.Action()
	return json.Marshal(fields)
}

// Inbound is implemented by every message the control plane may deliver.
type Inbound interface {
	Type() string
}

type PTTStateUpdate struct {
	UserID     domain.ParticipantID `json:"userId"`
	ChannelID  domain.ChannelID     `json:"channelId"`
	IsSpeaking bool                 `json:"isSpeaking"`
}

type UserJoined struct {
	UserID    domain.ParticipantID `json:"userId"`
	ChannelID domain.ChannelID     `json:"channelId"`
}

type UserLeft struct {
	UserID    domain.ParticipantID `json:"userId"`
	ChannelID domain.ChannelID     `json:"channelId"`
}

type Pong struct {
	Timestamp int64 `json:"timestamp"`
}

type ServerError struct {
	Message string `json:"error"`
}

func (PTTStateUpdate) Type() string { return TypePTTStateUpdate }
func (UserJoined) Type() string     { return TypeUserJoined }
func (UserLeft) Type() string       { return TypeUserLeft }
func (Pong) Type() string           { return TypePong }
func (ServerError) Type() string    { return TypeError }

// Decode parses one inbound frame into its variant.
func Decode(data []byte) (Inbound, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	var (
		msg Inbound
		err error
	)
	switch env.Type {
	case TypePTTStateUpdate:
		var m PTTStateUpdate
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeUserJoined:
		var m UserJoined
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeUserLeft:
		var m UserLeft
		err = json.Unmarshal(data, &m)
		msg = m
	case TypePong:
		var m Pong
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeError:
		var m ServerError
		err = json.Unmarshal(data, &m)
		msg = m
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return msg, nil
}
