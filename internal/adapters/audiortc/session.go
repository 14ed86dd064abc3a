// Package audiortc implements core.AudioTransport as a thin client of the
// managed conferencing backend: one PeerConnection per session, joined
// against the descriptor's media placement with the registration's join
// token. Media handling beyond join/leave/device binding stays with the
// backend.
package audiortc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/sentinelops/ptt/internal/core"
	"github.com/sentinelops/ptt/internal/domain"
)

func DefaultWebRTCConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: []string{"stun:stun.l.google.com:19302"},
			},
		},
	}
}

type Transport struct {
	cfg  webrtc.Configuration
	http *http.Client
}

func NewTransport(cfg webrtc.Configuration) *Transport {
	return &Transport{
		cfg:  cfg,
		http: &http.Client{Timeout: 15 * time.Second},
	}
}

// Join dials the media session: local offer with an audio track bound to the
// selected input device, answer fetched from the descriptor's media
// placement. Every failure wraps core.ErrAudioSessionJoinFailed with the
// backend error attached verbatim.
func (t *Transport) Join(ctx context.Context, desc domain.SessionDescriptor, reg domain.ParticipantRegistration, input, output domain.Device) (core.AudioSession, error) {
	pc, err := webrtc.NewPeerConnection(t.cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrAudioSessionJoinFailed, err)
	}

	track, err := newMicTrack(input)
	if err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("%w: %v", core.ErrAudioSessionJoinFailed, err)
	}
	sender, err := pc.AddTrack(track)
	if err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("%w: %v", core.ErrAudioSessionJoinFailed, err)
	}

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("%w: %v", core.ErrAudioSessionJoinFailed, err)
	}
	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("%w: %v", core.ErrAudioSessionJoinFailed, err)
	}
	select {
	case <-gatherComplete:
	case <-ctx.Done():
		_ = pc.Close()
		return nil, fmt.Errorf("%w: %v", core.ErrAudioSessionJoinFailed, ctx.Err())
	}

	answer, err := t.exchange(ctx, desc, reg, pc.LocalDescription())
	if err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("%w: %v", core.ErrAudioSessionJoinFailed, err)
	}
	if err := pc.SetRemoteDescription(*answer); err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("%w: %v", core.ErrAudioSessionJoinFailed, err)
	}

	pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Info().Str("module", "audiortc").Str("session", desc.SessionID).Str("ice_state", s.String()).Msg("ICE state")
	})

	log.Info().Str("module", "audiortc").Str("session", desc.SessionID).Str("input", string(input.ID)).Str("output", string(output.ID)).Msg("audio session joined")
	return &session{pc: pc, sender: sender, sessionID: desc.SessionID, output: output}, nil
}

// exchange posts the local offer to the media placement and returns the
// backend's answer.
func (t *Transport) exchange(ctx context.Context, desc domain.SessionDescriptor, reg domain.ParticipantRegistration, offer *webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	body, err := json.Marshal(struct {
		ParticipantID domain.ParticipantID `json:"participantId"`
		SDP           string               `json:"sdp"`
	}{ParticipantID: reg.ParticipantID, SDP: offer.SDP})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, desc.MediaPlacement, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+reg.JoinToken)

	resp, err := t.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("media placement status %d: %s", resp.StatusCode, payload)
	}

	var out struct {
		SDP string `json:"sdp"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: out.SDP}, nil
}

func newMicTrack(input domain.Device) (*webrtc.TrackLocalStaticRTP, error) {
	return webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio",
		string(input.ID),
	)
}

type session struct {
	mu        sync.Mutex
	pc        *webrtc.PeerConnection
	sender    *webrtc.RTPSender
	sessionID string
	output    domain.Device
	closed    bool
}

// SwitchInput rebinds the outgoing track to a new capture device.
func (s *session) SwitchInput(dev domain.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return core.ErrNotConnected
	}
	track, err := newMicTrack(dev)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrDeviceSwitchUnsupported, err)
	}
	if err := s.sender.ReplaceTrack(track); err != nil {
		return fmt.Errorf("%w: %v", core.ErrDeviceSwitchUnsupported, err)
	}
	log.Info().Str("module", "audiortc").Str("session", s.sessionID).Str("device", string(dev.ID)).Msg("input rebound")
	return nil
}

// SwitchOutput fails loudly: playback routing is owned by the runtime, not
// the peer connection, so a live rebind cannot be honored here.
func (s *session) SwitchOutput(dev domain.Device) error {
	return fmt.Errorf("%w: output %s", core.ErrDeviceSwitchUnsupported, dev.ID)
}

func (s *session) Leave() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.pc.Close(); err != nil {
		return err
	}
	log.Info().Str("module", "audiortc").Str("session", s.sessionID).Msg("audio session left")
	return nil
}
