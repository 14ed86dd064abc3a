// Package credhttp implements core.CredentialClient against the
// session-issuance HTTP API.
package credhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sentinelops/ptt/internal/core"
	"github.com/sentinelops/ptt/internal/domain"
)

const (
	defaultTimeout        = 30 * time.Second
	defaultConnectTimeout = 10 * time.Second
)

// defaultHTTPClient has production timeouts set; http.DefaultClient has none.
var defaultHTTPClient = &http.Client{
	Timeout: defaultTimeout,
	Transport: &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   defaultConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	},
}

// Client performs the two-step session/participant exchange. Both steps are
// plain request/response; retry decisions belong to the caller, keyed off
// the distinct sentinel per step.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New returns a credential client for the issuance endpoint. The identity
// token is attached as a bearer credential to every request.
func New(baseURL, identityToken string) *Client {
	return &Client{baseURL: baseURL, token: identityToken, http: defaultHTTPClient}
}

// WithHTTPClient overrides the underlying HTTP client. Test hook.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.http = h
	return c
}

// AcquireSession obtains or creates the conferencing session descriptor for
// a channel. Fails with core.ErrSessionCreationFailed.
func (c *Client) AcquireSession(ctx context.Context, channelID domain.ChannelID) (domain.SessionDescriptor, error) {
	req := struct {
		ChannelID domain.ChannelID `json:"channelId"`
	}{ChannelID: channelID}

	var desc domain.SessionDescriptor
	if err := c.post(ctx, "/api/sessions", req, &desc); err != nil {
		return domain.SessionDescriptor{}, fmt.Errorf("%w: %v", core.ErrSessionCreationFailed, err)
	}
	log.Debug().Str("module", "credhttp").Str("channel", string(channelID)).Str("session", desc.SessionID).Msg("session acquired")
	return desc, nil
}

// RegisterParticipant binds the local participant to the session and obtains
// a fresh join token. Fails with core.ErrRegistrationFailed.
func (c *Client) RegisterParticipant(ctx context.Context, desc domain.SessionDescriptor, participant domain.Participant) (domain.ParticipantRegistration, error) {
	req := struct {
		ParticipantID  domain.ParticipantID `json:"participantId"`
		ClearanceLevel int                  `json:"clearanceLevel"`
	}{ParticipantID: participant.ID, ClearanceLevel: participant.Clearance}

	path := "/api/sessions/" + url.PathEscape(desc.SessionID) + "/participants"
	var reg domain.ParticipantRegistration
	if err := c.post(ctx, path, req, &reg); err != nil {
		return domain.ParticipantRegistration{}, fmt.Errorf("%w: %v", core.ErrRegistrationFailed, err)
	}
	log.Debug().Str("module", "credhttp").Str("session", desc.SessionID).Str("participant", string(reg.ParticipantID)).Msg("participant registered")
	return reg, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, payload)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
