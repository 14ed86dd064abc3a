// Package coord orchestrates the push-to-talk layer: one connection state
// machine per local client, composing the signaling channel, the session
// credential client, the audio transport and the device registry. The two
// transports fail independently; the coordinator keeps them consistent by
// sequencing every connect strictly and rolling back completed steps on any
// failure.
package coord

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/sentinelops/ptt/internal/app"
	"github.com/sentinelops/ptt/internal/core"
	"github.com/sentinelops/ptt/internal/domain"
	"github.com/sentinelops/ptt/internal/protocol"
)

// Config carries the coordinator's collaborators. All transports are
// injected as interfaces; tests substitute fakes.
type Config struct {
	Signal        core.SignalChannel
	Credentials   core.CredentialClient
	Audio         core.AudioTransport
	Devices       *app.DeviceRegistry
	Policy        app.AccessPolicy
	Participant   domain.Participant
	IdentityToken string
}

func (c Config) validate() error {
	switch {
	case c.Signal == nil:
		return errors.New("coord: nil signal channel")
	case c.Credentials == nil:
		return errors.New("coord: nil credential client")
	case c.Audio == nil:
		return errors.New("coord: nil audio transport")
	case c.Devices == nil:
		return errors.New("coord: nil device registry")
	}
	return c.Participant.ID.Validate()
}

// Coordinator is an explicit, instantiable object whose lifecycle is owned
// by its caller. One coordinator, one local client, at most one active
// channel connection at a time.
type Coordinator struct {
	signal      core.SignalChannel
	creds       core.CredentialClient
	audio       core.AudioTransport
	devices     *app.DeviceRegistry
	policy      app.AccessPolicy
	participant domain.Participant
	token       string

	tracker *app.SpeakerTracker
	events  *eventBus

	mu          sync.Mutex
	state       core.ConnState
	lastErr     error
	channelID   domain.ChannelID
	session     core.AudioSession
	speaking    bool
	busy        bool
	attemptStop context.CancelFunc
	attemptDone chan struct{}

	unsubscribes []func()
	started      bool
}

func New(cfg Config) (*Coordinator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	c := &Coordinator{
		signal:      cfg.Signal,
		creds:       cfg.Credentials,
		audio:       cfg.Audio,
		devices:     cfg.Devices,
		policy:      cfg.Policy,
		participant: cfg.Participant,
		token:       cfg.IdentityToken,
		tracker:     app.NewSpeakerTracker(),
		events:      newEventBus(),
		state:       core.StateDisconnected,
	}
	return c, nil
}

// Subscribe returns a feed of coordinator events plus its unsubscribe func.
// The feed is dropped, not blocked, when the subscriber falls behind.
func (c *Coordinator) Subscribe(buffer int) (<-chan Event, func()) {
	return c.events.subscribe(buffer)
}

// State returns the current connection state, the channel it refers to, and
// the failure attached to a StateFailed.
func (c *Coordinator) State() (core.ConnState, domain.ChannelID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.channelID, c.lastErr
}

// AvailableChannels recomputes the policy-filtered catalog for the local
// participant's clearance.
func (c *Coordinator) AvailableChannels() []domain.Channel {
	return app.AvailableChannels(c.participant.Clearance, c.policy.Catalog)
}

// ActiveSpeakers is a pure read of the channel's current speaker set.
func (c *Coordinator) ActiveSpeakers(id domain.ChannelID) []domain.ParticipantID {
	return c.tracker.ActiveSpeakers(id)
}

// Start connects the signaling channel, wires inbound dispatch into the
// speaker tracker, and performs the initial device enumeration. Device
// failures are surfaced as a Fault event rather than aborting start: the
// signaling plane is usable without devices, joining a channel is not.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return errors.New("coord: already started")
	}
	c.started = true
	c.mu.Unlock()

	if err := c.signal.Connect(ctx, c.token); err != nil {
		c.mu.Lock()
		c.started = false
		c.mu.Unlock()
		return fmt.Errorf("coord: signaling connect: %w", err)
	}

	c.tracker.OnChange(func(cid domain.ChannelID, speakers []domain.ParticipantID) {
		c.events.publish(SpeakersChanged{ChannelID: cid, Speakers: speakers})
	})
	c.devices.OnChange(func(devices []domain.Device) {
		c.events.publish(DevicesChanged{Devices: devices})
	})

	c.unsubscribes = append(c.unsubscribes,
		c.signal.Subscribe(protocol.TypePTTStateUpdate, func(m protocol.Inbound) {
			if u, ok := m.(protocol.PTTStateUpdate); ok {
				c.tracker.OnSpeakingStateChanged(u.UserID, u.ChannelID, u.IsSpeaking)
			}
		}),
		c.signal.Subscribe(protocol.TypeUserLeft, func(m protocol.Inbound) {
			if u, ok := m.(protocol.UserLeft); ok {
				c.tracker.OnParticipantLeft(u.UserID)
			}
		}),
		c.signal.Subscribe(protocol.TypeError, func(m protocol.Inbound) {
			if e, ok := m.(protocol.ServerError); ok {
				c.events.publish(Fault{Err: fmt.Errorf("coord: control plane: %s", e.Message)})
			}
		}),
		c.signal.SubscribeState(func(connected bool) {
			if connected {
				c.resyncMembership()
			}
		}),
	)

	if _, err := c.devices.Refresh(ctx); err != nil {
		log.Warn().Err(err).Str("module", "coord").Msg("initial device enumeration failed")
		c.events.publish(Fault{Err: err})
	}
	return nil
}

// Stop tears the coordinator down: any live or in-flight connection is
// disconnected, subscriptions released, the signaling channel closed.
func (c *Coordinator) Stop() {
	c.Disconnect()

	c.mu.Lock()
	unsubs := c.unsubscribes
	c.unsubscribes = nil
	c.started = false
	c.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	if err := c.signal.Close(); err != nil {
		log.Warn().Err(err).Str("module", "coord").Msg("signaling close")
	}
	c.tracker.Reset()
	c.events.closeAll()
}

// Acknowledge clears a StateFailed. The failed state never auto-retries;
// the UI displays the attached error and the user decides.
func (c *Coordinator) Acknowledge() {
	c.mu.Lock()
	if c.state != core.StateFailed {
		c.mu.Unlock()
		return
	}
	c.state = core.StateDisconnected
	c.lastErr = nil
	c.channelID = ""
	c.mu.Unlock()
	c.publishState()
}

func (c *Coordinator) setState(s core.ConnState, id domain.ChannelID, err error) {
	c.mu.Lock()
	c.state = s
	c.channelID = id
	c.lastErr = err
	c.mu.Unlock()
	c.publishState()
}

func (c *Coordinator) publishState() {
	s, id, err := c.State()
	log.Info().Str("module", "coord").Str("state", s.String()).Str("channel", string(id)).Err(err).Msg("state change")
	c.events.publish(StateChanged{State: s, ChannelID: id, Err: err})
}
