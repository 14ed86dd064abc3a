package coord

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/sentinelops/ptt/internal/core"
	"github.com/sentinelops/ptt/internal/domain"
	"github.com/sentinelops/ptt/internal/protocol"
)

// Connect joins the given channel, sequencing signaling-join, credential
// acquisition, device binding and audio-session join. Any failure aborts,
// rolls back completed steps, and parks the machine in StateFailed until
// Acknowledge. A call while connected is a channel switch: the old channel
// is fully disconnected before the new connect begins. A call while a
// transition is already in flight is rejected with ErrSwitchInProgress.
func (c *Coordinator) Connect(ctx context.Context, id domain.ChannelID) error {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return core.ErrSwitchInProgress
	}
	if c.state == core.StateFailed {
		c.mu.Unlock()
		return core.ErrFailedNotAcked
	}
	// Policy check happens before signaling or sessions are touched.
	if !c.policy.CanJoin(c.participant.Clearance, id) {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", core.ErrChannelNotPermitted, id)
	}
	wasConnected := c.state == core.StateConnected

	attemptCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.busy = true
	c.attemptStop = cancel
	c.attemptDone = done
	c.mu.Unlock()

	defer func() {
		cancel()
		c.mu.Lock()
		c.busy = false
		c.attemptStop = nil
		c.attemptDone = nil
		c.mu.Unlock()
		close(done)
	}()

	if wasConnected {
		c.teardown()
	}
	return c.runConnect(attemptCtx, id)
}

func (c *Coordinator) runConnect(ctx context.Context, id domain.ChannelID) error {
	c.setState(core.StateConnecting, id, nil)

	joined := false
	var sess core.AudioSession

	// fail aborts the sequence: completed steps are rolled back and the
	// machine parks in StateFailed with the specific error attached.
	fail := func(err error) error {
		c.rollback(id, joined, sess)
		c.setState(core.StateFailed, id, err)
		return err
	}
	// cancelled unwinds the same way but lands in StateDisconnected: the
	// cancel came from a disconnect/unmount, which must run to completion.
	cancelled := func() error {
		c.rollback(id, joined, sess)
		c.setState(core.StateDisconnected, "", nil)
		return core.ErrConnectCancelled
	}
	checkpoint := func() bool { return ctx.Err() != nil }

	// Step 2: announce membership on the signaling plane first, so peers
	// can attribute subsequent speaking-state messages to a known member.
	if err := c.signal.Send(protocol.JoinChannel{ChannelID: id}); err != nil {
		return fail(fmt.Errorf("publish joinChannel: %w", err))
	}
	joined = true
	if checkpoint() {
		return cancelled()
	}

	// Step 3: two-step credential exchange. Descriptor and registration
	// live only for this attempt; on any later failure they are discarded,
	// never reused.
	desc, err := c.creds.AcquireSession(ctx, id)
	if err != nil {
		if checkpoint() {
			return cancelled()
		}
		return fail(err)
	}
	reg, err := c.creds.RegisterParticipant(ctx, desc, c.participant)
	if err != nil {
		if checkpoint() {
			return cancelled()
		}
		return fail(err)
	}
	if checkpoint() {
		return cancelled()
	}

	// Step 4: resolve the devices to bind.
	input, output, err := c.devices.Selected()
	if err != nil {
		return fail(err)
	}

	// Step 5: join the media session with the fresh registration.
	sess, err = c.audio.Join(ctx, desc, reg, input, output)
	if err != nil {
		sess = nil
		if checkpoint() {
			return cancelled()
		}
		return fail(err)
	}
	if checkpoint() {
		return cancelled()
	}

	// Step 6: connected. Nothing retains desc or reg past this point.
	c.devices.BindSession(sess)
	c.mu.Lock()
	c.session = sess
	c.mu.Unlock()
	c.setState(core.StateConnected, id, nil)
	return nil
}

// rollback reverses whatever part of the connect sequence completed.
func (c *Coordinator) rollback(id domain.ChannelID, joined bool, sess core.AudioSession) {
	if sess != nil {
		if err := sess.Leave(); err != nil {
			log.Warn().Err(err).Str("module", "coord").Msg("audio leave during rollback")
		}
		c.devices.UnbindSession()
	}
	if joined {
		if err := c.signal.Send(protocol.LeaveChannel{ChannelID: id}); err != nil {
			log.Warn().Err(err).Str("module", "coord").Msg("publish leaveChannel during rollback")
		}
	}
	c.tracker.OnParticipantLeft(c.participant.ID)
}

// Disconnect leaves the current channel. Safe to call in any state: an
// in-flight connect is cancelled at its next checkpoint and unwound first.
// Every teardown step is best-effort; a stuck teardown is worse than a
// partial one, so nothing here blocks reaching StateDisconnected.
func (c *Coordinator) Disconnect() {
	c.mu.Lock()
	stop, done := c.attemptStop, c.attemptDone
	c.mu.Unlock()
	if stop != nil {
		stop()
		<-done
	}

	c.mu.Lock()
	if c.busy || c.state != core.StateConnected {
		c.mu.Unlock()
		return
	}
	c.busy = true
	c.mu.Unlock()

	c.teardown()

	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()
}

// teardown runs the disconnect sequence: leave audio, publish leaveChannel,
// clear local speaker entries, land in StateDisconnected.
func (c *Coordinator) teardown() {
	c.mu.Lock()
	sess := c.session
	c.session = nil
	id := c.channelID
	c.speaking = false
	c.mu.Unlock()

	if sess != nil {
		if err := sess.Leave(); err != nil {
			log.Warn().Err(err).Str("module", "coord").Str("channel", string(id)).Msg("audio leave")
		}
		c.devices.UnbindSession()
	}
	if id != "" {
		if err := c.signal.Send(protocol.LeaveChannel{ChannelID: id}); err != nil {
			log.Warn().Err(err).Str("module", "coord").Str("channel", string(id)).Msg("publish leaveChannel")
		}
	}
	c.tracker.OnParticipantLeft(c.participant.ID)
	c.setState(core.StateDisconnected, "", nil)
}

// resyncMembership re-announces the channel join and current speaking state
// after a signaling reconnect. The control plane dropped this connection's
// membership (and told peers via userLeft) when the socket was lost, so
// without the re-announcement the coordinator would sit in StateConnected
// publishing updates the router rejects with "not in channel".
func (c *Coordinator) resyncMembership() {
	c.mu.Lock()
	if c.state != core.StateConnected {
		c.mu.Unlock()
		return
	}
	id := c.channelID
	speaking := c.speaking
	c.mu.Unlock()

	if err := c.signal.Send(protocol.JoinChannel{ChannelID: id}); err != nil {
		log.Warn().Err(err).Str("module", "coord").Str("channel", string(id)).Msg("rejoin after reconnect")
		c.events.publish(Fault{Err: fmt.Errorf("rejoin after reconnect: %w", err)})
		return
	}
	if speaking {
		if err := c.signal.Send(protocol.UpdatePTTState{ChannelID: id, IsSpeaking: true}); err != nil {
			log.Warn().Err(err).Str("module", "coord").Str("channel", string(id)).Msg("republish speaking state")
		}
	}
	log.Info().Str("module", "coord").Str("channel", string(id)).Msg("membership re-announced after reconnect")
}

// SetSpeaking reports the local push-to-talk intent. The audio transport's
// own floor control, if any, is not this layer's concern. The state is
// applied to the local tracker optimistically; the control plane echoes it
// to peers only.
func (c *Coordinator) SetSpeaking(isSpeaking bool) error {
	c.mu.Lock()
	if c.state != core.StateConnected {
		c.mu.Unlock()
		return core.ErrNotConnected
	}
	if c.speaking == isSpeaking {
		c.mu.Unlock()
		return nil
	}
	c.speaking = isSpeaking
	id := c.channelID
	c.mu.Unlock()

	if err := c.signal.Send(protocol.UpdatePTTState{ChannelID: id, IsSpeaking: isSpeaking}); err != nil {
		c.mu.Lock()
		c.speaking = !isSpeaking
		c.mu.Unlock()
		return fmt.Errorf("publish updatePTTState: %w", err)
	}
	c.tracker.OnSpeakingStateChanged(c.participant.ID, id, isSpeaking)
	return nil
}
