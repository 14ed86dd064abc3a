package app

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sentinelops/ptt/internal/domain"
)

func TestSpeakerTracker_RepeatedTrueIsNoOp(t *testing.T) {
	tracker := NewSpeakerTracker()

	tracker.OnSpeakingStateChanged("p1", "main", true)
	tracker.OnSpeakingStateChanged("p1", "main", true)

	got := tracker.ActiveSpeakers("main")
	assert.Equal(t, []domain.ParticipantID{"p1"}, got)
}

func TestSpeakerTracker_StartStop(t *testing.T) {
	tracker := NewSpeakerTracker()

	tracker.OnSpeakingStateChanged("p1", "main", true)
	tracker.OnSpeakingStateChanged("p2", "main", true)
	assert.Equal(t, []domain.ParticipantID{"p1", "p2"}, tracker.ActiveSpeakers("main"))

	tracker.OnSpeakingStateChanged("p1", "main", false)
	assert.Equal(t, []domain.ParticipantID{"p2"}, tracker.ActiveSpeakers("main"))

	// stop for a non-speaking participant changes nothing
	tracker.OnSpeakingStateChanged("p3", "main", false)
	assert.Equal(t, []domain.ParticipantID{"p2"}, tracker.ActiveSpeakers("main"))
}

func TestSpeakerTracker_ParticipantLeftClearsEverywhere(t *testing.T) {
	tracker := NewSpeakerTracker()

	tracker.OnSpeakingStateChanged("p1", "main", true)
	tracker.OnSpeakingStateChanged("p1", "emergency", true)
	tracker.OnSpeakingStateChanged("p2", "main", true)

	// p1 leaves while its last event was isSpeaking=true
	tracker.OnParticipantLeft("p1")

	assert.Equal(t, []domain.ParticipantID{"p2"}, tracker.ActiveSpeakers("main"))
	assert.Empty(t, tracker.ActiveSpeakers("emergency"))
}

func TestSpeakerTracker_ChannelsAreIndependent(t *testing.T) {
	tracker := NewSpeakerTracker()

	tracker.OnSpeakingStateChanged("p1", "main", true)
	assert.Empty(t, tracker.ActiveSpeakers("emergency"))
	assert.Empty(t, tracker.ActiveSpeakers("unknown"))
}

func TestSpeakerTracker_OnChangeFires(t *testing.T) {
	tracker := NewSpeakerTracker()

	type change struct {
		channel  domain.ChannelID
		speakers []domain.ParticipantID
	}
	var changes []change
	tracker.OnChange(func(cid domain.ChannelID, speakers []domain.ParticipantID) {
		changes = append(changes, change{channel: cid, speakers: speakers})
	})

	tracker.OnSpeakingStateChanged("p1", "main", true)
	tracker.OnSpeakingStateChanged("p1", "main", true) // no-op, no callback
	tracker.OnSpeakingStateChanged("p1", "main", false)

	assert.Equal(t, []change{
		{channel: "main", speakers: []domain.ParticipantID{"p1"}},
		{channel: "main", speakers: []domain.ParticipantID{}},
	}, changes)
}

func TestSpeakerTracker_Reset(t *testing.T) {
	tracker := NewSpeakerTracker()
	tracker.OnSpeakingStateChanged("p1", "main", true)
	tracker.Reset()
	assert.Empty(t, tracker.ActiveSpeakers("main"))
}
