package app

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sentinelops/ptt/internal/domain"
)

// SpeakerEntry records one participant's current speaking intent on one
// channel. Ephemeral, derived entirely from signaling; never persisted.
type SpeakerEntry struct {
	ParticipantID domain.ParticipantID
	ChannelID     domain.ChannelID
	ObservedAt    time.Time
}

// SpeakerTracker maintains, per channel, the set of participants currently
// speaking, fed by signaling messages from all participants. Threadsafe.
type SpeakerTracker struct {
	mu       sync.RWMutex
	byChan   map[domain.ChannelID]map[domain.ParticipantID]SpeakerEntry
	onChange func(channelID domain.ChannelID, speakers []domain.ParticipantID)

	now func() time.Time
}

func NewSpeakerTracker() *SpeakerTracker {
	return &SpeakerTracker{
		byChan: make(map[domain.ChannelID]map[domain.ParticipantID]SpeakerEntry),
		now:    time.Now,
	}
}

// OnChange registers a single change callback invoked after every mutation
// that altered a channel's active set. Set once before feeding events.
func (t *SpeakerTracker) OnChange(fn func(channelID domain.ChannelID, speakers []domain.ParticipantID)) {
	t.mu.Lock()
	t.onChange = fn
	t.mu.Unlock()
}

// OnSpeakingStateChanged applies one speaking-state event. A repeated true
// for an already-speaking participant is a no-op, not a duplicate entry.
func (t *SpeakerTracker) OnSpeakingStateChanged(pid domain.ParticipantID, cid domain.ChannelID, isSpeaking bool) {
	t.mu.Lock()
	set, ok := t.byChan[cid]
	if !ok {
		set = make(map[domain.ParticipantID]SpeakerEntry)
		t.byChan[cid] = set
	}
	_, present := set[pid]
	changed := false
	if isSpeaking && !present {
		set[pid] = SpeakerEntry{ParticipantID: pid, ChannelID: cid, ObservedAt: t.now()}
		changed = true
	}
	if !isSpeaking && present {
		delete(set, pid)
		changed = true
	}
	var fn func(domain.ChannelID, []domain.ParticipantID)
	var snapshot []domain.ParticipantID
	if changed && t.onChange != nil {
		fn = t.onChange
		snapshot = t.activeLocked(cid)
	}
	t.mu.Unlock()

	if fn != nil {
		fn(cid, snapshot)
	}
}

// OnParticipantLeft removes the participant from every channel's set
// unconditionally, regardless of their last known speaking state.
func (t *SpeakerTracker) OnParticipantLeft(pid domain.ParticipantID) {
	type change struct {
		cid      domain.ChannelID
		speakers []domain.ParticipantID
	}
	var changes []change

	t.mu.Lock()
	for cid, set := range t.byChan {
		if _, ok := set[pid]; ok {
			delete(set, pid)
			if t.onChange != nil {
				changes = append(changes, change{cid: cid, speakers: t.activeLocked(cid)})
			}
		}
	}
	fn := t.onChange
	t.mu.Unlock()

	if fn != nil {
		for _, ch := range changes {
			fn(ch.cid, ch.speakers)
		}
	}
	log.Debug().Str("module", "app.speakers").Str("participant", string(pid)).Msg("participant left, entries cleared")
}

// ActiveSpeakers returns the channel's current speaker set, sorted for
// stable observation. Pure read.
func (t *SpeakerTracker) ActiveSpeakers(cid domain.ChannelID) []domain.ParticipantID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.activeLocked(cid)
}

// Reset drops every entry. Used on coordinator teardown.
func (t *SpeakerTracker) Reset() {
	t.mu.Lock()
	t.byChan = make(map[domain.ChannelID]map[domain.ParticipantID]SpeakerEntry)
	t.mu.Unlock()
}

func (t *SpeakerTracker) activeLocked(cid domain.ChannelID) []domain.ParticipantID {
	set := t.byChan[cid]
	out := make([]domain.ParticipantID, 0, len(set))
	for pid := range set {
		out = append(out, pid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
