package coord

import (
	"sync"

	"github.com/sentinelops/ptt/internal/core"
	"github.com/sentinelops/ptt/internal/domain"
)

// Event is the closed set of notifications a Coordinator emits. Observers
// subscribe/unsubscribe around their own mount/unmount instead of holding
// mutable callback slots on a shared singleton.
type Event interface {
	isEvent()
}

// StateChanged reports every transition of the connection state machine.
// Err is set only when State is StateFailed.
type StateChanged struct {
	State     core.ConnState
	ChannelID domain.ChannelID
	Err       error
}

// SpeakersChanged reports a new active-speaker set for one channel.
type SpeakersChanged struct {
	ChannelID domain.ChannelID
	Speakers  []domain.ParticipantID
}

// DevicesChanged reports a new device enumeration result.
type DevicesChanged struct {
	Devices []domain.Device
}

// Fault reports an out-of-band failure that did not change connection state,
// e.g. a device enumeration error or an undecodable signaling frame.
type Fault struct {
	Err error
}

func (StateChanged) isEvent()    {}
func (SpeakersChanged) isEvent() {}
func (DevicesChanged) isEvent()  {}
func (Fault) isEvent()           {}

// eventBus fans events out to subscriber channels. Slow subscribers drop
// events rather than block the coordinator.
type eventBus struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
}

func newEventBus() *eventBus {
	return &eventBus{subs: make(map[int]chan Event)}
}

func (b *eventBus) subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
		b.mu.Unlock()
	}
}

func (b *eventBus) publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (b *eventBus) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
