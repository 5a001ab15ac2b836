// Package events is the broker's typed event bus: a bounded, lossy,
// multi-subscriber fan-out that the Orchestrator publishes task lifecycle
// transitions to, and the push endpoint (or any other consumer) subscribes
// to independently of whatever transport carries it onward.
//
// The broadcast-to-a-registered-set shape mirrors the teacher's
// RPCNotifier, generalized from a set of jrpc2 servers to a set of typed
// Go channels.
package events

import (
	"sync"
	"time"

	"github.com/warpdl/warpbroker/internal/model"
)

// Kind tags which lifecycle transition an Event carries.
type Kind string

const (
	Created         Kind = "created"
	StateChanged    Kind = "state_changed"
	ProgressUpdated Kind = "progress_updated"
	Failed          Kind = "failed"
	Completed       Kind = "completed"
	Removed         Kind = "removed"
)

// Event is a single published task-lifecycle occurrence. Task is a
// snapshot copy, not a live pointer, so subscribers never race the
// orchestrator's in-place mutations.
type Event struct {
	Kind      Kind
	Task      model.Task
	OldState  model.State
	NewState  model.State
	Reason    string
	Timestamp time.Time
}

// Progress is the raw progress-tick payload, published on its own channel
// separately from Event so a consumer that only cares about throughput
// numbers doesn't have to filter the full event stream.
type Progress struct {
	TaskID     string
	Downloaded int64
	Total      int64
	Speed      float64
	ETA        float64
	Percentage float64
}

// broadcaster fans a value out to every currently subscribed channel
// without blocking the publisher: a subscriber too slow to keep up has the
// value dropped for it rather than stalling every other subscriber.
type broadcaster[T any] struct {
	mu     sync.RWMutex
	subs   map[chan T]struct{}
	buffer int
}

func newBroadcaster[T any](buffer int) *broadcaster[T] {
	if buffer < 1 {
		buffer = 1
	}
	return &broadcaster[T]{subs: make(map[chan T]struct{}), buffer: buffer}
}

func (b *broadcaster[T]) subscribe() (<-chan T, func()) {
	ch := make(chan T, b.buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, unsubscribe
}

func (b *broadcaster[T]) publish(v T) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- v:
		default:
			// Subscriber's buffer is full; drop the value rather than
			// block the publisher or the other subscribers.
		}
	}
}

func (b *broadcaster[T]) count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Bus is the broker-wide event fabric: one broadcaster for task lifecycle
// events, one for raw progress ticks.
type Bus struct {
	events   *broadcaster[Event]
	progress *broadcaster[Progress]
}

// NewBus creates a Bus whose per-subscriber channels are buffered to size.
func NewBus(buffer int) *Bus {
	return &Bus{
		events:   newBroadcaster[Event](buffer),
		progress: newBroadcaster[Progress](buffer),
	}
}

// Publish fans e out to every event subscriber.
func (b *Bus) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	b.events.publish(e)
}

// Subscribe registers a new event listener. The returned func must be
// called to release the subscription and stop the channel from leaking.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	return b.events.subscribe()
}

// PublishProgress fans p out to every progress subscriber.
func (b *Bus) PublishProgress(p Progress) {
	b.progress.publish(p)
}

// SubscribeProgress registers a new progress listener.
func (b *Bus) SubscribeProgress() (<-chan Progress, func()) {
	return b.progress.subscribe()
}

// SubscriberCount reports how many event listeners are currently
// registered.
func (b *Bus) SubscriberCount() int {
	return b.events.count()
}
