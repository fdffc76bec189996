// Package bus implements the bounded lossy-on-overflow broadcast fan-out
// (spec §4.7) and the non-blocking ControllerPort intake (spec §4.1, §9).
// Both are grounded on the teacher's channel-owning-goroutine idiom
// (tabular/server/fastview/client.go).
package bus

import (
	"sync"

	"github.com/tucoflyer/flyer-controller/internal/message"
)

// Depth is the bounded capacity of both the input queue and every
// subscriber's receive queue (spec §6).
const Depth = 1024

// Subscriber is a late-joining receiver of every message broadcast after it
// was created. It never observes messages broadcast before its creation.
type Subscriber struct {
	ch     chan message.TimestampedMessage
	parent *Broadcaster
}

// C returns the channel to receive from. Closed when the subscriber is
// removed via Close.
func (s *Subscriber) C() <-chan message.TimestampedMessage {
	return s.ch
}

// Close detaches the subscriber from the broadcaster. Safe to call more than
// once.
func (s *Subscriber) Close() {
	s.parent.remove(s)
}

// Broadcaster is a single-producer, multi-consumer fan-out. Publish never
// blocks: a subscriber whose queue is full drops the newest message rather
// than stalling the producer. Order is preserved per-subscriber.
type Broadcaster struct {
	mu      sync.Mutex
	subs    map[*Subscriber]struct{}
	onDrop  func(subscriberDropped int)
}

// NewBroadcaster returns an empty Broadcaster. onDrop, if non-nil, is
// invoked (off the publisher's goroutine is not guaranteed — callers should
// keep it cheap, e.g. a log call) whenever a subscriber's queue overflows.
func NewBroadcaster(onDrop func(int)) *Broadcaster {
	return &Broadcaster{
		subs:   make(map[*Subscriber]struct{}),
		onDrop: onDrop,
	}
}

// Subscribe allocates a new receiver that will observe every message
// published after this call returns.
func (b *Broadcaster) Subscribe() *Subscriber {
	sub := &Subscriber{
		ch:     make(chan message.TimestampedMessage, Depth),
		parent: b,
	}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

func (b *Broadcaster) remove(sub *Subscriber) {
	b.mu.Lock()
	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.ch)
	}
	b.mu.Unlock()
}

// Publish clones ts_msg to every current subscriber, never blocking. A
// subscriber whose channel is already full for this message is skipped and
// the drop is reported via onDrop.
func (b *Broadcaster) Publish(tsMsg message.TimestampedMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subs {
		select {
		case sub.ch <- tsMsg:
		default:
			if b.onDrop != nil {
				b.onDrop(1)
			}
		}
	}
}

// Len reports the current subscriber count, mainly for tests/diagnostics.
func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
