package bus

import (
	"errors"
	"time"

	"github.com/tucoflyer/flyer-controller/internal/message"
)

// ErrPortTimeout is returned by AddSubscriber when the loop does not service
// the reader request within the bounded wait — e.g. because the loop is
// wedged.
var ErrPortTimeout = errors.New("controller port: add-subscriber timed out")

const addSubscriberTimeout = 2 * time.Second

// Port is the cheap, cloneable handle collaborator threads use to talk to
// the Controller. It holds only the producer end of the input queue and
// never back-references the loop that drains it.
type Port struct {
	in chan PortItem
}

// NewPort creates the input queue and returns both ends: the Port handle for
// collaborators, and the receive channel for the event loop to drain.
func NewPort() (*Port, <-chan PortItem) {
	in := make(chan PortItem, Depth)
	return &Port{in: in}, in
}

// PortItem is the tagged variant the event loop dequeues: either a message
// to broadcast-and-handle, or a request for a new broadcast subscriber.
// Reusing the single input queue as a command channel avoids a second lock
// around loop-owned state (spec §9 design notes).
type PortItem struct {
	msg      *message.TimestampedMessage
	readerCh chan<- *Subscriber
}

// IsMessage reports whether this item carries a message (vs. a reader
// request).
func (p PortItem) IsMessage() bool { return p.msg != nil }

// IsReaderRequest reports whether this item is a request for a new
// broadcast subscriber.
func (p PortItem) IsReaderRequest() bool { return p.msg == nil }

// Message returns the carried message. Only valid when IsMessage is true.
func (p PortItem) Message() message.TimestampedMessage { return *p.msg }

// Fulfill hands the loop-allocated subscriber back to the waiting caller.
// Never blocks: the reply channel always has room for exactly one value.
func (p PortItem) Fulfill(sub *Subscriber) {
	if p.readerCh != nil {
		p.readerCh <- sub
	}
}

// Send enqueues a message for broadcast-and-handle. Non-blocking: on a full
// queue the message is dropped and ok is false so the caller can log
// "input overflow".
func (p *Port) Send(msg message.Message) (ok bool) {
	tsMsg := message.Wrap(msg)
	select {
	case p.in <- PortItem{msg: &tsMsg}:
		return true
	default:
		return false
	}
}

// AddSubscriber asks the event loop to allocate a new broadcast subscriber.
// It blocks the caller only up to addSubscriberTimeout; if the loop cannot
// service the request in time (e.g. it is wedged), it returns
// ErrPortTimeout.
func (p *Port) AddSubscriber() (*Subscriber, error) {
	reply := make(chan *Subscriber, 1)
	select {
	case p.in <- PortItem{readerCh: reply}:
	default:
		return nil, ErrPortTimeout
	}

	select {
	case sub := <-reply:
		return sub, nil
	case <-time.After(addSubscriberTimeout):
		return nil, ErrPortTimeout
	}
}
