// Package telemetry fans out the Controller's broadcast messages to
// websocket-connected observers. Adapted from the teacher's generic
// websocket-publisher client (tabular/server/fastview/client.go): the same
// serialized-read/write socket and errgroup-orchestrated ping/pong, but
// subscribing directly to a bus.Subscriber instead of a generic update
// channel, since every observer here wants the identical event stream
// rather than a per-client idempotent view.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	channerics "github.com/niceyeti/channerics/channels"
	"golang.org/x/sync/errgroup"

	"github.com/tucoflyer/flyer-controller/internal/bus"
	"github.com/tucoflyer/flyer-controller/internal/message"
)

const (
	writeWait      = 1 * time.Second
	pingResolution = 200 * time.Millisecond
	pongWait       = pingResolution * 4
)

var upgrader = websocket.Upgrader{}

// ErrPongDeadlineExceeded indicates the peer stopped answering pings.
var ErrPongDeadlineExceeded = errors.New("telemetry: client disconnect, pong deadline exceeded")

// Publisher streams every broadcast message to one websocket-connected
// observer, from the moment it connects (spec §4.7 "late-joining
// subscribers").
type Publisher struct {
	sub *bus.Subscriber
	ws  *websock
}

// Upgrade accepts a websocket connection, registers a broadcast subscriber,
// and returns a Publisher ready to Sync. The caller's Port must stay alive
// for the Publisher's whole lifetime.
func Upgrade(port *bus.Port, w http.ResponseWriter, r *http.Request) (*Publisher, error) {
	sub, err := port.AddSubscriber()
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return nil, fmt.Errorf("telemetry: add subscriber: %w", err)
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		sub.Close()
		return nil, fmt.Errorf("telemetry: upgrade: %w", err)
	}

	return &Publisher{sub: sub, ws: newWebSocket(conn)}, nil
}

// Sync runs until the peer disconnects, an unexpected error occurs, or ctx
// is canceled, publishing every message the subscriber receives and
// answering liveness pings. It always closes the underlying subscriber
// before returning.
func (p *Publisher) Sync(ctx context.Context) error {
	defer p.sub.Close()

	group, groupCtx := errgroup.WithContext(ctx)
	go func() {
		// Closing the connection unblocks readMessages' pending read once
		// ctx is canceled or any goroutine fails.
		<-groupCtx.Done()
		p.ws.Conn().Close()
	}()
	group.Go(func() error { return p.readMessages(groupCtx) })
	group.Go(func() error { return p.pingPong(groupCtx) })
	group.Go(func() error { return p.publish(groupCtx) })
	return group.Wait()
}

func (p *Publisher) pingPong(ctx context.Context) error {
	pong := make(chan struct{})
	defer close(pong)
	p.ws.Conn().SetPongHandler(func(string) error {
		select {
		case pong <- struct{}{}:
		case <-ctx.Done():
		}
		return nil
	})

	pinger := channerics.NewTicker(ctx.Done(), pingResolution)
	lastPong := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pinger:
			if time.Since(lastPong) > pongWait {
				return ErrPongDeadlineExceeded
			}
			if err := p.ping(); err != nil {
				return err
			}
		case <-pong:
			lastPong = time.Now()
		}
	}
}

func (p *Publisher) ping() error {
	return p.ws.Write(func(ws *websocket.Conn) error {
		return ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
	})
}

// readMessages drains client-originated frames. Observers are not expected
// to send anything; any frame they send is read and discarded, and the
// first read error ends the loop.
func (p *Publisher) readMessages(ctx context.Context) error {
	for {
		if err := p.ws.Read(func(ws *websocket.Conn) error {
			_, _, err := ws.ReadMessage()
			return err
		}); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
}

func (p *Publisher) publish(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case tsMsg, ok := <-p.sub.C():
			if !ok {
				return nil
			}
			if err := p.write(tsMsg); err != nil {
				return err
			}
		}
	}
}

func (p *Publisher) write(tsMsg message.TimestampedMessage) error {
	return p.ws.Write(func(ws *websocket.Conn) error {
		if err := ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return fmt.Errorf("telemetry: set write deadline: %w", err)
		}
		return ws.WriteJSON(tsMsg)
	})
}

// websock serializes reads and writes to the underlying connection, whose
// requirement is at most one concurrent reader and one concurrent writer.
type websock struct {
	readSem  chan struct{}
	writeSem chan struct{}
	ws       *websocket.Conn
}

func newWebSocket(ws *websocket.Conn) *websock {
	return &websock{
		readSem:  make(chan struct{}, 1),
		writeSem: make(chan struct{}, 1),
		ws:       ws,
	}
}

func (s *websock) Conn() *websocket.Conn { return s.ws }

func (s *websock) Read(fn func(*websocket.Conn) error) error {
	s.readSem <- struct{}{}
	defer func() { <-s.readSem }()
	return fn(s.ws)
}

func (s *websock) Write(fn func(*websocket.Conn) error) error {
	s.writeSem <- struct{}{}
	defer func() { <-s.writeSem }()
	return fn(s.ws)
}
