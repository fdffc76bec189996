// Package botsocket is the narrow UDP port the Controller uses to reach
// winch drivers and the flyer sensor pack. The real wire codec lives outside
// this module (spec §1 "out of scope"); this package defines the Socket
// interface the Controller depends on plus a minimal UDP-backed
// implementation, JSON-framed for simplicity since no UDP codec library
// appears anywhere in the example pack (see DESIGN.md).
package botsocket

import (
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"github.com/tucoflyer/flyer-controller/internal/message"
)

// Socket is everything the Controller needs to send to the winches.
// WinchCommand must be safe to call even while Halted. A WinchCommand
// carries no enable flag; in Halted its position is the winch's own
// reported position.
type Socket interface {
	WinchCommand(id int, addr string, cmd message.WinchCommand) error
}

// UDPSocket sends one JSON-framed datagram per WinchCommand call. It is
// cloneable and safe for concurrent use: the Controller holds its own
// clone, per spec §5.
type UDPSocket struct {
	mu   sync.Mutex
	conn *net.UDPConn
}

// NewUDPSocket opens a UDP socket bound to an ephemeral local port.
func NewUDPSocket() (*UDPSocket, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		return nil, fmt.Errorf("botsocket: listen: %w", err)
	}
	return &UDPSocket{conn: conn}, nil
}

// Clone returns a handle sharing the same underlying connection — sends are
// already synchronized by the connection itself and by this type's mutex.
func (s *UDPSocket) Clone() *UDPSocket {
	return s
}

func (s *UDPSocket) WinchCommand(id int, addr string, cmd message.WinchCommand) error {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return fmt.Errorf("botsocket: resolve winch %d addr %q: %w", id, addr, err)
	}

	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("botsocket: marshal winch %d command: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.conn.WriteToUDP(payload, raddr)
	if err != nil {
		return fmt.Errorf("botsocket: send winch %d command: %w", id, err)
	}
	return nil
}

// Close releases the underlying connection.
func (s *UDPSocket) Close() error {
	return s.conn.Close()
}
