// Package gimbalport is the narrow port the Controller uses to reach the
// gimbal's serial link. The actual framing/poller thread lives outside this
// module (spec §1 "out of scope"); this package only defines the interface
// the Controller depends on and a minimal stdlib implementation so the
// binary in cmd/flyercontrold links against something real.
package gimbalport

import (
	"encoding/binary"
	"io"
	"sync"

	"github.com/tucoflyer/flyer-controller/internal/message"
)

// Port is everything the Controller needs from the gimbal link.
type Port interface {
	SendPacket(packet []byte) error
	WriteValue(write message.GimbalValueWrite) error
	RequestValues(addrs []uint16) error
	SetMotorEnable(enable bool) error
	SendRateCommand(cmd message.GimbalCommand) error
}

// serialPort frames gimbal packets over an io.ReadWriter. No
// serial-framing library appears anywhere in the example pack, so this is a
// small hand-rolled length-prefixed framer (see DESIGN.md).
type serialPort struct {
	mu sync.Mutex
	rw io.ReadWriter
}

// NewSerialPort wraps rw (typically a serial.Port or net.Conn standing in
// for one) as a gimbalport.Port.
func NewSerialPort(rw io.ReadWriter) Port {
	return &serialPort{rw: rw}
}

func (p *serialPort) SendPacket(packet []byte) error {
	return p.writeFramed(0x01, packet)
}

func (p *serialPort) WriteValue(write message.GimbalValueWrite) error {
	buf := make([]byte, 6)
	binary.BigEndian.PutUint16(buf[0:2], write.Address)
	binary.BigEndian.PutUint32(buf[2:6], uint32(write.Value))
	return p.writeFramed(0x02, buf)
}

func (p *serialPort) RequestValues(addrs []uint16) error {
	buf := make([]byte, 2*len(addrs))
	for i, a := range addrs {
		binary.BigEndian.PutUint16(buf[i*2:i*2+2], a)
	}
	return p.writeFramed(0x03, buf)
}

func (p *serialPort) SetMotorEnable(enable bool) error {
	b := byte(0)
	if enable {
		b = 1
	}
	return p.writeFramed(0x04, []byte{b})
}

func (p *serialPort) SendRateCommand(cmd message.GimbalCommand) error {
	buf := make([]byte, 5)
	if cmd.MotorOn {
		buf[0] = 1
	}
	binary.BigEndian.PutUint16(buf[1:3], uint16(int16(cmd.Rates[0]*1000)))
	binary.BigEndian.PutUint16(buf[3:5], uint16(int16(cmd.Rates[1]*1000)))
	return p.writeFramed(0x05, buf)
}

func (p *serialPort) writeFramed(kind byte, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	hdr := make([]byte, 3)
	hdr[0] = kind
	binary.BigEndian.PutUint16(hdr[1:3], uint16(len(payload)))
	if _, err := p.rw.Write(hdr); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	_, err := p.rw.Write(payload)
	return err
}
