package jfy

import (
	"fmt"
	"strings"
	"sync"
)

const (
	// DefaultSource is the controller's own address.
	DefaultSource byte = 0x01
	// DefaultDestination is the address a registered inverter answers on.
	DefaultDestination byte = 0x01
	// BroadcastAddress reaches devices that have not been registered yet.
	BroadcastAddress byte = 0x00

	// MaxPayloadSize is the largest payload the one-byte length field and
	// the 256 byte frame ceiling allow.
	MaxPayloadSize = 253

	ackByte byte = 0x06
)

var (
	header     = [2]byte{0xA5, 0xA5}
	terminator = [2]byte{0x0A, 0x0D}
)

// PacketOption overrides a default Packet field.
type PacketOption func(*Packet)

// WithSource sets the source address.
func WithSource(addr byte) PacketOption {
	return func(p *Packet) { p.src = addr }
}

// WithDestination sets the destination address.
func WithDestination(addr byte) PacketOption {
	return func(p *Packet) { p.dst = addr }
}

// Packet is one protocol frame. It is immutable once built; the checksum
// and wire form are computed on first use and cached.
type Packet struct {
	src  byte
	dst  byte
	cmd  Command
	data []byte

	once     sync.Once
	checksum [2]byte
	wire     []byte
}

// NewPacket builds a frame carrying data for cmd. Payloads longer than
// MaxPayloadSize violate the one-byte length field.
func NewPacket(cmd Command, data []byte, opts ...PacketOption) *Packet {
	p := &Packet{
		src:  DefaultSource,
		dst:  DefaultDestination,
		cmd:  cmd,
		data: append([]byte(nil), data...),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Command returns the (control, function) pair.
func (p *Packet) Command() Command { return p.cmd }

// Source returns the source address.
func (p *Packet) Source() byte { return p.src }

// Destination returns the destination address.
func (p *Packet) Destination() byte { return p.dst }

// Data returns a copy of the payload.
func (p *Packet) Data() []byte { return append([]byte(nil), p.data...) }

// Ack reports whether the payload is exactly the acknowledge byte.
func (p *Packet) Ack() bool {
	return len(p.data) == 1 && p.data[0] == ackByte
}

// Decode interprets the payload as text.
func (p *Packet) Decode() string { return string(p.data) }

// Checksum returns the two checksum bytes, high byte first.
func (p *Packet) Checksum() [2]byte {
	p.encode()
	return p.checksum
}

// Bytes returns the full wire form.
func (p *Packet) Bytes() []byte {
	p.encode()
	return append([]byte(nil), p.wire...)
}

func (p *Packet) encode() {
	p.once.Do(func() {
		wire := make([]byte, 0, 7+len(p.data)+4)
		wire = append(wire, header[:]...)
		wire = append(wire, p.src, p.dst, p.cmd.Control(), p.cmd.Function(), byte(len(p.data)))
		wire = append(wire, p.data...)
		p.checksum = checksum(wire)
		wire = append(wire, p.checksum[:]...)
		p.wire = append(wire, terminator[:]...)
	})
}

// checksum negates the byte sum of the sub-frame in 16 bits.
func checksum(subFrame []byte) [2]byte {
	var sum uint16
	for _, b := range subFrame {
		sum += uint16(b)
	}
	sum = ^sum + 1
	return [2]byte{byte(sum >> 8), byte(sum)}
}

func (p *Packet) String() string {
	csum := p.Checksum()
	text := make([]byte, len(p.data))
	for i, b := range p.data {
		if b < 0x20 || b > 0x7E {
			b = '?'
		}
		text[i] = b
	}
	return fmt.Sprintf("<jfy.Packet ctrl=0x%02X func=0x%02X data=[%s] hex=[%s] csum=[%s]>",
		p.cmd.Control(), p.cmd.Function(), text, hexList(p.data), hexList(csum[:]))
}

func hexList(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = fmt.Sprintf("0x%02x", v)
	}
	return strings.Join(parts, " ")
}
