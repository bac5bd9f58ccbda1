package jfy

import (
	"errors"
	"fmt"
	"io"

	"github.com/goburrow/serial"
)

const (
	maxFrameSize = 256
	// header(2) + src + dst + control + function + length
	headerSize = 7
	// checksum(2) + terminator(2)
	trailerSize = 4
)

// framingPolicy captures per-command deviations from strict framing.
type framingPolicy struct {
	lengthAdjust   int
	verifyChecksum bool
}

// policyFor returns the framing policy for a reply command. Inverter
// firmware reports a set-info payload length two bytes too long and an
// unreliable checksum for that reply; every other command is strict.
func policyFor(cmd Command) framingPolicy {
	if cmd == QuerySetInfoResp {
		return framingPolicy{lengthAdjust: -2, verifyChecksum: false}
	}
	return framingPolicy{verifyChecksum: true}
}

// ReadPacket reads one frame from r a byte at a time and validates it.
// It never resynchronises: a stream that does not start with the header
// fails immediately, and a timed out read discards what was buffered.
func ReadPacket(r io.ByteReader) (*Packet, error) {
	buf := make([]byte, 0, maxFrameSize+1)
	for {
		b, err := r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, serial.ErrTimeout) || errors.Is(err, ErrReadTimeout) {
				return nil, ErrReadTimeout
			}
			return nil, fmt.Errorf("jfy: read: %w", err)
		}
		buf = append(buf, b)

		n := len(buf)
		if n == 2 && (buf[0] != header[0] || buf[1] != header[1]) {
			return nil, badPacket("invalid header")
		}
		if n >= 2 && buf[n-2] == terminator[0] && buf[n-1] == terminator[1] {
			break
		}
		if n > maxFrameSize {
			return nil, badPacket("packet too big")
		}
	}
	return parsePacket(buf)
}

func parsePacket(buf []byte) (*Packet, error) {
	if len(buf) < headerSize+trailerSize {
		return nil, badPacket("invalid header: frame of %d bytes", len(buf))
	}
	if buf[0] != header[0] || buf[1] != header[1] {
		return nil, badPacket("invalid header")
	}
	src, dst := buf[2], buf[3]
	cmd := NewCommand(buf[4], buf[5])
	policy := policyFor(cmd)

	size := int(buf[6]) + policy.lengthAdjust
	if size < 0 {
		return nil, badPacket("invalid length %d for %v", buf[6], cmd)
	}
	if headerSize+size+trailerSize > len(buf) {
		return nil, badPacket("invalid length: %d payload bytes declared, %d available",
			size, len(buf)-headerSize-trailerSize)
	}
	data := buf[headerSize : headerSize+size]
	sum := buf[headerSize+size : headerSize+size+2]
	ender := buf[headerSize+size+2 : headerSize+size+4]
	if ender[0] != terminator[0] || ender[1] != terminator[1] {
		return nil, badPacket("invalid ender")
	}

	p := NewPacket(cmd, data, WithSource(src), WithDestination(dst))
	if policy.verifyChecksum {
		if want := p.Checksum(); sum[0] != want[0] || sum[1] != want[1] {
			return nil, badPacket("invalid checksum: got 0x%02X%02X, expected 0x%02X%02X",
				sum[0], sum[1], want[0], want[1])
		}
	}
	return p, nil
}
