package jfy

import (
	"errors"
	"fmt"
)

var (
	// ErrReadTimeout is returned when no byte arrived within the
	// transport's per-byte timeout while a reply was being assembled.
	ErrReadTimeout = errors.New("jfy: read timeout")

	// ErrBadPacket reports a structural or semantic protocol violation.
	ErrBadPacket = errors.New("jfy: bad packet")

	// ErrUnknownMode is returned for an operating mode tag outside the known table.
	ErrUnknownMode = fmt.Errorf("%w: unknown mode", ErrBadPacket)

	// ErrUnknownPhase is returned for a phase code outside the known table.
	ErrUnknownPhase = fmt.Errorf("%w: unknown phase mode", ErrBadPacket)
)

func badPacket(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrBadPacket, fmt.Sprintf(format, args...))
}
