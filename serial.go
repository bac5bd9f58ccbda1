// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package jfy

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/goburrow/serial"
	"go.uber.org/zap"
)

const (
	// Default serial settings of JFY inverters.
	serialBaudRate    = 9600
	serialTimeout     = 1 * time.Second
	serialIdleTimeout = 60 * time.Second
)

// Handler implements Transporter over a serial line.
type Handler struct {
	serial.Config

	Logger *zap.Logger
	// IdleTimeout closes the port after this long without activity.
	IdleTimeout time.Duration

	mu           sync.Mutex
	port         io.ReadWriteCloser
	lastActivity time.Time
	closeTimer   *time.Timer
}

// NewHandler allocates a Handler with the inverter defaults. Timeout is
// the per-byte read timeout.
func NewHandler(address string) *Handler {
	h := &Handler{}
	h.Address = address
	h.BaudRate = serialBaudRate
	h.DataBits = 8
	h.StopBits = 1
	h.Parity = "N"
	h.Timeout = serialTimeout
	h.IdleTimeout = serialIdleTimeout
	return h
}

// Connect opens the serial port.
func (h *Handler) Connect() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.connect()
}

// connect connects to the serial port if it is not connected. Caller must hold the mutex.
func (h *Handler) connect() error {
	if h.port == nil {
		port, err := serial.Open(&h.Config)
		if err != nil {
			return fmt.Errorf("serial: open %s: %w", h.Address, err)
		}
		h.port = port
	}
	return nil
}

// Close closes the serial port.
func (h *Handler) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.close()
}

// close closes the serial port if it is connected. Caller must hold the mutex.
func (h *Handler) close() (err error) {
	if h.port != nil {
		err = h.port.Close()
		h.port = nil
	}
	return
}

// Write sends a whole frame.
func (h *Handler) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Make sure port is connected
	if err := h.connect(); err != nil {
		return 0, err
	}
	h.touch()

	h.logger().Debug("serial: sending", zap.String("frame", fmt.Sprintf("% x", p)))
	return h.port.Write(p)
}

// ReadByte reads one byte, returning ErrReadTimeout when none arrives
// within Timeout.
func (h *Handler) ReadByte() (byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.connect(); err != nil {
		return 0, err
	}
	h.touch()

	var b [1]byte
	n, err := h.port.Read(b[:])
	if err != nil {
		if errors.Is(err, serial.ErrTimeout) {
			return 0, ErrReadTimeout
		}
		return 0, err
	}
	if n == 0 {
		return 0, ErrReadTimeout
	}
	return b[0], nil
}

func (h *Handler) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

// touch records activity and starts the timer to close when idle.
func (h *Handler) touch() {
	h.lastActivity = time.Now()
	if h.IdleTimeout <= 0 {
		return
	}
	if h.closeTimer == nil {
		h.closeTimer = time.AfterFunc(h.IdleTimeout, h.closeIdle)
	} else {
		h.closeTimer.Reset(h.IdleTimeout)
	}
}

// closeIdle closes the connection if last activity is passed behind IdleTimeout.
func (h *Handler) closeIdle() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.IdleTimeout <= 0 {
		return
	}
	if idle := time.Since(h.lastActivity); idle >= h.IdleTimeout {
		h.logger().Debug("serial: closing connection due to idle timeout", zap.Duration("idle", idle))
		_ = h.close()
	}
}
