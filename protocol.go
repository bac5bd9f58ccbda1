// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package jfy

import (
	"fmt"
	"io"
)

// Command is a (control, function) byte pair selecting an operation and
// its reply shape. The control byte is the high byte.
type Command uint16

// Register commands (control 0x30).
const (
	OfflineQuery    Command = 0x3040
	SendAddress     Command = 0x3041
	ReRegister      Command = 0x3044
	RegisterRequest Command = 0x30BF
	AddressConfirm  Command = 0x30BE
)

// Read commands (control 0x31).
const (
	ReadDescription       Command = 0x3140
	ReadRWDescription     Command = 0x3141
	QueryNormalInfo       Command = 0x3142
	QueryInverterInfo     Command = 0x3143
	QuerySetInfo          Command = 0x3144
	ReadDescriptionResp   Command = 0x31BF
	ReadRWDescriptionResp Command = 0x31BE
	QueryNormalInfoResp   Command = 0x31BD
	QueryInverterInfoResp Command = 0x31BC
	QuerySetInfoResp      Command = 0x31BB
)

var commandNames = map[Command]string{
	OfflineQuery:          "offline query",
	SendAddress:           "send address",
	ReRegister:            "re-register",
	RegisterRequest:       "register request",
	AddressConfirm:        "address confirm",
	ReadDescription:       "read description",
	ReadRWDescription:     "read rw description",
	QueryNormalInfo:       "query normal info",
	QueryInverterInfo:     "query inverter info",
	QuerySetInfo:          "query set info",
	ReadDescriptionResp:   "read description response",
	ReadRWDescriptionResp: "read rw description response",
	QueryNormalInfoResp:   "query normal info response",
	QueryInverterInfoResp: "query inverter info response",
	QuerySetInfoResp:      "query set info response",
}

// NewCommand builds a Command from its control and function bytes.
func NewCommand(control, function byte) Command {
	return Command(uint16(control)<<8 | uint16(function))
}

// Control returns the control byte.
func (c Command) Control() byte { return byte(c >> 8) }

// Function returns the function byte.
func (c Command) Function() byte { return byte(c) }

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("command(0x%02X 0x%02X)", c.Control(), c.Function())
}

// Transporter specifies the transport layer.
//
// ReadByte blocks for at most the transport's per-byte timeout and returns
// ErrReadTimeout (or io.EOF) when no byte arrived.
type Transporter interface {
	io.Writer
	io.ByteReader
}
