package jfy

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// Mode is the inverter operating mode.
type Mode int

const (
	ModeWait Mode = iota
	ModeNormal
	ModeWarning
	ModeError
)

func (m Mode) String() string {
	switch m {
	case ModeWait:
		return "wait"
	case ModeNormal:
		return "normal"
	case ModeWarning:
		return "warning"
	case ModeError:
		return "error"
	}
	return "mode(" + strconv.Itoa(int(m)) + ")"
}

// MarshalText renders the mode by name.
func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func parseMode(hi, lo byte) (Mode, error) {
	if hi == 0 {
		switch lo {
		case 0:
			return ModeWait, nil
		case 1:
			return ModeNormal, nil
		case 2:
			return ModeWarning, nil
		case 3:
			return ModeError, nil
		}
	}
	return 0, fmt.Errorf("%w 0x%02X 0x%02X", ErrUnknownMode, hi, lo)
}

func parsePhases(code byte) (int, error) {
	switch code {
	case 0x31:
		return 1, nil
	case 0x33:
		return 3, nil
	}
	return 0, fmt.Errorf("%w 0x%02X", ErrUnknownPhase, code)
}

// Power readings.
type Power struct {
	// Total energy generated, Wh.
	Total float64 `yaml:"total"`
	// Today's energy generated, Wh.
	Today float64 `yaml:"today"`
	// Output power now, W.
	Now uint16 `yaml:"now"`
}

// Fault holds the values latched at the last fault. Only larger replies
// carry it.
type Fault struct {
	Temperature float64    `yaml:"temperature"`
	Voltage     [3]float64 `yaml:"voltage"`
}

// NormalInfo is the decoded reply to QueryNormalInfo.
type NormalInfo struct {
	Temperature float64    `yaml:"temperature"`
	Mode        Mode       `yaml:"mode"`
	Voltage     [3]float64 `yaml:"voltage"`
	Current     [3]float64 `yaml:"current"`
	Hours       uint32     `yaml:"hours"`
	Power       Power      `yaml:"power"`
	Fault       *Fault     `yaml:"fault,omitempty"`
}

// InverterInfo is the decoded reply to QueryInverterInfo.
type InverterInfo struct {
	Phases         int     `yaml:"phases"`
	Rating         int     `yaml:"rating"`
	Version        string  `yaml:"version"`
	Model          string  `yaml:"model"`
	Manufacturer   string  `yaml:"manufacturer"`
	Serial         string  `yaml:"serial"`
	NominalVoltage float64 `yaml:"nominal_voltage"`
}

// Range is a min/max limit pair.
type Range struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// PVVoltage holds the PV input thresholds, V.
type PVVoltage struct {
	Startup  float64 `yaml:"startup"`
	HighStop float64 `yaml:"high_stop"`
	LowStop  float64 `yaml:"low_stop"`
}

// Impedance holds the grid impedance limits.
type Impedance struct {
	Max   float64 `yaml:"max"`
	Delta float64 `yaml:"delta"`
}

// Grid holds the grid connection limits.
type Grid struct {
	Voltage   Range     `yaml:"voltage"`
	Frequency Range     `yaml:"frequency"`
	Impedance Impedance `yaml:"impedance"`
}

// SetInfo is the decoded reply to QuerySetInfo.
type SetInfo struct {
	PVVoltage   PVVoltage `yaml:"pv_voltage"`
	Grid        Grid      `yaml:"grid"`
	PowerMax    float64   `yaml:"power_max"`
	PowerFactor float64   `yaml:"power_factor"`
	ConnectTime float64   `yaml:"connect_time"`
}

const (
	normalInfoSize   = 28
	faultBlockAfter  = 68
	faultBlockSize   = 122
	inverterInfoSize = 64
	setInfoSize      = 24
)

// Offsets of the additional channels reported by larger multi-string
// inverters. They have not been validated against hardware, so
// DecodeNormalInfo leaves them alone; see DecodeExtendedChannels.
var (
	extendedVoltageOffsets = [...]int{28, 30, 32, 40, 42, 44}
	extendedCurrentOffsets = [...]int{34, 36, 38, 46, 48, 50}
)

func short(data []byte, offset int) uint16 {
	return binary.BigEndian.Uint16(data[offset:])
}

func long(data []byte, offset int) uint32 {
	return binary.BigEndian.Uint32(data[offset:])
}

func scaled(data []byte, offset int, divisor float64) float64 {
	return float64(short(data, offset)) / divisor
}

func requireSize(data []byte, n int, what string) error {
	if len(data) < n {
		return badPacket("%s payload too short: %d bytes, need %d", what, len(data), n)
	}
	return nil
}

// DecodeNormalInfo decodes a QueryNormalInfoResp payload.
func DecodeNormalInfo(data []byte) (*NormalInfo, error) {
	if err := requireSize(data, normalInfoSize, "normal info"); err != nil {
		return nil, err
	}
	mode, err := parseMode(data[24], data[25])
	if err != nil {
		return nil, err
	}
	info := &NormalInfo{
		Temperature: scaled(data, 0, 10),
		Mode:        mode,
		Voltage:     [3]float64{scaled(data, 2, 10), scaled(data, 4, 10), scaled(data, 6, 10)},
		Current:     [3]float64{scaled(data, 8, 10), scaled(data, 10, 10), scaled(data, 12, 10)},
		Hours:       long(data, 18),
		Power: Power{
			Total: float64(long(data, 14)) / 10 * 1000,
			Today: scaled(data, 26, 100) * 1000,
			Now:   short(data, 22),
		},
	}
	if len(data) > faultBlockAfter {
		if err := requireSize(data, faultBlockSize, "normal info fault block"); err != nil {
			return nil, err
		}
		info.Fault = &Fault{
			Temperature: scaled(data, 114, 10),
			Voltage:     [3]float64{scaled(data, 116, 10), scaled(data, 118, 10), scaled(data, 120, 10)},
		}
	}
	return info, nil
}

// DecodeExtendedChannels decodes the extra voltage and current channels
// of larger inverters from a QueryNormalInfoResp payload. It is not part of
// DecodeNormalInfo until the offsets are confirmed on real hardware.
func DecodeExtendedChannels(data []byte) (voltage, current []float64, err error) {
	if err = requireSize(data, extendedCurrentOffsets[len(extendedCurrentOffsets)-1]+2, "extended channel"); err != nil {
		return nil, nil, err
	}
	for _, off := range extendedVoltageOffsets {
		voltage = append(voltage, scaled(data, off, 10))
	}
	for _, off := range extendedCurrentOffsets {
		current = append(current, scaled(data, off, 10))
	}
	return voltage, current, nil
}

// DecodeInverterInfo decodes a QueryInverterInfoResp payload.
func DecodeInverterInfo(data []byte) (*InverterInfo, error) {
	if err := requireSize(data, inverterInfoSize, "inverter info"); err != nil {
		return nil, err
	}
	phases, err := parsePhases(data[0])
	if err != nil {
		return nil, err
	}
	return &InverterInfo{
		Phases:         phases,
		Rating:         leadingInt(data[1:7]),
		Version:        string(data[7:12]),
		Model:          trimText(data[12:28]),
		Manufacturer:   trimText(data[28:44]),
		Serial:         trimText(data[44:60]),
		NominalVoltage: float64(leadingInt(data[60:64])) / 10,
	}, nil
}

type setInfoField struct {
	dst     *float64
	offset  int
	divisor float64
}

// setInfoFields maps each SetInfo field to its payload offset and divisor.
func setInfoFields(s *SetInfo) []setInfoField {
	return []setInfoField{
		{&s.PVVoltage.Startup, 0, 10},
		{&s.ConnectTime, 2, 1},
		{&s.PVVoltage.HighStop, 4, 10},
		{&s.PVVoltage.LowStop, 6, 10},
		{&s.Grid.Voltage.Min, 8, 10},
		{&s.Grid.Voltage.Max, 10, 10},
		{&s.Grid.Frequency.Min, 12, 100},
		{&s.Grid.Frequency.Max, 14, 100},
		{&s.Grid.Impedance.Max, 16, 1000},
		{&s.Grid.Impedance.Delta, 18, 1},
		{&s.PowerMax, 20, 1},
		{&s.PowerFactor, 22, 100},
	}
}

// DecodeSetInfo decodes a QuerySetInfoResp payload.
func DecodeSetInfo(data []byte) (*SetInfo, error) {
	if err := requireSize(data, setInfoSize, "set info"); err != nil {
		return nil, err
	}
	s := &SetInfo{}
	for _, f := range setInfoFields(s) {
		*f.dst = scaled(data, f.offset, f.divisor)
	}
	return s, nil
}

func trimText(b []byte) string {
	return strings.Trim(string(b), " \t\r\n\v\f\x00")
}

// leadingInt parses the leading decimal digits of an ASCII field,
// yielding 0 when there are none.
func leadingInt(b []byte) int {
	s := strings.TrimLeft(string(b), " \t\x00")
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}
