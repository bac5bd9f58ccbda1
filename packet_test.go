package jfy

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPacket_Defaults(t *testing.T) {
	p := NewPacket(QueryInverterInfo, nil)

	assert.Equal(t, DefaultSource, p.Source())
	assert.Equal(t, DefaultDestination, p.Destination())
	assert.Equal(t, QueryInverterInfo, p.Command())
	assert.Equal(t, byte(0x31), p.Command().Control())
	assert.Equal(t, byte(0x43), p.Command().Function())
	assert.Empty(t, p.Data())
	assert.Equal(t, [2]byte{0xFE, 0x40}, p.Checksum())
	assert.False(t, p.Ack())

	wire := p.Bytes()
	assert.Equal(t, []byte{0xA5, 0xA5}, wire[:2])
	assert.Equal(t, []byte{0x0A, 0x0D}, wire[len(wire)-2:])
}

func TestPacket_Bytes(t *testing.T) {
	p := NewPacket(ReadDescriptionResp, []byte{0x6D, 0x6F, 0x6F})

	want := []byte{0xA5, 0xA5, 0x01, 0x01, 0x31, 0xBF, 0x03, 0x6D, 0x6F, 0x6F, 0xFC, 0x76, 0x0A, 0x0D}
	assert.Equal(t, want, p.Bytes())
	assert.Equal(t, "moo", p.Decode())
}

func TestPacket_Options(t *testing.T) {
	p := NewPacket(ReRegister, nil, WithDestination(BroadcastAddress), WithSource(0x07))

	wire := p.Bytes()
	assert.Equal(t, byte(0x07), wire[2])
	assert.Equal(t, byte(0x00), wire[3])
	assert.Equal(t, []byte{0x30, 0x44, 0x00}, wire[4:7])
}

func TestPacket_Ack(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{"ack", []byte{0x06}, true},
		{"empty", nil, false},
		{"trailing byte", []byte{0x06, 0x00}, false},
		{"nak", []byte{0x00}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewPacket(AddressConfirm, tt.data).Ack())
		})
	}
}

func TestPacket_Immutable(t *testing.T) {
	data := []byte{0x6D, 0x6F, 0x6F}
	p := NewPacket(ReadDescriptionResp, data)
	data[0] = 0x00

	assert.Equal(t, "moo", p.Decode())

	out := p.Data()
	out[0] = 0x00
	assert.Equal(t, "moo", p.Decode())

	wire := p.Bytes()
	wire[0] = 0x00
	assert.Equal(t, byte(0xA5), p.Bytes()[0])
}

func TestChecksum_SensitiveToEveryByte(t *testing.T) {
	base := NewPacket(QueryNormalInfoResp, []byte{0x01, 0x02, 0x03}).Bytes()
	sub := base[:len(base)-4]
	want := checksum(sub)

	for i := range sub {
		changed := append([]byte(nil), sub...)
		changed[i]++
		assert.NotEqual(t, want, checksum(changed), "byte %d", i)
	}
}

func TestChecksum_ExcludesItself(t *testing.T) {
	p := NewPacket(ReadDescriptionResp, []byte("moo"))
	wire := p.Bytes()

	assert.Equal(t, p.Checksum(), checksum(wire[:len(wire)-4]))
}

func TestPacket_LengthField(t *testing.T) {
	data := make([]byte, MaxPayloadSize)
	wire := NewPacket(SendAddress, data).Bytes()

	assert.Equal(t, byte(MaxPayloadSize), wire[6])
	assert.Len(t, wire, 7+MaxPayloadSize+4)
}

func TestPacket_RoundTrip(t *testing.T) {
	// 245 is the largest payload that fits the 256 byte receive ceiling.
	for _, n := range []int{0, 1, 3, 16, 68, 122, 245} {
		data := make([]byte, n)
		for i := range data {
			data[i] = byte(i)
		}
		sent := NewPacket(QueryNormalInfoResp, data, WithSource(0x05), WithDestination(0x01))

		got, err := ReadPacket(bytes.NewReader(sent.Bytes()))
		require.NoError(t, err, "payload of %d bytes", n)
		assert.Equal(t, sent.Source(), got.Source())
		assert.Equal(t, sent.Destination(), got.Destination())
		assert.Equal(t, sent.Command(), got.Command())
		assert.Equal(t, sent.Data(), got.Data())
		assert.Equal(t, sent.Bytes(), got.Bytes())
	}
}

func TestPacket_String(t *testing.T) {
	p := NewPacket(ReadDescriptionResp, []byte{0x6D, 0x6F, 0x6F})

	assert.Equal(t, "<jfy.Packet ctrl=0x31 func=0xBF data=[moo] hex=[0x6d 0x6f 0x6f] csum=[0xfc 0x76]>", p.String())
	assert.Contains(t, NewPacket(AddressConfirm, []byte{0x06}).String(), "data=[?]")
}

func TestCommand_String(t *testing.T) {
	assert.Equal(t, "query normal info", QueryNormalInfo.String())
	assert.Equal(t, "command(0x32 0x01)", NewCommand(0x32, 0x01).String())
	assert.Equal(t, QuerySetInfoResp, NewCommand(0x31, 0xBB))
}
