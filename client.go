package jfy

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WriteInterval is the minimum spacing between two writes. Inverter UARTs
// drop frames that arrive closer together.
const WriteInterval = 500 * time.Millisecond

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets the logger used for frame tracing.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// WithMetrics records every exchange in m.
func WithMetrics(m *Metrics) ClientOption {
	return func(c *Client) { c.metrics = m }
}

// Client performs request/response exchanges with inverters on one line.
// It owns the transport; a single exchange (write plus read) runs at a time.
type Client struct {
	transporter Transporter
	logger      *zap.Logger
	metrics     *Metrics

	mu        sync.Mutex
	lastWrite time.Time
	now       func() time.Time
	sleep     func(time.Duration)
}

// NewClient creates a new client on the given transport.
func NewClient(transporter Transporter, opts ...ClientOption) *Client {
	c := &Client{
		transporter: transporter,
		logger:      zap.NewNop(),
		now:         time.Now,
		sleep:       time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// send writes request and returns the reply, failing unless it carries
// the expected command.
func (c *Client) send(op string, request *Packet, expect Command) (reply *Packet, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	started := c.now()
	defer func() { c.metrics.observe(op, c.now().Sub(started), err) }()

	log := c.logger.With(zap.String("op", op), zap.String("exchange", uuid.NewString()))
	if err = c.write(log, request); err != nil {
		return nil, err
	}
	reply, err = ReadPacket(c.transporter)
	if err != nil {
		log.Debug("read failed", zap.Error(err))
		return nil, err
	}
	log.Debug("received", zap.Stringer("packet", reply))
	if reply.Command() != expect {
		return nil, badPacket("invalid %s response: %v", op, reply.Command())
	}
	return reply, nil
}

// sendNil writes request without waiting for a reply.
func (c *Client) sendNil(op string, request *Packet) (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	started := c.now()
	defer func() { c.metrics.observe(op, c.now().Sub(started), err) }()

	return c.write(c.logger.With(zap.String("op", op), zap.String("exchange", uuid.NewString())), request)
}

func (c *Client) write(log *zap.Logger, request *Packet) error {
	c.wait()
	log.Debug("sending", zap.Stringer("packet", request))
	if _, err := c.transporter.Write(request.Bytes()); err != nil {
		return fmt.Errorf("jfy: write: %w", err)
	}
	c.lastWrite = c.now()
	return nil
}

// wait blocks until WriteInterval has passed since the last write.
func (c *Client) wait() {
	if c.lastWrite.IsZero() {
		return
	}
	if elapsed := c.now().Sub(c.lastWrite); elapsed < WriteInterval {
		c.sleep(WriteInterval - elapsed)
	}
}

// ReRegister asks every device on the line to drop its address and
// register again. No reply is read.
func (c *Client) ReRegister() error {
	return c.sendNil("re-register", NewPacket(ReRegister, nil, WithDestination(BroadcastAddress)))
}

// OfflineQuery asks an unregistered device for its serial number.
func (c *Client) OfflineQuery() (string, error) {
	reply, err := c.send("offline", NewPacket(OfflineQuery, nil, WithDestination(BroadcastAddress)), RegisterRequest)
	if err != nil {
		return "", err
	}
	return reply.Decode(), nil
}

// Register assigns address to the device with the given serial number.
func (c *Client) Register(serial string, address byte) error {
	data := append([]byte(serial), address)
	if len(data) > MaxPayloadSize {
		return fmt.Errorf("jfy: serial number of %d bytes does not fit in one frame", len(serial))
	}
	reply, err := c.send("send address", NewPacket(SendAddress, data, WithDestination(BroadcastAddress)), AddressConfirm)
	if err != nil {
		return err
	}
	if !reply.Ack() {
		return badPacket("no ack")
	}
	return nil
}

// Description reads the description of the device at address.
func (c *Client) Description(address byte) (string, error) {
	reply, err := c.send("description", NewPacket(ReadDescription, nil, WithDestination(address)), ReadDescriptionResp)
	if err != nil {
		return "", err
	}
	return reply.Decode(), nil
}

// RWDescription reads the read/write description of the device at address.
func (c *Client) RWDescription(address byte) (string, error) {
	reply, err := c.send("rw description", NewPacket(ReadRWDescription, nil, WithDestination(address)), ReadRWDescriptionResp)
	if err != nil {
		return "", err
	}
	return reply.Decode(), nil
}

// QueryNormalInfo reads the live telemetry of the device at address.
func (c *Client) QueryNormalInfo(address byte) (*NormalInfo, error) {
	reply, err := c.send("query normal info", NewPacket(QueryNormalInfo, nil, WithDestination(address)), QueryNormalInfoResp)
	if err != nil {
		return nil, err
	}
	return DecodeNormalInfo(reply.data)
}

// QueryInverterInfo reads the identity of the device at address.
func (c *Client) QueryInverterInfo(address byte) (*InverterInfo, error) {
	reply, err := c.send("inverter info", NewPacket(QueryInverterInfo, nil, WithDestination(address)), QueryInverterInfoResp)
	if err != nil {
		return nil, err
	}
	return DecodeInverterInfo(reply.data)
}

// QuerySetInfo reads the operating limits of the device at address.
func (c *Client) QuerySetInfo(address byte) (*SetInfo, error) {
	reply, err := c.send("set info", NewPacket(QuerySetInfo, nil, WithDestination(address)), QuerySetInfoResp)
	if err != nil {
		return nil, err
	}
	return DecodeSetInfo(reply.data)
}
