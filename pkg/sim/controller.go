// Package sim emulates motor controller boards speaking the UART
// protocol, for tests and bench runs without hardware.
package sim

import (
	"bytes"
	"context"
	"io"
	"math"
	"sync"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/motorlink/pkg/framework"
	"github.com/robotalks/motorlink/pkg/l0/motorlink"
)

// Controller defaults
const (
	DefaultFrameInterval     = 20 * time.Millisecond
	DefaultHandshakeInterval = 200 * time.Millisecond
	// DefaultBatchSize is the number of frames a legacy controller sends
	// after each data request.
	DefaultBatchSize = 20
)

// Functions sent in rotation while streaming.
var Functions = []byte{
	motorlink.FuncMotion,
	motorlink.FuncPower,
	motorlink.FuncMotion,
	motorlink.FuncController,
	motorlink.FuncMotion,
	motorlink.FuncMotorThermo,
}

// ControllerState is the emulated controller state.
type ControllerState int

// Controller states
const (
	ControllerHandshaking ControllerState = iota
	ControllerWaitRequest
	ControllerStreaming
)

// Controller emulates a controller board over a byte stream.
type Controller struct {
	Variant *motorlink.Variant
	Motor   *Motor
	// Clock drives the motor, time.Now if nil.
	Clock             fx.Clock
	FrameInterval     time.Duration
	HandshakeInterval time.Duration
	BatchSize         int

	rw     io.ReadWriter
	rx     []byte
	state  ControllerState
	budget int
	next   int
	sent   uint64
	lock   sync.Mutex
}

// NewController creates a Controller speaking variant over rw.
func NewController(v *motorlink.Variant, rw io.ReadWriter) *Controller {
	return &Controller{
		Variant:           v,
		Motor:             NewMotor(),
		FrameInterval:     DefaultFrameInterval,
		HandshakeInterval: DefaultHandshakeInterval,
		BatchSize:         DefaultBatchSize,
		rw:                rw,
	}
}

// State returns the emulated state.
func (c *Controller) State() ControllerState {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.state
}

// FramesSent returns the number of data frames written.
func (c *Controller) FramesSent() uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.sent
}

// Restart drops back to handshaking as after a power cycle.
func (c *Controller) Restart() {
	c.lock.Lock()
	c.state, c.rx = ControllerHandshaking, nil
	c.lock.Unlock()
}

// Run implements fx.Runnable.
func (c *Controller) Run(ctx context.Context) error {
	chunkCh, errCh := make(chan []byte), make(chan error, 1)
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go c.readLoop(subCtx, chunkCh, errCh)

	frameTicker := time.NewTicker(c.frameInterval())
	defer frameTicker.Stop()
	handshakeTicker := time.NewTicker(c.handshakeInterval())
	defer handshakeTicker.Stop()
	if err := c.handshake(); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			return err
		case chunk := <-chunkCh:
			c.receive(chunk)
		case <-handshakeTicker.C:
			if err := c.handshake(); err != nil {
				return err
			}
		case <-frameTicker.C:
			if err := c.stream(); err != nil {
				return err
			}
		}
	}
}

func (c *Controller) readLoop(ctx context.Context, chunkCh chan []byte, errCh chan error) {
	buf := make([]byte, 64)
	for {
		n, err := c.rw.Read(buf)
		if err != nil {
			errCh <- err
			return
		}
		if n == 0 {
			continue
		}
		chunk := make([]byte, n)
		copy(chunk, buf[:n])
		select {
		case chunkCh <- chunk:
		case <-ctx.Done():
			return
		}
	}
}

// receive looks for the handshake response and data requests.
func (c *Controller) receive(chunk []byte) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.rx = append(c.rx, chunk...)
	v := c.Variant
	for {
		if c.state == ControllerHandshaking {
			if pos := bytes.Index(c.rx, v.HandshakeResponse); pos >= 0 {
				c.rx = c.rx[pos+len(v.HandshakeResponse):]
				if len(v.PeriodicRequest) > 0 {
					c.state = ControllerWaitRequest
				} else {
					c.state = ControllerStreaming
				}
				glog.V(2).Infof("sim %s: paired", v)
				continue
			}
		}
		if req := v.PeriodicRequest; len(req) > 0 && c.state != ControllerHandshaking {
			if pos := bytes.Index(c.rx, req); pos >= 0 {
				c.rx = c.rx[pos+len(req):]
				c.state, c.budget = ControllerStreaming, c.batchSize()
				continue
			}
		}
		break
	}
	// only the tail may still become a match
	if keep := 2 * motorlink.FrameLength; len(c.rx) > keep {
		c.rx = append(c.rx[:0], c.rx[len(c.rx)-keep:]...)
	}
}

func (c *Controller) handshake() error {
	c.lock.Lock()
	state := c.state
	c.lock.Unlock()
	if state != ControllerHandshaking {
		return nil
	}
	_, err := c.rw.Write(c.Variant.HandshakeRequest)
	return err
}

func (c *Controller) stream() error {
	c.lock.Lock()
	if c.state != ControllerStreaming {
		c.lock.Unlock()
		return nil
	}
	if len(c.Variant.PeriodicRequest) > 0 {
		if c.budget <= 0 {
			c.state = ControllerWaitRequest
			c.lock.Unlock()
			return nil
		}
		c.budget--
	}
	fn := Functions[c.next%len(Functions)]
	c.next++
	c.sent++
	c.lock.Unlock()
	_, err := c.rw.Write(EncodeFrame(c.Variant, fn, c.Motor.Sample(c.now())))
	return err
}

func (c *Controller) now() time.Time {
	if c.Clock != nil {
		return c.Clock()
	}
	return time.Now()
}

func (c *Controller) frameInterval() time.Duration {
	if c.FrameInterval > 0 {
		return c.FrameInterval
	}
	return DefaultFrameInterval
}

func (c *Controller) handshakeInterval() time.Duration {
	if c.HandshakeInterval > 0 {
		return c.HandshakeInterval
	}
	return DefaultHandshakeInterval
}

func (c *Controller) batchSize() int {
	if c.BatchSize > 0 {
		return c.BatchSize
	}
	return DefaultBatchSize
}

// EncodeFrame encodes a motor sample as the frame of function fn.
func EncodeFrame(v *motorlink.Variant, fn byte, s MotorState) []byte {
	payload := make([]byte, motorlink.FrameLength-4)
	put := func(off int, val uint16) {
		v.Order.PutUint16(payload[off-2:], val)
	}
	switch fn {
	case motorlink.FuncMotion:
		payload[2] = s.Gear&0x03 | rollCode(s.Roll)<<4
		put(6, uint16(math.Min(math.Abs(s.RPM)*4, math.MaxUint16)))
		put(8, uint16(s.Faults))
	case motorlink.FuncPower:
		put(2, uint16(math.Round(s.Voltage*10)))
		put(4, uint16(int16(math.Round(s.Current*4))))
		put(12, s.Throttle)
	case motorlink.FuncController:
		payload[0] = byte(s.ControllerTemp)
	case motorlink.FuncMotorThermo:
		payload[0] = byte(s.MotorTemp)
	}
	return v.EncodeFrame(fn, payload)
}

func rollCode(r motorlink.Roll) byte {
	switch r {
	case motorlink.RollReverse:
		return 0x01
	case motorlink.RollForward:
		return 0x03
	}
	return 0x00
}
