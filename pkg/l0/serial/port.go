// Package serial connects UART links of motor controllers to the
// protocol engine.
package serial

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/golang/glog"
	"go.bug.st/serial"

	fx "github.com/robotalks/motorlink/pkg/framework"
)

// Defaults of a motor controller UART.
const (
	DefaultBaudRate       = 19200
	DefaultReadTimeout    = 10 * time.Millisecond
	DefaultReconnectDelay = time.Second
)

var (
	// ErrNotOpen indicates the port is not open.
	ErrNotOpen = errors.New("port not open")
)

// Ingester accepts bytes received on a link.
type Ingester interface {
	Ingest(link int, data []byte, at time.Time) error
}

// Opener opens the device behind a port.
type Opener func(path string, mode *serial.Mode) (io.ReadWriteCloser, error)

// OpenDevice opens a serial device with go.bug.st/serial.
func OpenDevice(path string, mode *serial.Mode) (io.ReadWriteCloser, error) {
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}
	if err = port.SetReadTimeout(DefaultReadTimeout); err != nil {
		port.Close()
		return nil, err
	}
	if err = port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, err
	}
	return port, nil
}

// Mode builds the 8N1 mode at baud rate.
func Mode(baud int) *serial.Mode {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	return &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

// Port pumps bytes between one link and a device.
type Port struct {
	Link     int
	Path     string
	Mode     *serial.Mode
	Ingester Ingester
	Open     Opener
	// Clock stamps received bytes, time.Now if nil.
	Clock fx.Clock
	// ReconnectDelay is the wait before reopening a failed device.
	// Negative disables reopening.
	ReconnectDelay time.Duration

	dev  io.ReadWriteCloser
	lock sync.Mutex
}

// NewPort creates a Port for a device path.
func NewPort(link int, path string, baud int, ingester Ingester) *Port {
	return &Port{
		Link:           link,
		Path:           path,
		Mode:           Mode(baud),
		Ingester:       ingester,
		Open:           OpenDevice,
		ReconnectDelay: DefaultReconnectDelay,
	}
}

// NewPortWith creates a Port over an already open stream.
func NewPortWith(link int, rw io.ReadWriter, ingester Ingester) *Port {
	return &Port{
		Link:           link,
		Path:           fmt.Sprintf("link%d", link),
		Ingester:       ingester,
		Open:           openedStream(rw),
		ReconnectDelay: -1,
	}
}

// Name implements fx.Named.
func (p *Port) Name() string {
	return p.Path
}

// Write sends bytes to the controller.
func (p *Port) Write(data []byte) (int, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.dev == nil {
		return 0, ErrNotOpen
	}
	return p.dev.Write(data)
}

// Run implements fx.Runnable. It keeps reopening the device until ctx
// is done unless reopening is disabled.
func (p *Port) Run(ctx context.Context) error {
	for {
		err := p.runOnce(ctx)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if p.ReconnectDelay < 0 {
			return err
		}
		glog.Warningf("%s: %v, reopen in %s", p.Path, err, p.ReconnectDelay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.ReconnectDelay):
		}
	}
}

func (p *Port) runOnce(ctx context.Context) error {
	dev, err := p.Open(p.Path, p.Mode)
	if err != nil {
		return fmt.Errorf("open %s: %w", p.Path, err)
	}
	p.lock.Lock()
	p.dev = dev
	p.lock.Unlock()
	glog.Infof("%s: opened for link %d", p.Path, p.Link)

	defer func() {
		p.lock.Lock()
		p.dev = nil
		p.lock.Unlock()
		dev.Close()
	}()

	chunkCh, errCh := make(chan []byte), make(chan error, 1)
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go p.readLoop(subCtx, dev, chunkCh, errCh)
	loopCtl := fx.LoopCtlFrom(ctx)
	for {
		select {
		case chunk := <-chunkCh:
			if err := p.Ingester.Ingest(p.Link, chunk, p.now()); err != nil {
				return err
			}
			if loopCtl != nil {
				loopCtl.TriggerNext()
			}
		case err := <-errCh:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *Port) readLoop(ctx context.Context, r io.Reader, chunkCh chan []byte, errCh chan error) {
	buf := make([]byte, 64)
	for {
		n, err := r.Read(buf)
		if err != nil {
			errCh <- err
			return
		}
		// a read timeout returns no bytes
		if n == 0 {
			if ctx.Err() != nil {
				return
			}
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

func (p *Port) now() time.Time {
	if p.Clock != nil {
		return p.Clock()
	}
	return time.Now()
}

type nopCloser struct {
	io.ReadWriter
}

func (nopCloser) Close() error {
	return nil
}

func openedStream(rw io.ReadWriter) Opener {
	return func(string, *serial.Mode) (io.ReadWriteCloser, error) {
		if rwc, ok := rw.(io.ReadWriteCloser); ok {
			return rwc, nil
		}
		return nopCloser{rw}, nil
	}
}

// List enumerates serial devices on the system.
func List() ([]string, error) {
	return serial.GetPortsList()
}
