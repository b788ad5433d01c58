//go:build !linux

package can

import (
	"context"
	"errors"

	"github.com/brutella/can"
)

// ErrNotSupported indicates SocketCAN is unavailable on this platform.
var ErrNotSupported = errors.New("SocketCAN is only supported on linux")

// BusRunner runs a SocketCAN bus.
type BusRunner struct {
	*can.Bus
}

// OpenBus opens the SocketCAN interface, e.g. can0.
func OpenBus(ifname string) (*BusRunner, error) {
	return nil, ErrNotSupported
}

// Run implements fx.Runnable.
func (b *BusRunner) Run(ctx context.Context) error {
	return ErrNotSupported
}
