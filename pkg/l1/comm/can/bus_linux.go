//go:build linux

package can

import (
	"context"
	"fmt"
	"net"

	"github.com/brutella/can"

	fx "github.com/robotalks/motorlink/pkg/framework"
)

// BusRunner runs a SocketCAN bus.
type BusRunner struct {
	*can.Bus
}

// OpenBus opens the SocketCAN interface, e.g. can0.
func OpenBus(ifname string) (*BusRunner, error) {
	iface, err := net.InterfaceByName(ifname)
	if err != nil {
		return nil, fmt.Errorf("CAN interface %s: %w", ifname, err)
	}
	conn, err := can.NewReadWriteCloserForInterface(iface)
	if err != nil {
		return nil, fmt.Errorf("open CAN %s: %w", ifname, err)
	}
	return &BusRunner{Bus: can.NewBus(conn)}, nil
}

// Run implements fx.Runnable.
func (b *BusRunner) Run(ctx context.Context) error {
	return fx.RunWithContextCancel(ctx, func() { b.Disconnect() }, b.ConnectAndPublish)
}
