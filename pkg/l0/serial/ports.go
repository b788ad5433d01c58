package serial

import (
	"fmt"

	fx "github.com/robotalks/motorlink/pkg/framework"
	"github.com/robotalks/motorlink/pkg/l0/motorlink"
)

// Ports routes transmissions of the Manager to the port of each link.
type Ports struct {
	ports map[int]*Port
}

// NewPorts creates Ports.
func NewPorts(ports ...*Port) *Ports {
	p := &Ports{ports: make(map[int]*Port)}
	p.Add(ports...)
	return p
}

// Add adds ports, replacing any port on the same link.
func (p *Ports) Add(ports ...*Port) *Ports {
	for _, port := range ports {
		p.ports[port.Link] = port
	}
	return p
}

// Port returns the port of a link, nil if none.
func (p *Ports) Port(link int) *Port {
	return p.ports[link]
}

// Transmit implements motorlink.Transmitter.
func (p *Ports) Transmit(link int, data []byte) error {
	port := p.ports[link]
	if port == nil {
		return fmt.Errorf("%w: %d", motorlink.ErrInvalidLink, link)
	}
	_, err := port.Write(data)
	return err
}

// AddToLoop implements fx.LoopAdder.
func (p *Ports) AddToLoop(loop *fx.Loop) {
	for _, port := range p.ports {
		loop.AddRunnable(port)
	}
}
