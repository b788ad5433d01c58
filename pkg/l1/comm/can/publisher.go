package can

import (
	"time"

	"github.com/brutella/can"
	"github.com/golang/glog"

	fx "github.com/robotalks/motorlink/pkg/framework"
	"github.com/robotalks/motorlink/pkg/l0/motorlink"
)

// Bus sends frames, *can.Bus implements it.
type Bus interface {
	Publish(can.Frame) error
}

// Source provides link snapshots, *motorlink.Manager implements it.
type Source interface {
	Links() int
	Snapshot(int) (motorlink.Snapshot, error)
}

// Publisher broadcasts timer objects and link events on a CAN bus.
type Publisher struct {
	Bus    Bus
	Source Source
	Info   BlockInfo

	started time.Time
	due     map[uint32]time.Time
	sent    uint64
	failed  uint64
	failing bool
}

// NewPublisher creates a Publisher.
func NewPublisher(bus Bus, src Source) *Publisher {
	return &Publisher{Bus: bus, Source: src, Info: DefaultBlockInfo}
}

// Frame builds a CAN frame from a type byte and fields.
func Frame(id uint32, typ byte, fields []byte) can.Frame {
	f := can.Frame{ID: id}
	f.Data[0] = typ
	n := copy(f.Data[1:], fields)
	f.Length = uint8(1 + n)
	return f
}

// Stats returns sent and failed frame counts.
func (p *Publisher) Stats() (sent, failed uint64) {
	return p.sent, p.failed
}

// Control implements fx.Controller.
func (p *Publisher) Control(cc fx.ControlContext) error {
	now := cc.Time()
	if p.due == nil {
		p.started = now
		p.due = make(map[uint32]time.Time)
	}
	var health bool
	cc.Messages().Range(func(msg fx.Message) bool {
		switch msg := msg.(type) {
		case *motorlink.StateChange:
			health = true
		case *motorlink.LinkError:
			p.publish(Frame(IDBlockError, TypeEvent, ErrorPayload(msg)))
		}
		return true
	})
	if health {
		p.publish(Frame(IDBlockHealth, TypeEvent, HealthPayload(p.states())))
	}

	if p.isDue(IDBlockInfo, InfoPeriod, now) {
		p.publish(Frame(IDBlockInfo, TypeTimer, p.Info.Encode(now.Sub(p.started))))
	}
	var tm *Telemetry
	for _, obj := range Objects {
		if !p.isDue(obj.ID, obj.Period, now) {
			continue
		}
		if tm == nil {
			tm = p.telemetry()
		}
		p.publish(Frame(obj.ID, TypeTimer, obj.Encode(tm)))
	}
	return nil
}

// isDue reports whether object id is due and schedules the next time.
func (p *Publisher) isDue(id uint32, period time.Duration, now time.Time) bool {
	due, ok := p.due[id]
	if ok && now.Before(due) {
		return false
	}
	next := due.Add(period)
	if !ok || next.Before(now) {
		next = now.Add(period)
	}
	p.due[id] = next
	return true
}

func (p *Publisher) telemetry() *Telemetry {
	var tm Telemetry
	for n := range tm {
		if s, err := p.Source.Snapshot(n + 1); err == nil {
			tm[n] = s.Telemetry
		}
	}
	return &tm
}

func (p *Publisher) states() []motorlink.State {
	states := make([]motorlink.State, p.Source.Links())
	for n := range states {
		if s, err := p.Source.Snapshot(n + 1); err == nil {
			states[n] = s.State
		}
	}
	return states
}

func (p *Publisher) publish(f can.Frame) {
	if err := p.Bus.Publish(f); err != nil {
		p.failed++
		if !p.failing {
			glog.Warningf("CAN publish %#04x: %v", f.ID, err)
		}
		p.failing = true
		return
	}
	if p.failing {
		glog.Info("CAN publish recovered")
	}
	p.sent++
	p.failing = false
}

// AddToLoop implements fx.LoopAdder.
func (p *Publisher) AddToLoop(loop *fx.Loop) {
	loop.AddController(fx.PrLvAcuate, p)
}
