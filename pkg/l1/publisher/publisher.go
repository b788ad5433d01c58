// Package publisher turns link state into L1 events and answers link
// commands.
package publisher

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/motorlink/pkg/framework"
	"github.com/robotalks/motorlink/pkg/l0/motorlink"
	"github.com/robotalks/motorlink/pkg/l1"
	"github.com/robotalks/motorlink/pkg/l1/msgs"
	pb "github.com/robotalks/motorlink/pkg/proto/motorlink/l1/v1"
)

// Publisher defaults
const (
	DefaultInterval  = 250 * time.Millisecond
	DefaultQueueSize = 256
)

// Source provides link snapshots, *motorlink.Manager implements it.
type Source interface {
	Links() int
	Snapshot(int) (motorlink.Snapshot, error)
}

// Publisher sends telemetry of connected links every Interval, and
// state changes and link errors as they happen. Events are sent from
// Run so a slow registrar never stalls the loop.
type Publisher struct {
	Registrar l1.Registrar
	Source    Source
	Interval  time.Duration

	queue   chan fx.Message
	next    time.Time
	dropped uint64
}

// New creates a Publisher.
func New(reg l1.Registrar, src Source) *Publisher {
	return &Publisher{
		Registrar: reg,
		Source:    src,
		Interval:  DefaultInterval,
		queue:     make(chan fx.Message, DefaultQueueSize),
	}
}

// Dropped returns the number of events dropped on a full queue.
func (p *Publisher) Dropped() uint64 {
	return atomic.LoadUint64(&p.dropped)
}

// Control implements fx.Controller.
func (p *Publisher) Control(cc fx.ControlContext) error {
	var errs fx.AggregatedError
	cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mctx fx.MessageProcessingContext) {
		switch msg := mctx.CurrentMessage().(type) {
		case *motorlink.StateChange:
			p.enqueue(StateMsg(msg))
		case *motorlink.LinkError:
			p.enqueue(FaultMsg(msg))
		case *l1.CommandMsg:
			if query, ok := msg.Command.Msg().(*msgs.LinkStatsQuery); ok {
				mctx.MessageTaken()
				errs.Add(msg.Command.Done(p.linkStats(int(query.Link))))
			}
		}
	}))

	now := cc.Time()
	if now.Before(p.next) {
		return errs.Aggregate()
	}
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	p.next = now.Add(interval)
	for link := 1; link <= p.Source.Links(); link++ {
		s, err := p.Source.Snapshot(link)
		if err != nil {
			errs.Add(err)
			continue
		}
		if s.State.IsConnected() {
			p.enqueue(TelemetryMsg(s))
		}
	}
	return errs.Aggregate()
}

func (p *Publisher) linkStats(link int) fx.Message {
	s, err := p.Source.Snapshot(link)
	if err != nil {
		return msgs.NewCommandErr(err)
	}
	return StatsMsg(s)
}

func (p *Publisher) enqueue(msg fx.Message) {
	select {
	case p.queue <- msg:
	default:
		if atomic.AddUint64(&p.dropped, 1) == 1 {
			glog.Warning("event queue full, dropping events")
		}
	}
}

// Run implements fx.Runnable.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-p.queue:
			if err := p.Registrar.SendEvent(ctx, msg); err != nil {
				glog.V(2).Infof("send event: %v", err)
			}
		}
	}
}

// AddToLoop implements fx.LoopAdder.
func (p *Publisher) AddToLoop(loop *fx.Loop) {
	loop.AddController(fx.PrLvAcuate, p)
}

// TelemetryMsg converts a snapshot into a MotorTelemetry event.
func TelemetryMsg(s motorlink.Snapshot) *msgs.MotorTelemetry {
	tm := &s.Telemetry
	msg := &msgs.MotorTelemetry{MotorTelemetry: pb.MotorTelemetry{
		Link:           uint32(s.Link),
		State:          uint32(s.State),
		Variant:        s.Variant,
		Rpm:            uint32(tm.RPM),
		Speed:          uint32(tm.Speed),
		Voltage:        uint32(tm.Voltage),
		Current:        int32(tm.Current),
		Power:          int32(tm.Power),
		Gear:           uint32(tm.Gear),
		Roll:           uint32(tm.Roll),
		MotorTemp:      int32(tm.MotorTemp),
		ControllerTemp: int32(tm.ControllerTemp),
		Errors:         uint32(tm.Errors),
		ActiveErrors:   uint32(tm.ActiveErrors),
		Throttle:       uint32(tm.Throttle),
		Odometer:       tm.Odometer,
	}}
	if !tm.Updated.IsZero() {
		msg.Timestamp = tm.Updated.UnixNano()
	}
	return msg
}

// StateMsg converts a state change into a LinkStateChanged event.
func StateMsg(c *motorlink.StateChange) *msgs.LinkStateChanged {
	return &msgs.LinkStateChanged{LinkStateChanged: pb.LinkStateChanged{
		Link: uint32(c.Link),
		From: uint32(c.From),
		To:   uint32(c.To),
	}}
}

// FaultMsg converts a link error into a LinkFault event.
func FaultMsg(e *motorlink.LinkError) *msgs.LinkFault {
	msg := &msgs.LinkFault{LinkFault: pb.LinkFault{
		Link: uint32(e.Link),
		Kind: uint32(e.Kind),
		Code: e.Code,
	}}
	if !e.Time.IsZero() {
		msg.Timestamp = e.Time.UnixNano()
	}
	return msg
}

// StatsMsg converts the counters of a snapshot into a LinkStats reply.
func StatsMsg(s motorlink.Snapshot) *msgs.LinkStats {
	return &msgs.LinkStats{LinkStats: pb.LinkStats{
		Link:             uint32(s.Link),
		Frames:           s.Stats.Frames,
		Decoded:          s.Stats.Decoded,
		ChecksumErrors:   s.Stats.ChecksumErrors,
		DiscardedBytes:   s.Stats.DiscardedBytes,
		DroppedBytes:     s.Stats.DroppedBytes,
		Handshakes:       s.Stats.Handshakes,
		PeriodicRequests: s.Stats.PeriodicRequests,
		TxErrors:         s.Stats.TxErrors,
		State:            uint32(s.State),
		Variant:          s.Variant,
	}}
}
