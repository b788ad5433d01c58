package journal

import (
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/motorlink/pkg/framework"
	"github.com/robotalks/motorlink/pkg/l0/motorlink"
	"github.com/robotalks/motorlink/pkg/l1"
	"github.com/robotalks/motorlink/pkg/l1/msgs"
	pb "github.com/robotalks/motorlink/pkg/proto/motorlink/l1/v1"
)

// FaultSource reports the current state of links.
type FaultSource interface {
	Links() int
	Snapshot(int) (motorlink.Snapshot, error)
}

// Controller records controller faults seen in the loop and answers
// FaultsQuery and ClearFaults commands. When Faults is set, flags still
// active on connected links are recorded again right after a clear.
type Controller struct {
	Journal *Journal
	Faults  FaultSource
}

// NewController creates a Controller.
func NewController(j *Journal) *Controller {
	return &Controller{Journal: j}
}

// Control implements fx.Controller.
func (c *Controller) Control(cc fx.ControlContext) error {
	var errs fx.AggregatedError
	cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mctx fx.MessageProcessingContext) {
		switch msg := mctx.CurrentMessage().(type) {
		case *motorlink.LinkError:
			if msg.Kind == motorlink.ErrorControllerFault {
				errs.Add(c.Journal.Record(msg.Link, motorlink.FaultFlags(msg.Code), msg.Time))
			}
		case *l1.CommandMsg:
			if reply, ok := c.handleCommand(msg.Command.Msg(), cc.Time()); ok {
				mctx.MessageTaken()
				errs.Add(msg.Command.Done(reply))
			}
		}
	}))
	return errs.Aggregate()
}

func (c *Controller) handleCommand(cmd fx.Message, now time.Time) (fx.Message, bool) {
	switch cmd := cmd.(type) {
	case *msgs.FaultsQuery:
		entries, err := c.Journal.Entries(int(cmd.Link))
		if err != nil {
			return msgs.NewCommandErr(err), true
		}
		return FaultSummary(entries), true
	case *msgs.ClearFaults:
		if err := c.Journal.Clear(int(cmd.Link)); err != nil {
			return msgs.NewCommandErr(err), true
		}
		glog.Infof("fault journal cleared (link %d)", cmd.Link)
		if err := c.reseed(int(cmd.Link), now); err != nil {
			return msgs.NewCommandErr(err), true
		}
		return msgs.NewCommandOK(), true
	}
	return nil, false
}

func (c *Controller) reseed(link int, now time.Time) error {
	if c.Faults == nil {
		return nil
	}
	first, last := link, link
	if link == 0 {
		first, last = 1, c.Faults.Links()
	}
	for i := first; i <= last; i++ {
		s, err := c.Faults.Snapshot(i)
		if err != nil {
			return err
		}
		if flags := s.Telemetry.ActiveErrors; flags != 0 && s.State.IsConnected() {
			if err := c.Journal.Record(i, flags, now); err != nil {
				return err
			}
		}
	}
	return nil
}

// AddToLoop implements fx.LoopAdder.
func (c *Controller) AddToLoop(loop *fx.Loop) {
	loop.AddController(fx.PrLvPostProc, c)
}

// FaultSummary converts entries into the wire reply.
func FaultSummary(entries []Entry) *msgs.FaultSummary {
	summary := &msgs.FaultSummary{}
	for _, e := range entries {
		summary.Entries = append(summary.Entries, &pb.FaultEntry{
			Link:      uint32(e.Link),
			Bit:       uint32(e.Bit),
			Name:      e.Name(),
			Count:     e.Count,
			FirstSeen: e.FirstSeen.UnixNano(),
			LastSeen:  e.LastSeen.UnixNano(),
		})
	}
	return summary
}
