package journal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	fx "github.com/robotalks/motorlink/pkg/framework"
	"github.com/robotalks/motorlink/pkg/l0/motorlink"
	"github.com/robotalks/motorlink/pkg/l1"
	"github.com/robotalks/motorlink/pkg/l1/comm"
	"github.com/robotalks/motorlink/pkg/l1/msgs"
	pb "github.com/robotalks/motorlink/pkg/proto/motorlink/l1/v1"
)

type testCommand struct {
	msg   fx.Message
	reply fx.Message
}

func (c *testCommand) Msg() fx.Message { return c.msg }

func (c *testCommand) Done(reply fx.Message) error {
	c.reply = reply
	return nil
}

func TestController(t *testing.T) {
	j, _ := openTestJournal(t)
	loop := fx.NewLoop().Add(NewController(j), &comm.UnsupportedCommands{})
	now := time.Unix(200, 0)

	loop.PostMessage(&motorlink.LinkError{Link: 1, Kind: motorlink.ErrorControllerFault, Code: uint32(motorlink.FaultPhaseShort), Time: now})
	loop.PostMessage(&motorlink.LinkError{Link: 1, Kind: motorlink.ErrorLinkLost, Time: now})
	loop.RunOnce(context.Background())

	query := &testCommand{msg: &msgs.FaultsQuery{FaultsQuery: pb.FaultsQuery{Link: 1}}}
	other := &testCommand{msg: &msgs.LinkStatsQuery{}}
	loop.PostMessage(&l1.CommandMsg{Command: query})
	loop.PostMessage(&l1.CommandMsg{Command: other})
	loop.RunOnce(context.Background())

	require.IsType(t, &msgs.FaultSummary{}, query.reply)
	entries := query.reply.(*msgs.FaultSummary).Entries
	require.Len(t, entries, 1)
	require.Equal(t, "PhaseShort", entries[0].Name)
	require.Equal(t, uint32(10), entries[0].Bit)
	require.Equal(t, uint64(1), entries[0].Count)
	require.Equal(t, now.UnixNano(), entries[0].LastSeen)

	require.IsType(t, &msgs.CommandErr{}, other.reply)

	clearCmd := &testCommand{msg: &msgs.ClearFaults{}}
	loop.PostMessage(&l1.CommandMsg{Command: clearCmd})
	loop.RunOnce(context.Background())
	require.IsType(t, &msgs.CommandOK{}, clearCmd.reply)
	remains, err := j.Entries(0)
	require.NoError(t, err)
	require.Empty(t, remains)

	require.NoError(t, j.Close())
	query.reply = nil
	loop.PostMessage(&l1.CommandMsg{Command: query})
	loop.RunOnce(context.Background())
	require.IsType(t, &msgs.CommandErr{}, query.reply)
	require.Equal(t, ErrClosed.Error(), query.reply.(*msgs.CommandErr).Message)
}

type fakeFaults []motorlink.Snapshot

func (f fakeFaults) Links() int { return len(f) }

func (f fakeFaults) Snapshot(i int) (motorlink.Snapshot, error) {
	if i < 1 || i > len(f) {
		return motorlink.Snapshot{}, motorlink.ErrInvalidLink
	}
	return f[i-1], nil
}

func TestControllerClearKeepsActiveFaults(t *testing.T) {
	j, _ := openTestJournal(t)
	ctl := NewController(j)
	ctl.Faults = fakeFaults{
		{Link: 1, State: motorlink.StateStreamingParse, Telemetry: motorlink.Telemetry{ActiveErrors: motorlink.FaultPhaseShort}},
		{Link: 2, State: motorlink.StateDisconnected, Telemetry: motorlink.Telemetry{ActiveErrors: motorlink.FaultPhaseShort}},
	}
	loop := fx.NewLoop().Add(ctl)
	now := time.Unix(200, 0)
	loop.PostMessage(&motorlink.LinkError{Link: 1, Kind: motorlink.ErrorControllerFault, Code: uint32(motorlink.FaultPhaseShort), Time: now})
	loop.PostMessage(&motorlink.LinkError{Link: 2, Kind: motorlink.ErrorControllerFault, Code: uint32(motorlink.FaultPhaseShort), Time: now})
	loop.RunOnce(context.Background())

	clearCmd := &testCommand{msg: &msgs.ClearFaults{}}
	loop.PostMessage(&l1.CommandMsg{Command: clearCmd})
	loop.RunOnce(context.Background())
	require.IsType(t, &msgs.CommandOK{}, clearCmd.reply)

	entries, err := j.Entries(0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, 1, entries[0].Link)
	require.Equal(t, uint64(1), entries[0].Count)

	// the flag stays active, so unchanged reports do not count it again
	loop.PostMessage(&motorlink.LinkError{Link: 1, Kind: motorlink.ErrorControllerFault, Code: uint32(motorlink.FaultPhaseShort), Time: now})
	loop.RunOnce(context.Background())
	entries, err = j.Entries(1)
	require.NoError(t, err)
	require.Equal(t, uint64(1), entries[0].Count)
}
