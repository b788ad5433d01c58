package publisher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	fx "github.com/robotalks/motorlink/pkg/framework"
	"github.com/robotalks/motorlink/pkg/l0/motorlink"
	"github.com/robotalks/motorlink/pkg/l1"
	"github.com/robotalks/motorlink/pkg/l1/msgs"
	pb "github.com/robotalks/motorlink/pkg/proto/motorlink/l1/v1"
)

type fakeSource []motorlink.Snapshot

func (s fakeSource) Links() int { return len(s) }

func (s fakeSource) Snapshot(link int) (motorlink.Snapshot, error) {
	if link < 1 || link > len(s) {
		return motorlink.Snapshot{}, errors.New("bad link")
	}
	return s[link-1], nil
}

type chanRegistrar chan fx.Message

func (r chanRegistrar) SendEvent(_ context.Context, msg fx.Message) error {
	r <- msg
	return nil
}

type testCommand struct {
	msg   fx.Message
	reply fx.Message
}

func (c *testCommand) Msg() fx.Message { return c.msg }

func (c *testCommand) Done(reply fx.Message) error {
	c.reply = reply
	return nil
}

func testSource() fakeSource {
	return fakeSource{
		{
			Link:    1,
			State:   motorlink.StateStreamingParse,
			Variant: "modern",
			Telemetry: motorlink.Telemetry{
				RPM:          420,
				Voltage:      718,
				Current:      -12,
				MotorTemp:    -3,
				ActiveErrors: motorlink.FaultMotorOverTemp,
				Odometer:     37,
				Updated:      time.Unix(10, 0),
			},
			Stats: motorlink.Stats{Frames: 90, Decoded: 88, ChecksumErrors: 2},
		},
		{Link: 2, State: motorlink.StateDisconnected},
	}
}

type setup struct {
	pub    *Publisher
	loop   *fx.Loop
	events chanRegistrar
	now    time.Time
}

func newSetup(t *testing.T) *setup {
	s := &setup{events: make(chanRegistrar, 16), now: time.Unix(100, 0)}
	s.pub = New(s.events, testSource())
	s.loop = fx.NewLoop().Add(s.pub)
	s.loop.Clock = func() time.Time { return s.now }
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go s.pub.Run(ctx)
	return s
}

func (s *setup) next(t *testing.T) fx.Message {
	select {
	case msg := <-s.events:
		return msg
	case <-time.After(time.Second):
		t.Fatal("no event")
	}
	return nil
}

func (s *setup) none(t *testing.T) {
	select {
	case msg := <-s.events:
		t.Fatalf("unexpected event %v", msg)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestPublisherTelemetry(t *testing.T) {
	s := newSetup(t)
	s.loop.RunOnce(context.Background())
	msg := s.next(t)
	require.IsType(t, &msgs.MotorTelemetry{}, msg)
	tm := msg.(*msgs.MotorTelemetry)
	require.Equal(t, uint32(1), tm.Link)
	require.Equal(t, "modern", tm.Variant)
	require.Equal(t, uint32(420), tm.Rpm)
	require.Equal(t, int32(-12), tm.Current)
	require.Equal(t, int32(-3), tm.MotorTemp)
	require.Equal(t, uint32(motorlink.FaultMotorOverTemp), tm.ActiveErrors)
	require.Equal(t, uint32(37), tm.Odometer)
	require.True(t, time.Unix(10, 0).Equal(tm.Time()))
	// link 2 is disconnected
	s.none(t)

	s.now = s.now.Add(100 * time.Millisecond)
	s.loop.RunOnce(context.Background())
	s.none(t)

	s.now = s.now.Add(DefaultInterval)
	s.loop.RunOnce(context.Background())
	require.IsType(t, &msgs.MotorTelemetry{}, s.next(t))
}

func TestPublisherLinkEvents(t *testing.T) {
	s := newSetup(t)
	s.pub.next = s.now.Add(time.Hour)
	at := time.Unix(50, 0)
	s.loop.PostMessage(&motorlink.StateChange{Link: 2, From: motorlink.StatePairing, To: motorlink.StateDisconnected})
	s.loop.PostMessage(&motorlink.LinkError{Link: 2, Kind: motorlink.ErrorLinkLost, Time: at})
	s.loop.RunOnce(context.Background())

	require.Equal(t, &msgs.LinkStateChanged{LinkStateChanged: pb.LinkStateChanged{
		Link: 2,
		From: uint32(motorlink.StatePairing),
		To:   uint32(motorlink.StateDisconnected),
	}}, s.next(t))
	require.Equal(t, &msgs.LinkFault{LinkFault: pb.LinkFault{
		Link:      2,
		Kind:      uint32(motorlink.ErrorLinkLost),
		Timestamp: at.UnixNano(),
	}}, s.next(t))
	s.none(t)
}

func TestPublisherLinkStats(t *testing.T) {
	s := newSetup(t)
	s.pub.next = s.now.Add(time.Hour)
	query := &testCommand{msg: &msgs.LinkStatsQuery{LinkStatsQuery: pb.LinkStatsQuery{Link: 1}}}
	bad := &testCommand{msg: &msgs.LinkStatsQuery{LinkStatsQuery: pb.LinkStatsQuery{Link: 9}}}
	s.loop.PostMessage(&l1.CommandMsg{Command: query})
	s.loop.PostMessage(&l1.CommandMsg{Command: bad})
	s.loop.RunOnce(context.Background())

	require.IsType(t, &msgs.LinkStats{}, query.reply)
	stats := query.reply.(*msgs.LinkStats)
	require.Equal(t, uint64(90), stats.Frames)
	require.Equal(t, uint64(2), stats.ChecksumErrors)
	require.Equal(t, uint32(motorlink.StateStreamingParse), stats.State)
	require.Equal(t, "modern", stats.Variant)
	require.IsType(t, &msgs.CommandErr{}, bad.reply)
}

func TestPublisherQueueFull(t *testing.T) {
	pub := New(chanRegistrar(make(chan fx.Message)), testSource())
	for i := 0; i < DefaultQueueSize+3; i++ {
		pub.enqueue(&msgs.LinkStateChanged{})
	}
	require.Equal(t, uint64(3), pub.Dropped())
}
