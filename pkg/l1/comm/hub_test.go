package comm

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	fx "github.com/robotalks/motorlink/pkg/framework"
	"github.com/robotalks/motorlink/pkg/l1"
	"github.com/robotalks/motorlink/pkg/l1/msgs"
	pb "github.com/robotalks/motorlink/pkg/proto/motorlink/l1/v1"
)

type packetEnd struct {
	in     <-chan []byte
	out    chan<- []byte
	closed chan struct{}
	once   sync.Once
}

func newPacketPipe() (*packetEnd, *packetEnd) {
	ab, ba := make(chan []byte, 16), make(chan []byte, 16)
	return &packetEnd{in: ba, out: ab, closed: make(chan struct{})},
		&packetEnd{in: ab, out: ba, closed: make(chan struct{})}
}

func (p *packetEnd) ReadPacket() ([]byte, error) {
	select {
	case pkt := <-p.in:
		return pkt, nil
	case <-p.closed:
		return nil, io.EOF
	}
}

func (p *packetEnd) WritePacket(pkt []byte) error {
	select {
	case p.out <- pkt:
		return nil
	case <-p.closed:
		return io.ErrClosedPipe
	}
}

func (p *packetEnd) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

type hubSetup struct {
	hub  *Hub
	conn *UnitConn
}

func newHubSetup(t *testing.T) *hubSetup {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	s := &hubSetup{hub: NewHub(), conn: &UnitConn{}}
	unitLoop := fx.NewLoop().Add(s.hub, &UnsupportedCommands{})
	unitLoop.AddController(fx.PrLvNormal, fx.ControlFunc(func(cc fx.ControlContext) error {
		cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mctx fx.MessageProcessingContext) {
			cmdMsg, ok := mctx.CurrentMessage().(*l1.CommandMsg)
			if !ok {
				return
			}
			if query, ok := cmdMsg.Command.Msg().(*msgs.FaultsQuery); ok {
				mctx.MessageTaken()
				cmdMsg.Command.Done(&msgs.FaultSummary{FaultSummary: pb.FaultSummary{
					Entries: []*pb.FaultEntry{{Link: query.Link, Bit: 6, Name: "MotorOverTemp", Count: 2}},
				}})
			}
		}))
		return nil
	}))
	go unitLoop.Run(ctx)

	unitEnd, clientEnd := newPacketPipe()
	go s.hub.Serve(ctx, unitEnd)
	s.conn.Init(clientEnd)
	go fx.NewLoop().Add(s.conn).Run(ctx)
	require.Eventually(t, func() bool { return s.hub.Clients() == 1 }, time.Second, time.Millisecond)
	return s
}

func waitResult(t *testing.T, f l1.CommandFuture) l1.Result {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return l1.Wait(ctx, f)
}

func TestHubCommands(t *testing.T) {
	s := newHubSetup(t)

	res := waitResult(t, s.conn.DoCommand(&msgs.FaultsQuery{FaultsQuery: pb.FaultsQuery{Link: 2}}))
	require.NoError(t, res.Err)
	summary, ok := res.Msg.(*msgs.FaultSummary)
	require.True(t, ok)
	require.Len(t, summary.Entries, 1)
	require.Equal(t, uint32(2), summary.Entries[0].Link)
	require.Equal(t, "MotorOverTemp", summary.Entries[0].Name)

	res = waitResult(t, s.conn.DoCommand(&msgs.ClearFaults{}))
	require.EqualError(t, res.Err, msgs.ErrUnsupportedCommand.Error())
	require.Zero(t, s.conn.Pending())
}

func TestHubEvents(t *testing.T) {
	s := newHubSetup(t)
	events := make(chan fx.Message, 4)
	unsub := s.conn.Events(func(msg fx.Message) { events <- msg })

	fault := &msgs.LinkFault{LinkFault: pb.LinkFault{Link: 1, Kind: 2, Code: 500}}
	require.NoError(t, s.hub.SendEvent(context.Background(), fault))
	select {
	case msg := <-events:
		require.IsType(t, &msgs.LinkFault{}, msg)
		require.Equal(t, fault.LinkFault, msg.(*msgs.LinkFault).LinkFault)
	case <-time.After(time.Second):
		t.Fatal("event not received")
	}

	require.ErrorIs(t, s.hub.SendEvent(context.Background(), &msgs.FaultsQuery{}), ErrNotEvent)
	require.ErrorIs(t, s.hub.SendEvent(context.Background(), struct{}{}), msgs.ErrNotSerializable)

	unsub()
	require.NoError(t, s.hub.SendEvent(context.Background(), fault))
	select {
	case <-events:
		t.Fatal("unsubscribed handler called")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubSlowClient(t *testing.T) {
	hub := &Hub{QueueSize: 1}
	unitEnd, _ := newPacketPipe()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Serve(ctx, unitEnd) }()
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, time.Millisecond)

	// nobody reads the client end, so the pipe buffer and the queue fill up
	event := &msgs.LinkStateChanged{LinkStateChanged: pb.LinkStateChanged{Link: 1, To: 2}}
	for i := 0; i < 20; i++ {
		require.NoError(t, hub.SendEvent(ctx, event))
	}
	require.Eventually(t, func() bool { return hub.Dropped() > 0 }, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("client not detached")
	}
	require.Zero(t, hub.Clients())
}

func TestUnitConnExpires(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, clientEnd := newPacketPipe()
	conn := &UnitConn{}
	conn.Init(clientEnd)
	conn.Expiration = 10 * time.Millisecond
	go fx.NewLoop().Add(conn).Run(ctx)

	res := waitResult(t, conn.DoCommand(&msgs.LinkStatsQuery{}))
	require.ErrorIs(t, res.Err, context.DeadlineExceeded)

	res = waitResult(t, conn.DoCommand(&msgs.LinkFault{}))
	require.ErrorIs(t, res.Err, ErrNotCommand)
}

func TestPipeRepliesUnknownCommand(t *testing.T) {
	unitEnd, clientEnd := newPacketPipe()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go NewPipe(unitEnd).Run(ctx)

	client := NewPipe(clientEnd)
	require.NoError(t, client.SendTyped(&msgs.Typed{Typed: pb.Typed{TypeId: msgs.GroupCustom | 1, Sequence: 9}}))
	// unknown events are ignored
	require.NoError(t, client.SendTyped(&msgs.Typed{Typed: pb.Typed{TypeId: msgs.TypeIDKindEvent | msgs.GroupCustom}}))

	pkt, err := clientEnd.ReadPacket()
	require.NoError(t, err)
	typed, err := msgs.DecodeTyped(pkt)
	require.NoError(t, err)
	require.Equal(t, uint32(9), typed.Sequence)
	msg, err := typed.Decode()
	require.NoError(t, err)
	require.IsType(t, &msgs.CommandErr{}, msg)
	require.Equal(t, "unknown type: 7f000001", msg.(*msgs.CommandErr).Message)
}

func TestPipeDeliversCommand(t *testing.T) {
	unitEnd, clientEnd := newPacketPipe()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type delivery struct {
		msg   fx.Message
		typed *msgs.Typed
	}
	received := make(chan delivery, 1)
	unit := NewPipe(unitEnd)
	unit.Handler = msgs.HandleTypedMsgFunc(func(_ context.Context, msg fx.Message, typed *msgs.Typed) error {
		received <- delivery{msg: msg, typed: typed}
		return nil
	})
	go unit.Run(ctx)

	client := NewPipe(clientEnd)
	require.NoError(t, client.SendCommandMsg(&msgs.ClearFaults{}, 11))
	select {
	case d := <-received:
		require.IsType(t, &msgs.ClearFaults{}, d.msg)
		require.Equal(t, msgs.ClearFaultsTypeID, d.typed.TypeId)
		require.Equal(t, uint32(11), d.typed.Sequence)
	case <-time.After(time.Second):
		t.Fatal("command not received")
	}
}

type fakeRegistrar struct {
	err  error
	sent []fx.Message
}

func (r *fakeRegistrar) SendEvent(_ context.Context, msg fx.Message) error {
	r.sent = append(r.sent, msg)
	return r.err
}

func TestRegistrarMux(t *testing.T) {
	failure := errors.New("broker down")
	ok, bad := &fakeRegistrar{}, &fakeRegistrar{err: failure}
	mux := &RegistrarMux{}
	mux.Add(ok, bad)
	err := mux.SendEvent(context.Background(), "event")
	require.ErrorIs(t, err, failure)
	require.Equal(t, []fx.Message{"event"}, ok.sent)
	require.Equal(t, []fx.Message{"event"}, bad.sent)

	bad.err = nil
	require.NoError(t, mux.SendEvent(context.Background(), "again"))
}
