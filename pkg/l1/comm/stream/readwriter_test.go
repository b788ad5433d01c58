package stream

import (
	"bytes"
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/motorlink/pkg/l1/comm"
	"github.com/robotalks/motorlink/pkg/l1/msgs"
	pb "github.com/robotalks/motorlink/pkg/proto/motorlink/l1/v1"
)

func TestReadWriterPackets(t *testing.T) {
	var buf bytes.Buffer
	rw := New(&buf)
	require.NoError(t, rw.WritePacket([]byte{1, 2, 3}))
	require.NoError(t, rw.WritePacket(nil))
	require.Equal(t, []byte{3, 0, 0, 0, 1, 2, 3, 0, 0, 0, 0}, buf.Bytes())

	pkt, err := rw.ReadPacket()
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, pkt)
	pkt, err = rw.ReadPacket()
	require.NoError(t, err)
	require.Empty(t, pkt)
	require.NoError(t, rw.Close())
}

func TestReadWriterTooLarge(t *testing.T) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(MaxPacketSize+1))
	_, err := New(&buf).ReadPacket()
	require.Error(t, err)
}

func TestServerBroadcasts(t *testing.T) {
	hub := comm.NewHub()
	srv := NewServer("127.0.0.1:0", hub)
	addr, err := srv.Listen()
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Run(ctx)

	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, time.Millisecond)

	event := &msgs.MotorTelemetry{MotorTelemetry: pb.MotorTelemetry{Link: 1, Rpm: 300}}
	require.NoError(t, hub.SendEvent(ctx, event))

	conn.SetReadDeadline(time.Now().Add(time.Second))
	pkt, err := New(conn).ReadPacket()
	require.NoError(t, err)
	typed, err := msgs.DecodeTyped(pkt)
	require.NoError(t, err)
	msg, err := typed.Decode()
	require.NoError(t, err)
	require.Equal(t, uint32(300), msg.(*msgs.MotorTelemetry).Rpm)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, time.Second, time.Millisecond)
}
