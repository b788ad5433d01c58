package can

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/brutella/can"
	"github.com/stretchr/testify/require"

	fx "github.com/robotalks/motorlink/pkg/framework"
	"github.com/robotalks/motorlink/pkg/l0/motorlink"
)

type fakeBus struct {
	frames []can.Frame
	err    error
}

func (b *fakeBus) Publish(f can.Frame) error {
	if b.err != nil {
		return b.err
	}
	b.frames = append(b.frames, f)
	return nil
}

func (b *fakeBus) take() map[uint32]can.Frame {
	frames := make(map[uint32]can.Frame)
	for _, f := range b.frames {
		frames[f.ID] = f
	}
	b.frames = nil
	return frames
}

type fakeSource []motorlink.Snapshot

func (s fakeSource) Links() int { return len(s) }

func (s fakeSource) Snapshot(link int) (motorlink.Snapshot, error) {
	if link < 1 || link > len(s) {
		return motorlink.Snapshot{}, motorlink.ErrInvalidLink
	}
	return s[link-1], nil
}

func payload(f can.Frame) []byte {
	return f.Data[:f.Length]
}

func TestFrame(t *testing.T) {
	f := Frame(IDRPM, TypeTimer, []byte{1, 2, 3, 4})
	require.Equal(t, uint8(5), f.Length)
	require.Equal(t, []byte{0x01, 1, 2, 3, 4}, payload(f))

	f = Frame(IDBlockInfo, TypeTimer, make([]byte, 10))
	require.Equal(t, uint8(8), f.Length)
}

func TestObjectsEncode(t *testing.T) {
	tm := Telemetry{
		{RPM: 0x0102, Speed: 300, Voltage: 718, Current: -130, Power: -933, Gear: 2, Roll: motorlink.RollReverse,
			MotorTemp: -5, ControllerTemp: 200, ActiveErrors: motorlink.FaultBurglar, Odometer: 7},
		{RPM: 10, Odometer: 9},
	}
	expects := map[uint32][]byte{
		IDControllerErrors: {0x20, 0, 0, 0},
		IDRPM:              {0x02, 0x01, 10, 0},
		IDSpeed:            {0x2c, 0x01, 0, 0},
		IDVoltage:          {0xce, 0x02, 0, 0},
		IDCurrent:          {0x7e, 0xff, 0, 0},
		IDPower:            {0x5b, 0xfc, 0, 0},
		IDGearRoll:         {2, byte(motorlink.RollReverse), 0, byte(motorlink.RollUnknown)},
		IDTemperature:      {0xfb, 0x7f, 0, 0},
		IDOdometer:         {9, 0, 0, 0},
	}
	require.Len(t, Objects, len(expects))
	for _, obj := range Objects {
		t.Run(obj.Name, func(t *testing.T) {
			require.Equal(t, expects[obj.ID], obj.Encode(&tm))
		})
	}
}

func TestEventPayloads(t *testing.T) {
	require.Equal(t, []byte{0x2a, 0x05, 0x2a, 0, 0, 0}, DefaultBlockInfo.Encode(42*time.Second+time.Millisecond))
	require.Equal(t, []byte{2, 0}, HealthPayload([]motorlink.State{motorlink.StateStreamingParse, motorlink.StateDisconnected}))
	require.Equal(t, []byte{1, byte(motorlink.ErrorOverflow), 3, 0, 0, 0},
		ErrorPayload(&motorlink.LinkError{Link: 1, Kind: motorlink.ErrorOverflow, Code: 3}))
}

func TestPublisherSchedule(t *testing.T) {
	bus := &fakeBus{}
	src := fakeSource{
		{Link: 1, State: motorlink.StateStreamingParse, Telemetry: motorlink.Telemetry{RPM: 200}},
		{Link: 2},
	}
	pub := NewPublisher(bus, src)
	baseTime := time.Unix(100, 0)
	now := baseTime
	loop := fx.NewLoop().Add(pub)
	loop.Clock = func() time.Time { return now }

	loop.RunOnce(context.Background())
	frames := bus.take()
	require.Len(t, frames, len(Objects)+1)
	require.Equal(t, []byte{TypeTimer, 200, 0, 0, 0}, payload(frames[IDRPM]))
	require.Contains(t, frames, IDBlockInfo)

	now = baseTime.Add(100 * time.Millisecond)
	loop.RunOnce(context.Background())
	require.Empty(t, bus.take())

	now = baseTime.Add(250 * time.Millisecond)
	loop.RunOnce(context.Background())
	frames = bus.take()
	require.Len(t, frames, 3)
	require.Contains(t, frames, IDControllerErrors)
	require.Contains(t, frames, IDRPM)
	require.Contains(t, frames, IDSpeed)

	now = baseTime.Add(time.Second)
	loop.RunOnce(context.Background())
	frames = bus.take()
	require.Len(t, frames, 8)
	require.NotContains(t, frames, IDOdometer)

	sent, failed := pub.Stats()
	require.Equal(t, uint64(len(Objects)+1+3+8), sent)
	require.Zero(t, failed)
}

func TestPublisherEvents(t *testing.T) {
	bus := &fakeBus{}
	src := fakeSource{{Link: 1, State: motorlink.StatePairing}, {Link: 2}}
	pub := NewPublisher(bus, src)
	loop := fx.NewLoop().Add(pub)
	loop.RunOnce(context.Background())
	bus.take()

	loop.PostMessage(&motorlink.StateChange{Link: 1, From: motorlink.StateDisconnected, To: motorlink.StatePairing})
	loop.PostMessage(&motorlink.LinkError{Link: 2, Kind: motorlink.ErrorLinkLost})
	loop.RunOnce(context.Background())
	frames := bus.take()
	require.Equal(t, []byte{TypeEvent, byte(motorlink.StatePairing), 0}, payload(frames[IDBlockHealth]))
	require.Equal(t, []byte{TypeEvent, 2, byte(motorlink.ErrorLinkLost), 0, 0, 0, 0}, payload(frames[IDBlockError]))
}

func TestPublisherBusDown(t *testing.T) {
	bus := &fakeBus{err: errors.New("no buffer space")}
	pub := NewPublisher(bus, fakeSource{{Link: 1}})
	loop := fx.NewLoop().Add(pub)
	loop.RunOnce(context.Background())
	sent, failed := pub.Stats()
	require.Zero(t, sent)
	require.Equal(t, uint64(len(Objects)+1), failed)

	bus.err = nil
	loop.PostMessage(&motorlink.StateChange{Link: 1})
	loop.RunOnce(context.Background())
	sent, _ = pub.Stats()
	require.Equal(t, uint64(1), sent)
}
