package sh

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/motorlink/pkg/l0/motorlink"
	"github.com/robotalks/motorlink/pkg/l1"
	"github.com/robotalks/motorlink/pkg/l1/msgs"
	pb "github.com/robotalks/motorlink/pkg/proto/motorlink/l1/v1"
)

func TestParseLink(t *testing.T) {
	link, err := ParseLink(nil)
	require.NoError(t, err)
	require.Zero(t, link)
	link, err = ParseLink([]string{"2"})
	require.NoError(t, err)
	require.Equal(t, uint32(2), link)
	_, err = ParseLink([]string{"x"})
	require.Error(t, err)
	_, err = ParseLink([]string{"300"})
	require.Error(t, err)
}

func TestFormatMessage(t *testing.T) {
	testCases := []struct {
		name string
		msg  interface{}
		out  string
	}{
		{
			name: "telemetry",
			msg: &msgs.MotorTelemetry{MotorTelemetry: pb.MotorTelemetry{
				Link:           1,
				State:          uint32(motorlink.StateStreamingParse),
				Variant:        "modern",
				Rpm:            420,
				Speed:          253,
				Voltage:        718,
				Current:        -12,
				Power:          -86,
				Gear:           2,
				Roll:           uint32(motorlink.RollForward),
				MotorTemp:      25,
				ControllerTemp: 31,
				Odometer:       37,
				ActiveErrors:   uint32(motorlink.FaultMotorOverTemp),
			}},
			out: "link 1 StreamingParse [modern] rpm=420 speed=25.3km/h voltage=71.8V current=-1.2A power=-86W" +
				" gear=2 roll=forward motor=25°C controller=31°C throttle=0 odo=3.7km faults=MotorOverTemp",
		},
		{
			name: "state",
			msg: &msgs.LinkStateChanged{LinkStateChanged: pb.LinkStateChanged{
				Link: 2, From: uint32(motorlink.StatePairing), To: uint32(motorlink.StateDisconnected),
			}},
			out: "link 2 Pairing -> Disconnected",
		},
		{
			name: "faults",
			msg:  &msgs.FaultSummary{},
			out:  "No faults recorded",
		},
		{
			name: "ok",
			msg:  msgs.NewCommandOK(),
			out:  "OK",
		},
		{
			name: "stats",
			msg: &msgs.LinkStats{LinkStats: pb.LinkStats{
				Link: 1, State: uint32(motorlink.StateStreamingPeriodic), Variant: "legacy", Frames: 9, Decoded: 8, ChecksumErrors: 1,
			}},
			out: "link 1 StreamingPeriodic [legacy] frames=9 decoded=8 crc-errors=1 discarded=0 dropped=0 handshakes=0 requests=0 tx-errors=0",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.out, FormatMessage(tc.msg))
		})
	}
}

func TestEventFilter(t *testing.T) {
	telemetry := &msgs.MotorTelemetry{MotorTelemetry: pb.MotorTelemetry{Link: 2}}
	fault := &msgs.LinkFault{LinkFault: pb.LinkFault{Link: 1}}
	require.True(t, eventFilter(0, true)(telemetry))
	require.True(t, eventFilter(2, true)(telemetry))
	require.False(t, eventFilter(1, true)(telemetry))
	require.False(t, eventFilter(0, false)(telemetry))
	require.True(t, eventFilter(1, false)(fault))
	require.False(t, eventFilter(0, true)(msgs.NewCommandOK()))
}

func TestFormatInfo(t *testing.T) {
	info := l1.UnitInfo{
		Ref:  l1.UnitRef{Type: "motorlink", ID: "abc"},
		Meta: l1.UnitMeta{Description: "front", Links: 2},
	}
	require.Equal(t, "motorlink/abc (2 links): front", FormatInfo(info))
}
