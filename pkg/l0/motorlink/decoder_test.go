package motorlink

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func motionFrame(v *Variant, rawRPM uint16, gearRoll byte, faults FaultFlags) *Frame {
	payload := make([]byte, 8)
	payload[2] = gearRoll
	v.Order.PutUint16(payload[4:], rawRPM)
	v.Order.PutUint16(payload[6:], uint16(faults))
	return NewFrame(v, v.EncodeFrame(FuncMotion, payload))
}

func powerFrame(v *Variant, voltage uint16, rawCurrent int16, throttle uint16) *Frame {
	payload := make([]byte, 12)
	v.Order.PutUint16(payload[0:], voltage)
	v.Order.PutUint16(payload[2:], uint16(rawCurrent))
	v.Order.PutUint16(payload[10:], throttle)
	return NewFrame(v, v.EncodeFrame(FuncPower, payload))
}

func TestDecodeMotion(t *testing.T) {
	now := time.Unix(1000, 0)
	cases := []struct {
		name     string
		gearRoll byte
		gear     uint8
		roll     Roll
	}{
		{"stop", 0x00, 0, RollStop},
		{"reverse", 0x01 << 4, 0, RollReverse},
		{"forward gear 2", 0x32, 2, RollForward},
		{"unknown roll", 0x53, 3, RollUnknown},
	}
	for _, v := range Registry {
		for _, c := range cases {
			t.Run(v.Name+" "+c.name, func(t *testing.T) {
				var d Decoder
				var tm Telemetry
				require.True(t, d.Decode(&tm, motionFrame(v, 400, c.gearRoll, 0), now))
				require.Equal(t, uint16(100), tm.RPM)
				require.Equal(t, uint16(118), tm.Speed)
				require.Equal(t, c.gear, tm.Gear)
				require.Equal(t, c.roll, tm.Roll)
				require.Equal(t, now, tm.Updated)
			})
		}
	}
}

func TestDecodeFaults(t *testing.T) {
	var d Decoder
	var tm Telemetry
	now := time.Unix(1000, 0)
	d.Decode(&tm, motionFrame(Modern, 0, 0, FaultMotorEncoder|FaultVoltage), now)
	require.Equal(t, FaultMotorEncoder|FaultVoltage, tm.ActiveErrors)
	d.Decode(&tm, motionFrame(Modern, 0, 0, FaultAccelerationPedal), now)
	require.Equal(t, FaultAccelerationPedal, tm.ActiveErrors)
	require.Equal(t, FaultMotorEncoder|FaultAccelerationPedal|FaultVoltage, tm.Errors)
	require.Equal(t, "MotorEncoder|AccelerationPedal|Voltage", tm.Errors.String())
	d.Decode(&tm, motionFrame(Modern, 0, 0, 0), now)
	require.Zero(t, tm.ActiveErrors)
	require.Equal(t, "none", tm.ActiveErrors.String())
}

func TestDecodePower(t *testing.T) {
	cases := []struct {
		name       string
		rawCurrent int16
		current    int16
		power      int16
	}{
		{"drive", 40, 100, 1200},
		{"regen", -40, -100, -1200},
		{"idle", 3, 0, 0},
		{"clamped", 32767, 32767, 32767},
	}
	for _, v := range Registry {
		for _, c := range cases {
			t.Run(v.Name+" "+c.name, func(t *testing.T) {
				var d Decoder
				var tm Telemetry
				require.True(t, d.Decode(&tm, powerFrame(v, 1200, c.rawCurrent, 321), time.Unix(1, 0)))
				require.Equal(t, uint16(1200), tm.Voltage)
				require.Equal(t, c.current, tm.Current)
				require.Equal(t, c.power, tm.Power)
				require.Equal(t, uint16(321), tm.Throttle)
			})
		}
	}
}

func TestDecodeTemperatures(t *testing.T) {
	cases := []struct {
		raw    byte
		expect int16
	}{
		{0, 0},
		{35, 35},
		{200, 200},
		{201, -55},
		{0xF6, -10},
	}
	for _, c := range cases {
		var d Decoder
		var tm Telemetry
		now := time.Unix(1, 0)
		require.True(t, d.Decode(&tm, NewFrame(Modern, Modern.EncodeFrame(FuncController, []byte{c.raw})), now))
		require.True(t, d.Decode(&tm, NewFrame(Modern, Modern.EncodeFrame(FuncMotorThermo, []byte{c.raw})), now))
		require.Equal(t, c.expect, tm.ControllerTemp, "raw %d", c.raw)
		require.Equal(t, c.expect, tm.MotorTemp, "raw %d", c.raw)
	}
}

func TestDecodeUnknown(t *testing.T) {
	var d Decoder
	var tm Telemetry
	require.False(t, d.Decode(&tm, NewFrame(Modern, Modern.EncodeFrame(0x05, []byte{1, 2, 3})), time.Unix(1, 0)))
	require.Equal(t, Telemetry{}, tm)
}

func TestOdometer(t *testing.T) {
	d := Decoder{WheelCircumference: 2000, MaxAccrualGap: 500 * time.Millisecond}
	var tm Telemetry
	now := time.Unix(1000, 0)

	// 1000 rpm on a 2 m wheel is 120 km/h, 100 m every 3 s
	for n := 0; n <= 30; n++ {
		d.Decode(&tm, motionFrame(Modern, 4000, 0x30, 0), now)
		require.Equal(t, uint16(1200), tm.Speed)
		now = now.Add(100 * time.Millisecond)
	}
	require.Equal(t, uint32(1), tm.Odometer)

	// gaps longer than MaxAccrualGap are not accounted
	now = now.Add(time.Second)
	d.Decode(&tm, motionFrame(Modern, 0, 0, 0), now)
	require.Equal(t, uint32(1), tm.Odometer)
	require.Zero(t, tm.Speed)

	// speed is integrated from the previous frame
	now = now.Add(100 * time.Millisecond)
	d.Decode(&tm, motionFrame(Modern, 4000, 0x30, 0), now)
	for n := 0; n < 15; n++ {
		now = now.Add(200 * time.Millisecond)
		d.Decode(&tm, motionFrame(Modern, 4000, 0x30, 0), now)
	}
	require.Equal(t, uint32(2), tm.Odometer)
	require.Equal(t, now, tm.OdometerUpdated)
}
