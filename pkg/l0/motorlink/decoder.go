package motorlink

import (
	"math"
	"time"
)

// Function ids
const (
	FuncMotion      byte = 0x00
	FuncPower       byte = 0x01
	FuncController  byte = 0x04
	FuncMotorThermo byte = 0x0D
)

// DefaultWheelCircumference in mm.
const DefaultWheelCircumference = 1978

const msPerHour = 3600000

// Decoder maps validated frames to Telemetry fields.
type Decoder struct {
	// WheelCircumference in mm, used to derive speed from RPM.
	WheelCircumference uint32
	// MaxAccrualGap skips odometer accrual over longer silences.
	MaxAccrualGap time.Duration
}

// Decode updates t from f. It returns false for function ids carrying
// nothing of interest.
func (d *Decoder) Decode(t *Telemetry, f *Frame, now time.Time) bool {
	switch f.FunctionID() {
	case FuncMotion:
		d.accrue(t, now)
		t.RPM = f.Uint16(6) / 4
		gearRoll := f.Byte(4)
		t.Gear = gearRoll & 0x03
		t.Roll = RollFromRaw(gearRoll >> 4)
		t.ActiveErrors = FaultFlags(f.Uint16(8))
		t.Errors |= t.ActiveErrors
		t.Speed = d.speed(t.RPM)
	case FuncPower:
		t.Voltage = f.Uint16(2)
		current := int32(f.Int16(4)>>2) * 10
		t.Current = clampInt16(current)
		t.Power = clampInt16(int32(t.Voltage) * int32(t.Current) / 100)
		t.Throttle = f.Uint16(12)
	case FuncController:
		t.ControllerTemp = temperature(f.Byte(2))
	case FuncMotorThermo:
		t.MotorTemp = temperature(f.Byte(2))
	default:
		return false
	}
	t.Updated = now
	return true
}

// speed in 100 m/h.
func (d *Decoder) speed(rpm uint16) uint16 {
	circ := d.WheelCircumference
	if circ == 0 {
		circ = DefaultWheelCircumference
	}
	v := uint64(rpm) * uint64(circ) * 60 / 100000
	if v > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(v)
}

// accrue adds the distance covered at the current speed since the
// previous accrual.
func (d *Decoder) accrue(t *Telemetry, now time.Time) {
	last := t.OdometerUpdated
	t.OdometerUpdated = now
	if last.IsZero() {
		return
	}
	elapsed := now.Sub(last)
	if elapsed <= 0 || (d.MaxAccrualGap > 0 && elapsed > d.MaxAccrualGap) {
		return
	}
	acc := t.odoRemainder + uint64(t.Speed)*uint64(elapsed/time.Millisecond)
	t.Odometer += uint32(acc / msPerHour)
	t.odoRemainder = acc % msPerHour
}

// temperature decodes a byte where values above 200 are negative.
func temperature(raw byte) int16 {
	if raw <= 200 {
		return int16(raw)
	}
	return int16(int8(raw))
}

func clampInt16(v int32) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
