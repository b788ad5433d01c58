package motorlink

import (
	"fmt"
	"strings"
	"time"
)

// Roll is the actual rotation direction of the motor.
type Roll uint8

// Rolls
const (
	RollUnknown Roll = iota
	RollStop
	RollForward
	RollReverse
)

// RollFromRaw maps the controller roll code.
func RollFromRaw(raw byte) Roll {
	switch raw {
	case 0x00:
		return RollStop
	case 0x01:
		return RollReverse
	case 0x03:
		return RollForward
	}
	return RollUnknown
}

// String implements fmt.Stringer.
func (r Roll) String() string {
	switch r {
	case RollStop:
		return "stop"
	case RollForward:
		return "forward"
	case RollReverse:
		return "reverse"
	}
	return "unknown"
}

// FaultFlags is the controller error bitmask.
type FaultFlags uint16

// Fault flags, bit 0 first.
const (
	FaultMotorEncoder FaultFlags = 1 << iota
	FaultAccelerationPedal
	FaultCurrentProtectRestart
	FaultPhaseCurrentMutation
	FaultVoltage
	FaultBurglar
	FaultMotorOverTemp
	FaultControllerOverTemp
	FaultPhaseCurrentOverflow
	FaultPhaseZero
	FaultPhaseShort
	FaultLineCurrZero
	FaultMosfetHighside
	FaultMosfetLowside
	FaultMoeCurrent
	FaultParking
)

var faultNames = [16]string{
	"MotorEncoder",
	"AccelerationPedal",
	"CurrentProtectRestart",
	"PhaseCurrentMutation",
	"Voltage",
	"Burglar",
	"MotorOverTemp",
	"ControllerOverTemp",
	"PhaseCurrentOverflow",
	"PhaseZero",
	"PhaseShort",
	"LineCurrZero",
	"MosfetHighside",
	"MosfetLowside",
	"MoeCurrent",
	"Parking",
}

// Each calls fn for every flag set, lowest bit first.
func (f FaultFlags) Each(fn func(bit int, name string)) {
	for bit := 0; bit < 16; bit++ {
		if f&(1<<uint(bit)) != 0 {
			fn(bit, faultNames[bit])
		}
	}
}

// String implements fmt.Stringer.
func (f FaultFlags) String() string {
	if f == 0 {
		return "none"
	}
	var names []string
	f.Each(func(_ int, name string) { names = append(names, name) })
	return strings.Join(names, "|")
}

// FaultName returns the name of a flag bit.
func FaultName(bit int) string {
	if bit < 0 || bit >= len(faultNames) {
		return fmt.Sprintf("bit%d", bit)
	}
	return faultNames[bit]
}

// Telemetry is the last known good state of a motor.
type Telemetry struct {
	RPM uint16
	// Speed in 100 m/h.
	Speed uint16
	// Voltage in 100 mV.
	Voltage uint16
	// Current in 100 mA.
	Current int16
	// Power in W.
	Power int16
	Gear  uint8
	Roll  Roll
	// Temperatures in °C.
	MotorTemp      int16
	ControllerTemp int16
	// Errors accumulates every flag ever reported.
	Errors FaultFlags
	// ActiveErrors are the flags of the latest frame.
	ActiveErrors FaultFlags
	Throttle     uint16
	// Odometer in 100 m.
	Odometer        uint32
	OdometerUpdated time.Time
	Updated         time.Time

	// odometer accrual in 100 m × ms/h not yet carried into Odometer.
	odoRemainder uint64
}
