package sim

import (
	"math"
	"sync"
	"time"

	"github.com/robotalks/motorlink/pkg/l0/motorlink"
)

// Motor defaults
const (
	DefaultVoltage = 72.0
	// DefaultAcceleration in rpm/s.
	DefaultAcceleration = 500.0
)

// MotorState is a sample of the simulated motor.
type MotorState struct {
	RPM float64
	// Voltage in V.
	Voltage float64
	// Current in A, negative when braking.
	Current  float64
	Gear     uint8
	Roll     motorlink.Roll
	Throttle uint16
	// Temperatures in °C.
	MotorTemp      int8
	ControllerTemp int8
	Faults         motorlink.FaultFlags
}

// Motor models a hub motor ramping towards a desired speed.
type Motor struct {
	// Acceleration in rpm/s, 0 changes speed instantly.
	Acceleration float64
	// Voltage is the nominal battery voltage.
	Voltage float64

	gear           uint8
	motorTemp      int8
	controllerTemp int8
	faults         motorlink.FaultFlags

	startTime       time.Time
	accelStartRPM   float64
	accelEndTime    time.Time
	accel           float64
	desiredRPM      float64
	currentRPM      float64
	lastEstimatedAt time.Time

	lock sync.Mutex
}

// NewMotor creates a Motor at rest.
func NewMotor() *Motor {
	return &Motor{
		Acceleration:   DefaultAcceleration,
		Voltage:        DefaultVoltage,
		gear:           1,
		motorTemp:      25,
		controllerTemp: 25,
	}
}

// Drive sets the desired speed, negative for reverse.
func (m *Motor) Drive(now time.Time, rpm float64) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.estimate(now)
	m.startTime, m.lastEstimatedAt = now, now
	m.desiredRPM = rpm
	m.accelStartRPM = m.currentRPM
	m.accel = math.Abs(m.Acceleration)
	if m.accel == 0 {
		m.currentRPM = rpm
		m.accelEndTime = now
		return
	}
	diff := math.Abs(rpm - m.currentRPM)
	m.accelEndTime = now.Add(time.Duration(diff*1000000/m.accel) * time.Microsecond)
	if m.currentRPM > rpm {
		m.accel = -m.accel
	}
}

// SetGear selects the gear, 0 to 3.
func (m *Motor) SetGear(gear uint8) {
	m.lock.Lock()
	m.gear = gear & 0x03
	m.lock.Unlock()
}

// SetTemperatures sets motor and controller temperatures.
func (m *Motor) SetTemperatures(motor, controller int8) {
	m.lock.Lock()
	m.motorTemp, m.controllerTemp = motor, controller
	m.lock.Unlock()
}

// SetFaults raises controller fault flags, 0 clears them.
func (m *Motor) SetFaults(faults motorlink.FaultFlags) {
	m.lock.Lock()
	m.faults = faults
	m.lock.Unlock()
}

// Sample estimates the motor state at now.
func (m *Motor) Sample(now time.Time) MotorState {
	m.lock.Lock()
	defer m.lock.Unlock()
	accelerating := m.estimate(now)
	s := MotorState{
		RPM:            m.currentRPM,
		Gear:           m.gear,
		MotorTemp:      m.motorTemp,
		ControllerTemp: m.controllerTemp,
		Faults:         m.faults,
	}
	switch {
	case m.currentRPM > 0:
		s.Roll = motorlink.RollForward
	case m.currentRPM < 0:
		s.Roll = motorlink.RollReverse
	default:
		s.Roll = motorlink.RollStop
	}
	speed := math.Abs(m.currentRPM)
	if speed > 0 {
		s.Current = 2 + speed/100
	}
	if accelerating {
		if math.Abs(m.desiredRPM) > math.Abs(m.accelStartRPM) {
			s.Current += 10
		} else {
			s.Current = -s.Current
		}
	}
	s.Voltage = m.Voltage - s.Current*0.05
	if s.Current > 0 {
		s.Throttle = uint16(math.Min(s.Current*100, 4095))
	}
	return s
}

// estimate advances currentRPM to now and reports whether the motor is
// still ramping.
func (m *Motor) estimate(now time.Time) bool {
	if now.Before(m.lastEstimatedAt) {
		now = m.lastEstimatedAt
	}
	m.lastEstimatedAt = now
	if !now.Before(m.accelEndTime) {
		m.currentRPM = m.desiredRPM
		return false
	}
	secs := now.Sub(m.startTime).Seconds()
	m.currentRPM = m.accelStartRPM + m.accel*secs
	return true
}
