// Package can publishes link telemetry as CAN objects.
//
// Each object has an 11-bit id and a payload of a type byte followed by
// little-endian fields for motor 1 then motor 2. Timer objects are
// broadcast periodically, event objects when something happens.
package can

import (
	"encoding/binary"
	"time"

	"github.com/robotalks/motorlink/pkg/l0/motorlink"
)

// Payload type bytes
const (
	TypeTimer byte = 0x01
	TypeEvent byte = 0x03
)

// Object ids
const (
	IDBlockInfo        uint32 = 0x0100
	IDBlockHealth      uint32 = 0x0101
	IDBlockError       uint32 = 0x0103
	IDControllerErrors uint32 = 0x0104
	IDRPM              uint32 = 0x0105
	IDSpeed            uint32 = 0x0106
	IDVoltage          uint32 = 0x0107
	IDCurrent          uint32 = 0x0108
	IDPower            uint32 = 0x0109
	IDGearRoll         uint32 = 0x010A
	IDTemperature      uint32 = 0x010B
	IDOdometer         uint32 = 0x010C
)

// Motors is the number of links carried by each object.
const Motors = 2

// Telemetry is what timer objects are encoded from, index 0 is link 1.
type Telemetry [Motors]motorlink.Telemetry

// Object is a timer broadcast object.
type Object struct {
	ID     uint32
	Name   string
	Period time.Duration
	// Encode returns the fields following the type byte.
	Encode func(*Telemetry) []byte
}

func u16s(t *Telemetry, field func(*motorlink.Telemetry) uint16) []byte {
	data := make([]byte, 2*Motors)
	for n := range t {
		binary.LittleEndian.PutUint16(data[n*2:], field(&t[n]))
	}
	return data
}

func pairs(t *Telemetry, first, second func(*motorlink.Telemetry) byte) []byte {
	data := make([]byte, 0, 2*Motors)
	for n := range t {
		data = append(data, first(&t[n]), second(&t[n]))
	}
	return data
}

// int8 saturates a temperature into a signed byte.
func int8Temp(v int16) byte {
	switch {
	case v > 127:
		v = 127
	case v < -128:
		v = -128
	}
	return byte(int8(v))
}

// Objects is the timer object table.
var Objects = []Object{
	{
		ID: IDControllerErrors, Name: "ControllerErrors", Period: 250 * time.Millisecond,
		Encode: func(t *Telemetry) []byte {
			return u16s(t, func(m *motorlink.Telemetry) uint16 { return uint16(m.ActiveErrors) })
		},
	},
	{
		ID: IDRPM, Name: "RPM", Period: 250 * time.Millisecond,
		Encode: func(t *Telemetry) []byte {
			return u16s(t, func(m *motorlink.Telemetry) uint16 { return m.RPM })
		},
	},
	{
		ID: IDSpeed, Name: "Speed", Period: 250 * time.Millisecond,
		Encode: func(t *Telemetry) []byte {
			return u16s(t, func(m *motorlink.Telemetry) uint16 { return m.Speed })
		},
	},
	{
		ID: IDVoltage, Name: "Voltage", Period: 500 * time.Millisecond,
		Encode: func(t *Telemetry) []byte {
			return u16s(t, func(m *motorlink.Telemetry) uint16 { return m.Voltage })
		},
	},
	{
		ID: IDCurrent, Name: "Current", Period: 500 * time.Millisecond,
		Encode: func(t *Telemetry) []byte {
			return u16s(t, func(m *motorlink.Telemetry) uint16 { return uint16(m.Current) })
		},
	},
	{
		ID: IDPower, Name: "Power", Period: 500 * time.Millisecond,
		Encode: func(t *Telemetry) []byte {
			return u16s(t, func(m *motorlink.Telemetry) uint16 { return uint16(m.Power) })
		},
	},
	{
		ID: IDGearRoll, Name: "GearRoll", Period: 500 * time.Millisecond,
		Encode: func(t *Telemetry) []byte {
			return pairs(t,
				func(m *motorlink.Telemetry) byte { return m.Gear },
				func(m *motorlink.Telemetry) byte { return byte(m.Roll) })
		},
	},
	{
		ID: IDTemperature, Name: "Temperature", Period: time.Second,
		Encode: func(t *Telemetry) []byte {
			return pairs(t,
				func(m *motorlink.Telemetry) byte { return int8Temp(m.MotorTemp) },
				func(m *motorlink.Telemetry) byte { return int8Temp(m.ControllerTemp) })
		},
	},
	{
		ID: IDOdometer, Name: "Odometer", Period: 5 * time.Second,
		Encode: func(t *Telemetry) []byte {
			// the vehicle odometer follows the motor that went furthest
			var odo uint32
			for n := range t {
				if t[n].Odometer > odo {
					odo = t[n].Odometer
				}
			}
			data := make([]byte, 4)
			binary.LittleEndian.PutUint32(data, odo)
			return data
		},
	},
}

// BlockInfo identifies the unit on the bus.
type BlockInfo struct {
	BoardType byte // 5 bits
	BoardVer  byte // 3 bits
	SoftVer   byte // 6 bits
	CANVer    byte // 2 bits
}

// DefaultBlockInfo describes this unit.
var DefaultBlockInfo = BlockInfo{BoardType: 0x05, BoardVer: 2, SoftVer: 1, CANVer: 1}

// InfoPeriod is the BlockInfo broadcast period.
const InfoPeriod = 15 * time.Second

// Encode returns the BlockInfo fields: board and software bytes then
// the uptime in seconds.
func (b BlockInfo) Encode(uptime time.Duration) []byte {
	data := []byte{b.BoardType<<3 | b.BoardVer&0x07, b.SoftVer<<2 | b.CANVer&0x03, 0, 0, 0, 0}
	binary.LittleEndian.PutUint32(data[2:], uint32(uptime/time.Second))
	return data
}

// HealthPayload returns the BlockHealth fields: one state byte per link.
func HealthPayload(states []motorlink.State) []byte {
	data := make([]byte, 0, 7)
	for n, s := range states {
		if n >= 7 {
			break
		}
		data = append(data, byte(s))
	}
	return data
}

// ErrorPayload returns the BlockError fields: link, kind and raw code.
func ErrorPayload(e *motorlink.LinkError) []byte {
	data := []byte{byte(e.Link), byte(e.Kind), 0, 0, 0, 0}
	binary.LittleEndian.PutUint32(data[2:], e.Code)
	return data
}
