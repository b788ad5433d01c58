// Package msgs provides the L1 protocol and all message schemas.
package msgs

// L1 protocol is communicated between the motorlink unit and its
// consumers (dashboards, loggers, the monitor shell). Messages are
// hardware-agnostic: raw frames never leave the unit.
//
// Producer: motorlink unit
// Consumer: monitors and higher level controllers
