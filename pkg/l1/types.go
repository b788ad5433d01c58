// Package l1 defines how a motorlink unit is registered and reached.
//
// A unit is one running daemon owning a set of UART links. It publishes
// telemetry events and answers commands through Registrars; consumers
// find and talk to units through a Connector.
package l1

import (
	"context"

	fx "github.com/robotalks/motorlink/pkg/framework"
)

// Registrar registers a unit to a registry.
// It integrates with framework and helps the unit to
// easily process commands.
type Registrar interface {
	// SendEvent sends an event to consumers.
	SendEvent(context.Context, fx.Message) error
}

// Command represents a received command to be processed.
type Command interface {
	Msg() fx.Message
	Done(fx.Message) error
}

// CommandMsg wraps a Command as a Message.
type CommandMsg struct {
	Command Command
}

// UnitRef is a reference to a unit.
type UnitRef struct {
	// Type is the unit type.
	Type string
	// ID is unique ID of the device.
	ID string
}

// Name retrieves the name from ref.
func (r UnitRef) Name() string {
	return r.Type + "/" + r.ID
}

// IsValid indicates UnitRef is valid.
func (r UnitRef) IsValid() bool {
	return r.Type != "" && r.ID != ""
}

// UnitMeta provides metadata of a unit.
type UnitMeta struct {
	Description string            `json:"description,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
	// Links is the number of UART links served.
	Links int `json:"links,omitempty"`
}

// UnitInfo provides information of a unit.
type UnitInfo struct {
	Ref  UnitRef
	Meta UnitMeta
}

// Connector is used by consumers to connect to a unit.
type Connector interface {
	// Discover enumerates registered units.
	Discover(context.Context) ([]UnitInfo, error)
	// Connect connects to the specified unit.
	Connect(context.Context, UnitRef) (UnitConn, error)
}

// UnitConn is the connection to a unit.
type UnitConn interface {
	// DoCommand executes a command.
	DoCommand(fx.Message) CommandFuture
	// Events subscribes to events, the returned func unsubscribes.
	Events(func(fx.Message)) (cancel func())
}

// Result represents result of a command.
type Result struct {
	Msg fx.Message
	Err error
}

// CommandFuture is the future of sent command.
type CommandFuture interface {
	ResultChan() <-chan Result
}

// Wait waits for the result of f or ctx to be done.
func Wait(ctx context.Context, f CommandFuture) Result {
	select {
	case r, ok := <-f.ResultChan():
		if !ok {
			return Result{Err: context.Canceled}
		}
		return r
	case <-ctx.Done():
		return Result{Err: ctx.Err()}
	}
}
