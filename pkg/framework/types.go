package framework

import (
	"context"
	"time"
)

// Named is an abstraction for things with a name.
type Named interface {
	Name() string
}

// Runnable defines a generic interface for background runners.
type Runnable interface {
	Run(context.Context) error
}

// RunFunc is the func form of Runnable.
type RunFunc func(context.Context) error

// Run implements Runnable.
func (f RunFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Message is anything passed between controllers within
// a loop iteration.
type Message interface{}

// Controller defines the abstract controlling logic.
type Controller interface {
	Control(ControlContext) error
}

// ControlFunc defines the func form of Controller.
type ControlFunc func(ControlContext) error

// Control implements Controller.
func (f ControlFunc) Control(ctx ControlContext) error {
	return f(ctx)
}

// TimeSource provides the time for controlling logic.
type TimeSource interface {
	Time() time.Time
}

// Clock is the func form of TimeSource.
type Clock func() time.Time

// Time implements TimeSource.
func (c Clock) Time() time.Time {
	return c()
}

// ControlContext provides the context of current control
// iteration.
type ControlContext interface {
	TimeSource
	// Context retrieves context.Context.
	Context() context.Context
	// PriorityLevel gets the current priority level.
	PriorityLevel() int
	// Messages retrieves the messages of this iteration.
	// Messages added by a controller are visible to controllers
	// running at the same or lower priority later in the iteration.
	Messages() MessageStore

	LoopControl
}

// PriorityLevels is the total levels of priorities.
const PriorityLevels int = 16

// Predefined priority levels
const (
	PrLvTop    int = 0
	PrLvHigh   int = 4
	PrLvNormal int = 8
	PrLvLow    int = 12
	PrLvIdle   int = PriorityLevels - 1

	// PrLvSense is for components collecting input.
	PrLvSense = PrLvHigh
	// PrLvControl is for the protocol engine.
	PrLvControl = PrLvNormal
	// PrLvAcuate is for components pushing data out (bus, broker).
	PrLvAcuate = PrLvLow
	// PrLvPostProc is for bookkeeping after everything else.
	PrLvPostProc = PrLvIdle - 1
)

// LoopControl exposes access to the controlling loop.
type LoopControl interface {
	// PostMessage enqueues the message for the next iteration.
	PostMessage(Message)
	// TriggerNext schedules the next iteration to be executed
	// immediately after the current iteration.
	TriggerNext()
}

// MessageStore provides read/append access to iteration messages.
type MessageStore interface {
	// Range calls fn for each message until fn returns false.
	Range(fn func(Message) bool)
	// ProcessMessages passes every message to proc, removing the taken ones.
	ProcessMessages(proc MessageProcessor)
	// AddMessages appends messages to the store.
	AddMessages(msgs ...Message)
}

// MessageProcessor is used by MessageStore to process messages.
type MessageProcessor interface {
	ProcessMessage(MessageProcessingContext)
}

// ProcessMessageFunc is the func form of MessageProcessor.
type ProcessMessageFunc func(MessageProcessingContext)

// ProcessMessage implements MessageProcessor.
func (f ProcessMessageFunc) ProcessMessage(mc MessageProcessingContext) {
	f(mc)
}

// MessageProcessingContext provides the message being processed.
type MessageProcessingContext interface {
	CurrentMessage() Message
	// MessageTaken removes the current message from the store.
	MessageTaken()
	// StopProcessing skips the remaining messages.
	StopProcessing()
}
