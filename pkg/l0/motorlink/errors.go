package motorlink

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidLink indicates a link index out of range.
var ErrInvalidLink = errors.New("invalid link")

// ErrorKind classifies conditions reported through ErrorHandler.
type ErrorKind int

// Error kinds
const (
	// ErrorOverflow means ingested bytes were dropped, Code is the count.
	ErrorOverflow ErrorKind = iota + 1
	// ErrorLinkLost means a streaming link went silent.
	ErrorLinkLost
	// ErrorProtocolMismatch means the link kept failing to connect,
	// Code is the number of failed cycles.
	ErrorProtocolMismatch
	// ErrorControllerFault means the controller fault flags changed,
	// Code is the new FaultFlags.
	ErrorControllerFault
)

var errorKindNames = map[ErrorKind]string{
	ErrorOverflow:         "overflow",
	ErrorLinkLost:         "link lost",
	ErrorProtocolMismatch: "protocol mismatch",
	ErrorControllerFault:  "controller fault",
}

// String implements fmt.Stringer.
func (k ErrorKind) String() string {
	if name, ok := errorKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// LinkError is a transient condition on a link.
type LinkError struct {
	Link int
	Kind ErrorKind
	Code uint32
	Time time.Time
}

// Error implements error.
func (e *LinkError) Error() string {
	if e.Kind == ErrorControllerFault {
		return fmt.Sprintf("link %d: %s: %s", e.Link, e.Kind, FaultFlags(e.Code))
	}
	return fmt.Sprintf("link %d: %s (%d)", e.Link, e.Kind, e.Code)
}

// ErrorHandler receives LinkErrors. It is called from Process.
type ErrorHandler interface {
	HandleLinkError(*LinkError)
}

// HandleLinkErrorFunc is func type of ErrorHandler.
type HandleLinkErrorFunc func(*LinkError)

// HandleLinkError implements ErrorHandler.
func (f HandleLinkErrorFunc) HandleLinkError(e *LinkError) {
	f(e)
}

// Transmitter sends bytes back to the controller on a link.
type Transmitter interface {
	Transmit(link int, data []byte) error
}

// TransmitFunc is func type of Transmitter.
type TransmitFunc func(link int, data []byte) error

// Transmit implements Transmitter.
func (f TransmitFunc) Transmit(link int, data []byte) error {
	return f(link, data)
}
