package msgs

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang/protobuf/proto"

	fx "github.com/robotalks/motorlink/pkg/framework"
	pb "github.com/robotalks/motorlink/pkg/proto/motorlink/l1/v1"
)

// Kind classifies a type ID.
type Kind int

// Message kinds.
const (
	KindCommand Kind = iota
	KindReply
	KindEvent
)

func (k Kind) String() string {
	switch k {
	case KindReply:
		return "reply"
	case KindEvent:
		return "event"
	default:
		return "command"
	}
}

// KindOf classifies typeID.
func KindOf(typeID uint32) Kind {
	switch {
	case typeID&TypeIDMaskKind == TypeIDKindEvent:
		return KindEvent
	case typeID&TypeIDMaskReply != 0:
		return KindReply
	}
	return KindCommand
}

// TypeID masks
const (
	TypeIDMaskKind  uint32 = 0x80000000
	TypeIDMaskGroup uint32 = 0x7fff0000
	TypeIDMaskID    uint32 = 0x0000ffff
	TypeIDMaskReply uint32 = 0x00008000
)

// Message Kinds
const (
	TypeIDKindCommand uint32 = 0x00000000
	TypeIDKindEvent   uint32 = 0x80000000
)

// Typed wraps a message with type information.
type Typed struct {
	pb.Typed
}

// TypedMsgHandler handles a command-kind message.
type TypedMsgHandler interface {
	HandleTypedMsg(context.Context, fx.Message, *Typed) error
}

// HandleTypedMsgFunc is func form of TypedMsgHandler.
type HandleTypedMsgFunc func(context.Context, fx.Message, *Typed) error

// HandleTypedMsg implements TypedMsgHandler.
func (f HandleTypedMsgFunc) HandleTypedMsg(ctx context.Context, msg fx.Message, typed *Typed) error {
	return f(ctx, msg, typed)
}

// ErrUnknownType indicates unknown type id.
type ErrUnknownType struct {
	TypeID uint32
}

// Error implements error.
func (e *ErrUnknownType) Error() string {
	return fmt.Sprintf("unknown type: %x", e.TypeID)
}

var (
	// ErrNotSerializable indicates the message is not serializable.
	ErrNotSerializable = errors.New("not serializable message")
	// ErrUnsupportedCommand indicates the command is unsupported.
	ErrUnsupportedCommand = errors.New("unsupported command")
)

// SerializableMessage can be serialized over the wire.
type SerializableMessage interface {
	NewMessage() fx.Message
	TypeID() uint32
	Serializable() proto.Message
}

type registeredType struct {
	name  string
	proto SerializableMessage
}

// MessageTypes maps type IDs to registered messages.
var MessageTypes = make(map[uint32]registeredType)

// Register makes a message type decodable by Typed.Decode. It panics on
// a duplicated type ID.
func Register(name string, proto SerializableMessage) {
	id := proto.TypeID()
	if existing, ok := MessageTypes[id]; ok {
		panic(fmt.Sprintf("type %08x registered by %s and %s", id, existing.name, name))
	}
	MessageTypes[id] = registeredType{name: name, proto: proto}
}

func init() {
	Register("CommandOK", (*CommandOK)(nil))
	Register("CommandErr", (*CommandErr)(nil))
	Register("MotorTelemetry", (*MotorTelemetry)(nil))
	Register("LinkStateChanged", (*LinkStateChanged)(nil))
	Register("LinkFault", (*LinkFault)(nil))
	Register("FaultsQuery", (*FaultsQuery)(nil))
	Register("FaultSummary", (*FaultSummary)(nil))
	Register("ClearFaults", (*ClearFaults)(nil))
	Register("LinkStatsQuery", (*LinkStatsQuery)(nil))
	Register("LinkStats", (*LinkStats)(nil))
}

// TypedFrom creates a Typed from a serializable message.
func TypedFrom(msg fx.Message) (*Typed, error) {
	if s, ok := msg.(SerializableMessage); ok {
		typeID, serializable := s.TypeID(), s.Serializable()
		data, err := proto.Marshal(serializable)
		if err != nil {
			return nil, err
		}
		return &Typed{Typed: pb.Typed{TypeId: typeID, Message: data}}, nil
	}
	return nil, ErrNotSerializable
}

// TypeName returns a readable name of the type id.
func TypeName(typeID uint32) string {
	if t, ok := MessageTypes[typeID]; ok {
		return t.name
	}
	return fmt.Sprintf("%s:%08x", KindOf(typeID), typeID)
}

// Decode decodes the packet into actual message.
func (p Typed) Decode() (fx.Message, error) {
	t, ok := MessageTypes[p.TypeId]
	if !ok {
		return nil, &ErrUnknownType{TypeID: p.TypeId}
	}
	msg := t.proto.NewMessage()
	serializable := msg.(SerializableMessage).Serializable()
	if err := proto.Unmarshal(p.Message, serializable); err != nil {
		return nil, err
	}
	return msg, nil
}

// Encode encodes the Typed to bytes.
func (p Typed) Encode() ([]byte, error) {
	return proto.Marshal(&p.Typed)
}

// Kind returns the message kind from the type ID.
func (p Typed) Kind() Kind {
	return KindOf(p.TypeId)
}

// IsCommand determines if the message is a command or a reply.
func (p Typed) IsCommand() bool {
	return p.Kind() != KindEvent
}

// IsEvent determines if the message is an event.
func (p Typed) IsEvent() bool {
	return p.Kind() == KindEvent
}

// IsReply determines if the message replies a command.
func (p Typed) IsReply() bool {
	return p.Kind() == KindReply
}

// DecodeTyped decodes bytes into Typed.
func DecodeTyped(data []byte) (*Typed, error) {
	var typed Typed
	if err := proto.Unmarshal(data, &typed.Typed); err != nil {
		return nil, err
	}
	return &typed, nil
}
