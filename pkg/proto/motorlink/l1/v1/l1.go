// Package v1 defines the protobuf wire schemas of L1 messages.
//
// The structs carry protobuf struct tags and are encoded by
// github.com/golang/protobuf/proto through its reflection path.
package v1

import "github.com/golang/protobuf/proto"

// Typed wraps an encoded message with its type id.
type Typed struct {
	TypeId   uint32 `protobuf:"varint,1,opt,name=type_id,json=typeId,proto3" json:"type_id,omitempty"`
	Sequence uint32 `protobuf:"varint,2,opt,name=sequence,proto3" json:"sequence,omitempty"`
	Message  []byte `protobuf:"bytes,3,opt,name=message,proto3" json:"message,omitempty"`
}

func (m *Typed) Reset()         { *m = Typed{} }
func (m *Typed) String() string { return proto.CompactTextString(m) }
func (*Typed) ProtoMessage()    {}

// CommandOK is the generic successful reply.
type CommandOK struct {
}

func (m *CommandOK) Reset()         { *m = CommandOK{} }
func (m *CommandOK) String() string { return proto.CompactTextString(m) }
func (*CommandOK) ProtoMessage()    {}

// CommandErr is the generic failure reply.
type CommandErr struct {
	Message string `protobuf:"bytes,1,opt,name=message,proto3" json:"message,omitempty"`
}

func (m *CommandErr) Reset()         { *m = CommandErr{} }
func (m *CommandErr) String() string { return proto.CompactTextString(m) }
func (*CommandErr) ProtoMessage()    {}

// MotorTelemetry is the decoded state of one link.
type MotorTelemetry struct {
	Link    uint32 `protobuf:"varint,1,opt,name=link,proto3" json:"link,omitempty"`
	State   uint32 `protobuf:"varint,2,opt,name=state,proto3" json:"state,omitempty"`
	Variant string `protobuf:"bytes,3,opt,name=variant,proto3" json:"variant,omitempty"`
	Rpm     uint32 `protobuf:"varint,4,opt,name=rpm,proto3" json:"rpm,omitempty"`
	// Speed in 100 m/h.
	Speed uint32 `protobuf:"varint,5,opt,name=speed,proto3" json:"speed,omitempty"`
	// Voltage in 100 mV.
	Voltage uint32 `protobuf:"varint,6,opt,name=voltage,proto3" json:"voltage,omitempty"`
	// Current in 100 mA.
	Current int32 `protobuf:"zigzag32,7,opt,name=current,proto3" json:"current,omitempty"`
	// Power in W.
	Power          int32  `protobuf:"zigzag32,8,opt,name=power,proto3" json:"power,omitempty"`
	Gear           uint32 `protobuf:"varint,9,opt,name=gear,proto3" json:"gear,omitempty"`
	Roll           uint32 `protobuf:"varint,10,opt,name=roll,proto3" json:"roll,omitempty"`
	MotorTemp      int32  `protobuf:"zigzag32,11,opt,name=motor_temp,json=motorTemp,proto3" json:"motor_temp,omitempty"`
	ControllerTemp int32  `protobuf:"zigzag32,12,opt,name=controller_temp,json=controllerTemp,proto3" json:"controller_temp,omitempty"`
	Errors         uint32 `protobuf:"varint,13,opt,name=errors,proto3" json:"errors,omitempty"`
	ActiveErrors   uint32 `protobuf:"varint,14,opt,name=active_errors,json=activeErrors,proto3" json:"active_errors,omitempty"`
	Throttle       uint32 `protobuf:"varint,15,opt,name=throttle,proto3" json:"throttle,omitempty"`
	Odometer       uint32 `protobuf:"varint,16,opt,name=odometer,proto3" json:"odometer,omitempty"`
	// Timestamp of the last decoded frame, unix nanoseconds.
	Timestamp int64 `protobuf:"varint,17,opt,name=timestamp,proto3" json:"timestamp,omitempty"`
}

func (m *MotorTelemetry) Reset()         { *m = MotorTelemetry{} }
func (m *MotorTelemetry) String() string { return proto.CompactTextString(m) }
func (*MotorTelemetry) ProtoMessage()    {}

// LinkStateChanged reports a connection state transition.
type LinkStateChanged struct {
	Link uint32 `protobuf:"varint,1,opt,name=link,proto3" json:"link,omitempty"`
	From uint32 `protobuf:"varint,2,opt,name=from,proto3" json:"from,omitempty"`
	To   uint32 `protobuf:"varint,3,opt,name=to,proto3" json:"to,omitempty"`
}

func (m *LinkStateChanged) Reset()         { *m = LinkStateChanged{} }
func (m *LinkStateChanged) String() string { return proto.CompactTextString(m) }
func (*LinkStateChanged) ProtoMessage()    {}

// LinkFault reports an error condition on a link.
type LinkFault struct {
	Link      uint32 `protobuf:"varint,1,opt,name=link,proto3" json:"link,omitempty"`
	Kind      uint32 `protobuf:"varint,2,opt,name=kind,proto3" json:"kind,omitempty"`
	Code      uint32 `protobuf:"varint,3,opt,name=code,proto3" json:"code,omitempty"`
	Timestamp int64  `protobuf:"varint,4,opt,name=timestamp,proto3" json:"timestamp,omitempty"`
}

func (m *LinkFault) Reset()         { *m = LinkFault{} }
func (m *LinkFault) String() string { return proto.CompactTextString(m) }
func (*LinkFault) ProtoMessage()    {}

// FaultsQuery requests the fault journal, Link 0 for all links.
type FaultsQuery struct {
	Link uint32 `protobuf:"varint,1,opt,name=link,proto3" json:"link,omitempty"`
}

func (m *FaultsQuery) Reset()         { *m = FaultsQuery{} }
func (m *FaultsQuery) String() string { return proto.CompactTextString(m) }
func (*FaultsQuery) ProtoMessage()    {}

// FaultEntry is the journal record of one controller fault flag.
type FaultEntry struct {
	Link      uint32 `protobuf:"varint,1,opt,name=link,proto3" json:"link,omitempty"`
	Bit       uint32 `protobuf:"varint,2,opt,name=bit,proto3" json:"bit,omitempty"`
	Name      string `protobuf:"bytes,3,opt,name=name,proto3" json:"name,omitempty"`
	Count     uint64 `protobuf:"varint,4,opt,name=count,proto3" json:"count,omitempty"`
	FirstSeen int64  `protobuf:"varint,5,opt,name=first_seen,json=firstSeen,proto3" json:"first_seen,omitempty"`
	LastSeen  int64  `protobuf:"varint,6,opt,name=last_seen,json=lastSeen,proto3" json:"last_seen,omitempty"`
}

func (m *FaultEntry) Reset()         { *m = FaultEntry{} }
func (m *FaultEntry) String() string { return proto.CompactTextString(m) }
func (*FaultEntry) ProtoMessage()    {}

// FaultSummary replies FaultsQuery.
type FaultSummary struct {
	Entries []*FaultEntry `protobuf:"bytes,1,rep,name=entries,proto3" json:"entries,omitempty"`
}

func (m *FaultSummary) Reset()         { *m = FaultSummary{} }
func (m *FaultSummary) String() string { return proto.CompactTextString(m) }
func (*FaultSummary) ProtoMessage()    {}

// ClearFaults drops journal records, Link 0 for all links.
type ClearFaults struct {
	Link uint32 `protobuf:"varint,1,opt,name=link,proto3" json:"link,omitempty"`
}

func (m *ClearFaults) Reset()         { *m = ClearFaults{} }
func (m *ClearFaults) String() string { return proto.CompactTextString(m) }
func (*ClearFaults) ProtoMessage()    {}

// LinkStatsQuery requests protocol counters of a link.
type LinkStatsQuery struct {
	Link uint32 `protobuf:"varint,1,opt,name=link,proto3" json:"link,omitempty"`
}

func (m *LinkStatsQuery) Reset()         { *m = LinkStatsQuery{} }
func (m *LinkStatsQuery) String() string { return proto.CompactTextString(m) }
func (*LinkStatsQuery) ProtoMessage()    {}

// LinkStats replies LinkStatsQuery.
type LinkStats struct {
	Link             uint32 `protobuf:"varint,1,opt,name=link,proto3" json:"link,omitempty"`
	Frames           uint64 `protobuf:"varint,2,opt,name=frames,proto3" json:"frames,omitempty"`
	Decoded          uint64 `protobuf:"varint,3,opt,name=decoded,proto3" json:"decoded,omitempty"`
	ChecksumErrors   uint64 `protobuf:"varint,4,opt,name=checksum_errors,json=checksumErrors,proto3" json:"checksum_errors,omitempty"`
	DiscardedBytes   uint64 `protobuf:"varint,5,opt,name=discarded_bytes,json=discardedBytes,proto3" json:"discarded_bytes,omitempty"`
	DroppedBytes     uint64 `protobuf:"varint,6,opt,name=dropped_bytes,json=droppedBytes,proto3" json:"dropped_bytes,omitempty"`
	Handshakes       uint64 `protobuf:"varint,7,opt,name=handshakes,proto3" json:"handshakes,omitempty"`
	PeriodicRequests uint64 `protobuf:"varint,8,opt,name=periodic_requests,json=periodicRequests,proto3" json:"periodic_requests,omitempty"`
	TxErrors         uint64 `protobuf:"varint,9,opt,name=tx_errors,json=txErrors,proto3" json:"tx_errors,omitempty"`
	State            uint32 `protobuf:"varint,10,opt,name=state,proto3" json:"state,omitempty"`
	Variant          string `protobuf:"bytes,11,opt,name=variant,proto3" json:"variant,omitempty"`
}

func (m *LinkStats) Reset()         { *m = LinkStats{} }
func (m *LinkStats) String() string { return proto.CompactTextString(m) }
func (*LinkStats) ProtoMessage()    {}
