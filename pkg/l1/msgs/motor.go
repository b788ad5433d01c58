package msgs

import (
	"time"

	"github.com/golang/protobuf/proto"

	fx "github.com/robotalks/motorlink/pkg/framework"
	pb "github.com/robotalks/motorlink/pkg/proto/motorlink/l1/v1"
)

// MotorTelemetry event.
type MotorTelemetry struct {
	pb.MotorTelemetry
}

// NewMessage implements Message.
func (m *MotorTelemetry) NewMessage() fx.Message { return &MotorTelemetry{} }

// TypeID implements SerializableMessage.
func (m *MotorTelemetry) TypeID() uint32 { return MotorTelemetryTypeID }

// Serializable implements SerializableMessage.
func (m *MotorTelemetry) Serializable() proto.Message { return &m.MotorTelemetry }

// Time returns Timestamp as time.Time.
func (m *MotorTelemetry) Time() time.Time { return time.Unix(0, m.Timestamp) }

// LinkStateChanged event.
type LinkStateChanged struct {
	pb.LinkStateChanged
}

// NewMessage implements Message.
func (m *LinkStateChanged) NewMessage() fx.Message { return &LinkStateChanged{} }

// TypeID implements SerializableMessage.
func (m *LinkStateChanged) TypeID() uint32 { return LinkStateChangedTypeID }

// Serializable implements SerializableMessage.
func (m *LinkStateChanged) Serializable() proto.Message { return &m.LinkStateChanged }

// LinkFault event.
type LinkFault struct {
	pb.LinkFault
}

// NewMessage implements Message.
func (m *LinkFault) NewMessage() fx.Message { return &LinkFault{} }

// TypeID implements SerializableMessage.
func (m *LinkFault) TypeID() uint32 { return LinkFaultTypeID }

// Serializable implements SerializableMessage.
func (m *LinkFault) Serializable() proto.Message { return &m.LinkFault }

// FaultsQuery command.
type FaultsQuery struct {
	pb.FaultsQuery
}

// NewMessage implements Message.
func (m *FaultsQuery) NewMessage() fx.Message { return &FaultsQuery{} }

// TypeID implements SerializableMessage.
func (m *FaultsQuery) TypeID() uint32 { return FaultsQueryTypeID }

// Serializable implements SerializableMessage.
func (m *FaultsQuery) Serializable() proto.Message { return &m.FaultsQuery }

// FaultSummary response.
type FaultSummary struct {
	pb.FaultSummary
}

// NewMessage implements Message.
func (m *FaultSummary) NewMessage() fx.Message { return &FaultSummary{} }

// TypeID implements SerializableMessage.
func (m *FaultSummary) TypeID() uint32 { return FaultSummaryTypeID }

// Serializable implements SerializableMessage.
func (m *FaultSummary) Serializable() proto.Message { return &m.FaultSummary }

// ClearFaults command.
type ClearFaults struct {
	pb.ClearFaults
}

// NewMessage implements Message.
func (m *ClearFaults) NewMessage() fx.Message { return &ClearFaults{} }

// TypeID implements SerializableMessage.
func (m *ClearFaults) TypeID() uint32 { return ClearFaultsTypeID }

// Serializable implements SerializableMessage.
func (m *ClearFaults) Serializable() proto.Message { return &m.ClearFaults }

// LinkStatsQuery command.
type LinkStatsQuery struct {
	pb.LinkStatsQuery
}

// NewMessage implements Message.
func (m *LinkStatsQuery) NewMessage() fx.Message { return &LinkStatsQuery{} }

// TypeID implements SerializableMessage.
func (m *LinkStatsQuery) TypeID() uint32 { return LinkStatsQueryTypeID }

// Serializable implements SerializableMessage.
func (m *LinkStatsQuery) Serializable() proto.Message { return &m.LinkStatsQuery }

// LinkStats response.
type LinkStats struct {
	pb.LinkStats
}

// NewMessage implements Message.
func (m *LinkStats) NewMessage() fx.Message { return &LinkStats{} }

// TypeID implements SerializableMessage.
func (m *LinkStats) TypeID() uint32 { return LinkStatsTypeID }

// Serializable implements SerializableMessage.
func (m *LinkStats) Serializable() proto.Message { return &m.LinkStats }
