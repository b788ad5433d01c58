// Package comm carries L1 messages over packet streams.
//
// A Pipe encodes messages as Typed packets over any PacketReadWriter
// (MQTT topics, length-prefixed TCP streams, WebSocket messages).
// Registrar and Hub sit on the unit side, UnitConn on the consumer side.
package comm

// PacketReader reads packets in bytes.
type PacketReader interface {
	ReadPacket() ([]byte, error)
}

// PacketWriter writes packets in bytes.
type PacketWriter interface {
	WritePacket([]byte) error
}

// PacketReadWriter reads/writes packets in bytes.
type PacketReadWriter interface {
	PacketReader
	PacketWriter
}
