package motorlink

import (
	"bytes"
	"encoding/binary"
)

// FrameLength is the length of a data frame for all known variants.
const FrameLength = 16

// StartByte leads every data frame.
const StartByte byte = 0xAA

// Variant describes one protocol dialect. Variants are data; a link
// stores the index of its selected variant in the registry.
type Variant struct {
	Name string
	// HandshakeRequest is sent by the controller to start pairing.
	HandshakeRequest []byte
	// HandshakeResponse is sent back when pairing.
	HandshakeResponse []byte
	StartByte         byte
	// HighBit is the expected top bit of the second frame byte.
	HighBit  bool
	Checksum Checksum
	// Order is the byte order of multi-byte fields and the checksum.
	Order binary.ByteOrder
	// PeriodicRequest asks the controller for another batch of frames.
	// Empty for free-running controllers.
	PeriodicRequest []byte
	// PacketThreshold is the number of frames after which the periodic
	// request is sent. 0 disables the count based trigger.
	PacketThreshold int
	// RequestOnPair sends PeriodicRequest right after HandshakeResponse.
	RequestOnPair bool
	FrameLength   int
}

var (
	// Legacy is the 2022-era dialect.
	Legacy = &Variant{
		Name:              "legacy",
		HandshakeRequest:  []byte("AT+PASS=29688781"),
		HandshakeResponse: []byte("+PASS=ONNDONKE"),
		StartByte:         StartByte,
		HighBit:           false,
		Checksum:          ChecksumSum16,
		Order:             binary.BigEndian,
		PeriodicRequest:   EncodeRequest([6]byte{0xAA, 0x13, 0xEC, 0x07, 0x09, 0x6F}),
		PacketThreshold:   18,
		RequestOnPair:     true,
		FrameLength:       FrameLength,
	}

	// Modern is the 2023-era dialect.
	Modern = &Variant{
		Name:              "modern",
		HandshakeRequest:  []byte("AT+VERSION"),
		HandshakeResponse: EncodeRequest([6]byte{0xAA, 0x13, 0xEC, 0x07, 0x01, 0xF1}),
		StartByte:         StartByte,
		HighBit:           true,
		Checksum:          ChecksumCRC16,
		Order:             binary.LittleEndian,
		FrameLength:       FrameLength,
	}

	// Registry is the ordered list of variants tried on unidentified links.
	Registry = []*Variant{Legacy, Modern}
)

// VariantByName finds a variant in Registry, nil if unknown.
func VariantByName(name string) *Variant {
	for _, v := range Registry {
		if v.Name == name {
			return v
		}
	}
	return nil
}

// String implements fmt.Stringer.
func (v *Variant) String() string {
	return v.Name
}

// IsHandshake tests whether buf starts with the handshake request.
func (v *Variant) IsHandshake(buf []byte) bool {
	return bytes.HasPrefix(buf, v.HandshakeRequest)
}

// isHandshakePrefix tests whether buf is a strict prefix of the
// handshake request.
func (v *Variant) isHandshakePrefix(buf []byte) bool {
	return len(buf) < len(v.HandshakeRequest) && bytes.HasPrefix(v.HandshakeRequest, buf)
}

// isFrameStart tests the start byte and the polarity of the second byte,
// as far as buf reaches.
func (v *Variant) isFrameStart(buf []byte) bool {
	if len(buf) == 0 || buf[0] != v.StartByte {
		return false
	}
	return len(buf) < 2 || (buf[1]&0x80 != 0) == v.HighBit
}

func (v *Variant) checksumOf(frame []byte) uint16 {
	return v.Order.Uint16(frame[v.FrameLength-2:])
}

// IsFrame tests whether buf starts with a complete, valid data frame.
func (v *Variant) IsFrame(buf []byte) bool {
	if len(buf) < v.FrameLength || !v.isFrameStart(buf) {
		return false
	}
	return v.Checksum.Compute(buf[:v.FrameLength-2]) == v.checksumOf(buf)
}

// Seal writes the checksum into the last 2 bytes of frame.
func (v *Variant) Seal(frame []byte) {
	v.Order.PutUint16(frame[v.FrameLength-2:], v.Checksum.Compute(frame[:v.FrameLength-2]))
}

// EncodeFrame builds a sealed frame for the function id with payload
// placed from byte 2. Payload beyond the checksum field is ignored.
func (v *Variant) EncodeFrame(id byte, payload []byte) []byte {
	frame := make([]byte, v.FrameLength)
	frame[0] = v.StartByte
	frame[1] = id & 0x7f
	if v.HighBit {
		frame[1] |= 0x80
	}
	copy(frame[2:v.FrameLength-2], payload)
	v.Seal(frame)
	return frame
}
