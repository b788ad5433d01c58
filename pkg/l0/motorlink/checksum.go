package motorlink

import (
	"fmt"

	"github.com/sigurn/crc16"
)

// Checksum selects the algorithm protecting a data frame.
type Checksum int

// Checksum algorithms.
const (
	// ChecksumSum16 is the 16-bit algebraic sum used by legacy controllers.
	ChecksumSum16 Checksum = iota
	// ChecksumCRC16 is the CRC-16 variant used by modern controllers.
	ChecksumCRC16
)

// The register of the reflected algorithm is seeded with 0x7F3C, which
// is 0x3CFE in the unreflected Rocksoft model.
var crcParams = crc16.Params{
	Poly:   0x8005,
	Init:   0x3CFE,
	RefIn:  true,
	RefOut: true,
	XorOut: 0x0000,
	Check:  0xDE7B,
	Name:   "CRC-16/MOTORLINK",
}

var crcTable = crc16.MakeTable(crcParams)

// CRC16 computes the modern frame checksum over data.
func CRC16(data []byte) uint16 {
	crc := crc16.Init(crcTable)
	crc = crc16.Update(crc, data, crcTable)
	return crc16.Complete(crc, crcTable)
}

// Sum16 computes the legacy checksum: the sum of all bytes mod 2^16.
func Sum16(data []byte) uint16 {
	var sum uint16
	for _, b := range data {
		sum += uint16(b)
	}
	return sum
}

// Compute calculates the checksum over data.
func (c Checksum) Compute(data []byte) uint16 {
	if c == ChecksumCRC16 {
		return CRC16(data)
	}
	return Sum16(data)
}

// String implements fmt.Stringer.
func (c Checksum) String() string {
	switch c {
	case ChecksumSum16:
		return "sum16"
	case ChecksumCRC16:
		return "crc16"
	}
	return fmt.Sprintf("checksum(%d)", int(c))
}

// RequestLength is the length of short request messages sent to controllers.
const RequestLength = 8

// EncodeRequest builds a short request message: the 6 command bytes
// followed by the low byte of their sum and its complement.
func EncodeRequest(cmd [6]byte) []byte {
	sum := byte(Sum16(cmd[:]))
	msg := make([]byte, 0, RequestLength)
	msg = append(msg, cmd[:]...)
	return append(msg, sum, ^sum)
}

// ValidRequest checks the trailing checksum of a short request message.
func ValidRequest(msg []byte) bool {
	if len(msg) != RequestLength {
		return false
	}
	sum := byte(Sum16(msg[:RequestLength-2]))
	return msg[RequestLength-2] == sum && msg[RequestLength-1] == ^sum
}
