package motorlink

import "encoding/binary"

// Frame is a validated data frame in natural field order.
type Frame struct {
	Data  [FrameLength]byte
	order binary.ByteOrder
}

// NewFrame copies a validated frame out of buf.
func NewFrame(v *Variant, buf []byte) *Frame {
	f := &Frame{order: v.Order}
	copy(f.Data[:], buf)
	return f
}

// FunctionID selects the payload layout.
func (f *Frame) FunctionID() byte {
	return f.Data[1] & 0x7f
}

// Byte reads the byte at offset.
func (f *Frame) Byte(off int) byte {
	return f.Data[off]
}

// Uint16 reads an unsigned field at offset in the variant byte order.
func (f *Frame) Uint16(off int) uint16 {
	return f.order.Uint16(f.Data[off : off+2])
}

// Int16 reads a signed field at offset in the variant byte order.
func (f *Frame) Int16(off int) int16 {
	return int16(f.Uint16(off))
}

// MatchKind is the outcome of matching bytes at an offset.
type MatchKind int

// Match kinds
const (
	// MatchNone means nothing starts at the offset.
	MatchNone MatchKind = iota
	// MatchIncomplete means the bytes may still become a match.
	MatchIncomplete
	// MatchCorrupt means a complete frame is there but its checksum fails.
	MatchCorrupt
	// MatchHandshake is a complete handshake request.
	MatchHandshake
	// MatchFrame is a complete valid data frame.
	MatchFrame
)

// Match describes what the Validator found.
type Match struct {
	Kind MatchKind
	// Variant is the registry index of the matched variant.
	Variant int
	// Length is the number of bytes the match covers.
	Length int
}

// Validator recognizes handshakes and frames among variants.
type Validator struct {
	Variants []*Variant
}

func (v *Validator) candidates(selected int) (int, int) {
	if selected >= 0 && selected < len(v.Variants) {
		return selected, selected + 1
	}
	return 0, len(v.Variants)
}

// MatchAt examines the leading bytes of buf. selected limits candidates
// to one variant, -1 tries all in registry order.
func (v *Validator) MatchAt(buf []byte, selected int) Match {
	from, to := v.candidates(selected)
	for i := from; i < to; i++ {
		variant := v.Variants[i]
		if variant.IsHandshake(buf) {
			return Match{Kind: MatchHandshake, Variant: i, Length: len(variant.HandshakeRequest)}
		}
		if variant.IsFrame(buf) {
			return Match{Kind: MatchFrame, Variant: i, Length: variant.FrameLength}
		}
	}
	m := Match{Kind: MatchNone, Variant: -1}
	for i := from; i < to; i++ {
		variant := v.Variants[i]
		if variant.isHandshakePrefix(buf) {
			return Match{Kind: MatchIncomplete, Variant: i}
		}
		if variant.isFrameStart(buf) {
			if len(buf) < variant.FrameLength {
				return Match{Kind: MatchIncomplete, Variant: i}
			}
			m = Match{Kind: MatchCorrupt, Variant: i, Length: variant.FrameLength}
		}
	}
	return m
}

// Scan searches forward from offset from for the first offset where a
// match or an incomplete match begins. It returns len(buf) if there is
// none, meaning all bytes can be discarded.
func (v *Validator) Scan(buf []byte, selected, from int) (int, Match) {
	for off := from; off < len(buf); off++ {
		if !v.mayStart(buf[off], selected) {
			continue
		}
		m := v.MatchAt(buf[off:], selected)
		switch m.Kind {
		case MatchNone, MatchCorrupt:
			continue
		}
		return off, m
	}
	return len(buf), Match{Kind: MatchNone, Variant: -1}
}

// FindHandshake returns the offset of the first complete handshake of
// any variant at or after from, -1 if there is none.
func (v *Validator) FindHandshake(buf []byte, from int) (int, Match) {
	for off := from; off < len(buf); off++ {
		for i, variant := range v.Variants {
			req := variant.HandshakeRequest
			if len(req) > 0 && buf[off] == req[0] && variant.IsHandshake(buf[off:]) {
				return off, Match{Kind: MatchHandshake, Variant: i, Length: len(req)}
			}
		}
	}
	return -1, Match{Kind: MatchNone, Variant: -1}
}

// mayStart is a cheap first byte filter for Scan.
func (v *Validator) mayStart(b byte, selected int) bool {
	from, to := v.candidates(selected)
	for i := from; i < to; i++ {
		variant := v.Variants[i]
		if b == variant.StartByte {
			return true
		}
		if req := variant.HandshakeRequest; len(req) > 0 && req[0] == b {
			return true
		}
	}
	return false
}
