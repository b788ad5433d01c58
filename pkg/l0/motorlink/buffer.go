package motorlink

import (
	"sync"
	"time"
)

// DefaultBufferSize is the default ingest buffer capacity.
const DefaultBufferSize = 128

// rxBuffer reassembles bytes of one link. Ingest appends at the tail
// from the reader goroutine while Process consumes from the front.
type rxBuffer struct {
	lock     sync.Mutex
	data     []byte
	lastByte time.Time
	// gen changes whenever the content is discarded, so a consume
	// computed on an older snapshot is not applied to new bytes.
	gen     uint64
	dropped int
}

func newRxBuffer(size int) *rxBuffer {
	if size < DefaultBufferSize {
		size = DefaultBufferSize
	}
	return &rxBuffer{data: make([]byte, 0, size)}
}

// append adds p at the tail. Stale content is discarded first. Bytes
// beyond the capacity are dropped and counted.
func (b *rxBuffer) append(p []byte, at time.Time, idle time.Duration) int {
	b.lock.Lock()
	defer b.lock.Unlock()
	if len(p) == 0 {
		return 0
	}
	b.clearIfStaleLocked(at, idle)
	n := cap(b.data) - len(b.data)
	if n > len(p) {
		n = len(p)
	}
	b.data = append(b.data, p[:n]...)
	b.lastByte = at
	if dropped := len(p) - n; dropped > 0 {
		b.dropped += dropped
		return dropped
	}
	return 0
}

// snapshot copies the content into dst and returns the generation, the
// time of the last byte and the number of bytes dropped since the last
// snapshot.
func (b *rxBuffer) snapshot(dst []byte) ([]byte, uint64, time.Time, int) {
	b.lock.Lock()
	defer b.lock.Unlock()
	dropped := b.dropped
	b.dropped = 0
	return append(dst, b.data...), b.gen, b.lastByte, dropped
}

// consume removes n leading bytes if the content wasn't discarded since
// snapshot gen.
func (b *rxBuffer) consume(n int, gen uint64) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if gen != b.gen || n <= 0 {
		return
	}
	if n >= len(b.data) {
		b.data = b.data[:0]
		return
	}
	remains := copy(b.data, b.data[n:])
	b.data = b.data[:remains]
}

func (b *rxBuffer) clearIfStale(now time.Time, idle time.Duration) bool {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.clearIfStaleLocked(now, idle)
}

func (b *rxBuffer) clearIfStaleLocked(now time.Time, idle time.Duration) bool {
	if len(b.data) == 0 || idle <= 0 || now.Sub(b.lastByte) <= idle {
		return false
	}
	b.data = b.data[:0]
	b.gen++
	return true
}

func (b *rxBuffer) len() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return len(b.data)
}

func (b *rxBuffer) lastByteAt() time.Time {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.lastByte
}
