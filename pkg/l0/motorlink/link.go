package motorlink

import (
	"sync"
	"time"

	"github.com/golang/glog"
)

// Stats counts protocol activity on a link.
type Stats struct {
	Frames           uint64
	Decoded          uint64
	ChecksumErrors   uint64
	DiscardedBytes   uint64
	DroppedBytes     uint64
	Handshakes       uint64
	PeriodicRequests uint64
	TxErrors         uint64
}

// link is one UART channel driven by the Manager.
type link struct {
	index   int
	manager *Manager
	buf     *rxBuffer
	scratch []byte

	lock      sync.RWMutex
	state     State
	enteredAt time.Time
	variant   int
	packets   int
	cycles    int
	telemetry Telemetry
	stats     Stats
}

func newLink(m *Manager, index int) *link {
	return &link{
		index:   index,
		manager: m,
		buf:     newRxBuffer(m.config.BufferSize),
		scratch: make([]byte, 0, m.config.BufferSize),
		variant: -1,
	}
}

// process runs one tick of the state machine.
func (l *link) process(now time.Time) {
	conf := &l.manager.config
	data, gen, lastByte, dropped := l.buf.snapshot(l.scratch[:0])
	l.scratch = data[:0]

	l.lock.Lock()
	if dropped > 0 {
		l.stats.DroppedBytes += uint64(dropped)
		l.manager.report(&LinkError{Link: l.index, Kind: ErrorOverflow, Code: uint32(dropped), Time: now})
	}
	l.tick(now, lastByte)
	consumed := l.parse(now, data)
	if l.state == StateDisconnected && l.cycles > conf.MismatchLimit {
		cycles := l.cycles
		l.enter(StateError, now)
		l.manager.report(&LinkError{Link: l.index, Kind: ErrorProtocolMismatch, Code: uint32(cycles), Time: now})
	}
	l.lock.Unlock()

	l.buf.consume(consumed, gen)
	if l.buf.clearIfStale(now, conf.IdleTimeout) {
		glog.V(2).Infof("link %d: stale bytes cleared", l.index)
	}
}

// tick applies time based transitions.
func (l *link) tick(now, lastByte time.Time) {
	conf := &l.manager.config
	switch l.state {
	case StateError:
		l.enter(StateDisconnected, now)
	case StatePairing:
		if now.Sub(l.enteredAt) > conf.PairingTimeout {
			glog.V(2).Infof("link %d: pairing timeout", l.index)
			l.demote(now)
		}
	case StateStreamingParse:
		if now.Sub(lastByte) > conf.UnactiveTimeout {
			glog.Warningf("link %d: lost", l.index)
			l.manager.report(&LinkError{Link: l.index, Kind: ErrorLinkLost, Time: now})
			l.demote(now)
		} else if now.Sub(l.enteredAt) >= conf.PeriodicInterval {
			l.periodic(now)
		}
	}
}

// parse consumes as many matches from data as possible and returns the
// number of bytes to remove from the buffer.
func (l *link) parse(now time.Time, data []byte) int {
	validator := &l.manager.validator
	var off int
	var discarded bool
	for off < len(data) {
		rest := data[off:]
		m := validator.MatchAt(rest, l.variant)
		switch m.Kind {
		case MatchIncomplete:
			// a truncated frame must not hide a complete handshake after it
			if at, _ := validator.FindHandshake(rest, 1); at > 0 {
				l.stats.DiscardedBytes += uint64(at)
				discarded = true
				off += at
				continue
			}
			l.countDiscarded(discarded)
			return off
		case MatchNone, MatchCorrupt:
			if l.state.IsConnected() {
				// give the other variants a chance at the same offset
				glog.V(2).Infof("link %d: unrecognized bytes in %s", l.index, l.state)
				l.demote(now)
				continue
			}
			if m.Kind == MatchCorrupt {
				l.stats.ChecksumErrors++
			}
			skip, _ := validator.Scan(rest, l.variant, 1)
			l.stats.DiscardedBytes += uint64(skip)
			discarded = true
			off += skip
		case MatchHandshake:
			if l.state.IsStreaming() {
				// controller restarted, pair again from Disconnected
				l.demote(now)
				continue
			}
			l.variant = m.Variant
			l.pair(now)
			off += m.Length
		case MatchFrame:
			l.variant = m.Variant
			if l.state != StateStreamingParse {
				l.enter(StateStreamingParse, now)
			}
			l.handleFrame(now, NewFrame(l.manager.validator.Variants[m.Variant], rest))
			off += m.Length
		}
	}
	l.countDiscarded(discarded)
	return off
}

func (l *link) countDiscarded(discarded bool) {
	if discarded && l.state == StateDisconnected {
		l.cycles++
	}
}

func (l *link) handleFrame(now time.Time, f *Frame) {
	l.stats.Frames++
	l.packets++
	faults := l.telemetry.ActiveErrors
	if l.manager.decoder.Decode(&l.telemetry, f, now) {
		l.stats.Decoded++
	}
	if flags := l.telemetry.ActiveErrors; flags != faults {
		l.manager.report(&LinkError{Link: l.index, Kind: ErrorControllerFault, Code: uint32(flags), Time: now})
	}
	if threshold := l.selected().PacketThreshold; threshold > 0 && l.packets >= threshold {
		l.periodic(now)
	}
}

func (l *link) selected() *Variant {
	if l.variant < 0 {
		return nil
	}
	return l.manager.validator.Variants[l.variant]
}

// pair enters Pairing and answers the handshake.
func (l *link) pair(now time.Time) {
	v := l.selected()
	l.stats.Handshakes++
	l.enter(StatePairing, now)
	l.transmit(v.HandshakeResponse)
	if v.RequestOnPair {
		l.transmit(v.PeriodicRequest)
	}
}

// periodic passes through StreamingPeriodic, re-requesting data.
func (l *link) periodic(now time.Time) {
	l.enter(StateStreamingPeriodic, now)
	if req := l.selected().PeriodicRequest; len(req) > 0 {
		l.stats.PeriodicRequests++
		l.transmit(req)
	}
	l.enter(StateStreamingParse, now)
}

// demote drops back to Disconnected, clearing the variant.
func (l *link) demote(now time.Time) {
	l.cycles++
	l.enter(StateDisconnected, now)
}

func (l *link) enter(state State, now time.Time) {
	from := l.state
	l.state, l.enteredAt = state, now
	switch state {
	case StateDisconnected:
		l.variant = -1
		if from == StateError {
			l.cycles = 0
		}
	case StateError:
		l.variant = -1
	case StateStreamingParse:
		l.packets, l.cycles = 0, 0
	}
	if from != state {
		glog.V(2).Infof("link %d: %s -> %s", l.index, from, state)
	}
	l.manager.notify(&StateChange{Link: l.index, From: from, To: state})
}

func (l *link) transmit(data []byte) {
	if len(data) == 0 {
		return
	}
	if err := l.manager.transmit(l.index, data); err != nil {
		l.stats.TxErrors++
		glog.Warningf("link %d: transmit error: %v", l.index, err)
	}
}
