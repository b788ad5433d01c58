package motorlink

import (
	"fmt"
	"sync"
	"time"

	fx "github.com/robotalks/motorlink/pkg/framework"
)

// Config tunes the Manager.
type Config struct {
	// Links is the number of links, indexed from 1.
	Links int
	// Variants overrides Registry.
	Variants []*Variant
	// BufferSize is the ingest buffer capacity per link, at least 128.
	BufferSize int
	// IdleTimeout discards partial content after a gap between bytes.
	IdleTimeout time.Duration
	// UnactiveTimeout declares a streaming link lost.
	UnactiveTimeout time.Duration
	// PairingTimeout gives up waiting for the first frame after a handshake.
	PairingTimeout time.Duration
	// PeriodicInterval re-requests data while streaming.
	PeriodicInterval time.Duration
	// MismatchLimit is the number of failed cycles before reporting
	// a protocol mismatch.
	MismatchLimit int
	// WheelCircumference in mm.
	WheelCircumference uint32
}

// DefaultConfig returns the defaults for two links.
func DefaultConfig() Config {
	return Config{
		Links:              2,
		BufferSize:         DefaultBufferSize,
		IdleTimeout:        20 * time.Millisecond,
		UnactiveTimeout:    500 * time.Millisecond,
		PairingTimeout:     3000 * time.Millisecond,
		PeriodicInterval:   550 * time.Millisecond,
		MismatchLimit:      30,
		WheelCircumference: DefaultWheelCircumference,
	}
}

// Manager owns all links and drives them from Process.
type Manager struct {
	Transmitter Transmitter
	Errors      ErrorHandler
	Notifier    StateNotifier

	config    Config
	validator Validator
	decoder   Decoder
	links     []*link

	processLock sync.Mutex
	pending     []fx.Message
}

// NewManager creates a Manager.
func NewManager(conf Config) *Manager {
	defaults := DefaultConfig()
	if conf.Links <= 0 {
		conf.Links = defaults.Links
	}
	if len(conf.Variants) == 0 {
		conf.Variants = Registry
	}
	if conf.BufferSize < DefaultBufferSize {
		conf.BufferSize = DefaultBufferSize
	}
	if conf.IdleTimeout == 0 {
		conf.IdleTimeout = defaults.IdleTimeout
	}
	if conf.UnactiveTimeout == 0 {
		conf.UnactiveTimeout = defaults.UnactiveTimeout
	}
	if conf.PairingTimeout == 0 {
		conf.PairingTimeout = defaults.PairingTimeout
	}
	if conf.PeriodicInterval == 0 {
		conf.PeriodicInterval = defaults.PeriodicInterval
	}
	if conf.MismatchLimit == 0 {
		conf.MismatchLimit = defaults.MismatchLimit
	}
	m := &Manager{
		config:    conf,
		validator: Validator{Variants: conf.Variants},
		decoder: Decoder{
			WheelCircumference: conf.WheelCircumference,
			MaxAccrualGap:      conf.UnactiveTimeout,
		},
	}
	m.links = make([]*link, conf.Links)
	for n := range m.links {
		m.links[n] = newLink(m, n+1)
	}
	return m
}

// Links returns the number of links.
func (m *Manager) Links() int {
	return len(m.links)
}

// Config returns the effective configuration.
func (m *Manager) Config() Config {
	return m.config
}

func (m *Manager) link(index int) (*link, error) {
	if index < 1 || index > len(m.links) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLink, index)
	}
	return m.links[index-1], nil
}

// Ingest appends bytes received on a link at time at. It is safe to
// call concurrently with Process. Overflowing bytes are dropped and
// reported from the next Process.
func (m *Manager) Ingest(index int, data []byte, at time.Time) error {
	l, err := m.link(index)
	if err != nil {
		return err
	}
	l.buf.append(data, at, m.config.IdleTimeout)
	return nil
}

// Process runs one tick on every link. It must be called at most 30ms
// apart.
func (m *Manager) Process(now time.Time) {
	m.dispatch(m.tick(now))
}

// Control implements fx.Controller. Errors and state changes are also
// added to the iteration messages.
func (m *Manager) Control(cc fx.ControlContext) error {
	msgs := m.tick(cc.Time())
	m.dispatch(msgs)
	cc.Messages().AddMessages(msgs...)
	return nil
}

func (m *Manager) tick(now time.Time) []fx.Message {
	m.processLock.Lock()
	defer m.processLock.Unlock()
	for _, l := range m.links {
		l.process(now)
	}
	pending := m.pending
	m.pending = nil
	return pending
}

// AddToLoop implements fx.LoopAdder.
func (m *Manager) AddToLoop(loop *fx.Loop) {
	loop.AddController(fx.PrLvControl, m)
}

// Telemetry returns a snapshot of the link telemetry.
func (m *Manager) Telemetry(index int) (Telemetry, error) {
	l, err := m.link(index)
	if err != nil {
		return Telemetry{}, err
	}
	l.lock.RLock()
	defer l.lock.RUnlock()
	return l.telemetry, nil
}

// State returns the connection state of a link.
func (m *Manager) State(index int) (State, error) {
	l, err := m.link(index)
	if err != nil {
		return StateDisconnected, err
	}
	l.lock.RLock()
	defer l.lock.RUnlock()
	return l.state, nil
}

// Variant returns the selected variant of a link, nil if none.
func (m *Manager) Variant(index int) (*Variant, error) {
	l, err := m.link(index)
	if err != nil {
		return nil, err
	}
	l.lock.RLock()
	defer l.lock.RUnlock()
	return l.selected(), nil
}

// Stats returns protocol counters of a link.
func (m *Manager) Stats(index int) (Stats, error) {
	l, err := m.link(index)
	if err != nil {
		return Stats{}, err
	}
	l.lock.RLock()
	defer l.lock.RUnlock()
	return l.stats, nil
}

// Snapshot is the full observable state of a link.
type Snapshot struct {
	Link      int
	State     State
	Variant   string
	Telemetry Telemetry
	Stats     Stats
}

// Snapshot returns everything known about a link at once.
func (m *Manager) Snapshot(index int) (Snapshot, error) {
	l, err := m.link(index)
	if err != nil {
		return Snapshot{}, err
	}
	l.lock.RLock()
	defer l.lock.RUnlock()
	s := Snapshot{Link: index, State: l.state, Telemetry: l.telemetry, Stats: l.stats}
	if v := l.selected(); v != nil {
		s.Variant = v.Name
	}
	return s, nil
}

// report and notify are called by links with their lock held, so
// callbacks are deferred until the tick completes.
func (m *Manager) report(e *LinkError) {
	m.pending = append(m.pending, e)
}

func (m *Manager) notify(c *StateChange) {
	m.pending = append(m.pending, c)
}

func (m *Manager) dispatch(msgs []fx.Message) {
	for _, msg := range msgs {
		switch msg := msg.(type) {
		case *LinkError:
			if h := m.Errors; h != nil {
				h.HandleLinkError(msg)
			}
		case *StateChange:
			if n := m.Notifier; n != nil {
				n.StateChanged(msg)
			}
		}
	}
}

func (m *Manager) transmit(index int, data []byte) error {
	if t := m.Transmitter; t != nil {
		return t.Transmit(index, data)
	}
	return nil
}
