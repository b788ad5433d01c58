package comm

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/golang/glog"

	fx "github.com/robotalks/motorlink/pkg/framework"
	"github.com/robotalks/motorlink/pkg/l1/msgs"
)

// DefaultClientQueueSize is the number of events buffered per client.
const DefaultClientQueueSize = 64

// Hub is a Registrar serving any number of attached clients. Events are
// broadcast to all clients, commands from a client are replied to it.
type Hub struct {
	QueueSize int

	loopCtl fx.LoopControl
	clients map[*hubClient]struct{}
	dropped uint64
	lock    sync.RWMutex
}

type hubClient struct {
	pipe Pipe
	out  chan *msgs.Typed
}

// NewHub creates a Hub.
func NewHub() *Hub {
	return &Hub{QueueSize: DefaultClientQueueSize}
}

// AddToLoop implements LoopAdder.
func (h *Hub) AddToLoop(loop *fx.Loop) {
	h.lock.Lock()
	h.loopCtl = loop
	h.lock.Unlock()
}

// Clients returns the number of attached clients.
func (h *Hub) Clients() int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return len(h.clients)
}

// Dropped returns the number of events dropped for slow clients.
func (h *Hub) Dropped() uint64 {
	return atomic.LoadUint64(&h.dropped)
}

// SendEvent implements l1.Registrar. It never blocks on clients.
func (h *Hub) SendEvent(ctx context.Context, msg fx.Message) error {
	typed, err := msgs.TypedFrom(msg)
	if err != nil {
		return err
	}
	if !typed.IsEvent() {
		return ErrNotEvent
	}
	h.lock.RLock()
	defer h.lock.RUnlock()
	for c := range h.clients {
		select {
		case c.out <- typed:
		default:
			atomic.AddUint64(&h.dropped, 1)
		}
	}
	return nil
}

// Serve attaches rw as a client until ctx is done or the stream fails.
func (h *Hub) Serve(ctx context.Context, rw PacketReadWriter) error {
	size := h.QueueSize
	if size <= 0 {
		size = DefaultClientQueueSize
	}
	c := &hubClient{out: make(chan *msgs.Typed, size)}
	c.pipe.ReadWriter = rw
	h.lock.Lock()
	c.pipe.Handler = commandPoster(&c.pipe, h.loopCtl)
	if h.clients == nil {
		h.clients = make(map[*hubClient]struct{})
	}
	h.clients[c] = struct{}{}
	h.lock.Unlock()
	defer func() {
		h.lock.Lock()
		delete(h.clients, c)
		h.lock.Unlock()
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go c.writeLoop(ctx, cancel)
	err := fx.RunWithContextCloser(ctx, &c.pipe, func() error {
		return c.pipe.Run(ctx)
	})
	glog.V(2).Infof("hub client detached: %v", err)
	return err
}

func (c *hubClient) writeLoop(ctx context.Context, cancel func()) {
	for {
		select {
		case <-ctx.Done():
			return
		case typed := <-c.out:
			if err := c.pipe.SendTyped(typed); err != nil {
				cancel()
				return
			}
		}
	}
}
