package stream

import (
	"context"
	"net"
	"sync"

	"github.com/golang/glog"

	fx "github.com/robotalks/motorlink/pkg/framework"
	"github.com/robotalks/motorlink/pkg/l1/comm"
)

// Server accepts TCP clients and attaches them to a Hub.
type Server struct {
	Addr string
	Hub  *comm.Hub

	listener net.Listener
	lock     sync.Mutex
}

// NewServer creates a Server.
func NewServer(addr string, hub *comm.Hub) *Server {
	return &Server{Addr: addr, Hub: hub}
}

// Listen starts listening, Run calls it if not done yet.
func (s *Server) Listen() (net.Addr, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.listener == nil {
		ln, err := net.Listen("tcp", s.Addr)
		if err != nil {
			return nil, err
		}
		s.listener = ln
	}
	return s.listener.Addr(), nil
}

// Run implements Runnable.
func (s *Server) Run(ctx context.Context) error {
	addr, err := s.Listen()
	if err != nil {
		return err
	}
	glog.Infof("telemetry stream on %s", addr)
	return fx.RunWithContextCloser(ctx, s.listener, func() error {
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				return err
			}
			glog.V(2).Infof("stream client %s", conn.RemoteAddr())
			go s.Hub.Serve(ctx, New(conn))
		}
	})
}

// AddToLoop implements LoopAdder.
func (s *Server) AddToLoop(loop *fx.Loop) {
	loop.AddRunnable(fx.NamedRun("stream-server", s))
}
