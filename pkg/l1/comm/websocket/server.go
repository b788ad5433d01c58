package websocket

import (
	"context"
	"net"
	"net/http"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	fx "github.com/robotalks/motorlink/pkg/framework"
	"github.com/robotalks/motorlink/pkg/l1/comm"
)

// DefaultPath is where the telemetry endpoint is served.
const DefaultPath = "/telemetry"

// Server serves WebSocket clients and attaches them to a Hub.
type Server struct {
	Addr string
	Path string
	Hub  *comm.Hub

	ctx      context.Context
	listener net.Listener
	lock     sync.Mutex
}

// NewServer creates a Server.
func NewServer(addr string, hub *comm.Hub) *Server {
	return &Server{Addr: addr, Path: DefaultPath, Hub: hub}
}

// Handler returns the http.Handler accepting clients.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(s.Path, websocket.Handler(s.serveConn))
	return mux
}

func (s *Server) serveConn(conn *websocket.Conn) {
	conn.PayloadType = websocket.BinaryFrame
	ctx := conn.Request().Context()
	s.lock.Lock()
	if s.ctx != nil {
		ctx = s.ctx
	}
	s.lock.Unlock()
	glog.V(2).Infof("websocket client %s", conn.Request().RemoteAddr)
	s.Hub.Serve(ctx, New(conn))
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
	s.lock.Lock()
	s.ctx = ctx
	s.lock.Unlock()
	srv := &http.Server{Handler: s.Handler()}
	glog.Infof("websocket telemetry on ws://%s%s", addr, s.Path)
	return fx.RunWithContextCancel(ctx, func() { srv.Close() }, func() error {
		return srv.Serve(s.listener)
	})
}

// AddToLoop implements LoopAdder.
func (s *Server) AddToLoop(loop *fx.Loop) {
	loop.AddRunnable(fx.NamedRun("websocket-server", s))
}
