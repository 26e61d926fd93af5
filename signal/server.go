package signal

import (
	"context"
	"net/http"
	"sync"

	"github.com/HMasataka/sensorlink/domain"
	"github.com/HMasataka/sensorlink/internal/eventbus"
	"github.com/HMasataka/sensorlink/logging"
	"github.com/HMasataka/sensorlink/router"
	"github.com/HMasataka/sensorlink/websocket"
	ws "github.com/gorilla/websocket"
)

type ServerOptions struct {
	Logger     *logging.Logger
	Bus        eventbus.Bus
	Connection websocket.ConnectionOptions
}

func DefaultServerOptions() ServerOptions {
	return ServerOptions{
		Connection: websocket.DefaultConnectionOptions(),
	}
}

// Server upgrades HTTP requests to WebSocket connections and runs one
// handshake-gated session per connection.
type Server struct {
	ctx      context.Context
	cancel   context.CancelFunc
	upgrader ws.Upgrader
	hub      domain.Hub
	router   *router.Router
	bus      eventbus.Bus
	logger   *logging.Logger
	options  websocket.ConnectionOptions
	mutex    sync.RWMutex
	closed   bool
}

func NewServer(hub domain.Hub, r *router.Router, options ServerOptions) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	if options.Logger == nil {
		options.Logger = logging.Discard()
	}
	if options.Bus == nil {
		options.Bus = eventbus.Nop{}
	}

	upgrader := ws.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
		ReadBufferSize:  options.Connection.ReadBufferSize,
		WriteBufferSize: options.Connection.WriteBufferSize,
	}

	return &Server{
		ctx:      ctx,
		cancel:   cancel,
		upgrader: upgrader,
		hub:      hub,
		router:   r,
		bus:      options.Bus,
		logger:   options.Logger,
		options:  options.Connection,
	}
}

// Close stops every running session. Connections are closed by their own
// read pumps as the server context is cancelled.
func (s *Server) Close() error {
	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return nil
	}
	s.closed = true
	s.mutex.Unlock()

	s.logger.Info("closing websocket server")
	s.cancel()

	return nil
}

func (s *Server) Context() context.Context {
	return s.ctx
}

func (s *Server) Handle(w http.ResponseWriter, r *http.Request) {
	s.mutex.RLock()
	closed := s.closed
	s.mutex.RUnlock()
	if closed {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("failed to upgrade connection", "error", err)
		return
	}

	sess := newSession(s.hub, s.router, s.bus, s.logger)
	c := websocket.NewConnection(conn, sess, s.logger, s.options)
	c.Logger().Info("websocket connection established", "remote_addr", r.RemoteAddr)

	s.handleConnection(c)
}

func (s *Server) handleConnection(c *websocket.Connection) {
	defer c.Logger().Info("websocket connection handler finished")

	ctx, cancel := context.WithCancel(logging.WithLogger(s.ctx, c.Logger()))
	defer cancel()

	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-c.Context().Done():
		}
	}()

	c.Start(ctx)
	s.hub.Unregister(c)
}
