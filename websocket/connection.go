package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/HMasataka/sensorlink"
	"github.com/HMasataka/sensorlink/domain"
	"github.com/HMasataka/sensorlink/logging"
	ws "github.com/gorilla/websocket"
	"github.com/rs/xid"
)

// FrameHandler receives every text or binary frame read from a connection.
type FrameHandler interface {
	HandleFrame(ctx context.Context, conn *Connection, frame []byte)
}

type FrameHandlerFunc func(ctx context.Context, conn *Connection, frame []byte)

func (f FrameHandlerFunc) HandleFrame(ctx context.Context, conn *Connection, frame []byte) {
	f(ctx, conn, frame)
}

type ConnectionOptions struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
}

func DefaultConnectionOptions() ConnectionOptions {
	return ConnectionOptions{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  512 * 1024, // 512KB
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
	}
}

// Connection owns one gorilla connection. All data frames are written by
// the write pump; Send only queues.
type Connection struct {
	id       string
	ctx      context.Context
	conn     *ws.Conn
	cancel   context.CancelFunc
	handler  FrameHandler
	logger   *logging.Logger
	options  ConnectionOptions
	sendChan chan []byte
	mutex    sync.RWMutex
	closed   bool
}

var _ domain.Client = (*Connection)(nil)

func NewConnection(conn *ws.Conn, handler FrameHandler, logger *logging.Logger, options ConnectionOptions) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	id := xid.New().String()

	if options.SendBufferSize <= 0 {
		options.SendBufferSize = DefaultConnectionOptions().SendBufferSize
	}

	return &Connection{
		id:       id,
		ctx:      ctx,
		conn:     conn,
		handler:  handler,
		cancel:   cancel,
		logger:   logger.WithFields(map[string]any{"client_id": id}),
		options:  options,
		sendChan: make(chan []byte, options.SendBufferSize),
	}
}

func (c *Connection) ID() string {
	return c.id
}

func (c *Connection) Logger() *logging.Logger {
	return c.logger
}

func (c *Connection) IsOpen() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return !c.closed
}

// Send queues message for the write pump without blocking.
func (c *Connection) Send(ctx context.Context, message []byte) error {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	if c.closed {
		return sensorlink.ErrConnectionClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case c.sendChan <- message:
		return nil
	default:
		return sensorlink.ErrSendBufferFull
	}
}

func (c *Connection) Close() error {
	c.mutex.Lock()
	if c.closed {
		c.mutex.Unlock()
		return nil
	}
	c.closed = true
	close(c.sendChan)
	c.mutex.Unlock()

	c.logger.Debug("closing websocket connection")

	c.cancel()

	if err := c.conn.Close(); err != nil {
		c.logger.Debug("error closing websocket connection", "error", err)
		return err
	}

	return nil
}

// CloseWithReason sends a close control frame carrying code and reason,
// then closes the connection.
func (c *Connection) CloseWithReason(code int, reason string) error {
	deadline := time.Now().Add(c.options.WriteTimeout)
	if err := c.conn.WriteControl(ws.CloseMessage, ws.FormatCloseMessage(code, reason), deadline); err != nil {
		c.logger.Debug("failed to write close frame", "error", err)
	}
	return c.Close()
}

func (c *Connection) Context() context.Context {
	return c.ctx
}

// Start runs the pumps and blocks until the read side stops.
func (c *Connection) Start(ctx context.Context) {
	done := make(chan struct{})

	go func() {
		defer close(done)
		c.readPump(ctx)
	}()

	go c.writePump(ctx)

	<-done
	c.logger.Debug("connection closed")
}

func (c *Connection) readPump(ctx context.Context) {
	defer func() {
		c.logger.Debug("read pump stopped")
		c.Close()
	}()

	c.conn.SetReadLimit(c.options.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.options.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.options.ReadTimeout))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ctx.Done():
			return
		default:
		}

		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if ws.IsUnexpectedCloseError(err, ws.CloseGoingAway, ws.CloseNormalClosure, ws.CloseAbnormalClosure, ws.ClosePolicyViolation) {
				c.logger.Error("websocket unexpected close error", "error", err)
			} else {
				c.logger.Debug("websocket connection closed", "error", err)
			}
			return
		}

		if messageType != ws.TextMessage && messageType != ws.BinaryMessage {
			continue
		}

		c.conn.SetReadDeadline(time.Now().Add(c.options.ReadTimeout))
		c.handler.HandleFrame(ctx, c, message)
	}
}

func (c *Connection) writePump(ctx context.Context) {
	defer c.logger.Debug("write pump stopped")

	var tick <-chan time.Time
	if c.options.PingInterval > 0 {
		ticker := time.NewTicker(c.options.PingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ctx.Done():
			return
		case message, ok := <-c.sendChan:
			if !ok {
				return
			}

			c.conn.SetWriteDeadline(time.Now().Add(c.options.WriteTimeout))
			if err := c.conn.WriteMessage(ws.TextMessage, message); err != nil {
				c.logger.Error("websocket write error", "error", err)
				return
			}
		case <-tick:
			if err := c.conn.WriteControl(ws.PingMessage, nil, time.Now().Add(c.options.WriteTimeout)); err != nil {
				c.logger.Debug("websocket ping error", "error", err)
				return
			}
		}
	}
}
