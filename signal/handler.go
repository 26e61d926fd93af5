package signal

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/HMasataka/sensorlink"
	"github.com/HMasataka/sensorlink/domain"
	"github.com/HMasataka/sensorlink/internal/eventbus"
	"github.com/HMasataka/sensorlink/logging"
	"github.com/HMasataka/sensorlink/pkg/errors"
	"github.com/HMasataka/sensorlink/router"
	"github.com/HMasataka/sensorlink/websocket"
	ws "github.com/gorilla/websocket"
)

type sessionState int

const (
	stateAwaitingFirstFrame sessionState = iota
	stateRegistered
	stateRejected
)

func (s sessionState) String() string {
	switch s {
	case stateAwaitingFirstFrame:
		return "awaiting_first_frame"
	case stateRegistered:
		return "registered"
	case stateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// session gates one connection: the first frame is the handshake, every
// later frame goes to the message router.
type session struct {
	hub    domain.Hub
	router *router.Router
	bus    eventbus.Bus
	errs   errors.Handler

	mu       sync.Mutex
	state    sessionState
	identity string
}

func newSession(hub domain.Hub, r *router.Router, bus eventbus.Bus, logger *logging.Logger) *session {
	return &session{
		hub:    hub,
		router: r,
		bus:    bus,
		errs:   errors.NewDefaultHandler(logger.Logger),
	}
}

var _ websocket.FrameHandler = (*session)(nil)

// HandleFrame is called sequentially from the connection's read pump.
func (s *session) HandleFrame(ctx context.Context, conn *websocket.Connection, frame []byte) {
	s.mu.Lock()
	state, identity := s.state, s.identity
	s.mu.Unlock()

	switch state {
	case stateAwaitingFirstFrame:
		s.handshake(ctx, conn, frame)
	case stateRegistered:
		ctx = sensorlink.WithIdentity(ctx, identity)
		ctx = logging.WithContextFields(ctx, map[string]any{"identity": identity})
		s.route(ctx, conn, frame)
	case stateRejected:
	}
}

func (s *session) handshake(ctx context.Context, conn *websocket.Connection, frame []byte) {
	logger := logging.FromContext(ctx)

	identity, err := ParseIdentity(frame)
	if err != nil {
		s.setState(stateRejected, "")
		s.errs.HandleWithLogger(ctx, err, logger.Logger)
		s.bus.Publish(eventbus.NewEvent(eventbus.EventHandshakeRejected, "signal", conn.ID()))
		_ = conn.CloseWithReason(ws.ClosePolicyViolation, RejectReason)
		return
	}

	s.setState(stateRegistered, identity)
	s.hub.Register(identity, conn)

	ack, err := json.Marshal(domain.NewConnectionAck(identity))
	if err != nil {
		logger.Error("failed to marshal connection ack", "error", err)
		return
	}
	if err := conn.Send(ctx, ack); err != nil {
		logger.Warn("failed to send connection ack", "identity", identity, "error", err)
	}
}

func (s *session) route(ctx context.Context, conn *websocket.Connection, frame []byte) {
	_, err := s.router.Handle(ctx, frame)
	if err == nil {
		return
	}
	logger := logging.FromContext(ctx)

	if !errors.HasCode(err, errors.CodeInvalidMessageFormat) {
		s.errs.HandleWithLogger(ctx, err, logger.Logger)
		return
	}

	logger.Debug("rejected client frame", "error", err)
	reply, _ := json.Marshal(domain.ErrorReply{Error: domain.InvalidFormatText})
	if err := conn.Send(ctx, reply); err != nil {
		logger.Warn("failed to send error reply", "error", err)
	}
}

func (s *session) setState(state sessionState, identity string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.identity = identity
}

// Identity returns the bound identity once the handshake has completed.
func (s *session) Identity() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity, s.state == stateRegistered
}
