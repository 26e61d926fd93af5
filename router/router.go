package router

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/HMasataka/sensorlink"
	"github.com/HMasataka/sensorlink/domain"
	"github.com/HMasataka/sensorlink/internal/eventbus"
	"github.com/HMasataka/sensorlink/logging"
	apperrors "github.com/HMasataka/sensorlink/pkg/errors"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

var errNoSender = errors.New("no identity bound to connection")

type Options struct {
	Logger *logging.Logger
	Clock  clockwork.Clock
	Bus    eventbus.Bus
	// NewID generates message ids; uuid v4 when nil.
	NewID func() string
}

// Router turns post-handshake client frames into chat messages, persists
// them and fans them out to every registered connection.
type Router struct {
	hub    domain.Hub
	repo   domain.MessageRepository
	logger *logging.Logger
	errs   apperrors.Handler
	clock  clockwork.Clock
	bus    eventbus.Bus
	newID  func() string
}

func NewRouter(hub domain.Hub, repo domain.MessageRepository, opts Options) *Router {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Bus == nil {
		opts.Bus = eventbus.Nop{}
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}

	return &Router{
		hub:    hub,
		repo:   repo,
		logger: opts.Logger,
		errs:   apperrors.NewDefaultHandler(opts.Logger.Logger),
		clock:  opts.Clock,
		bus:    opts.Bus,
		newID:  opts.NewID,
	}
}

// Handle processes one frame from the identity bound in ctx. A frame
// without usable content yields an INVALID_MESSAGE_FORMAT error and is
// neither stored nor broadcast. A store failure does not stop the
// broadcast.
func (r *Router) Handle(ctx context.Context, frame []byte) (*domain.Message, error) {
	sender, ok := sensorlink.IdentityFromContext(ctx)
	if !ok {
		return nil, apperrors.Wrap(errNoSender, apperrors.ErrorTypeInternal, "NO_SENDER", "frame routed before handshake")
	}

	content, ok := decodeContent(frame)
	if !ok {
		r.bus.Publish(eventbus.NewEvent(eventbus.EventMessageRejected, "router", sender))
		return nil, apperrors.InvalidMessageFormat("content is required")
	}

	msg := &domain.Message{
		ID:        r.newID(),
		Content:   content,
		Sender:    sender,
		Timestamp: r.clock.Now(),
	}

	if _, err := r.repo.Save(ctx, msg); err != nil {
		r.errs.Handle(ctx, apperrors.StoreFailure(err).WithDetails(msg.ID))
		r.bus.Publish(eventbus.NewEvent(eventbus.EventMessageStoreFailed, "router", msg.ID))
	}

	envelope := domain.Envelope{Type: domain.EnvelopeTypeMessage, Data: msg}
	if err := r.hub.Broadcast(ctx, envelope); err != nil {
		return nil, err
	}

	r.logger.Debug("message broadcast", "id", msg.ID, "sender", sender)
	r.bus.Publish(eventbus.NewEvent(eventbus.EventMessageBroadcast, "router", msg.ID))

	return msg, nil
}

// History returns every stored message wrapped in a history envelope.
func (r *Router) History(ctx context.Context) (domain.Envelope, error) {
	messages, err := r.repo.FindAll(ctx)
	if err != nil {
		return domain.Envelope{}, err
	}
	if messages == nil {
		messages = []*domain.Message{}
	}

	return domain.Envelope{Type: domain.EnvelopeTypeHistory, Data: messages}, nil
}

func (r *Router) Message(ctx context.Context, id string) (*domain.Message, error) {
	return r.repo.FindByID(ctx, id)
}

// decodeContent extracts the content of a frame. A frame that is not JSON
// at all is content verbatim. Valid JSON must be an object: scalars and
// arrays carry no content field and are rejected. Inside an object, a
// missing, null, empty, false or zero content is rejected; a non-string
// value is kept as its JSON text.
func decodeContent(frame []byte) (string, bool) {
	if !json.Valid(frame) {
		return string(frame), len(frame) > 0
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(frame, &payload); err != nil {
		return "", false
	}

	raw, ok := payload["content"]
	if !ok {
		return "", false
	}

	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", false
	}

	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		return v, v != ""
	case bool:
		return "true", v
	case float64:
		return string(raw), v != 0
	default:
		return string(raw), true
	}
}
