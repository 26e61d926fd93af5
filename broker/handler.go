package broker

import (
	"context"
	stderrors "errors"

	"github.com/HMasataka/sensorlink"
	"github.com/HMasataka/sensorlink/domain"
	"github.com/HMasataka/sensorlink/internal/eventbus"
	"github.com/HMasataka/sensorlink/logging"
	"github.com/HMasataka/sensorlink/pkg/errors"
	"github.com/HMasataka/sensorlink/registry"
)

// SensorHandler forwards notifications of one sensor type to the
// connection registered under the notification's user_id.
type SensorHandler struct {
	sensorType domain.SensorType
	hub        domain.Hub
	bus        eventbus.Bus
	logger     *logging.Logger
}

var _ registry.Handler = (*SensorHandler)(nil)

func NewSensorHandler(sensorType domain.SensorType, hub domain.Hub, bus eventbus.Bus, logger *logging.Logger) *SensorHandler {
	if bus == nil {
		bus = eventbus.Nop{}
	}
	if logger == nil {
		logger = logging.Discard()
	}

	return &SensorHandler{
		sensorType: sensorType,
		hub:        hub,
		bus:        bus,
		logger:     logger,
	}
}

func (h *SensorHandler) Handle(ctx context.Context, n *domain.Notification) error {
	envelope := domain.Envelope{Type: domain.EnvelopeTypeNotification, Data: n.Body}

	err := h.hub.SendTo(ctx, n.UserID, envelope)
	if stderrors.Is(err, sensorlink.ErrClientNotFound) {
		return errors.BrokerUnmatchedRecipient(n.UserID)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeTransport, "NOTIFICATION_SEND_FAILURE", "failed to write notification").
			WithDetails(n.UserID)
	}

	h.logger.Info("sent notification", "user_id", n.UserID, "sensor_type", n.SensorType)
	h.bus.Publish(eventbus.NewEvent(eventbus.EventNotificationDelivered, "broker", n.UserID))
	return nil
}

func (h *SensorHandler) CanHandle(sensorType domain.SensorType) bool {
	return sensorType == h.sensorType
}

// NewRegistry returns a registry that forwards only DHT_22 notifications.
func NewRegistry(hub domain.Hub, bus eventbus.Bus, logger *logging.Logger) *registry.DefaultHandlerRegistry {
	reg := registry.NewHandlerRegistry()
	reg.Register(domain.SensorTypeDHT22, NewSensorHandler(domain.SensorTypeDHT22, hub, bus, logger))
	return reg
}
