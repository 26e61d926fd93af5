package metrics

import (
	"net/http"

	"github.com/HMasataka/sensorlink/internal/eventbus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the relay's Prometheus collectors. Counters are driven by
// events published on the event bus.
type Metrics struct {
	registry *prometheus.Registry

	ConnectedClients     prometheus.Gauge
	Registrations        *prometheus.CounterVec
	HandshakesRejected   prometheus.Counter
	MessagesBroadcast    prometheus.Counter
	MessagesRejected     prometheus.Counter
	StoreFailures        prometheus.Counter
	NotificationsSent    prometheus.Counter
	NotificationsDropped *prometheus.CounterVec
	BrokerUp             prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ConnectedClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sensorlink_connected_clients",
			Help: "Number of registered WebSocket connections",
		}),
		Registrations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sensorlink_registrations_total",
			Help: "Completed handshakes, by outcome (new or replaced)",
		}, []string{"outcome"}),
		HandshakesRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "sensorlink_handshakes_rejected_total",
			Help: "Connections closed because the first frame carried no user_id",
		}),
		MessagesBroadcast: factory.NewCounter(prometheus.CounterOpts{
			Name: "sensorlink_messages_broadcast_total",
			Help: "Chat messages fanned out to all connections",
		}),
		MessagesRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "sensorlink_messages_rejected_total",
			Help: "Client frames rejected as invalid message format",
		}),
		StoreFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "sensorlink_store_failures_total",
			Help: "Messages that could not be persisted",
		}),
		NotificationsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "sensorlink_notifications_delivered_total",
			Help: "Broker notifications written to a client",
		}),
		NotificationsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sensorlink_notifications_dropped_total",
			Help: "Broker notifications acknowledged without delivery, by reason",
		}, []string{"reason"}),
		BrokerUp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sensorlink_broker_up",
			Help: "1 when the broker bridge is consuming, 0 otherwise",
		}),
	}
}

// Subscribe wires the collectors to bus.
func (m *Metrics) Subscribe(bus eventbus.Bus) {
	bus.SubscribeAll(m.observe)
}

func (m *Metrics) observe(e *eventbus.Event) {
	switch e.Type {
	case eventbus.EventClientRegistered:
		m.ConnectedClients.Inc()
		m.Registrations.WithLabelValues("new").Inc()
	case eventbus.EventClientReplaced:
		m.Registrations.WithLabelValues("replaced").Inc()
	case eventbus.EventClientUnregistered:
		m.ConnectedClients.Dec()
	case eventbus.EventHandshakeRejected:
		m.HandshakesRejected.Inc()
	case eventbus.EventMessageBroadcast:
		m.MessagesBroadcast.Inc()
	case eventbus.EventMessageRejected:
		m.MessagesRejected.Inc()
	case eventbus.EventMessageStoreFailed:
		m.StoreFailures.Inc()
	case eventbus.EventNotificationDelivered:
		m.NotificationsSent.Inc()
	case eventbus.EventNotificationDropped:
		m.NotificationsDropped.WithLabelValues(e.Metadata["reason"]).Inc()
	case eventbus.EventBrokerConnected:
		m.BrokerUp.Set(1)
	case eventbus.EventBrokerUnavailable:
		m.BrokerUp.Set(0)
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
