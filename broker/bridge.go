// Package broker connects the relay to RabbitMQ. The bridge consumes sensor
// notifications and hands them to the sensor-type registry; the publisher
// is the test utility that feeds the same queue.
package broker

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"
	"sync/atomic"

	"github.com/HMasataka/sensorlink/domain"
	"github.com/HMasataka/sensorlink/internal/eventbus"
	"github.com/HMasataka/sensorlink/logging"
	"github.com/HMasataka/sensorlink/pkg/errors"
	"github.com/HMasataka/sensorlink/registry"
	amqp "github.com/rabbitmq/amqp091-go"
)

const DefaultQueue = "userNotification"

// Drop reasons attached to notification.dropped events.
const (
	ReasonDecodeFailure      = "decode_failure"
	ReasonFilterMiss         = "filter_miss"
	ReasonUnmatchedRecipient = "unmatched_recipient"
	ReasonSendFailure        = "send_failure"
)

type Options struct {
	URL      string
	Queue    string
	Logger   *logging.Logger
	Bus      eventbus.Bus
	Registry registry.HandlerRegistry
}

// Bridge consumes the notification queue with manual acknowledgement. Every
// delivery is acknowledged exactly once after processing, whether or not it
// reached a client; nothing is ever redelivered.
type Bridge struct {
	url      string
	queue    string
	logger   *logging.Logger
	errs     errors.Handler
	bus      eventbus.Bus
	registry registry.HandlerRegistry

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	active  atomic.Bool
	wg      sync.WaitGroup
}

func NewBridge(opts Options) *Bridge {
	if opts.Queue == "" {
		opts.Queue = DefaultQueue
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Bus == nil {
		opts.Bus = eventbus.Nop{}
	}
	if opts.Registry == nil {
		opts.Registry = registry.NewHandlerRegistry()
	}

	logger := opts.Logger.WithFields(map[string]any{"component": "broker", "queue": opts.Queue})

	return &Bridge{
		url:      opts.URL,
		queue:    opts.Queue,
		logger:   logger,
		errs:     errors.NewDefaultHandler(logger.Logger),
		bus:      opts.Bus,
		registry: opts.Registry,
	}
}

// Start connects, declares the durable queue and begins consuming. On any
// failure the bridge stays inactive for the life of the process and the
// BROKER_CONNECT_FAILURE error is returned; there is no retry.
func (b *Bridge) Start(ctx context.Context) error {
	conn, err := amqp.Dial(b.url)
	if err != nil {
		return b.fail(err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return b.fail(err)
	}

	if _, err := declareQueue(ch, b.queue); err != nil {
		conn.Close()
		return b.fail(err)
	}

	deliveries, err := ch.ConsumeWithContext(ctx, b.queue, "", false, false, false, false, nil)
	if err != nil {
		conn.Close()
		return b.fail(err)
	}

	b.mu.Lock()
	b.conn = conn
	b.channel = ch
	b.mu.Unlock()

	b.active.Store(true)
	b.logger.Info("connected to broker, waiting for notifications")
	b.bus.Publish(eventbus.NewEvent(eventbus.EventBrokerConnected, "broker", b.queue))

	b.wg.Add(1)
	go b.consume(ctx, deliveries)

	return nil
}

func (b *Bridge) fail(err error) error {
	b.bus.Publish(eventbus.NewEvent(eventbus.EventBrokerUnavailable, "broker", b.queue))
	return errors.BrokerConnectFailure(err)
}

func (b *Bridge) consume(ctx context.Context, deliveries <-chan amqp.Delivery) {
	defer b.wg.Done()

	for d := range deliveries {
		b.handleDelivery(ctx, d)
	}

	if b.active.Swap(false) {
		b.logger.Warn("delivery channel closed, notifications disabled")
		b.bus.Publish(eventbus.NewEvent(eventbus.EventBrokerUnavailable, "broker", b.queue))
	}
}

func (b *Bridge) handleDelivery(ctx context.Context, d amqp.Delivery) {
	defer func() {
		if err := d.Ack(false); err != nil {
			b.logger.Warn("failed to ack delivery", "delivery_tag", d.DeliveryTag, "error", err)
		}
	}()

	n, err := decodeNotification(d.Body)
	if err != nil {
		b.drop(ctx, errors.BrokerDecodeFailure(err), ReasonDecodeFailure)
		return
	}

	if err := b.registry.Handle(ctx, n); err != nil {
		b.drop(ctx, err, dropReason(err))
		return
	}

	b.logger.Debug("notification delivered", "sensor_type", n.SensorType, "user_id", n.UserID)
}

func (b *Bridge) drop(ctx context.Context, err error, reason string) {
	b.errs.Handle(ctx, err)
	b.bus.Publish(eventbus.NewEvent(eventbus.EventNotificationDropped, "broker", err.Error()).
		WithMetadata("reason", reason))
}

func dropReason(err error) string {
	switch {
	case errors.HasCode(err, errors.CodeBrokerFilterMiss):
		return ReasonFilterMiss
	case errors.HasCode(err, errors.CodeBrokerUnmatchedRecipient):
		return ReasonUnmatchedRecipient
	case errors.HasCode(err, errors.CodeBrokerDecodeFailure):
		return ReasonDecodeFailure
	default:
		return ReasonSendFailure
	}
}

// decodeNotification reads sensor_type and user_id from a JSON object and
// keeps the whole body for forwarding. Missing or non-string sensor types
// decode to the empty type and are filtered later.
func decodeNotification(body []byte) (*domain.Notification, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, stderrors.New("notification is not an object")
	}

	var sensorType string
	if raw, ok := fields["sensor_type"]; ok {
		_ = json.Unmarshal(raw, &sensorType)
	}

	// A falsy user_id can never have completed a handshake.
	var userID string
	if raw, ok := fields["user_id"]; ok {
		if id, truthy := domain.IdentityFromJSON(raw); truthy {
			userID = id
		}
	}

	return &domain.Notification{
		SensorType: domain.SensorType(sensorType),
		UserID:     userID,
		Body:       json.RawMessage(body),
	}, nil
}

// Active reports whether the bridge is consuming.
func (b *Bridge) Active() bool {
	return b.active.Load()
}

// Close closes the channel, then the connection, and waits for the consume
// loop to finish. Either already being closed is not an error.
func (b *Bridge) Close() error {
	b.mu.Lock()
	ch, conn := b.channel, b.conn
	b.channel, b.conn = nil, nil
	b.mu.Unlock()

	b.active.Store(false)

	var errs []error
	if ch != nil {
		if err := ch.Close(); err != nil && !stderrors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil && !stderrors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
	}

	b.wg.Wait()
	b.logger.Info("broker bridge closed")

	return stderrors.Join(errs...)
}

func declareQueue(ch *amqp.Channel, name string) (amqp.Queue, error) {
	return ch.QueueDeclare(name, true, false, false, false, nil)
}
