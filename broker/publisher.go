package broker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/HMasataka/sensorlink/domain"
	"github.com/HMasataka/sensorlink/logging"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// TestNotification is the payload the publishing utility sends.
type TestNotification struct {
	SensorType domain.SensorType `json:"sensor_type"`
	UserID     string            `json:"user_id"`
	Type       string            `json:"type"`
	Message    string            `json:"message"`
	Timestamp  time.Time         `json:"timestamp"`
}

func NewTestNotification(userID string, now time.Time) TestNotification {
	return TestNotification{
		SensorType: domain.SensorTypeDHT22,
		UserID:     userID,
		Type:       "alert",
		Message:    "This is a test notification from RabbitMQ",
		Timestamp:  now,
	}
}

// Publisher writes persistent JSON messages to one durable queue.
type Publisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	logger  *logging.Logger
}

func NewPublisher(url, queue string, logger *logging.Logger) (*Publisher, error) {
	if queue == "" {
		queue = DefaultQueue
	}
	if logger == nil {
		logger = logging.Discard()
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	if _, err := declareQueue(ch, queue); err != nil {
		conn.Close()
		return nil, err
	}

	return &Publisher{conn: conn, channel: ch, queue: queue, logger: logger}, nil
}

func (p *Publisher) Publish(ctx context.Context, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now(),
		Body:         body,
	}
	if err := p.channel.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		return err
	}

	p.logger.Info("published message", "queue", p.queue, "message_id", msg.MessageId, "bytes", len(body))
	return nil
}

func (p *Publisher) Close() error {
	if err := p.channel.Close(); err != nil {
		p.logger.Debug("error closing channel", "error", err)
	}
	return p.conn.Close()
}
