package rabbitmq

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/computor-org/computor/pkg"
	"github.com/computor-org/computor/pkg/mopentelemetry"
)

// EntityEvent is the payload published after a successful entity write so the
// workflow engine and other collaborators can react to mutations.
type EntityEvent struct {
	EntityType string    `json:"entityType"`
	EntityID   string    `json:"entityId"`
	Operation  string    `json:"operation"`
	OccurredAt time.Time `json:"occurredAt"`
}

// ProducerRepository provides an interface for Producer related to rabbitmq.
// It defines methods for sending messages to an exchange.
//
//go:generate mockgen --destination=producer.mock.go --package=rabbitmq . ProducerRepository
type ProducerRepository interface {
	ProducerDefault(ctx context.Context, exchange, key string, message []byte) error
	PublishEntityEvent(ctx context.Context, event EntityEvent) error
}

// RabbitMQConnection is a hub which deal with rabbitmq connections.
type RabbitMQConnection struct {
	ConnectionStringSource string
	Connection             *amqp.Connection
	Channel                *amqp.Channel
	Connected              bool
}

// Connect keeps a singleton connection with rabbitmq.
func (rc *RabbitMQConnection) Connect() error {
	conn, err := amqp.Dial(rc.ConnectionStringSource)
	if err != nil {
		return err
	}

	channel, err := conn.Channel()
	if err != nil {
		return err
	}

	rc.Connection = conn
	rc.Channel = channel
	rc.Connected = true

	return nil
}

// GetChannel returns the channel, initializing the connection if necessary.
func (rc *RabbitMQConnection) GetChannel() (*amqp.Channel, error) {
	if rc.Channel == nil {
		if err := rc.Connect(); err != nil {
			return nil, err
		}
	}

	return rc.Channel, nil
}

// ProducerRabbitMQRepository is a rabbitmq implementation of the producer.
type ProducerRabbitMQRepository struct {
	conn     *RabbitMQConnection
	exchange string
}

// NewProducerRabbitMQ returns a new instance of ProducerRabbitMQRepository
// using the given rabbitmq connection.
func NewProducerRabbitMQ(c *RabbitMQConnection, exchange string) *ProducerRabbitMQRepository {
	return &ProducerRabbitMQRepository{
		conn:     c,
		exchange: exchange,
	}
}

// ProducerDefault publishes a message to an exchange with the given key.
func (prmq *ProducerRabbitMQRepository) ProducerDefault(ctx context.Context, exchange, key string, message []byte) error {
	logger := pkg.NewLoggerFromContext(ctx)
	tracer := pkg.NewTracerFromContext(ctx)

	_, spanProducer := tracer.Start(ctx, "rabbitmq.producer.publish_message")
	defer spanProducer.End()

	channel, err := prmq.conn.GetChannel()
	if err != nil {
		mopentelemetry.HandleSpanError(&spanProducer, "Failed to get rabbitmq channel", err)

		return err
	}

	err = channel.PublishWithContext(
		ctx,
		exchange,
		key,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         message,
		})
	if err != nil {
		mopentelemetry.HandleSpanError(&spanProducer, "Failed to publish message", err)

		logger.Errorf("Failed to publish message: %s", err)

		return err
	}

	logger.Debugf("Message sent to exchange: %s, key: %s", exchange, key)

	return nil
}

// PublishEntityEvent publishes an entity write event keyed by
// "{entity_type}.{operation}".
func (prmq *ProducerRabbitMQRepository) PublishEntityEvent(ctx context.Context, event EntityEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return prmq.ProducerDefault(ctx, prmq.exchange, event.EntityType+"."+event.Operation, body)
}
