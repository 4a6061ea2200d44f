package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

// amqpChannel is the part of *amqp.Channel the publisher uses
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

// dialFunc opens a connection and a channel with the queue declared
type dialFunc func() (amqpChannel, io.Closer, error)

// AMQPPublisher publishes events as JSON messages on a durable RabbitMQ queue.
// A dropped connection or channel is redialed on the next Publish.
type AMQPPublisher struct {
	queueName string
	dial      dialFunc
	logger    *zap.Logger

	mu      sync.Mutex
	conn    io.Closer
	channel amqpChannel
}

// NewAMQPPublisher dials the broker and declares the queue
func NewAMQPPublisher(url string, queueName string, logger *zap.Logger) (*AMQPPublisher, error) {
	return newAMQPPublisher(queueName, logger, brokerDialer(url, queueName))
}

func newAMQPPublisher(queueName string, logger *zap.Logger, dial dialFunc) (*AMQPPublisher, error) {
	p := &AMQPPublisher{queueName: queueName, dial: dial, logger: logger}
	if err := p.connect(); err != nil {
		return nil, err
	}
	logger.Info("connected to rabbitmq", zap.String("queue", queueName))
	return p, nil
}

func brokerDialer(url string, queueName string) dialFunc {
	return func() (amqpChannel, io.Closer, error) {
		conn, err := amqp.Dial(url)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to rabbitmq: %w", err)
		}

		ch, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			return nil, nil, fmt.Errorf("opening channel: %w", err)
		}

		_, err = ch.QueueDeclare(
			queueName,
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,
		)
		if err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, nil, fmt.Errorf("declaring queue %s: %w", queueName, err)
		}
		return ch, conn, nil
	}
}

// connect replaces the current session. Callers hold p.mu, except the constructor.
func (p *AMQPPublisher) connect() error {
	p.drop()
	ch, conn, err := p.dial()
	if err != nil {
		return err
	}
	p.channel, p.conn = ch, conn
	return nil
}

func (p *AMQPPublisher) drop() {
	if p.channel != nil {
		_ = p.channel.Close()
		p.channel = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// Publish sends the event to the queue. amqp channels are not safe for concurrent publishing.
func (p *AMQPPublisher) Publish(ctx context.Context, e Event) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel == nil || p.channel.IsClosed() {
		p.logger.Warn("rabbitmq channel closed, redialing", zap.String("queue", p.queueName))
		if err := p.connect(); err != nil {
			return err
		}
	}

	err := p.publish(ctx, e)
	if errors.Is(err, amqp.ErrClosed) {
		// the broker went away after the IsClosed check
		p.logger.Warn("rabbitmq connection lost while publishing, redialing", zap.String("queue", p.queueName))
		if err := p.connect(); err != nil {
			return err
		}
		err = p.publish(ctx, e)
	}
	return err
}

func (p *AMQPPublisher) publish(ctx context.Context, e Event) error {
	return p.channel.PublishWithContext(
		ctx,
		"",          // exchange
		p.queueName, // routing key
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Type:         e.Type,
			Timestamp:    e.At,
			Body:         e.Yield(),
		},
	)
}

// Close closes the channel and the connection
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			p.logger.Warn("closing rabbitmq channel", zap.Error(err))
		}
		p.channel = nil
	}
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	return err
}
