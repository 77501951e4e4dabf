// Package service holds the application services sitting between the HTTP
// handlers and the canonical store, plus the outbound event publisher.
package service

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/lot-map/internal/queue"
)

// EventPublisher sends lot change events to downstream consumers.
type EventPublisher interface {
	PublishLotUpdated(ctx context.Context, ev queue.LotUpdatedEvent) error
}

// AMQPPublisher publishes events to RabbitMQ.  Each publish opens its own
// connection; errors are logged and returned so callers can ignore them
// without interrupting the request.
type AMQPPublisher struct {
	url         string
	dialTimeout time.Duration
	log         *zap.Logger
}

// NewAMQPPublisher constructs a publisher for url.
func NewAMQPPublisher(url string, log *zap.Logger) *AMQPPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &AMQPPublisher{url: url, dialTimeout: 3 * time.Second, log: log}
}

// PublishLotUpdated publishes ev to the lot.updated queue as a persistent
// JSON message.
func (p *AMQPPublisher) PublishLotUpdated(ctx context.Context, ev queue.LotUpdatedEvent) error {
	conn, err := amqp.DialConfig(p.url, amqp.Config{Dial: amqp.DefaultDial(p.dialTimeout)})
	if err != nil {
		p.log.Warn("rabbitmq: dial failed", zap.Error(err))
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Warn("rabbitmq: channel open failed", zap.Error(err))
		return err
	}
	defer func() { _ = ch.Close() }()

	// idempotent, durable so messages survive broker restarts
	if _, err := ch.QueueDeclare(queue.LotUpdatedQueue, true, false, false, false, nil); err != nil {
		p.log.Warn("rabbitmq: queue declare failed", zap.Error(err))
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queue.LotUpdatedQueue, false, false, pub); err != nil {
		p.log.Warn("rabbitmq: publish failed", zap.String("lot_id", ev.LotID), zap.Error(err))
		return err
	}
	return nil
}
