// Package service publishes domain events to RabbitMQ. Errors are logged and
// returned so callers can ignore failures without interrupting the main
// request flow.
package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// EventPublisher pushes domain events onto durable queues. A nil publisher
// (no broker configured) silently drops events, so handlers never need to
// branch on whether messaging is enabled.
type EventPublisher struct {
	url string
}

// NewEventPublisher returns nil when no broker URL is configured.
func NewEventPublisher(url string) *EventPublisher {
	if url == "" {
		return nil
	}
	return &EventPublisher{url: url}
}

// Publish marshals the event and publishes it to the named durable queue.
// The function never panics; any error is logged and returned so the caller
// can choose to ignore it.
func (p *EventPublisher) Publish(ctx context.Context, queueName string, event any) error {
	if p == nil {
		return nil
	}
	conn, err := amqp.Dial(p.url)
	if err != nil {
		log.Printf("rabbitmq: dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("rabbitmq: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	// Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		log.Printf("rabbitmq: queue declare failed: %v", err)
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		log.Printf("rabbitmq: marshal event failed: %v", err)
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queueName, false, false, pub); err != nil {
		log.Printf("rabbitmq: publish failed: %v", err)
		return err
	}
	return nil
}
