package config

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher publishes JSON messages to durable queues. The escrow
// engine uses it for fund events; publishing is best-effort and the
// caller decides whether a failure matters.
type Publisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel

	mu       sync.Mutex
	declared map[string]bool
}

// NewPublisher creates a publisher on the shared RabbitMQ connection.
func NewPublisher() (*Publisher, error) {
	if RabbitMQ == nil {
		return nil, fmt.Errorf("RabbitMQ connection not initialized")
	}

	ch, err := RabbitMQ.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	return &Publisher{
		conn:     RabbitMQ,
		channel:  ch,
		declared: make(map[string]bool),
	}, nil
}

// ensureQueue declares the durable queue once per publisher lifetime.
func (p *Publisher) ensureQueue(queueName string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.declared[queueName] {
		return nil
	}
	_, err := p.channel.QueueDeclare(
		queueName,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	p.declared[queueName] = true
	return nil
}

// Publish marshals the message and publishes it persistently to the
// named queue. Bodies are not logged; fund events carry account ids.
func (p *Publisher) Publish(queueName string, message interface{}) error {
	if err := p.ensureQueue(queueName); err != nil {
		return err
	}

	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	err = p.channel.Publish(
		"",        // exchange
		queueName, // routing key
		false,     // mandatory
		false,     // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	log.Printf("Published %d bytes to queue %s", len(body), queueName)
	return nil
}

// Close closes the publisher channel.
func (p *Publisher) Close() error {
	if p.channel != nil {
		return p.channel.Close()
	}
	return nil
}
