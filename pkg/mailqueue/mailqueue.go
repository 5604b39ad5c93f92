// Package mailqueue moves outgoing email through a durable RabbitMQ queue so
// request handlers and jobs never block on the mail provider.
package mailqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const DefaultQueue = "shift_emails"

// Email is the queued message body
type Email struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (e Email) validate() error {
	if strings.TrimSpace(e.To) == "" {
		return errors.New("email has no recipient")
	}
	if strings.TrimSpace(e.Subject) == "" {
		return errors.New("email has no subject")
	}
	return nil
}

// Publisher enqueues emails on a single channel
type Publisher struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	queue  string
	logger *zap.Logger
	mu     sync.Mutex
}

// Dial opens a connection and declares the durable queue
func Dial(url, queue string, logger *zap.Logger) (*Publisher, error) {
	if queue == "" {
		queue = DefaultQueue
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := declare(ch, queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	return &Publisher{conn: conn, ch: ch, queue: queue, logger: logger}, nil
}

func declare(ch *amqp.Channel, queue string) error {
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}
	return nil
}

// Enqueue publishes a persistent message for the mail worker
func (p *Publisher) Enqueue(ctx context.Context, email Email) error {
	if err := email.validate(); err != nil {
		return err
	}

	body, err := json.Marshal(email)
	if err != nil {
		return fmt.Errorf("failed to encode email: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish email to %s: %w", p.queue, err)
	}

	p.logger.Debug("Queued email", zap.String("to", email.To), zap.String("subject", email.Subject))
	return nil
}

func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	if err := p.ch.Close(); err != nil {
		p.logger.Warn("Failed to close channel", zap.Error(err))
	}
	return p.conn.Close()
}
