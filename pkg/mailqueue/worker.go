package mailqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// EmailSender delivers one email
type EmailSender interface {
	SendEmail(to, subject, body string) error
}

// Observer records worker outcomes
type Observer interface {
	ObserveEmail(outcome string)
}

// Delivery outcome for one message
type disposition int

const (
	ack disposition = iota
	reject
	requeue
)

// Worker consumes the email queue with manual acknowledgement
type Worker struct {
	sender   EmailSender
	observer Observer
	logger   *zap.Logger
}

func NewWorker(sender EmailSender, observer Observer, logger *zap.Logger) *Worker {
	return &Worker{sender: sender, observer: observer, logger: logger}
}

// Run consumes until ctx is cancelled or the delivery channel closes
func (w *Worker) Run(ctx context.Context, url, queue string) error {
	if queue == "" {
		queue = DefaultQueue
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return fmt.Errorf("failed to dial rabbitmq: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set qos: %w", err)
	}
	if err := declare(ch, queue); err != nil {
		return err
	}

	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume %s: %w", queue, err)
	}

	w.logger.Info("Mail worker started", zap.String("queue", queue))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Mail worker stopping")
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			w.settle(msg, w.handle(msg.Body, msg.Redelivered))
		}
	}
}

func (w *Worker) settle(msg amqp.Delivery, d disposition) {
	var err error
	switch d {
	case ack:
		err = msg.Ack(false)
	case reject:
		err = msg.Nack(false, false)
	case requeue:
		err = msg.Nack(false, true)
	}
	if err != nil {
		w.logger.Error("Failed to settle delivery", zap.Uint64("delivery_tag", msg.DeliveryTag), zap.Error(err))
	}
}

// handle decodes and sends one message. Undecodable messages are rejected.
// A send failure is requeued once; a redelivered message that fails again is
// rejected so a persistent failure cannot loop on the queue.
func (w *Worker) handle(body []byte, redelivered bool) disposition {
	var email Email
	if err := json.Unmarshal(body, &email); err != nil {
		w.logger.Error("Failed to decode queued email", zap.Error(err))
		w.observe("rejected")
		return reject
	}
	if err := email.validate(); err != nil {
		w.logger.Error("Invalid queued email", zap.Error(err))
		w.observe("rejected")
		return reject
	}

	if err := w.sender.SendEmail(email.To, email.Subject, email.Body); err != nil {
		if redelivered {
			w.logger.Error("Failed to send redelivered email, dropping", zap.String("to", email.To), zap.Error(err))
			w.observe("failed")
			return reject
		}
		w.logger.Warn("Failed to send email, requeueing", zap.String("to", email.To), zap.Error(err))
		w.observe("requeued")
		return requeue
	}

	w.logger.Info("Sent email", zap.String("to", email.To), zap.String("subject", email.Subject))
	w.observe("sent")
	return ack
}

func (w *Worker) observe(outcome string) {
	if w.observer != nil {
		w.observer.ObserveEmail(outcome)
	}
}
