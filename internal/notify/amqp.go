// Package notify publishes defer notices for operator-facing consumers.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"mailflow/internal/deferral"
)

const deferQueue = "campaign_deferrals"

// AMQPNotifier publishes one JSON notice per deferral to a durable queue.
type AMQPNotifier struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	log  *zap.Logger
}

func NewAMQP(url string, log *zap.Logger) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		deferQueue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", deferQueue, err)
	}

	return &AMQPNotifier{conn: conn, ch: ch, log: log}, nil
}

func (n *AMQPNotifier) NotifyDeferred(ctx context.Context, notice deferral.Notice) error {
	body, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("marshal defer notice: %w", err)
	}

	err = n.ch.Publish(
		"",         // default exchange
		deferQueue, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish defer notice: %w", err)
	}

	n.log.Debug("defer notice published",
		zap.Int64("campaign_id", notice.CampaignID),
		zap.String("reason", string(notice.Reason)),
	)
	return nil
}

func (n *AMQPNotifier) Close() error {
	if err := n.ch.Close(); err != nil {
		n.conn.Close()
		return err
	}
	return n.conn.Close()
}

// Nop satisfies deferral.Notifier when no broker is configured.
type Nop struct{}

func (Nop) NotifyDeferred(context.Context, deferral.Notice) error { return nil }
