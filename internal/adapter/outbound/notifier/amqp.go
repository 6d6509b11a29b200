package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/uniedit/paygate/internal/model"
)

// publisher is the subset of amqp.Channel used by the notifier.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPNotifier publishes completion notices to a durable queue.
type AMQPNotifier struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	pub   publisher
	queue string
}

// NewAMQPNotifier dials url and declares queue.
func NewAMQPNotifier(url, queue string) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("amqp declare queue %s: %w", queue, err)
	}
	return &AMQPNotifier{conn: conn, ch: ch, pub: ch, queue: queue}, nil
}

func newAMQPNotifierWithPublisher(pub publisher, queue string) *AMQPNotifier {
	return &AMQPNotifier{pub: pub, queue: queue}
}

func (n *AMQPNotifier) NotifyCompletion(ctx context.Context, notice *model.CompletionNotice) error {
	body, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("encode notice: %w", err)
	}
	err = n.pub.PublishWithContext(ctx, "", n.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    notice.SessionID,
		Timestamp:    notice.CompletedAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("amqp publish: %w", err)
	}
	return nil
}

// Close closes the channel and connection.
func (n *AMQPNotifier) Close() error {
	var errs []error
	if n.ch != nil {
		errs = append(errs, n.ch.Close())
	}
	if n.conn != nil {
		errs = append(errs, n.conn.Close())
	}
	return errors.Join(errs...)
}
