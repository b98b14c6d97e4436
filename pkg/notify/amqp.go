package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"blogsvc/internal/util"
)

const defaultAMQPQueue = "blog.notifications"

// AMQPNotifier publishes messages as JSON to a durable queue for an external
// mailer to pick up. The connection is dialed lazily and redialed after it closes.
type AMQPNotifier struct {
	url   string
	queue string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQPNotifier(url, queue string) (*AMQPNotifier, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("amqp url required")
	}
	queue = strings.TrimSpace(queue)
	if queue == "" {
		queue = defaultAMQPQueue
	}
	return &AMQPNotifier{url: url, queue: queue}, nil
}

func (n *AMQPNotifier) Send(ctx context.Context, msg Message) error {
	if err := validate(msg); err != nil {
		return err
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	ch, err := n.channelLocked()
	if err != nil {
		return err
	}
	err = ch.PublishWithContext(ctx, "", n.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    util.NewID(),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		n.closeLocked()
		return fmt.Errorf("amqp publish: %w", err)
	}
	return nil
}

func (n *AMQPNotifier) channelLocked() (*amqp.Channel, error) {
	if n.conn != nil && !n.conn.IsClosed() && n.ch != nil && !n.ch.IsClosed() {
		return n.ch, nil
	}
	n.closeLocked()
	conn, err := amqp.Dial(n.url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if _, err := ch.QueueDeclare(n.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("amqp declare queue: %w", err)
	}
	n.conn, n.ch = conn, ch
	return ch, nil
}

func (n *AMQPNotifier) closeLocked() {
	if n.ch != nil {
		_ = n.ch.Close()
		n.ch = nil
	}
	if n.conn != nil {
		_ = n.conn.Close()
		n.conn = nil
	}
}

// Close shuts the broker connection if one is open.
func (n *AMQPNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closeLocked()
	return nil
}
