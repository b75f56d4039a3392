package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	EventsExchange     = "dinetab.events"
	NotificationsQueue = "dinetab.notifications"
	ReceiptJobsQueue   = "dinetab.receipt_jobs"
)

type Client struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func New(url string) (*Client, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &Client{conn: conn, ch: ch}, nil
}

func (c *Client) Close() error {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) EnsureExchange(name string) error {
	return c.ch.ExchangeDeclare(
		name,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
}

func (c *Client) EnsureQueue(name string) (amqp.Queue, error) {
	return c.ch.QueueDeclare(
		name,
		true,
		false,
		false,
		false,
		nil,
	)
}

func (c *Client) BindQueue(queueName, exchange, routingKey string) error {
	return c.ch.QueueBind(queueName, routingKey, exchange, false, nil)
}

func (c *Client) PublishJSON(ctx context.Context, exchange, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.ch.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
		Timestamp:   time.Now(),
	})
}

// EnsureEventTopology declares the exchange every committed mutation is
// mirrored to, plus the worker queues hanging off it. The '#' wildcards
// are needed because routing keys like 'order.status_changed' carry more
// than one segment.
func EnsureEventTopology(c *Client) error {
	if err := c.EnsureExchange(EventsExchange); err != nil {
		return err
	}
	for _, name := range []string{NotificationsQueue, ReceiptJobsQueue} {
		if _, err := c.EnsureQueue(name); err != nil {
			return err
		}
	}
	for _, key := range []string{"order.#", "bill.#", "waiter.#", "customer.#"} {
		if err := c.BindQueue(NotificationsQueue, EventsExchange, key); err != nil {
			return err
		}
	}
	return nil
}
