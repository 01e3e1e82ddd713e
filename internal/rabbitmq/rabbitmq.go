package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/streadway/amqp"
)

// Client - соединение с брокером и один канал для публикации.
// amqp.Channel не потокобезопасен, поэтому Publish сериализован.
type Client struct {
	log     *slog.Logger
	conn    *amqp.Connection
	channel *amqp.Channel
	mu      sync.Mutex
}

// NewClient подключается к брокеру и объявляет topic exchange для событий заказов
func NewClient(log *slog.Logger, url, exchange string) (*Client, error) {
	const op = "rabbitmq.NewClient"

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to connect: %w", op, err)
	}

	channel, err := conn.Channel()
	if err != nil {
		if cerr := conn.Close(); cerr != nil {
			log.Error("failed to close connection", slog.String("op", op), slog.Any("error", cerr))
		}
		return nil, fmt.Errorf("%s: failed to open channel: %w", op, err)
	}

	if err := channel.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("%s: failed to declare exchange %s: %w", op, exchange, err)
	}

	log.Info("rabbitmq connected", slog.String("exchange", exchange))

	return &Client{
		log:     log,
		conn:    conn,
		channel: channel,
	}, nil
}

// Publish отправляет persistent-сообщение; messageID позволяет потребителю отбрасывать дубли
func (c *Client) Publish(ctx context.Context, exchange, routingKey, messageID, contentType string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.channel.Publish(exchange, routingKey, false, false, amqp.Publishing{
		MessageId:    messageID,
		ContentType:  contentType,
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

// Close закрывает канал и соединение
func (c *Client) Close() error {
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			return err
		}
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
