package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const (
	publishTimeout = 5 * time.Second
	maxBackoff     = 30 * time.Second
)

// ErrChannelClosed is returned by Consume when the broker closes the
// delivery channel.
var ErrChannelClosed = errors.New("delivery channel closed")

// Handler processes one event. Returning an error requeues the delivery.
type Handler func(ctx context.Context, event *TransactionEvent) error

// Client publishes and consumes transaction events on a direct exchange
// bound to a single durable queue.
type Client struct {
	url          string
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
	log          zerolog.Logger

	dial    func(url string) (*amqp091.Connection, error)
	backoff func(attempt int) time.Duration
}

// NewClient dials the broker and declares the exchange and queue.
func NewClient(url, exchangeName, queueName string, log zerolog.Logger) (*Client, error) {
	c := &Client{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
		log:          log,
		dial:         amqp091.Dial,
		backoff:      exponentialBackoff,
	}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) connect() error {
	dial := c.dial
	if dial == nil {
		dial = amqp091.Dial
	}
	conn, err := dial(c.url)
	if err != nil {
		return fmt.Errorf("NewClient: dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("NewClient: open channel: %w", err)
	}

	c.conn = conn
	c.channel = channel

	if err := c.setup(); err != nil {
		c.Close()
		return fmt.Errorf("NewClient: setup exchange and queue: %w", err)
	}
	return nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = c.channel.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// Routing key is the queue name on the direct exchange.
	if err := c.channel.QueueBind(c.queueName, c.queueName, c.exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// Publish implements Publisher with persistent JSON messages.
func (c *Client) Publish(ctx context.Context, event *TransactionEvent) error {
	if c.channel == nil {
		return fmt.Errorf("Publish: %w", amqp091.ErrClosed)
	}
	body, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("Publish: marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = c.channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    event.Timestamp,
			Type:         string(event.Type),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("Publish: %w", err)
	}

	c.log.Debug().
		Str("type", string(event.Type)).
		Str("transaction_id", event.TransactionID).
		Str("exchange", c.exchangeName).
		Msg("Published transaction event")
	return nil
}

// Consume delivers events to handler until ctx is cancelled or the broker
// closes the channel. Acknowledgement is manual.
func (c *Client) Consume(ctx context.Context, handler Handler) error {
	if c.channel == nil {
		return fmt.Errorf("Consume: %w", amqp091.ErrClosed)
	}
	if err := c.channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("Consume: set prefetch: %w", err)
	}

	msgs, err := c.channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("Consume: start consuming: %w", err)
	}

	c.log.Info().Str("queue", c.queueName).Msg("Started consuming transaction events")

	for {
		select {
		case <-ctx.Done():
			c.log.Info().Err(ctx.Err()).Msg("Stopping event consumption")
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return ErrChannelClosed
			}
			handleDelivery(ctx, delivery, handler, c.log)
		}
	}
}

// ConsumeWithRetry runs Consume and reconnects after connection failures.
// Other errors are returned.
func (c *Client) ConsumeWithRetry(ctx context.Context, handler Handler) error {
	for {
		err := c.Consume(ctx, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !isConnectionError(err) {
			return err
		}

		c.log.Warn().Err(err).Msg("AMQP connection lost")
		if err := c.reconnect(ctx); err != nil {
			return err
		}
	}
}

// reconnect drops the current connection and dials again with exponential
// backoff until it succeeds or ctx ends.
func (c *Client) reconnect(ctx context.Context) error {
	c.Close()

	backoff := c.backoff
	if backoff == nil {
		backoff = exponentialBackoff
	}
	for attempt := 0; ; attempt++ {
		wait := backoff(attempt)
		c.log.Info().Int("attempt", attempt+1).Dur("retry_in", wait).Msg("Reconnecting to AMQP")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		if err := c.connect(); err != nil {
			c.log.Error().Err(err).Int("attempt", attempt+1).Msg("AMQP reconnect failed")
			continue
		}
		c.log.Info().Msg("AMQP reconnected")
		return nil
	}
}

// handleDelivery decodes one delivery and acks, requeues or drops it.
// Undecodable messages are dropped; handler failures are requeued.
func handleDelivery(ctx context.Context, d amqp091.Delivery, handler Handler, log zerolog.Logger) {
	event, err := TransactionEventFromJSON(d.Body)
	if err != nil {
		log.Error().Err(err).Msg("Failed to decode transaction event")
		_ = d.Nack(false, false)
		return
	}

	if err := handler(ctx, event); err != nil {
		log.Error().
			Err(err).
			Str("type", string(event.Type)).
			Str("transaction_id", event.TransactionID).
			Msg("Failed to handle transaction event")
		_ = d.Nack(false, true)
		return
	}

	_ = d.Ack(false)
	log.Debug().
		Str("type", string(event.Type)).
		Str("transaction_id", event.TransactionID).
		Msg("Processed transaction event")
}

// Close closes the channel and connection.
func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

func exponentialBackoff(attempt int) time.Duration {
	if attempt >= 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrChannelClosed) || errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection", "eof", "broken pipe"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

var _ Publisher = (*Client)(nil)
