package mq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/elasticdoctor/webapp/config"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// rabbitExchange is a topic exchange; each channel name is a routing key
	// bound to a queue of the same name.
	rabbitExchange = "elasticdoctor.events"

	defaultContentType = "application/octet-stream"
)

// errDeliveriesClosed means the broker cancelled the consumer or the
// connection dropped. Callers resubscribe.
var errDeliveriesClosed = errors.New("rabbitmq delivery channel closed")

type rabbitBackend struct {
	conn     *amqp.Connection
	cfg      config.RabbitMQConfig
	pubMu    sync.Mutex
	pub      *amqp.Channel
	declared sync.Map
}

func newRabbitBackend(cfg config.RabbitMQConfig) (*rabbitBackend, error) {
	if cfg.URL == "" {
		return nil, errors.New("RABBITMQ_URL is required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	pub, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := pub.Confirm(false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq confirm mode: %w", err)
	}
	if err := pub.ExchangeDeclare(rabbitExchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", rabbitExchange, err)
	}

	return &rabbitBackend{conn: conn, cfg: cfg, pub: pub}, nil
}

// Publish routes the message through the events exchange and waits for the
// broker to confirm it.
func (b *rabbitBackend) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if channel == "" {
		return "", errors.New("channel is required")
	}
	if err := b.bindQueue(b.pub, channel); err != nil {
		return "", err
	}

	msg := amqp.Publishing{
		ContentType: defaultContentType,
		MessageId:   uuid.NewString(),
		Timestamp:   time.Now().UTC(),
		Headers:     amqp.Table{},
		Body:        data,
	}
	if b.cfg.QueueDurable {
		msg.DeliveryMode = amqp.Persistent
	}
	for k, v := range attrs {
		if k == AttrContentType {
			msg.ContentType = v
		} else {
			msg.Headers[k] = v
		}
	}

	b.pubMu.Lock()
	confirm, err := b.pub.PublishWithDeferredConfirmWithContext(ctx, rabbitExchange, channel, true, false, msg)
	b.pubMu.Unlock()
	if err != nil {
		return "", err
	}
	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return "", err
	}
	if !acked {
		return "", fmt.Errorf("rabbitmq nacked message %s on %s", msg.MessageId, channel)
	}
	return msg.MessageId, nil
}

// Subscribe consumes on its own AMQP channel so prefetch applies per
// consumer. A handler error requeues the delivery once; a second failure
// drops it.
func (b *rabbitBackend) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if channel == "" {
		return errors.New("channel is required")
	}

	ch, err := b.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if b.cfg.PrefetchCount > 0 {
		if err := ch.Qos(b.cfg.PrefetchCount, 0, false); err != nil {
			return err
		}
	}
	if err := b.bindQueue(ch, channel); err != nil {
		return err
	}

	tag := "elasticdoctor-" + uuid.NewString()
	deliveries, err := ch.ConsumeWithContext(ctx, channel, tag, false, false, false, false, nil)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errDeliveriesClosed
			}
			if err := handler(ctx, deliveryMessage(d)); err != nil {
				_ = d.Nack(false, !d.Redelivered)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (b *rabbitBackend) Close() error {
	return b.conn.Close()
}

// bindQueue declares the queue for a channel and binds it to the exchange,
// once per process.
func (b *rabbitBackend) bindQueue(ch *amqp.Channel, name string) error {
	if _, ok := b.declared.Load(name); ok {
		return nil
	}
	if _, err := ch.QueueDeclare(name, b.cfg.QueueDurable, b.cfg.QueueAutoDelete, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", name, err)
	}
	if err := ch.QueueBind(name, name, rabbitExchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", name, err)
	}
	b.declared.Store(name, struct{}{})
	return nil
}

func deliveryMessage(d amqp.Delivery) Message {
	attrs := make(map[string]string, len(d.Headers)+1)
	for k, v := range d.Headers {
		if s, ok := v.(string); ok {
			attrs[k] = s
		} else {
			attrs[k] = fmt.Sprint(v)
		}
	}
	if d.ContentType != "" {
		attrs[AttrContentType] = d.ContentType
	}
	return Message{ID: d.MessageId, Data: d.Body, Attributes: attrs}
}
