package mq

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const (
	memoryQueueSize   = 1024
	memoryMaxAttempts = 3
)

var ErrBrokerClosed = errors.New("broker closed")

// MemoryBroker is an in-process backend. Each channel is a bounded queue;
// concurrent subscribers on one channel compete for messages.
type MemoryBroker struct {
	mu     sync.Mutex
	queues map[string]chan memoryDelivery
	closed chan struct{}
	once   sync.Once
}

type memoryDelivery struct {
	msg      Message
	attempts int
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		queues: make(map[string]chan memoryDelivery),
		closed: make(chan struct{}),
	}
}

func (b *MemoryBroker) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("memory channel is required")
	}
	id := uuid.NewString()
	payload := make([]byte, len(data))
	copy(payload, data)
	return id, b.enqueue(ctx, channel, memoryDelivery{msg: Message{ID: id, Data: payload, Attributes: attrs}})
}

// Subscribe delivers messages until ctx is done or the broker closes. A
// failed message is requeued until it has been tried memoryMaxAttempts times.
func (b *MemoryBroker) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("memory channel is required")
	}
	queue := b.queue(channel)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.closed:
			return ErrBrokerClosed
		case delivery := <-queue:
			delivery.attempts++
			if err := handler(ctx, delivery.msg); err != nil && delivery.attempts < memoryMaxAttempts {
				if err := b.enqueue(ctx, channel, delivery); err != nil {
					return err
				}
			}
		}
	}
}

func (b *MemoryBroker) Close() error {
	b.once.Do(func() { close(b.closed) })
	return nil
}

func (b *MemoryBroker) enqueue(ctx context.Context, channel string, delivery memoryDelivery) error {
	select {
	case <-b.closed:
		return ErrBrokerClosed
	default:
	}
	select {
	case b.queue(channel) <- delivery:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-b.closed:
		return ErrBrokerClosed
	}
}

func (b *MemoryBroker) queue(channel string) chan memoryDelivery {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queues[channel]
	if !ok {
		q = make(chan memoryDelivery, memoryQueueSize)
		b.queues[channel] = q
	}
	return q
}
