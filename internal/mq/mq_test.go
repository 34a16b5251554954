package mq

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/elasticdoctor/webapp/config"
	"github.com/stretchr/testify/require"
)

func TestMemoryBrokerDelivers(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	bus := New(NewMemoryBroker())
	defer bus.Close()

	_, err := bus.Publish(ctx, "clusters.health", []byte(`{"cluster_id":1}`), map[string]string{AttrContentType: "application/json"})
	require.NoError(t, err)

	received := make(chan Message, 1)
	subCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		done <- bus.Subscribe(subCtx, "clusters.health", func(_ context.Context, msg Message) error {
			received <- msg
			return nil
		})
	}()

	select {
	case msg := <-received:
		require.JSONEq(t, `{"cluster_id":1}`, string(msg.Data))
		require.Equal(t, "application/json", msg.Attributes[AttrContentType])
		require.NotEmpty(t, msg.ID)
	case <-ctx.Done():
		t.Fatal("message not delivered")
	}

	stop()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestMemoryBrokerRetriesFailedMessages(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	broker := NewMemoryBroker()
	_, err := broker.Publish(ctx, "jobs", []byte("x"), nil)
	require.NoError(t, err)

	var attempts atomic.Int32
	finished := make(chan struct{})
	go func() {
		_ = broker.Subscribe(ctx, "jobs", func(context.Context, Message) error {
			if attempts.Add(1) == memoryMaxAttempts {
				close(finished)
			}
			return errors.New("try again")
		})
	}()

	select {
	case <-finished:
	case <-ctx.Done():
		t.Fatal("message was not retried")
	}
	require.Equal(t, int32(memoryMaxAttempts), attempts.Load())
}

func TestMemoryBrokerClosed(t *testing.T) {
	broker := NewMemoryBroker()
	require.NoError(t, broker.Close())
	require.NoError(t, broker.Close())

	_, err := broker.Publish(context.Background(), "jobs", nil, nil)
	require.ErrorIs(t, err, ErrBrokerClosed)
	require.ErrorIs(t, broker.Subscribe(context.Background(), "jobs", nil), ErrBrokerClosed)
}

func TestOpenSelectsBackend(t *testing.T) {
	bus, err := Open(context.Background(), config.MQConfig{Backend: BackendMemory})
	require.NoError(t, err)
	require.NoError(t, bus.Close())

	_, err = Open(context.Background(), config.MQConfig{Backend: "kafka"})
	require.Error(t, err)

	_, err = Open(context.Background(), config.MQConfig{Backend: BackendRabbitMQ})
	require.Error(t, err)
}
