// Package events publishes domain events and consumes health reports sent
// back by the gateway.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/elasticdoctor/webapp/internal/mq"
	"github.com/elasticdoctor/webapp/internal/services"
	"github.com/elasticdoctor/webapp/types"
	"go.uber.org/zap"
)

const contentTypeJSON = "application/json"

// Publisher encodes events as JSON and hands them to the broker.
type Publisher struct {
	bus *mq.MQ
}

func NewPublisher(bus *mq.MQ) *Publisher {
	return &Publisher{bus: bus}
}

func (p *Publisher) Publish(ctx context.Context, channel string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = p.bus.Publish(ctx, channel, data, map[string]string{mq.AttrContentType: contentTypeJSON})
	return err
}

// HealthApplier stores a health report against its cluster.
type HealthApplier interface {
	ApplyHealthReport(ctx context.Context, report types.HealthReport) error
}

// HealthConsumer applies clusters.health messages.
type HealthConsumer struct {
	bus     *mq.MQ
	applier HealthApplier
	logger  *zap.Logger
}

func NewHealthConsumer(bus *mq.MQ, applier HealthApplier, logger *zap.Logger) *HealthConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthConsumer{bus: bus, applier: applier, logger: logger}
}

// Run subscribes until ctx is done, resubscribing with exponential backoff
// when the broker drops the subscription.
func (c *HealthConsumer) Run(ctx context.Context) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxInterval = 30 * time.Second
	policy.MaxElapsedTime = 0

	err := backoff.RetryNotify(func() error {
		err := c.bus.Subscribe(ctx, types.ChannelClusterHealth, c.Handle)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if errors.Is(err, mq.ErrBrokerClosed) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(policy, ctx), func(err error, wait time.Duration) {
		c.logger.Warn("health subscription failed, retrying", zap.Error(err), zap.Duration("wait", wait))
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Handle applies one message. Malformed reports and unknown clusters are
// dropped; anything else is returned so the broker redelivers.
func (c *HealthConsumer) Handle(ctx context.Context, msg mq.Message) error {
	var report types.HealthReport
	if err := json.Unmarshal(msg.Data, &report); err != nil {
		c.logger.Warn("dropping malformed health report", zap.String("message_id", msg.ID), zap.Error(err))
		return nil
	}

	err := c.applier.ApplyHealthReport(ctx, report)
	var validationErr *services.ValidationError
	switch {
	case err == nil:
		c.logger.Debug("health report applied",
			zap.Int64("cluster_id", report.ClusterID),
			zap.String("status", report.Status),
		)
		return nil
	case errors.Is(err, services.ErrClusterNotFound), errors.As(err, &validationErr):
		c.logger.Warn("dropping health report", zap.Int64("cluster_id", report.ClusterID), zap.Error(err))
		return nil
	default:
		return err
	}
}
