package services

import (
	"context"

	"go.uber.org/zap"
)

// EventPublisher delivers domain events to the message broker.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, payload any) error
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, string, any) error { return nil }

// publish is best effort: a broker failure never fails the request.
func publish(ctx context.Context, events EventPublisher, logger *zap.Logger, channel string, payload any) {
	if err := events.Publish(ctx, channel, payload); err != nil {
		logger.Warn("failed to publish event", zap.String("channel", channel), zap.Error(err))
	}
}
