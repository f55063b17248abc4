package consumer

import (
	"context"

	"github.com/IBM/sarama"
	"github.com/mcservers/playersessions/internal/delivery"
)

func (c *Consumer) HandlePlayerEvent(ctx context.Context, message *sarama.ConsumerMessage) error {
	e, err := delivery.Decode(message.Value, "")
	if err != nil {
		c.l.Errorf(ctx, "delivery.kafka.consumer.handlers.HandlePlayerEvent: %v", err)
		return err
	}

	c.l.Debugf(ctx, "HandlePlayerEvent consumed: %s player=%s", e.Type, e.Player.ID)

	if key := string(message.Key); key != "" && key != e.Player.ID {
		c.l.Warnf(ctx, "delivery.kafka.consumer.handlers.HandlePlayerEvent: message key %q does not match player %s", key, e.Player.ID)
	}

	if err := delivery.Dispatch(ctx, c.ssSvc, e); err != nil {
		c.l.Errorf(ctx, "delivery.kafka.consumer.handlers.HandlePlayerEvent: %v", err)
		return err
	}

	return nil
}
