package consumer

import (
	"context"
	"sync"

	"github.com/IBM/sarama"
	"github.com/mcservers/playersessions/internal/delivery/kafka"
	"github.com/mcservers/playersessions/internal/service"
	"github.com/mcservers/playersessions/pkg/logger"
)

type Consumer struct {
	consGr sarama.ConsumerGroup
	ssSvc  service.SessionService
	l      logger.Logger
	wg     sync.WaitGroup
}

func NewConsumer(
	consGr sarama.ConsumerGroup,
	ssSvc service.SessionService,
	l logger.Logger,
) *Consumer {
	return &Consumer{
		consGr: consGr,
		ssSvc:  ssSvc,
		l:      l,
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	switch msg.Topic {
	case kafka.TopicPlayerEvents:
		return c.HandlePlayerEvent(ctx, msg)
	default:
		c.l.Warnf(ctx, "delivery.kafka.consumer.consumer.processMessage: unknown topic %s", msg.Topic)
		return nil
	}
}

func (c *Consumer) Start(ctx context.Context) error {
	topics := kafka.ConsumedTopics()
	c.wg.Go(func() {
		for {
			if err := c.consGr.Consume(ctx, topics, c); err != nil {
				c.l.Errorf(ctx, "delivery.kafka.consumer.consumer.Start: %v", err)
			}

			if ctx.Err() != nil {
				c.l.Infof(ctx, "delivery.kafka.consumer.consumer.Start: %v", ctx.Err())
				return
			}
		}
	})

	c.wg.Go(func() {
		for err := range c.consGr.Errors() {
			c.l.Errorf(ctx, "delivery.kafka.consumer.consumer.Start: %v", err)
		}
	})

	c.l.Infof(ctx, "Consumer is consuming topics: %v", topics)
	return nil
}

func (c *Consumer) Close() error {
	if err := c.consGr.Close(); err != nil {
		return err
	}

	c.wg.Wait()
	return nil
}

func (c *Consumer) Setup(sarama.ConsumerGroupSession) error {
	c.l.Debug(context.Background(), "Consumer group session started")
	return nil
}

func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	c.l.Debug(context.Background(), "Consumer group session ended")
	return nil
}

// ConsumeClaim marks every message, including ones that failed to decode.
// Lifecycle events are not replayable once their moment has passed.
func (c *Consumer) ConsumeClaim(ss sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message := <-claim.Messages():
			if message == nil {
				return nil
			}

			ctx := logger.WithFields(ss.Context(), c.l,
				"topic", message.Topic,
				"partition", message.Partition,
				"offset", message.Offset,
			)
			if err := c.processMessage(ctx, message); err != nil {
				c.l.Errorf(ctx, "delivery.kafka.consumer.consumer.ConsumeClaim: %v", err)
			}

			ss.MarkMessage(message, "")

		case <-ss.Context().Done():
			return nil
		}
	}
}
