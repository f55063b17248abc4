package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"github.com/mcservers/playersessions/internal/delivery/api"
	kafka "github.com/mcservers/playersessions/internal/delivery/kafka"
	"github.com/mcservers/playersessions/pkg/logger"
)

type Producer interface {
	PublishSessionsAbandoned(ctx context.Context, records []api.SessionRecord) error
	Close() error
}

type implProducer struct {
	l    logger.Logger
	prod sarama.SyncProducer
}

func NewProducer(prod sarama.SyncProducer, l logger.Logger) Producer {
	return &implProducer{
		l:    l,
		prod: prod,
	}
}

func (p *implProducer) PublishSessionsAbandoned(ctx context.Context, records []api.SessionRecord) error {
	now := time.Now()
	val, err := json.Marshal(kafka.SessionsAbandonedEvent{
		Reason:      "drain_exhausted",
		Sessions:    records,
		AbandonedAt: now,
		Timestamp:   now,
	})
	if err != nil {
		p.l.Errorf(ctx, "delivery.kafka.producer.producer.PublishSessionsAbandoned: %v", err)
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: kafka.TopicSessionsAbandoned,
		Value: sarama.ByteEncoder(val),
		Headers: []sarama.RecordHeader{
			{
				Key:   []byte("timestamp"),
				Value: []byte(now.Format(time.RFC3339)),
			},
		},
	}

	partition, offset, err := p.prod.SendMessage(msg)
	if err != nil {
		p.l.Errorf(ctx, "delivery.kafka.producer.producer.PublishSessionsAbandoned: %v", err)
		return err
	}

	p.l.Infof(ctx, "Published %d abandoned sessions to %s [partition=%d offset=%d]",
		len(records), kafka.TopicSessionsAbandoned, partition, offset)
	return nil
}

func (p *implProducer) Close() error {
	if err := p.prod.Close(); err != nil {
		return err
	}

	return nil
}
