package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mcservers/playersessions/internal/delivery"
	"github.com/mcservers/playersessions/internal/service"
	"github.com/mcservers/playersessions/pkg/logger"
	"github.com/redis/go-redis/v9"
)

var errNotStarted = errors.New("subscriber not started")

// Subscriber feeds player events published on a Redis channel to the
// session service. The event type travels in the payload.
type Subscriber struct {
	cli     *redis.Client
	channel string
	ssSvc   service.SessionService
	l       logger.Logger

	mu     sync.Mutex
	pubsub *redis.PubSub
	wg     sync.WaitGroup
}

func NewSubscriber(cli *redis.Client, channel string, ssSvc service.SessionService, l logger.Logger) *Subscriber {
	return &Subscriber{
		cli:     cli,
		channel: channel,
		ssSvc:   ssSvc,
		l:       l,
	}
}

func (s *Subscriber) Start(ctx context.Context) error {
	ps := s.cli.Subscribe(ctx, s.channel)

	// wait for the subscription to be confirmed
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", s.channel, err)
	}

	s.mu.Lock()
	s.pubsub = ps
	s.mu.Unlock()

	msgs := ps.Channel()
	s.wg.Go(func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				if err := s.handleMessage(ctx, msg.Payload); err != nil {
					s.l.Errorf(ctx, "delivery.redis.subscriber.Start: %v", err)
				}
			}
		}
	})

	s.l.Infof(ctx, "Subscriber is listening on channel: %s", s.channel)
	return nil
}

func (s *Subscriber) Close() error {
	s.mu.Lock()
	ps := s.pubsub
	s.mu.Unlock()

	if ps == nil {
		return errNotStarted
	}

	err := ps.Close()
	s.wg.Wait()
	return err
}

func (s *Subscriber) handleMessage(ctx context.Context, payload string) error {
	ev, err := delivery.Decode([]byte(payload), "")
	if err != nil {
		return err
	}

	s.l.Debugf(ctx, "delivery.redis.subscriber.handleMessage: %s player=%s", ev.Type, ev.Player.ID)

	return delivery.Dispatch(ctx, s.ssSvc, ev)
}
