package kafka

import (
	"time"

	"github.com/mcservers/playersessions/internal/delivery/api"
)

// Events published BY the relay

type SessionsAbandonedEvent struct {
	Reason      string              `json:"reason"`
	Sessions    []api.SessionRecord `json:"sessions"`
	AbandonedAt time.Time           `json:"abandoned_at"`
	Timestamp   time.Time           `json:"timestamp"`
}

// Events consumed BY the relay arrive on TopicPlayerEvents as
// delivery.PlayerEvent, with the type in the payload.

func ConsumedTopics() []string {
	return []string{TopicPlayerEvents}
}
