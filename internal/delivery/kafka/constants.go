package kafka

const (
	// TopicPlayerEvents carries every lifecycle event, keyed by player uuid so
	// one player's events stay on one partition in order.
	TopicPlayerEvents = "player.events"

	TopicSessionsAbandoned = "sessions.abandoned"
)
