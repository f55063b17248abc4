package models

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Clock returns the current time. Sessions take one so tests can pin time.
type Clock func() time.Time

const openEnd = math.MinInt64

// Session is one continuous connected period of a player.
// ID, Hostname, Player and the start timestamp never change after
// construction; the end timestamp is set once by Close.
type Session struct {
	ID       string
	Hostname string
	Player   *Player

	start int64 // unix ms
	end   atomic.Int64
	seen  atomic.Int64 // latest live end handed out
	now   Clock
}

func NewSession(hostname string, player *Player, now Clock) *Session {
	return newSession(uuid.NewString(), hostname, player, now)
}

func newSession(id, hostname string, player *Player, now Clock) *Session {
	if now == nil {
		now = time.Now
	}

	ss := &Session{
		ID:       id,
		Hostname: hostname,
		Player:   player,
		start:    now().UnixMilli(),
		now:      now,
	}
	ss.end.Store(openEnd)
	ss.seen.Store(ss.start)

	return ss
}

func (s *Session) IsOpen() bool {
	return s.end.Load() == openEnd
}

// StartMillis is the unix millisecond timestamp the session started at.
func (s *Session) StartMillis() int64 {
	return s.start
}

// EndMillis is the stored end while closed, and the current time while open.
func (s *Session) EndMillis() int64 {
	if end := s.end.Load(); end != openEnd {
		return end
	}
	return s.live()
}

// Close ends the session. Only the first call records a timestamp; later
// calls return the stored value.
func (s *Session) Close() int64 {
	s.end.CompareAndSwap(openEnd, s.live())
	return s.end.Load()
}

func (s *Session) Elapsed() time.Duration {
	return time.Duration(s.EndMillis()-s.start) * time.Millisecond
}

func (s *Session) StartedAt() time.Time {
	return time.UnixMilli(s.start)
}

func (s *Session) EndedAt() time.Time {
	return time.UnixMilli(s.EndMillis())
}

// live never goes backwards: not before start, not before any value it
// returned earlier, even if the wall clock steps back.
func (s *Session) live() int64 {
	now := s.now().UnixMilli()
	for {
		seen := s.seen.Load()
		if now <= seen {
			return seen
		}
		if s.seen.CompareAndSwap(seen, now) {
			return now
		}
	}
}
