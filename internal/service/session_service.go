package service

import (
	"context"
	"errors"

	appErrors "github.com/mcservers/playersessions/internal/errors"
	"github.com/mcservers/playersessions/internal/metrics"
	"github.com/mcservers/playersessions/internal/models"
	"github.com/mcservers/playersessions/internal/repository/memory"
	"github.com/mcservers/playersessions/pkg/logger"
)

// SessionService turns player lifecycle events into session store and
// pending set mutations. It never performs network I/O, so callers on the
// event path are only ever blocked by in-memory locks.
type SessionService interface {
	HandleLogin(ctx context.Context, in LoginInput) error
	HandleJoin(ctx context.Context, in PlayerInput) error
	HandleQuit(ctx context.Context, in PlayerInput) error
	HandleOnline(ctx context.Context, in OnlineInput) error
	Heartbeat(ctx context.Context)
	Stats(ctx context.Context) SessionStats
}

type sessionService struct {
	repo    memory.SessionRepository
	pending memory.PendingRepository
	m       *metrics.Metrics
	l       logger.Logger
}

func NewSessionService(
	repo memory.SessionRepository,
	pending memory.PendingRepository,
	m *metrics.Metrics,
	l logger.Logger,
) SessionService {
	return &sessionService{
		repo:    repo,
		pending: pending,
		m:       m,
		l:       l,
	}
}

// HandleLogin caches the hostname for every attempt and starts a session
// only when the login was allowed.
func (s *sessionService) HandleLogin(ctx context.Context, in LoginInput) error {
	if in.Player.ID == "" {
		return appErrors.ErrInvalidPlayer
	}
	s.countEvent("login")

	s.repo.SetHostname(ctx, in.Player.ID, in.Hostname)
	if !in.Allowed {
		s.l.Debugf(ctx, "service.sessionService.HandleLogin: login denied for player=%s", in.Player.ID)
		return nil
	}

	p := s.player(ctx, in.Player)
	ss := s.repo.Start(ctx, in.Hostname, p)

	s.l.Infof(ctx, "Session started: session=%s player=%s hostname=%s", ss.ID, p.Name(), ss.Hostname)
	s.refreshGauges()

	return nil
}

// HandleJoin re-marks the open session so its connection details are sent.
func (s *sessionService) HandleJoin(ctx context.Context, in PlayerInput) error {
	if in.ID == "" {
		return appErrors.ErrInvalidPlayer
	}
	s.countEvent("join")

	ss, ok := s.repo.Get(ctx, in.ID)
	if !ok {
		s.l.Debugf(ctx, "service.sessionService.HandleJoin: no open session for player=%s", in.ID)
		return nil
	}
	s.player(ctx, in)
	s.pending.Touch(ctx, ss)
	s.refreshGauges()

	return nil
}

// HandleQuit closes the open session of the player. A quit for a player
// without one is logged and dropped.
func (s *sessionService) HandleQuit(ctx context.Context, in PlayerInput) error {
	if in.ID == "" {
		return appErrors.ErrInvalidPlayer
	}
	s.countEvent("quit")

	ss, err := s.repo.End(ctx, in.ID)
	if err != nil {
		if errors.Is(err, appErrors.ErrNoActiveSession) {
			s.l.Warnf(ctx, "service.sessionService.HandleQuit: %v: player=%s", err, in.ID)
			return nil
		}
		s.l.Errorf(ctx, "service.sessionService.HandleQuit: %v", err)
		return nil
	}

	p := ss.Player
	p.Refresh(in.Name, in.HasPlayedBefore)
	p.Disconnect()

	s.l.Infof(ctx, "Session ended: session=%s player=%s elapsed=%s", ss.ID, p.Name(), ss.Elapsed())
	s.refreshGauges()

	return nil
}

// HandleOnline makes sure a player already connected at startup is tracked.
func (s *sessionService) HandleOnline(ctx context.Context, in OnlineInput) error {
	if in.Player.ID == "" {
		return appErrors.ErrInvalidPlayer
	}
	s.countEvent("online")

	p := s.player(ctx, in.Player)
	ss := s.repo.GetOrStart(ctx, p, in.Hostname)

	s.l.Debugf(ctx, "service.sessionService.HandleOnline: tracking session=%s player=%s", ss.ID, p.ID)
	s.refreshGauges()

	return nil
}

// Heartbeat marks every open session pending so long sessions are re-sent
// with their end-so-far.
func (s *sessionService) Heartbeat(ctx context.Context) {
	open := s.repo.OpenSessions(ctx)
	s.pending.TouchAll(ctx, open)

	s.l.Debugf(ctx, "service.sessionService.Heartbeat: touched %d open sessions", len(open))
	s.refreshGauges()
}

func (s *sessionService) Stats(ctx context.Context) SessionStats {
	return SessionStats{
		OpenSessions:    s.repo.Len(),
		PendingSessions: s.pending.Len(),
	}
}

func (s *sessionService) player(ctx context.Context, in PlayerInput) *models.Player {
	p := s.repo.Player(ctx, in.ID, in.Name, in.HasPlayedBefore)
	if addr, ok := in.Address(); ok {
		p.Connect(addr)
	}
	return p
}

func (s *sessionService) countEvent(kind string) {
	if s.m != nil {
		s.m.EventsTotal.WithLabelValues(kind).Inc()
	}
}

func (s *sessionService) refreshGauges() {
	if s.m != nil {
		s.m.OpenSessions.Set(float64(s.repo.Len()))
		s.m.PendingSessions.Set(float64(s.pending.Len()))
	}
}
