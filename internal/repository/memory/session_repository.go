package memory

import (
	"context"
	"sync"

	appErrors "github.com/mcservers/playersessions/internal/errors"
	"github.com/mcservers/playersessions/internal/models"
	"github.com/mcservers/playersessions/pkg/logger"
)

// SessionRepository tracks the open session of every connected player and
// the hostname each player last logged in with. Only open sessions are held;
// closed ones live on in the PendingRepository until delivered.
type SessionRepository interface {
	Player(ctx context.Context, id, name string, hasPlayedBefore bool) *models.Player
	Get(ctx context.Context, pID string) (*models.Session, bool)
	GetOrStart(ctx context.Context, p *models.Player, hostnameHint string) *models.Session
	Start(ctx context.Context, hostname string, p *models.Player) *models.Session
	End(ctx context.Context, pID string) (*models.Session, error)
	SetHostname(ctx context.Context, pID, hostname string)
	Hostname(ctx context.Context, pID string) (string, bool)
	OpenSessions(ctx context.Context) []*models.Session
	Len() int
	// PlayerCount is the number of player handles held.
	PlayerCount() int
}

// Lock order: sessionRepository.mu before the pending repository's lock.
type sessionRepository struct {
	mu        sync.Mutex
	players   map[string]*models.Player
	sessions  map[string]*models.Session
	hostnames map[string]string

	pending PendingRepository
	now     models.Clock
	l       logger.Logger
}

func NewSessionRepository(pending PendingRepository, now models.Clock, l logger.Logger) SessionRepository {
	return &sessionRepository{
		players:   make(map[string]*models.Player),
		sessions:  make(map[string]*models.Session),
		hostnames: make(map[string]string),
		pending:   pending,
		now:       now,
		l:         l,
	}
}

// Player returns the identity handle for id, creating it on first sight.
// The handle is held until the player's session ends.
func (r *sessionRepository) Player(ctx context.Context, id, name string, hasPlayedBefore bool) *models.Player {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.players[id]; ok {
		p.Refresh(name, hasPlayedBefore)
		return p
	}

	p := models.NewPlayer(id, name, hasPlayedBefore)
	r.players[id] = p
	return p
}

func (r *sessionRepository) Get(ctx context.Context, pID string) (*models.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ss, ok := r.sessions[pID]
	return ss, ok
}

// GetOrStart returns the open session of p, or starts one using the cached
// login hostname, falling back to hostnameHint.
func (r *sessionRepository) GetOrStart(ctx context.Context, p *models.Player, hostnameHint string) *models.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ss, ok := r.sessions[p.ID]; ok {
		return ss
	}

	hostname, ok := r.hostnames[p.ID]
	if !ok || hostname == "" {
		hostname = hostnameHint
	}

	return r.start(ctx, hostname, p)
}

// Start opens a new session for p and marks it pending. A session already
// open for p is replaced without being closed.
func (r *sessionRepository) Start(ctx context.Context, hostname string, p *models.Player) *models.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.start(ctx, hostname, p)
}

// End removes, closes and marks pending the open session of pID, and drops
// the player handle. The closed session keeps its own reference to it.
func (r *sessionRepository) End(ctx context.Context, pID string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ss, ok := r.sessions[pID]
	if !ok {
		return nil, appErrors.ErrNoActiveSession
	}
	delete(r.sessions, pID)
	delete(r.players, pID)

	ss.Close()

	r.l.Debugf(ctx, "memory.sessionRepository.End: session=%s player=%s elapsed=%s", ss.ID, pID, ss.Elapsed())

	return r.pending.Touch(ctx, ss), nil
}

func (r *sessionRepository) SetHostname(ctx context.Context, pID, hostname string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.hostnames[pID] = hostname
}

func (r *sessionRepository) Hostname(ctx context.Context, pID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	hostname, ok := r.hostnames[pID]
	return hostname, ok
}

func (r *sessionRepository) OpenSessions(ctx context.Context) []*models.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*models.Session, 0, len(r.sessions))
	for _, ss := range r.sessions {
		out = append(out, ss)
	}
	return out
}

func (r *sessionRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *sessionRepository) PlayerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// start must be called with mu held.
func (r *sessionRepository) start(ctx context.Context, hostname string, p *models.Player) *models.Session {
	ss := models.NewSession(hostname, p, r.now)

	if prev, ok := r.sessions[p.ID]; ok {
		// TODO: confirm with product whether a double login should close prev first.
		r.l.Warnf(ctx, "memory.sessionRepository.Start: replacing open session without closing it: player=%s prev=%s next=%s",
			p.ID, prev.ID, ss.ID)
	}
	r.sessions[p.ID] = ss

	r.l.Debugf(ctx, "memory.sessionRepository.Start: session=%s player=%s hostname=%s", ss.ID, p.ID, hostname)

	return r.pending.Touch(ctx, ss)
}
