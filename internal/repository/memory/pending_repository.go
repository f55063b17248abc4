package memory

import (
	"context"
	"sync"

	"github.com/mcservers/playersessions/internal/models"
	"github.com/mcservers/playersessions/pkg/logger"
)

// PendingRepository is the set of sessions whose current state has not been
// acknowledged by the collection API. Entries are unique by session ID and
// kept in insertion order.
type PendingRepository interface {
	Touch(ctx context.Context, ss *models.Session) *models.Session
	TouchAll(ctx context.Context, sss []*models.Session)
	TakeBatch(ctx context.Context, max int) []*models.Session
	Requeue(ctx context.Context, batch []*models.Session)
	TakeAll(ctx context.Context) []*models.Session
	Snapshot(ctx context.Context) []*models.Session
	Len() int
}

type pendingRepository struct {
	mu    sync.Mutex
	index map[string]*models.Session
	order []string
	l     logger.Logger
}

func NewPendingRepository(l logger.Logger) PendingRepository {
	return &pendingRepository{
		index: make(map[string]*models.Session),
		l:     l,
	}
}

// Touch marks ss as pending and returns it unchanged. A nil session is ignored.
func (r *pendingRepository) Touch(ctx context.Context, ss *models.Session) *models.Session {
	if ss == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.add(ss)
	return ss
}

func (r *pendingRepository) TouchAll(ctx context.Context, sss []*models.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ss := range sss {
		if ss != nil {
			r.add(ss)
		}
	}

	r.l.Debugf(ctx, "pendingRepository.TouchAll: touched %d sessions, %d pending", len(sss), len(r.order))
}

// TakeBatch removes and returns up to max sessions, oldest first.
func (r *pendingRepository) TakeBatch(ctx context.Context, max int) []*models.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := min(max, len(r.order))
	if n <= 0 {
		return nil
	}

	return r.take(n)
}

// Requeue puts a batch back after a failed upload. Sessions touched again
// while the batch was in flight keep their newer position.
func (r *pendingRepository) Requeue(ctx context.Context, batch []*models.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ss := range batch {
		r.add(ss)
	}
}

func (r *pendingRepository) TakeAll(ctx context.Context) []*models.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.take(len(r.order))
}

func (r *pendingRepository) Snapshot(ctx context.Context) []*models.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*models.Session, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.index[id])
	}
	return out
}

func (r *pendingRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// add and take must be called with mu held.
func (r *pendingRepository) add(ss *models.Session) {
	if _, ok := r.index[ss.ID]; ok {
		return
	}
	r.index[ss.ID] = ss
	r.order = append(r.order, ss.ID)
}

func (r *pendingRepository) take(n int) []*models.Session {
	batch := make([]*models.Session, 0, n)
	for _, id := range r.order[:n] {
		batch = append(batch, r.index[id])
		delete(r.index, id)
	}

	rest := make([]string, len(r.order)-n)
	copy(rest, r.order[n:])
	r.order = rest

	return batch
}
