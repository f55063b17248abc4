package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mcservers/playersessions/config"
	"github.com/mcservers/playersessions/internal/delivery/api"
	appErrors "github.com/mcservers/playersessions/internal/errors"
	"github.com/mcservers/playersessions/internal/metrics"
	"github.com/mcservers/playersessions/internal/models"
	"github.com/mcservers/playersessions/internal/repository/memory"
	pkgErrors "github.com/mcservers/playersessions/pkg/errors"
	"github.com/mcservers/playersessions/pkg/logger"
)

const deadLetterTimeout = 5 * time.Second

// DeadLetter receives the sessions a shutdown drain gave up on.
type DeadLetter interface {
	PublishSessionsAbandoned(ctx context.Context, records []api.SessionRecord) error
}

// Uploader moves pending sessions to the collection API.
type Uploader interface {
	// DrainOnce uploads at most one batch and reports whether anything was
	// delivered. Failures are logged and the batch is requeued.
	DrainOnce(ctx context.Context) bool
	// DrainAll uploads until the pending set is empty or the stall budget is
	// spent, in which case it returns ErrDrainExhausted.
	DrainAll(ctx context.Context) error
}

type uploader struct {
	pending memory.PendingRepository
	client  api.Client
	dl      DeadLetter
	m       *metrics.Metrics
	l       logger.Logger

	batchSize  int
	maxStalls  int
	retryDelay time.Duration
}

// NewUploader builds an Uploader. dl may be nil.
func NewUploader(
	pending memory.PendingRepository,
	client api.Client,
	dl DeadLetter,
	m *metrics.Metrics,
	l logger.Logger,
	cfg config.UploadConfig,
) Uploader {
	return &uploader{
		pending:    pending,
		client:     client,
		dl:         dl,
		m:          m,
		l:          l,
		batchSize:  cfg.BatchSize,
		maxStalls:  cfg.MaxStalls,
		retryDelay: cfg.RetryDelay,
	}
}

func (u *uploader) DrainOnce(ctx context.Context) bool {
	batch := u.pending.TakeBatch(ctx, u.batchSize)
	if len(batch) == 0 {
		return false
	}

	startedAt := time.Now()
	err := u.client.Upload(ctx, batch)
	u.observeDuration(time.Since(startedAt))

	if err != nil {
		u.fail(ctx, batch, err)
		return false
	}

	u.l.Debugf(ctx, "service.uploader.DrainOnce: uploaded %d sessions", len(batch))
	u.countUpload("ok")
	if u.m != nil {
		u.m.UploadedSessions.Add(float64(len(batch)))
		u.m.PendingSessions.Set(float64(u.pending.Len()))
	}

	return true
}

func (u *uploader) DrainAll(ctx context.Context) error {
	u.l.Infof(ctx, "Draining %d pending sessions", u.pending.Len())

	stalls := 0
	for u.pending.Len() > 0 {
		if u.DrainOnce(ctx) {
			stalls = 0
			continue
		}

		stalls++
		if stalls > u.maxStalls {
			return u.abandon(ctx, stalls)
		}

		if u.retryDelay > 0 {
			select {
			case <-ctx.Done():
				return u.abandon(ctx, stalls)
			case <-time.After(u.retryDelay):
			}
		}
	}

	u.l.Info(ctx, "All pending sessions uploaded")
	return nil
}

func (u *uploader) fail(ctx context.Context, batch []*models.Session, err error) {
	reason := "transport"

	var statusErr *pkgErrors.StatusError
	switch {
	case errors.As(err, &statusErr):
		reason = "protocol"
		u.l.Warnf(ctx, "service.uploader.DrainOnce: failed to upload %d sessions: %s", len(batch), statusErr.Status)
		u.l.Debugf(ctx, "service.uploader.DrainOnce: response headers %v body %s", statusErr.Header, statusErr.Body)
	case errors.Is(err, appErrors.ErrUploadTransport):
		u.l.Warnf(ctx, "service.uploader.DrainOnce: failed to upload %d sessions: %v", len(batch), err)
	default:
		u.l.Errorf(ctx, "service.uploader.DrainOnce: failed to upload %d sessions: %v", len(batch), err)
	}

	u.pending.Requeue(ctx, batch)

	u.countUpload(reason)
	if u.m != nil {
		u.m.RequeuedSessions.WithLabelValues(reason).Add(float64(len(batch)))
		u.m.PendingSessions.Set(float64(u.pending.Len()))
	}
}

// abandon empties the pending set, logging and dead-lettering whatever was
// left in it.
func (u *uploader) abandon(ctx context.Context, stalls int) error {
	residual := u.pending.TakeAll(ctx)
	records := api.NewSessionRecords(residual)

	body, err := json.Marshal(records)
	if err != nil {
		u.l.Errorf(ctx, "service.uploader.DrainAll: %v", err)
	}
	u.l.Errorf(ctx, "Gave up uploading %d sessions after %d failed attempts: %s", len(residual), stalls, body)

	if u.m != nil {
		u.m.AbandonedSessions.Add(float64(len(residual)))
		u.m.PendingSessions.Set(0)
	}

	if u.dl != nil && len(records) > 0 {
		dlCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deadLetterTimeout)
		defer cancel()

		if err := u.dl.PublishSessionsAbandoned(dlCtx, records); err != nil {
			u.l.Errorf(ctx, "service.uploader.DrainAll: failed to dead-letter sessions: %v", err)
		}
	}

	return fmt.Errorf("%w: %d sessions abandoned", appErrors.ErrDrainExhausted, len(residual))
}

func (u *uploader) countUpload(result string) {
	if u.m != nil {
		u.m.UploadsTotal.WithLabelValues(result).Inc()
	}
}

func (u *uploader) observeDuration(d time.Duration) {
	if u.m != nil {
		u.m.UploadDuration.Observe(d.Seconds())
	}
}
