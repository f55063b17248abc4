package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mcservers/playersessions/config"
	"github.com/mcservers/playersessions/pkg/logger"
	"golang.org/x/sync/errgroup"
)

var (
	ErrRelayRunning    = errors.New("relay is already running")
	ErrRelayNotRunning = errors.New("relay is not running")
)

// Relay runs the periodic drain and heartbeat loops and performs the final
// drain on shutdown.
type Relay interface {
	Start(ctx context.Context) error
	// Stop halts both loops and drains whatever is still pending. It returns
	// the result of the final drain.
	Stop(ctx context.Context) error
	GetStatus(ctx context.Context) RelayStatus
}

type RelayConfig struct {
	DrainInterval     time.Duration
	HeartbeatInterval time.Duration
	ShutdownTimeout   time.Duration
}

type relay struct {
	ssSvc    SessionService
	uploader Uploader
	l        logger.Logger
	cfg      RelayConfig

	mu            sync.RWMutex
	isRunning     bool
	startedAt     time.Time
	lastDrain     time.Time
	lastHeartbeat time.Time
	stopCh        chan struct{}
	cancel        context.CancelFunc
	g             *errgroup.Group
}

func NewRelay(
	ssSvc SessionService,
	uploader Uploader,
	l logger.Logger,
	cfg config.UploadConfig,
) Relay {
	return &relay{
		ssSvc:    ssSvc,
		uploader: uploader,
		l:        l,
		cfg: RelayConfig{
			DrainInterval:     cfg.DrainInterval,
			HeartbeatInterval: cfg.HeartbeatInterval,
			ShutdownTimeout:   cfg.ShutdownTimeout,
		},
	}
}

func (r *relay) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.isRunning {
		return ErrRelayRunning
	}

	r.l.Infof(ctx, "Starting relay: drain_interval=%s heartbeat_interval=%s",
		r.cfg.DrainInterval, r.cfg.HeartbeatInterval)

	r.isRunning = true
	r.startedAt = time.Now()
	r.stopCh = make(chan struct{})

	// The loops get their own context so Stop can abort an in-flight upload.
	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	g, gctx := errgroup.WithContext(loopCtx)
	stopCh := r.stopCh
	g.Go(func() error {
		r.loop(gctx, stopCh, r.cfg.DrainInterval, r.drain)
		return nil
	})
	g.Go(func() error {
		r.loop(gctx, stopCh, r.cfg.HeartbeatInterval, r.heartbeat)
		return nil
	})
	r.g = g

	return nil
}

func (r *relay) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.isRunning {
		r.mu.Unlock()
		return ErrRelayNotRunning
	}
	r.isRunning = false
	close(r.stopCh)
	g, cancel := r.g, r.cancel
	r.mu.Unlock()
	defer cancel()

	r.l.Info(ctx, "Stopping relay...")

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.l.Info(ctx, "Relay loops stopped")
	case <-time.After(r.cfg.ShutdownTimeout):
		r.l.Warn(ctx, "Relay loop shutdown timeout exceeded, aborting in-flight upload")
		cancel()
		<-done
	}

	// An aborted upload has requeued its batch by now, so the final drain sees it.
	return r.uploader.DrainAll(ctx)
}

func (r *relay) loop(ctx context.Context, stopCh <-chan struct{}, interval time.Duration, tick func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			tick(ctx)
		}
	}
}

func (r *relay) drain(ctx context.Context) {
	r.uploader.DrainOnce(ctx)

	r.mu.Lock()
	r.lastDrain = time.Now()
	r.mu.Unlock()
}

func (r *relay) heartbeat(ctx context.Context) {
	r.ssSvc.Heartbeat(ctx)

	r.mu.Lock()
	r.lastHeartbeat = time.Now()
	r.mu.Unlock()
}

func (r *relay) GetStatus(ctx context.Context) RelayStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return RelayStatus{
		IsRunning:     r.isRunning,
		StartedAt:     r.startedAt,
		LastDrain:     r.lastDrain,
		LastHeartbeat: r.lastHeartbeat,
		Sessions:      r.ssSvc.Stats(ctx),
	}
}
