package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	appErrors "github.com/mcservers/playersessions/internal/errors"
	"github.com/mcservers/playersessions/internal/metrics"
	"github.com/mcservers/playersessions/internal/repository/memory"
	"github.com/mcservers/playersessions/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type sessionServiceFixture struct {
	svc     SessionService
	repo    memory.SessionRepository
	pending memory.PendingRepository
	m       *metrics.Metrics
}

func newSessionServiceFixture() sessionServiceFixture {
	l := logger.NewNopLogger()
	pending := memory.NewPendingRepository(l)
	repo := memory.NewSessionRepository(pending, func() time.Time { return time.UnixMilli(1_000) }, l)
	m := metrics.NewMetrics(prometheus.NewRegistry())

	return sessionServiceFixture{
		svc:     NewSessionService(repo, pending, m, l),
		repo:    repo,
		pending: pending,
		m:       m,
	}
}

func steve() PlayerInput {
	return PlayerInput{ID: "u-1", Name: "Steve", HasPlayedBefore: true, IP: "10.0.0.7", Port: 51234}
}

func TestSessionService_LoginQuit(t *testing.T) {
	ctx := context.Background()
	f := newSessionServiceFixture()

	if err := f.svc.HandleLogin(ctx, LoginInput{Hostname: "h1", Player: steve(), Allowed: true}); err != nil {
		t.Fatalf("HandleLogin() error = %v", err)
	}

	ss, ok := f.repo.Get(ctx, "u-1")
	if !ok {
		t.Fatal("no open session after allowed login")
	}
	if ss.Hostname != "h1" {
		t.Errorf("Hostname = %q, want h1", ss.Hostname)
	}
	if addr, ok := ss.Player.Address(); !ok || addr.String() != "10.0.0.7:51234" {
		t.Errorf("Address() = %v, %v, want 10.0.0.7:51234", addr, ok)
	}

	if err := f.svc.HandleQuit(ctx, PlayerInput{ID: "u-1"}); err != nil {
		t.Fatalf("HandleQuit() error = %v", err)
	}
	if _, ok := f.repo.Get(ctx, "u-1"); ok {
		t.Error("session still open after quit")
	}
	if ss.IsOpen() {
		t.Error("session not closed after quit")
	}
	if _, ok := ss.Player.Address(); ok {
		t.Error("player still connected after quit")
	}

	if got := f.pending.Snapshot(ctx); len(got) != 1 || got[0] != ss {
		t.Errorf("pending = %v, want just the ended session", got)
	}
	if got := f.svc.Stats(ctx); got != (SessionStats{OpenSessions: 0, PendingSessions: 1}) {
		t.Errorf("Stats() = %+v", got)
	}
	if got := testutil.ToFloat64(f.m.EventsTotal.WithLabelValues("quit")); got != 1 {
		t.Errorf("player_events_total{type=quit} = %v, want 1", got)
	}
}

func TestSessionService_LoginDenied(t *testing.T) {
	ctx := context.Background()
	f := newSessionServiceFixture()

	if err := f.svc.HandleLogin(ctx, LoginInput{Hostname: "h1", Player: steve(), Allowed: false}); err != nil {
		t.Fatalf("HandleLogin() error = %v", err)
	}

	if _, ok := f.repo.Get(ctx, "u-1"); ok {
		t.Error("denied login opened a session")
	}
	if hostname, ok := f.repo.Hostname(ctx, "u-1"); !ok || hostname != "h1" {
		t.Errorf("Hostname() = %q, %v, want h1, true", hostname, ok)
	}
	if f.pending.Len() != 0 {
		t.Errorf("pending Len() = %d, want 0", f.pending.Len())
	}
}

func TestSessionService_QuitWithoutSession(t *testing.T) {
	f := newSessionServiceFixture()

	if err := f.svc.HandleQuit(context.Background(), PlayerInput{ID: "ghost"}); err != nil {
		t.Errorf("HandleQuit() error = %v, want nil", err)
	}
	if f.pending.Len() != 0 {
		t.Errorf("pending Len() = %d, want 0", f.pending.Len())
	}
	if n := f.repo.PlayerCount(); n != 0 {
		t.Errorf("PlayerCount() = %d, want 0", n)
	}
}

func TestSessionService_JoinTouchesOpenSession(t *testing.T) {
	ctx := context.Background()
	f := newSessionServiceFixture()

	_ = f.svc.HandleLogin(ctx, LoginInput{Hostname: "h1", Player: steve(), Allowed: true})
	f.pending.TakeAll(ctx)

	in := steve()
	in.IP, in.Port = "10.0.0.8", 40000
	if err := f.svc.HandleJoin(ctx, in); err != nil {
		t.Fatalf("HandleJoin() error = %v", err)
	}

	if f.pending.Len() != 1 {
		t.Errorf("pending Len() = %d, want 1", f.pending.Len())
	}
	ss, _ := f.repo.Get(ctx, "u-1")
	if addr, _ := ss.Player.Address(); addr.String() != "10.0.0.8:40000" {
		t.Errorf("Address() = %v, want 10.0.0.8:40000", addr)
	}
}

func TestSessionService_JoinWithoutSession(t *testing.T) {
	f := newSessionServiceFixture()

	if err := f.svc.HandleJoin(context.Background(), steve()); err != nil {
		t.Fatalf("HandleJoin() error = %v", err)
	}
	if f.pending.Len() != 0 {
		t.Errorf("pending Len() = %d, want 0", f.pending.Len())
	}
	if n := f.repo.PlayerCount(); n != 0 {
		t.Errorf("PlayerCount() = %d, want 0", n)
	}
}

func TestSessionService_PlayersReleasedAfterQuit(t *testing.T) {
	ctx := context.Background()
	f := newSessionServiceFixture()

	for i := range 100 {
		in := PlayerInput{ID: fmt.Sprintf("u-%d", i), IP: "10.0.0.7", Port: 51234}
		_ = f.svc.HandleLogin(ctx, LoginInput{Hostname: "h1", Player: in, Allowed: true})
		_ = f.svc.HandleQuit(ctx, in)
		_ = f.svc.HandleQuit(ctx, PlayerInput{ID: fmt.Sprintf("ghost-%d", i)})
		_ = f.svc.HandleJoin(ctx, PlayerInput{ID: fmt.Sprintf("ghost-%d", i)})
	}

	if n := f.repo.PlayerCount(); n != 0 {
		t.Errorf("PlayerCount() = %d, want 0", n)
	}
	if f.pending.Len() != 100 {
		t.Errorf("pending Len() = %d, want 100", f.pending.Len())
	}
}

func TestSessionService_ClosedSessionKeepsOwnAddress(t *testing.T) {
	ctx := context.Background()
	f := newSessionServiceFixture()

	_ = f.svc.HandleLogin(ctx, LoginInput{Hostname: "h1", Player: steve(), Allowed: true})
	closed, _ := f.repo.Get(ctx, "u-1")
	_ = f.svc.HandleQuit(ctx, PlayerInput{ID: "u-1"})

	in := steve()
	in.IP = "10.0.0.9"
	_ = f.svc.HandleLogin(ctx, LoginInput{Hostname: "h1", Player: in, Allowed: true})

	if _, ok := closed.Player.Address(); ok {
		t.Error("closed session picked up the address of the next connection")
	}
	if closed.Player.Name() != "Steve" {
		t.Errorf("Name() = %q, want Steve", closed.Player.Name())
	}
	open, _ := f.repo.Get(ctx, "u-1")
	if addr, _ := open.Player.Address(); addr.String() != "10.0.0.9:51234" {
		t.Errorf("Address() = %v, want 10.0.0.9:51234", addr)
	}
}

func TestSessionService_Online(t *testing.T) {
	ctx := context.Background()
	f := newSessionServiceFixture()

	_ = f.svc.HandleLogin(ctx, LoginInput{Hostname: "cached.example.org", Player: steve(), Allowed: false})

	if err := f.svc.HandleOnline(ctx, OnlineInput{Hostname: "hint.example.org", Player: steve()}); err != nil {
		t.Fatalf("HandleOnline() error = %v", err)
	}
	first, ok := f.repo.Get(ctx, "u-1")
	if !ok {
		t.Fatal("online did not start a session")
	}
	if first.Hostname != "cached.example.org" {
		t.Errorf("Hostname = %q, want cached.example.org", first.Hostname)
	}

	_ = f.svc.HandleOnline(ctx, OnlineInput{Hostname: "hint.example.org", Player: steve()})
	if second, _ := f.repo.Get(ctx, "u-1"); second != first {
		t.Error("repeated online replaced the open session")
	}
}

func TestSessionService_Heartbeat(t *testing.T) {
	ctx := context.Background()
	f := newSessionServiceFixture()

	for _, id := range []string{"a", "b", "c"} {
		_ = f.svc.HandleLogin(ctx, LoginInput{Hostname: "h", Player: PlayerInput{ID: id}, Allowed: true})
	}
	f.pending.TakeAll(ctx)

	f.svc.Heartbeat(ctx)

	if f.pending.Len() != 3 {
		t.Errorf("pending Len() = %d, want 3", f.pending.Len())
	}
}

func TestSessionService_RejectsMissingPlayerID(t *testing.T) {
	ctx := context.Background()
	f := newSessionServiceFixture()

	errs := []error{
		f.svc.HandleLogin(ctx, LoginInput{Allowed: true}),
		f.svc.HandleJoin(ctx, PlayerInput{}),
		f.svc.HandleQuit(ctx, PlayerInput{}),
		f.svc.HandleOnline(ctx, OnlineInput{}),
	}
	for i, err := range errs {
		if !errors.Is(err, appErrors.ErrInvalidPlayer) {
			t.Errorf("handler %d error = %v, want %v", i, err, appErrors.ErrInvalidPlayer)
		}
	}
}
