package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	appErrors "github.com/mcservers/playersessions/internal/errors"
	"github.com/mcservers/playersessions/internal/models"
	"github.com/mcservers/playersessions/pkg/logger"
)

func newTestRepos(now models.Clock) (SessionRepository, PendingRepository) {
	l := logger.NewNopLogger()
	pending := NewPendingRepository(l)
	return NewSessionRepository(pending, now, l), pending
}

func TestSessionRepository_StartAndEnd(t *testing.T) {
	ctx := context.Background()
	clock := func() time.Time { return time.UnixMilli(1_000) }
	sessions, pending := newTestRepos(clock)

	p := sessions.Player(ctx, "u-1", "Steve", true)
	started := sessions.Start(ctx, "h1", p)

	got, ok := sessions.Get(ctx, "u-1")
	if !ok || got != started {
		t.Fatalf("Get() = %v, %v, want started session", got, ok)
	}

	ended, err := sessions.End(ctx, "u-1")
	if err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if ended != started {
		t.Error("End() returned a different session")
	}
	if ended.IsOpen() {
		t.Error("ended session is still open")
	}
	if _, ok := sessions.Get(ctx, "u-1"); ok {
		t.Error("Get() found a session after End()")
	}

	// same entity touched on start and end
	if pending.Len() != 1 {
		t.Errorf("pending Len() = %d, want 1", pending.Len())
	}
	if ended.StartMillis()/1000 != 1 || ended.EndMillis()/1000 != 1 {
		t.Errorf("start/end seconds = %d/%d, want 1/1", ended.StartMillis()/1000, ended.EndMillis()/1000)
	}
}

func TestSessionRepository_EndWithoutSession(t *testing.T) {
	sessions, pending := newTestRepos(nil)

	ss, err := sessions.End(context.Background(), "ghost")
	if !errors.Is(err, appErrors.ErrNoActiveSession) {
		t.Fatalf("End() error = %v, want %v", err, appErrors.ErrNoActiveSession)
	}
	if ss != nil {
		t.Errorf("End() session = %v, want nil", ss)
	}
	if pending.Len() != 0 {
		t.Errorf("pending Len() = %d, want 0", pending.Len())
	}
}

func TestSessionRepository_DoubleLoginReplaces(t *testing.T) {
	ctx := context.Background()
	sessions, pending := newTestRepos(nil)
	p := sessions.Player(ctx, "u-1", "Steve", false)

	first := sessions.Start(ctx, "h1", p)
	second := sessions.Start(ctx, "h2", p)

	if sessions.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", sessions.Len())
	}
	got, _ := sessions.Get(ctx, "u-1")
	if got != second {
		t.Error("Get() did not return the replacing session")
	}
	if !first.IsOpen() {
		t.Error("replaced session was closed, want left open")
	}
	if pending.Len() != 2 {
		t.Errorf("pending Len() = %d, want 2", pending.Len())
	}
}

func TestSessionRepository_AtMostOneOpenPerPlayer(t *testing.T) {
	ctx := context.Background()
	sessions, _ := newTestRepos(nil)
	p := sessions.Player(ctx, "u-1", "Steve", false)

	ops := []string{"login", "login", "quit", "quit", "login", "quit", "login", "login", "login"}
	for _, op := range ops {
		switch op {
		case "login":
			sessions.Start(ctx, "h", p)
		case "quit":
			_, _ = sessions.End(ctx, p.ID)
		}

		open := 0
		for _, ss := range sessions.OpenSessions(ctx) {
			if ss.Player.ID == p.ID {
				open++
			}
		}
		if open > 1 {
			t.Fatalf("after %s: %d open sessions for player, want <= 1", op, open)
		}
	}
}

func TestSessionRepository_GetOrStart(t *testing.T) {
	ctx := context.Background()

	t.Run("existing session is returned", func(t *testing.T) {
		sessions, pending := newTestRepos(nil)
		p := sessions.Player(ctx, "u-1", "Steve", false)
		started := sessions.Start(ctx, "h1", p)

		if got := sessions.GetOrStart(ctx, p, "hint"); got != started {
			t.Error("GetOrStart() started a new session")
		}
		if pending.Len() != 1 {
			t.Errorf("pending Len() = %d, want 1", pending.Len())
		}
	})

	t.Run("cached hostname wins over hint", func(t *testing.T) {
		sessions, _ := newTestRepos(nil)
		p := sessions.Player(ctx, "u-1", "Steve", false)
		sessions.SetHostname(ctx, "u-1", "cached.example.org")

		ss := sessions.GetOrStart(ctx, p, "hint.example.org")
		if ss.Hostname != "cached.example.org" {
			t.Errorf("Hostname = %q, want cached.example.org", ss.Hostname)
		}
	})

	t.Run("hint used without cache", func(t *testing.T) {
		sessions, pending := newTestRepos(nil)
		p := sessions.Player(ctx, "u-1", "Steve", false)

		ss := sessions.GetOrStart(ctx, p, "hint.example.org")
		if ss.Hostname != "hint.example.org" {
			t.Errorf("Hostname = %q, want hint.example.org", ss.Hostname)
		}
		if pending.Len() != 1 {
			t.Errorf("pending Len() = %d, want 1", pending.Len())
		}
	})
}

func TestSessionRepository_PlayerHandleIsStable(t *testing.T) {
	ctx := context.Background()
	sessions, _ := newTestRepos(nil)

	a := sessions.Player(ctx, "u-1", "Steve", false)
	b := sessions.Player(ctx, "u-1", "Steve2", true)

	if a != b {
		t.Fatal("Player() returned a different handle for the same id")
	}
	if b.Name() != "Steve2" || !b.HasPlayedBefore() {
		t.Errorf("handle not refreshed: name=%q played=%v", b.Name(), b.HasPlayedBefore())
	}
}

func TestSessionRepository_EndDropsPlayerHandle(t *testing.T) {
	ctx := context.Background()
	sessions, _ := newTestRepos(nil)

	for _, id := range []string{"u-1", "u-2", "u-3"} {
		sessions.Start(ctx, "h1", sessions.Player(ctx, id, "", false))
	}
	old := sessions.Player(ctx, "u-1", "", false)

	for _, id := range []string{"u-1", "u-2", "u-3"} {
		if _, err := sessions.End(ctx, id); err != nil {
			t.Fatalf("End(%s) error = %v", id, err)
		}
	}
	if n := sessions.PlayerCount(); n != 0 {
		t.Errorf("PlayerCount() = %d, want 0", n)
	}

	if sessions.Player(ctx, "u-1", "", false) == old {
		t.Error("Player() returned the handle of an ended session")
	}
	if n := sessions.PlayerCount(); n != 1 {
		t.Errorf("PlayerCount() = %d, want 1", n)
	}
}
