package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mcservers/playersessions/config"
	"github.com/mcservers/playersessions/internal/metrics"
	"github.com/mcservers/playersessions/internal/models"
	"github.com/mcservers/playersessions/internal/repository/memory"
	"github.com/mcservers/playersessions/internal/service"
	"github.com/mcservers/playersessions/pkg/logger"
	"github.com/mcservers/playersessions/pkg/response"
	"github.com/prometheus/client_golang/prometheus"
)

type nopClient struct{}

func (nopClient) Upload(ctx context.Context, batch []*models.Session) error { return nil }

type fixture struct {
	srv  *httptest.Server
	repo memory.SessionRepository
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	l := logger.NewNopLogger()
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	pending := memory.NewPendingRepository(l)
	repo := memory.NewSessionRepository(pending, nil, l)
	ssSvc := service.NewSessionService(repo, pending, m, l)
	cfg := config.UploadConfig{BatchSize: 50, MaxStalls: 10}
	relay := service.NewRelay(ssSvc, service.NewUploader(pending, nopClient{}, nil, m, l, cfg), l, cfg)

	srv := httptest.NewServer(NewRouter(NewHTTPHandler(ssSvc, relay, l), reg))
	t.Cleanup(srv.Close)

	return fixture{srv: srv, repo: repo}
}

func (f fixture) post(t *testing.T, path, body string) (*http.Response, response.Resp) {
	t.Helper()

	resp, err := http.Post(f.srv.URL+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()

	var out response.Resp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, out
}

func TestPostEvent(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "login accepted",
			path:       "/v1/events/login",
			body:       `{"hostname":"play.example.org","allowed":true,"player":{"uuid":"u-1","name":"Steve"}}`,
			wantStatus: http.StatusAccepted,
		},
		{
			name:       "quit without session accepted",
			path:       "/v1/events/quit",
			body:       `{"player":{"uuid":"ghost"}}`,
			wantStatus: http.StatusAccepted,
		},
		{
			name:       "malformed body",
			path:       "/v1/events/join",
			body:       `{"player":`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_body",
		},
		{
			name:       "missing player id",
			path:       "/v1/events/join",
			body:       `{"player":{"name":"Steve"}}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_event",
		},
		{
			name:       "invalid ip",
			path:       "/v1/events/join",
			body:       `{"player":{"uuid":"u-1","ip":"999.1.1.1","port":25565}}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_event",
		},
		{
			name:       "unknown type",
			path:       "/v1/events/kick",
			body:       `{"player":{"uuid":"u-1"}}`,
			wantStatus: http.StatusNotFound,
			wantCode:   "unknown_event",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			resp, out := f.post(t, tt.path, tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if out.ErrorCode != tt.wantCode {
				t.Errorf("error_code = %q, want %q", out.ErrorCode, tt.wantCode)
			}
		})
	}
}

func TestPostEvent_OpensSession(t *testing.T) {
	f := newFixture(t)

	f.post(t, "/v1/events/login", `{"hostname":"h1","allowed":true,"player":{"uuid":"u-1","name":"Steve"}}`)

	if _, ok := f.repo.Get(context.Background(), "u-1"); !ok {
		t.Fatal("login event did not open a session")
	}

	resp, err := http.Get(f.srv.URL + "/v1/status")
	if err != nil {
		t.Fatalf("GET /v1/status: %v", err)
	}
	defer resp.Body.Close()

	var out struct {
		Data service.RelayStatus `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if out.Data.Sessions.OpenSessions != 1 || out.Data.Sessions.PendingSessions != 1 {
		t.Errorf("sessions = %+v, want 1 open, 1 pending", out.Data.Sessions)
	}
	if out.Data.IsRunning {
		t.Error("is_running = true for a relay that was never started")
	}
}

func TestAdminEndpoints(t *testing.T) {
	f := newFixture(t)

	f.post(t, "/v1/events/login", `{"hostname":"h1","allowed":true,"player":{"uuid":"u-1"}}`)

	for _, path := range []string{"/healthz", "/metrics"} {
		resp, err := http.Get(f.srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, resp.StatusCode)
		}
	}

	resp, err := http.Get(f.srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	var sb strings.Builder
	if _, err := io.Copy(&sb, resp.Body); err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(sb.String(), `playersessions_player_events_total{type="login"} 1`) {
		t.Errorf("metrics output missing login counter:\n%s", sb.String())
	}
}
