package grpc

import (
	"context"

	"github.com/mcservers/playersessions/pkg/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the service reported by the health endpoint besides the
// server-wide "" entry.
const ServiceName = "playersessions.Relay"

type HealthService struct {
	srv *health.Server
	l   logger.Logger
}

// NewHealthService starts out NOT_SERVING until SetServing is called.
func NewHealthService(l logger.Logger) *HealthService {
	srv := health.NewServer()
	srv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	srv.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	return &HealthService{
		srv: srv,
		l:   l,
	}
}

func (h *HealthService) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.srv)
}

func (h *HealthService) SetServing(ctx context.Context, serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}

	h.srv.SetServingStatus("", status)
	h.srv.SetServingStatus(ServiceName, status)

	h.l.Debugf(ctx, "delivery.grpc.health.SetServing: %s", status)
}

// Shutdown marks everything NOT_SERVING and ignores later updates.
func (h *HealthService) Shutdown(ctx context.Context) {
	h.srv.Shutdown()
	h.l.Info(ctx, "gRPC health set to NOT_SERVING")
}
