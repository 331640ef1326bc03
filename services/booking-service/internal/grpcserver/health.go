// Package grpcserver exposes the booking service's gRPC surface: the standard health
// service, driven by the same dependency checks as /readyz.
package grpcserver

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/md-rashed-zaman/slotkeeper/libs/runtime"
)

// ServiceName is the name reported next to the overall ("") status.
const ServiceName = "slotkeeper.booking.v1.BookingService"

type Health struct {
	srv    *health.Server
	checks []runtime.ReadyCheck
	logger *slog.Logger
}

// Register installs the health service. Status starts NOT_SERVING until the first Refresh.
func Register(grpcServer *grpc.Server, logger *slog.Logger, checks ...runtime.ReadyCheck) *Health {
	h := &Health{srv: health.NewServer(), checks: checks, logger: logger}
	h.set(healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(grpcServer, h.srv)
	return h
}

func (h *Health) set(status healthpb.HealthCheckResponse_ServingStatus) {
	h.srv.SetServingStatus("", status)
	h.srv.SetServingStatus(ServiceName, status)
}

// Refresh runs the checks once and publishes the result.
func (h *Health) Refresh(ctx context.Context) bool {
	failures := runtime.RunChecks(ctx, h.checks...)
	if len(failures) > 0 {
		h.logger.Warn("grpc health not serving", "failures", strings.Join(failures, "; "))
		h.set(healthpb.HealthCheckResponse_NOT_SERVING)
		return false
	}
	h.set(healthpb.HealthCheckResponse_SERVING)
	return true
}

// Run refreshes every interval until ctx ends, then marks the service as shutting down.
func (h *Health) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	h.Refresh(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.srv.Shutdown()
			return
		case <-ticker.C:
			h.Refresh(ctx)
		}
	}
}
