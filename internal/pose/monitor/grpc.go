package monitor

import (
	"context"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/banshee-data/pose.report/internal/pose/pipeline"
	"github.com/banshee-data/pose.report/internal/timeutil"
)

// StreamService is the health service name reported for the pipeline.
const StreamService = "pose.Stream"

// Health serves the standard gRPC health protocol. StreamService follows
// Manager.Accepting.
type Health struct {
	mgr    *pipeline.Manager
	health *health.Server
	server *grpc.Server
	clock  timeutil.Clock
}

// NewHealth registers the health and reflection services on a new gRPC
// server.
func NewHealth(mgr *pipeline.Manager, clock timeutil.Clock) *Health {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	h := &Health{
		mgr:    mgr,
		health: health.NewServer(),
		server: grpc.NewServer(),
		clock:  clock,
	}
	healthpb.RegisterHealthServer(h.server, h.health)
	reflection.Register(h.server)
	h.Sync()
	return h
}

// Sync publishes the manager's current state.
func (h *Health) Sync() {
	status := healthpb.HealthCheckResponse_SERVING
	if !h.mgr.Accepting() {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.health.SetServingStatus(StreamService, status)
	h.health.SetServingStatus("", status)
}

// Server exposes the underlying gRPC server.
func (h *Health) Server() *grpc.Server { return h.server }

// Serve runs the gRPC server on lis until ctx ends, re-syncing the health
// status every interval.
func (h *Health) Serve(ctx context.Context, lis net.Listener, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}
	errCh := make(chan error, 1)
	go func() {
		logf("gRPC health listening on %s", lis.Addr())
		errCh <- h.server.Serve(lis)
	}()

	for {
		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("grpc serve: %w", err)
			}
			return nil
		case <-ctx.Done():
			h.health.Shutdown()
			h.server.GracefulStop()
			logf("gRPC health server stopped")
			return nil
		case <-h.clock.After(interval):
			h.Sync()
		}
	}
}

// ListenAndServe listens on addr and calls Serve.
func (h *Health) ListenAndServe(ctx context.Context, addr string, interval time.Duration) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return h.Serve(ctx, lis, interval)
}
