package observability

import (
	"context"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCHealthServer exposes the standard grpc.health.v1 service so orchestrators
// that probe over gRPC see the same readiness as /ready.
type GRPCHealthServer struct {
	server   *grpc.Server
	health   *health.Server
	checks   map[string]HealthCheckFunc
	interval time.Duration
}

// NewGRPCHealthServer creates a health server that re-evaluates checks every interval.
func NewGRPCHealthServer(checks map[string]HealthCheckFunc, interval time.Duration) *GRPCHealthServer {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	s := &GRPCHealthServer{
		server:   grpc.NewServer(),
		health:   health.NewServer(),
		checks:   checks,
		interval: interval,
	}
	healthpb.RegisterHealthServer(s.server, s.health)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// Refresh runs the checks once and publishes the aggregate and per-dependency status.
func (s *GRPCHealthServer) Refresh(ctx context.Context) bool {
	deps, ok := RunChecks(ctx, s.checks)
	for name, dep := range deps {
		s.health.SetServingStatus(name, servingStatus(dep.Status == "healthy"))
	}
	s.health.SetServingStatus("", servingStatus(ok))
	return ok
}

// Serve listens on addr and blocks until ctx is done or the listener fails.
func (s *GRPCHealthServer) Serve(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	logger := Component("grpc_health")
	go s.watch(ctx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("gRPC health server listening")
		errCh <- s.server.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		s.health.Shutdown()
		s.server.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *GRPCHealthServer) watch(ctx context.Context) {
	s.refreshWithTimeout(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refreshWithTimeout(ctx)
		}
	}
}

func (s *GRPCHealthServer) refreshWithTimeout(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if !s.Refresh(checkCtx) {
		logger := Component("grpc_health")
		logger.Warn().Msg("Readiness checks failing, reporting NOT_SERVING")
	}
}

func servingStatus(ok bool) healthpb.HealthCheckResponse_ServingStatus {
	if ok {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}
