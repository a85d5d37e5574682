package grpc

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported alongside the overall "" status.
const ServiceName = "userauth.v1.UserAuth"

const (
	defaultCheckInterval = 15 * time.Second
	pingTimeout          = 3 * time.Second
)

type pinger interface {
	PingContext(ctx context.Context) error
}

// HealthReporter publishes the standard gRPC health service and keeps its
// status in step with the reachability of the account store.
type HealthReporter struct {
	server   *health.Server
	store    pinger
	interval time.Duration
}

func NewHealthReporter(store pinger, interval time.Duration) *HealthReporter {
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	server := health.NewServer()
	server.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	server.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	return &HealthReporter{server: server, store: store, interval: interval}
}

func (r *HealthReporter) Register(s *gogrpc.Server) {
	healthpb.RegisterHealthServer(s, r.server)
}

// Check pings the store once and publishes the result.
func (r *HealthReporter) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if err := r.store.PingContext(pingCtx); err != nil {
		logrus.WithError(err).Warn("Account store health check failed")
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}

	r.server.SetServingStatus("", status)
	r.server.SetServingStatus(ServiceName, status)
	return status
}

// Run checks immediately and then on every interval until ctx is done, at
// which point every watcher is told the service is going away.
func (r *HealthReporter) Run(ctx context.Context) error {
	r.Check(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.server.Shutdown()
			return nil
		case <-ticker.C:
			r.Check(ctx)
		}
	}
}
